package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lupppig/notifyq/internal/broker"
	natsbroker "github.com/lupppig/notifyq/internal/broker/nats"
	"github.com/lupppig/notifyq/internal/broker/rabbitmq"
	"github.com/lupppig/notifyq/internal/channels"
	"github.com/lupppig/notifyq/internal/config"
	"github.com/lupppig/notifyq/internal/deliverylog"
	"github.com/lupppig/notifyq/internal/dispatch"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/events"
	"github.com/lupppig/notifyq/internal/httpclient"
	"github.com/lupppig/notifyq/internal/logging"
	"github.com/lupppig/notifyq/internal/preferences"
	"github.com/lupppig/notifyq/internal/publisher"
	"github.com/lupppig/notifyq/internal/retry"
	"github.com/lupppig/notifyq/internal/server"
	"github.com/lupppig/notifyq/internal/store"
	"github.com/lupppig/notifyq/internal/store/postgres"
	"github.com/lupppig/notifyq/internal/store/sqlite"
	"github.com/lupppig/notifyq/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	healthInterval  = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to server config file (default notifyq.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Level, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	cache, redisClient := openCache(ctx, cfg.RedisAddr)
	if redisClient != nil {
		defer redisClient.Close()
	}

	client, err := rabbitmq.Dial(ctx, rabbitmq.Config{
		URL:        cfg.RabbitMQURL,
		MessageTTL: cfg.Queue.MessageTTL,
		MaxLength:  cfg.Queue.MaxLength,
	}, slog.Default())
	if err != nil {
		return err
	}
	defer client.Close()

	queues := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		queues = append(queues, c.Queue())
	}
	if err := client.DeclareTopology(queues...); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	go client.Run(ctx)

	var sinks []broker.EventSink
	if cfg.NATSURL != "" {
		sink, err := natsbroker.New(ctx, cfg.NATSURL)
		if err != nil {
			slog.Warn("nats unavailable, delivery events stay local", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
		} else {
			defer sink.Close()
			sinks = append(sinks, sink)
		}
	}

	registry, err := buildSenders(cfg)
	if err != nil {
		return err
	}

	hintPolicy, err := dispatch.ParseHintPolicy(cfg.ChannelHintPolicy)
	if err != nil {
		return err
	}

	hub := events.NewHub()
	recorder := deliverylog.New(st, hub, sinks...)
	prefs := preferences.NewService(st, cache, cfg.PreferenceTTL)
	engine := dispatch.NewEngine(prefs, registry, recorder, dispatch.Config{
		ChannelTimeout: cfg.ChannelTimeout,
		HintPolicy:     hintPolicy,
	})

	policy := retry.NewPolicy(cfg.Retry)
	specs := worker.Specs()
	consumers := make([]*worker.Consumer, 0, len(specs))
	for _, spec := range specs {
		consumers = append(consumers, worker.NewConsumer(spec, client, client, engine, policy, cfg.ProcessTimeout))
	}
	group := worker.NewGroup(client, consumers...)
	if err := group.Start(ctx); err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}

	api := server.New(server.Deps{
		Publisher:   publisher.New(client),
		Preferences: prefs,
		Log:         recorder,
		Consumers:   group,
		Inspector:   client,
		Broker:      client,
		Hub:         hub,
		Production:  cfg.Production(),
		APIKeyHash:  cfg.APIKeyHash,
		StopTimeout: shutdownTimeout,
	})

	streamCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}
	httpSrv.RegisterOnShutdown(cancelStreams)

	grpcSrv, health := server.NewGRPCServer(cfg.APIKeyHash)
	go server.WatchHealth(ctx, health, client, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http server listening", slog.String("code", "SYS_STARTUP"), slog.String("addr", cfg.HTTPAddr), slog.String("env", cfg.Env))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		slog.Info("grpc server listening", slog.String("code", "SYS_STARTUP"), slog.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received", slog.String("code", "SYS_SHUTDOWN"))
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
	}
	grpcSrv.GracefulStop()

	if err := group.Stop(shutdownCtx); err != nil {
		slog.Error("consumer drain", slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
	}

	slog.Info("server stopped", slog.String("code", "SYS_SHUTDOWN"))
	return runErr
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		st, err = postgres.New(ctx, cfg.DSN)
	default:
		st, err = sqlite.Open(cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Driver, err)
	}
	slog.Info("store ready", slog.String("code", "SYS_STARTUP"), slog.String("driver", cfg.Driver))
	return st, nil
}

// openCache connects to redis. Preferences fail open, so an unreachable
// cache only disables caching.
func openCache(ctx context.Context, addr string) (preferences.Cache, *redis.Client) {
	if addr == "" {
		return nil, nil
	}
	client, err := preferences.DialRedis(ctx, addr)
	if err != nil {
		slog.Warn("redis unavailable, preference cache disabled", slog.String("code", "CACHE_ERROR"), slog.Any("error", err))
		return nil, nil
	}
	return preferences.NewRedisCache(client), client
}

// buildSenders wires a real provider per channel when its credentials are
// configured and a logging stub otherwise.
func buildSenders(cfg *config.ServerConfig) (*channels.Registry, error) {
	senders := map[domain.Channel]channels.Sender{
		domain.ChannelEmail: channels.LogSender{Channel: domain.ChannelEmail},
		domain.ChannelSMS:   channels.LogSender{Channel: domain.ChannelSMS},
		domain.ChannelPush:  channels.LogSender{Channel: domain.ChannelPush},
	}
	if cfg.SMTP.Host != "" {
		senders[domain.ChannelEmail] = channels.NewSMTPEmail(cfg.SMTP)
	}
	if cfg.Twilio.AccountSID != "" {
		senders[domain.ChannelSMS] = channels.NewTwilioSMS(cfg.Twilio)
	}
	if cfg.Push.GatewayURL != "" {
		senders[domain.ChannelPush] = channels.NewPushGateway(httpclient.New(cfg.ChannelTimeout), cfg.Push.GatewayURL)
	}

	registry := channels.NewRegistry()
	for _, c := range domain.DeliveryChannels() {
		if err := registry.Register(c, senders[c]); err != nil {
			return nil, err
		}
		if _, stub := senders[c].(channels.LogSender); stub {
			slog.Warn("channel using log sender", slog.String("channel", string(c)))
		}
	}
	return registry, nil
}
