package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/metadata"

	"github.com/lupppig/notifyq/internal/config"
	grpcauth "github.com/lupppig/notifyq/internal/grpc"
)

var (
	cfgFile    string
	serverAddr string
	grpcAddr   string
	apiKey     string
	timeout    time.Duration
	jsonOut    bool
	quiet      bool

	cfg = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "notifyctl",
	Short: "CLI for the notifyq dispatch service",
	Long: `notifyctl talks to a running notifyq server.

Queue notifications, manage user preferences, inspect queues and consumers,
and watch delivery attempts as they happen.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.notifyctl.yaml)")
	pf.StringVarP(&serverAddr, "server", "s", "", "HTTP base URL of the server")
	pf.StringVar(&grpcAddr, "grpc", "", "gRPC address of the server")
	pf.StringVar(&apiKey, "api-key", "", "API key sent as X-API-Key")
	pf.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout (0 disables)")
	pf.BoolVar(&jsonOut, "json", false, "print raw JSON output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "print only essential output, no UI")
}

// loadConfig reads the config file and lets explicit flags win over it.
func loadConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serverAddr != "" {
		loaded.ServerAddr = serverAddr
	}
	if grpcAddr != "" {
		loaded.GRPCAddr = grpcAddr
	}
	if apiKey != "" {
		loaded.APIKey = apiKey
	}
	cfg = loaded
	return nil
}

func IsQuiet() bool { return quiet }

func IsJSONOutput() bool { return jsonOut }

// NewCommandContext applies the --timeout flag and attaches the API key as
// outgoing gRPC metadata.
func NewCommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}
	if cfg != nil && cfg.APIKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcauth.APIKeyHeader, cfg.APIKey)
	}
	return ctx, cancel
}
