// Package server exposes the HTTP collaborator API and the gRPC health
// endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lupppig/notifyq/internal/broker"
	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/events"
	"github.com/lupppig/notifyq/internal/logging"
	"github.com/lupppig/notifyq/internal/worker"
)

const RequestIDHeader = "X-Request-ID"

type Publisher interface {
	RouteAndPublish(ctx context.Context, req domain.JobRequest) (string, error)
}

type PreferenceService interface {
	Get(ctx context.Context, userID string) domain.Preferences
	Update(ctx context.Context, userID string, updates []domain.PreferenceUpdate) (domain.Preferences, error)
}

type DeliveryLog interface {
	List(ctx context.Context, userID string, filter domain.LogFilter) ([]domain.DeliveryAttempt, int, error)
}

type Consumers interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
	Status(ctx context.Context) []worker.QueueStatus
}

// BrokerHealth reports whether the broker connection is up.
type BrokerHealth interface {
	Connected() bool
}

type Deps struct {
	Publisher   Publisher
	Preferences PreferenceService
	Log         DeliveryLog
	Consumers   Consumers
	Inspector   broker.Inspector
	Broker      BrokerHealth
	Hub         *events.Hub
	// Production hides internal error detail from responses.
	Production bool
	// APIKeyHash enables X-API-Key auth on /api when set.
	APIKeyHash string
	// StopTimeout bounds how long consumer stop waits for a drain.
	StopTimeout time.Duration
}

type Server struct {
	router *gin.Engine
	deps   Deps
}

func New(deps Deps) *Server {
	if deps.StopTimeout <= 0 {
		deps.StopTimeout = 30 * time.Second
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestContext(), cors.Default())

	s := &Server{router: router, deps: deps}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	if s.deps.APIKeyHash != "" {
		api.Use(APIKeyAuth(s.deps.APIKeyHash))
	}

	n := api.Group("/notifications")
	{
		n.POST("/send", s.handleSend)
		n.GET("/stream", s.handleStream)
		n.GET("/preferences/:userId", s.handleGetPreferences)
		n.PUT("/preferences", s.handleUpdatePreferences)
		n.GET("/queue/stats", s.handleQueueStats)
		n.POST("/consumers/start", s.handleStartConsumers)
		n.POST("/consumers/stop", s.handleStopConsumers)
		n.GET("/consumers/status", s.handleConsumerStatus)
		n.GET("/:userId", s.handleListLogs)
	}
}

// requestContext tags each request with an id and logs its completion.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		ctx := logging.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		logging.FromContext(ctx).Debug("request completed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)),
		)
	}
}
