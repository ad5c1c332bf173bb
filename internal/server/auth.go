package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/lupppig/notifyq/internal/security"
)

const (
	APIKeyHeader     = "X-API-Key"
	grpcAPIKeyHeader = "x-api-key"
)

// APIKeyAuth rejects requests whose X-API-Key does not hash to keyHash.
func APIKeyAuth(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Status: "error", Error: "Unauthorized", Message: "missing API key"})
			return
		}
		if !security.Verify(key, keyHash) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Status: "error", Error: "Unauthorized", Message: "invalid API key"})
			return
		}
		c.Next()
	}
}

// AuthInterceptor validates API keys on incoming gRPC calls. Health checks
// and reflection are always allowed.
type AuthInterceptor struct {
	keyHash string
}

func NewAuthInterceptor(keyHash string) *AuthInterceptor {
	return &AuthInterceptor{keyHash: keyHash}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if a.skip(info.FullMethod) {
			return handler(ctx, req)
		}
		if err := a.authorize(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if a.skip(info.FullMethod) {
			return handler(srv, ss)
		}
		if err := a.authorize(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (a *AuthInterceptor) skip(method string) bool {
	return a.keyHash == "" ||
		strings.HasPrefix(method, "/grpc.health.v1.Health/") ||
		strings.HasPrefix(method, "/grpc.reflection.")
}

func (a *AuthInterceptor) authorize(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	keys := md.Get(grpcAPIKeyHeader)
	if len(keys) == 0 || keys[0] == "" {
		return status.Error(codes.Unauthenticated, "missing API key")
	}
	if !security.Verify(keys[0], a.keyHash) {
		return status.Error(codes.Unauthenticated, "invalid API key")
	}
	return nil
}
