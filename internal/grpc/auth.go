// Package grpc holds client-side helpers for talking to the notifyq gRPC
// endpoint.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const APIKeyHeader = "x-api-key"

// UnaryAuthInterceptor attaches the operator API key to every call. An empty
// key sends nothing.
func UnaryAuthInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if apiKey == "" {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		md := metadata.Pairs(APIKeyHeader, apiKey)
		if exMD, ok := metadata.FromOutgoingContext(ctx); ok {
			md = metadata.Join(exMD, md)
		}

		return invoker(metadata.NewOutgoingContext(ctx, md), method, req, reply, cc, opts...)
	}
}
