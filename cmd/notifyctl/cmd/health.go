package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcauth "github.com/lupppig/notifyq/internal/grpc"
)

var healthService string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health over gRPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := grpc.NewClient(cfg.GRPCAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithUnaryInterceptor(grpcauth.UnaryAuthInterceptor(cfg.APIKey)),
		)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", cfg.GRPCAddr, err)
		}
		defer conn.Close()

		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		status := resp.GetStatus().String()
		switch {
		case IsJSONOutput():
			return printJSON(map[string]string{"address": cfg.GRPCAddr, "status": status})
		case IsQuiet():
			fmt.Println(status)
		case resp.GetStatus() == healthpb.HealthCheckResponse_SERVING:
			fmt.Print(renderResult("health", cfg.GRPCAddr+" is serving", nil, field{"status", status}))
		default:
			fmt.Print(renderResult("health", "", fmt.Errorf("%s reports %s", cfg.GRPCAddr, status)))
		}

		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("server not serving: %s", status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&healthService, "service", "", "Health service name (empty for overall)")
}
