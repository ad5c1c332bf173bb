package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyq/internal/worker"
)

var consumersCmd = &cobra.Command{
	Use:   "consumers",
	Short: "Control the category consumers",
}

func consumerActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := NewCommandContext(context.Background())
			defer cancel()

			msg, err := newAPIClient().ConsumerAction(ctx, action)
			if IsQuiet() || IsJSONOutput() {
				if err != nil {
					return err
				}
				fmt.Println(msg)
				return nil
			}
			fmt.Print(renderResult("consumers "+action, msg, err))
			return err
		},
	}
}

var consumersStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show consumer state per queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		res, err := newAPIClient().ConsumerStatus(ctx)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(res)
		}

		itoa := func(n int64) string { return strconv.FormatInt(n, 10) }
		rows := make([][]string, 0, len(res.ConsumerStatus))
		for _, s := range res.ConsumerStatus {
			state := sentStyle.Render(string(s.State))
			if s.State != worker.StateActive {
				state = inactiveStyle.Render(string(s.State))
			}
			if s.Error != "" {
				state += " " + errorStyle.Render(truncate(s.Error, 30))
			}
			rows = append(rows, []string{
				s.Queue, state, strconv.Itoa(s.Messages), strconv.Itoa(s.Consumers),
				itoa(s.Counters.Acked), itoa(s.Counters.Retried), itoa(s.Counters.DeadLettered), itoa(s.Counters.Requeued),
			})
		}
		printTable([]string{"QUEUE", "STATE", "MESSAGES", "CONSUMERS", "ACKED", "RETRIED", "DEAD", "REQUEUED"}, rows, 2, 3, 4, 5, 6, 7)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consumersCmd)
	consumersCmd.AddCommand(
		consumerActionCmd("start", "Start all consumers"),
		consumerActionCmd("stop", "Stop all consumers after in-flight messages finish"),
		consumersStatusCmd,
	)
}
