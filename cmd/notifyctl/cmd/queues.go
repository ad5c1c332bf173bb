package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Show depth and consumers of every queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		stats, err := newAPIClient().QueueStats(ctx)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(stats)
		}

		rows := make([][]string, 0, len(stats))
		for _, s := range stats {
			rows = append(rows, []string{s.Queue, strconv.Itoa(s.Messages), strconv.Itoa(s.Consumers)})
		}
		printTable([]string{"QUEUE", "MESSAGES", "CONSUMERS"}, rows, 1, 2)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queuesCmd)
}
