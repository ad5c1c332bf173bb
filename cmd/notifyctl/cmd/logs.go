package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var logsQ logsQuery

var logsCmd = &cobra.Command{
	Use:   "logs <userId>",
	Short: "View a user's delivery attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		res, err := newAPIClient().Logs(ctx, args[0], logsQ)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			return printJSON(res)
		}

		if len(res.Logs) == 0 {
			fmt.Println("No logs found.")
			return nil
		}

		rows := make([][]string, 0, len(res.Logs))
		for _, a := range res.Logs {
			rows = append(rows, []string{
				a.MessageID,
				string(a.Channel),
				string(a.Status),
				strconv.Itoa(a.RetryCount),
				a.DeliveryID,
				a.CreatedAt.Local().Format(time.DateTime),
				truncate(a.Error, 40),
			})
		}
		printTable([]string{"MESSAGE ID", "CHANNEL", "STATUS", "RETRIES", "DELIVERY ID", "CREATED AT", "ERROR"}, rows, 3)

		if !IsQuiet() {
			p := res.Pagination
			fmt.Printf("\npage %d of %d (%d total)\n", p.Page, p.Pages, p.Total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logsQ.Page, "page", 1, "Page number")
	logsCmd.Flags().IntVar(&logsQ.Limit, "limit", 10, "Entries per page")
	logsCmd.Flags().StringVar(&logsQ.Status, "status", "", "Filter by status (sent, failed)")
	logsCmd.Flags().StringVar(&logsQ.Channel, "channel", "", "Filter by channel (email, sms, push)")
}
