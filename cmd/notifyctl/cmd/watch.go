package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyq/internal/events"
)

var watchFilter streamFilter

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch delivery attempts live",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		resp, err := newAPIClient().Stream(ctx, watchFilter)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if IsQuiet() || IsJSONOutput() || !interactive() {
			err := readEvents(resp.Body, func(name string, data []byte) error {
				if name != "delivery" {
					return nil
				}
				if IsJSONOutput() {
					fmt.Println(string(data))
					return nil
				}
				var ev events.DeliveryEvent
				if err := json.Unmarshal(data, &ev); err != nil {
					return fmt.Errorf("decode event: %w", err)
				}
				fmt.Println(formatEventLine(ev))
				return nil
			})
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		return runWatchUI(ctx, resp.Body)
	},
}

func formatEventLine(ev events.DeliveryEvent) string {
	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
		ev.Timestamp.Local().Format(time.TimeOnly),
		ev.MessageID,
		ev.UserID,
		ev.Channel,
		ev.Status,
	)
	if ev.Error != "" {
		line += "\t" + ev.Error
	}
	return line
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchFilter.UserID, "user", "", "Only events for this user")
	watchCmd.Flags().StringVar(&watchFilter.MessageID, "message", "", "Only events for this message ID")
	watchCmd.Flags().StringVar(&watchFilter.Channel, "channel", "", "Only events for this channel")
}
