package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lupppig/notifyq/internal/domain"
)

var (
	sendUserID      string
	sendEventType   string
	sendPayloadPath string
	sendRawPayload  string
	sendChannels    []string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Queue a notification job",
	Example: `  notifyctl send --user u1 --event wallet_debited --raw '{"transactionId":"t1","amount":150}'
  notifyctl send --user u1 --event booking_confirmed --payload booking.json --channels email,sms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildJobRequest()
		if err != nil {
			return err
		}

		if IsQuiet() || IsJSONOutput() || !interactive() {
			ctx, cancel := NewCommandContext(context.Background())
			defer cancel()

			res, err := newAPIClient().Send(ctx, req)
			if err != nil {
				return err
			}
			switch {
			case IsQuiet():
				fmt.Println(res.MessageID)
			case IsJSONOutput():
				return printJSON(res)
			default:
				fmt.Print(renderResult("send", "Notification queued", nil,
					field{"Message ID", res.MessageID},
					field{"Event", res.EventType},
				))
			}
			return nil
		}

		return NewUI(NewSendModel(newAPIClient(), req)).Run()
	},
}

func buildJobRequest() (domain.JobRequest, error) {
	if sendPayloadPath == "" && sendRawPayload == "" {
		return domain.JobRequest{}, fmt.Errorf("must provide either --payload or --raw")
	}
	if sendPayloadPath != "" && sendRawPayload != "" {
		return domain.JobRequest{}, fmt.Errorf("cannot provide both --payload and --raw")
	}

	data := []byte(sendRawPayload)
	if sendPayloadPath != "" {
		var err error
		data, err = os.ReadFile(sendPayloadPath)
		if err != nil {
			return domain.JobRequest{}, fmt.Errorf("read payload file: %w", err)
		}
	}

	var payload domain.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.JobRequest{}, fmt.Errorf("parse JSON payload: %w", err)
	}

	req := domain.JobRequest{UserID: sendUserID, EventType: sendEventType, Payload: payload}
	for _, c := range sendChannels {
		ch, err := domain.ParseChannel(strings.ToLower(strings.TrimSpace(c)))
		if err != nil {
			return domain.JobRequest{}, err
		}
		req.Channels = append(req.Channels, ch)
	}
	return req, nil
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendUserID, "user", "u", "", "Recipient user ID")
	sendCmd.Flags().StringVarP(&sendEventType, "event", "e", "", "Event type, e.g. wallet_debited")
	sendCmd.Flags().StringVar(&sendPayloadPath, "payload", "", "Path to JSON payload file")
	sendCmd.Flags().StringVar(&sendRawPayload, "raw", "", "Raw JSON payload object")
	sendCmd.Flags().StringSliceVar(&sendChannels, "channels", nil, "Channel hint (email,sms,push)")
	_ = sendCmd.MarkFlagRequired("user")
	_ = sendCmd.MarkFlagRequired("event")
}
