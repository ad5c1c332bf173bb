package channels

import (
	"context"
	"log/slog"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/ids"
)

// LogSender only logs the message. It stands in for a provider that has no
// credentials configured.
type LogSender struct {
	Channel domain.Channel
}

func (s LogSender) Send(ctx context.Context, target string, content domain.Content) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := ids.DeliveryID(string(s.Channel))
	slog.InfoContext(ctx, "stub delivery",
		slog.String("channel", string(s.Channel)),
		slog.String("target", target),
		slog.String("subject", content.Subject+content.Title),
		slog.String("delivery_id", id),
	)
	return id, nil
}
