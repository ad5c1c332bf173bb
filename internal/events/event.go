package events

import (
	"time"

	"github.com/lupppig/notifyq/internal/domain"
)

// DeliveryEvent is the live view of one delivery attempt.
type DeliveryEvent struct {
	MessageID  string                `json:"messageId"`
	UserID     string                `json:"userId"`
	Channel    domain.Channel        `json:"channel"`
	Status     domain.DeliveryStatus `json:"status"`
	DeliveryID string                `json:"deliveryId,omitempty"`
	Error      string                `json:"error,omitempty"`
	Attempt    int                   `json:"attempt"`
	Timestamp  time.Time             `json:"timestamp"`
}

func FromAttempt(a domain.DeliveryAttempt) DeliveryEvent {
	return DeliveryEvent{
		MessageID:  a.MessageID,
		UserID:     a.UserID,
		Channel:    a.Channel,
		Status:     a.Status,
		DeliveryID: a.DeliveryID,
		Error:      a.Error,
		Attempt:    a.RetryCount + 1,
		Timestamp:  a.CreatedAt,
	}
}
