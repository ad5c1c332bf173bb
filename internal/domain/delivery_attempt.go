package domain

import "time"

type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// PayloadPreviewLen caps DeliveryAttempt.PayloadPreview.
const PayloadPreviewLen = 200

// DeliveryAttempt is one append-only audit row per channel attempt.
type DeliveryAttempt struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Channel        Channel        `json:"channel"`
	Status         DeliveryStatus `json:"status"`
	MessageID      string         `json:"messageId"`
	DeliveryID     string         `json:"deliveryId,omitempty"`
	PayloadPreview string         `json:"payloadPreview"`
	Error          string         `json:"error,omitempty"`
	RetryCount     int            `json:"retryCount"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// LogFilter narrows a delivery log listing.
type LogFilter struct {
	Status  DeliveryStatus
	Channel Channel
	Limit   int
	Offset  int
}
