package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const EnvelopeVersion = "1.0"

// Payload is the open, category-specific field map of a job.
type Payload map[string]any

// String returns the payload field formatted for templates. Missing or nil
// fields render as the empty string; whole numbers drop the decimal point.
func (p Payload) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Has reports whether the field is present and not blank.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Preview is the serialized payload cut to at most n characters.
func (p Payload) Preview(n int) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	r := []rune(string(data))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// JobRequest is what a producer hands to the publisher.
type JobRequest struct {
	UserID    string    `json:"userId"`
	EventType string    `json:"eventType"`
	Payload   Payload   `json:"payload"`
	Channels  []Channel `json:"channels,omitempty"`
}

// Envelope is the durable message placed on a category queue. It is never
// mutated after publish; redeliveries carry the same bytes.
type Envelope struct {
	UserID    string    `json:"userId"`
	EventType string    `json:"eventType"`
	Payload   Payload   `json:"payload"`
	Channels  []Channel `json:"channels,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	QueueType Category  `json:"queueType"`
	MessageID string    `json:"messageId"`
	Version   string    `json:"version"`

	// Attempt is the 1-based delivery attempt, carried out of band in
	// broker headers.
	Attempt int `json:"-"`
}

// DecodeEnvelope parses a queue body, reporting ErrMessageParse for any
// malformed or incomplete envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageParse, err)
	}
	if env.UserID == "" || env.EventType == "" || env.MessageID == "" {
		return nil, fmt.Errorf("%w: missing userId, eventType or messageId", ErrMessageParse)
	}
	if env.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMessageParse)
	}
	return &env, nil
}
