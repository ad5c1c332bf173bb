package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrUnresolvedEventType = errors.New("unresolved event type")
	ErrChannelDelivery     = errors.New("channel delivery failed")
	ErrPreferenceStore     = errors.New("preference store unavailable")
	ErrMessageParse        = errors.New("malformed queue message")
)

// ValidationError is returned for bad input rejected at a boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnresolvedEventTypeError means the event type is not in the routing table.
type UnresolvedEventTypeError struct {
	EventType string
}

func (e *UnresolvedEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type: %q", e.EventType)
}

func (e *UnresolvedEventTypeError) Is(target error) bool {
	return target == ErrUnresolvedEventType || target == ErrValidation
}

// ChannelDeliveryError wraps a failure of a single channel send.
type ChannelDeliveryError struct {
	Channel Channel
	Err     error
}

func (e *ChannelDeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *ChannelDeliveryError) Unwrap() error { return e.Err }

func (e *ChannelDeliveryError) Is(target error) bool {
	return target == ErrChannelDelivery
}
