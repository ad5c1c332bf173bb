package domain

import "fmt"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"

	// ChannelSystem only appears on delivery log rows written when dispatch
	// aborts before any real channel was attempted.
	ChannelSystem Channel = "system"
)

// DeliveryChannels lists the real delivery channels in dispatch order.
func DeliveryChannels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelPush}
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// TargetField is the payload key carrying the contact target for the channel.
func (c Channel) TargetField() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelSMS:
		return "phone"
	case ChannelPush:
		return "deviceToken"
	}
	return ""
}

func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", &ValidationError{Field: "channel", Reason: fmt.Sprintf("invalid channel %q", s)}
	}
	return c, nil
}

// Content is the rendered, channel-specific message body.
type Content struct {
	Subject string `json:"subject,omitempty"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body"`
}
