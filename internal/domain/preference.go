package domain

import "time"

// Preferences is the per-user channel enablement used by dispatch.
type Preferences struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// DefaultPreferences is the conservative fallback: email only.
func DefaultPreferences() Preferences {
	return Preferences{Email: true}
}

func (p Preferences) Enabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.Email
	case ChannelSMS:
		return p.SMS
	case ChannelPush:
		return p.Push
	}
	return false
}

func (p *Preferences) Set(c Channel, enabled bool) {
	switch c {
	case ChannelEmail:
		p.Email = enabled
	case ChannelSMS:
		p.SMS = enabled
	case ChannelPush:
		p.Push = enabled
	}
}

// PreferenceRecord is one stored row keyed by (UserID, Channel, Category).
type PreferenceRecord struct {
	UserID    string
	Channel   Channel
	Category  Category
	Enabled   bool
	UpdatedAt time.Time
}

// PreferenceUpdate is an unvalidated write request entry.
type PreferenceUpdate struct {
	Channel       string `json:"channel"`
	EventCategory string `json:"eventCategory"`
	Enabled       *bool  `json:"enabled"`
}
