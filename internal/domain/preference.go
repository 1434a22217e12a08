package domain

import "time"

// Preference stores a user's per-channel opt-in flags. A user with no row
// defaults to fully allowed; the settings' default opt-in flags are applied
// at account creation, not at send time.
type Preference struct {
	UserID string

	EmailEnabled       bool
	EmailMarketing     bool
	EmailNotifications bool

	SMSEnabled       bool
	SMSMarketing     bool
	SMSNotifications bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Allows applies the gating rules: the channel flag dominates, marketing and
// notification categories are additionally gated by their sub-flags, and
// transactional sends are never sub-gated.
func (p *Preference) Allows(channel Channel, category Category) bool {
	if p == nil {
		return true
	}

	switch channel {
	case ChannelEmail:
		if !p.EmailEnabled {
			return false
		}
		switch category {
		case CategoryMarketing:
			return p.EmailMarketing
		case CategoryNotification:
			return p.EmailNotifications
		}
		return true
	case ChannelSMS:
		if !p.SMSEnabled {
			return false
		}
		switch category {
		case CategoryMarketing:
			return p.SMSMarketing
		case CategoryNotification:
			return p.SMSNotifications
		}
		return true
	}

	return true
}

// NewPreference builds a preference row from the settings' default opt-in
// flags, used when an account is created.
func NewPreference(userID string, s *Settings) *Preference {
	emailOptIn, smsOptIn := true, true
	if s != nil {
		emailOptIn = s.DefaultEmailOptIn
		smsOptIn = s.DefaultSMSOptIn
	}

	return &Preference{
		UserID:             userID,
		EmailEnabled:       true,
		EmailMarketing:     emailOptIn,
		EmailNotifications: true,
		SMSEnabled:         true,
		SMSMarketing:       smsOptIn,
		SMSNotifications:   true,
	}
}
