package domain

import (
	"strings"
	"time"
)

// SettingsID is the primary key of the singleton settings row.
const SettingsID = "default"

// Settings is the singleton messaging configuration record. Environment
// defaults take over for any channel whose row-level credentials are unusable
// (see the settings resolver).
type Settings struct {
	ID string

	EmailEnabled bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	FromName     string
	ReplyTo      string

	SMSEnabled    bool
	SMSAccountSID string
	SMSAuthToken  string
	SMSFromNumber string

	DefaultEmailOptIn bool
	DefaultSMSOptIn   bool

	EmailHourlyLimit int
	SMSHourlyLimit   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmailUsable reports whether the row carries enough to dispatch email.
func (s *Settings) EmailUsable() bool {
	return s != nil && s.EmailEnabled &&
		strings.TrimSpace(s.SMTPHost) != "" &&
		strings.TrimSpace(s.FromAddress) != ""
}

// SMSUsable reports whether the row carries enough to dispatch SMS.
func (s *Settings) SMSUsable() bool {
	return s != nil && s.SMSEnabled &&
		strings.TrimSpace(s.SMSAccountSID) != "" &&
		strings.TrimSpace(s.SMSAuthToken) != "" &&
		strings.TrimSpace(s.SMSFromNumber) != ""
}
