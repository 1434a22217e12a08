package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a message record.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusSending   Status = "SENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusOpened    Status = "OPENED"
	StatusClicked   Status = "CLICKED"
	StatusBounced   Status = "BOUNCED"
	StatusFailed    Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusSending, StatusSent, StatusDelivered,
		StatusOpened, StatusClicked, StatusBounced, StatusFailed:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// providerStatusTable maps the SMS provider's delivery-callback vocabulary to
// internal statuses. Unknown strings fall back to SENT so a new provider
// status can never crash the webhook handler; callers log the fallback.
var providerStatusTable = map[string]Status{
	"queued":      StatusQueued,
	"sending":     StatusSending,
	"sent":        StatusSent,
	"delivered":   StatusDelivered,
	"undelivered": StatusBounced,
	"failed":      StatusFailed,
}

// StatusFromProviderString maps a provider delivery-status string to the
// internal status enum. The second return reports whether the string was
// recognized; unrecognized input yields StatusSent.
func StatusFromProviderString(s string) (Status, bool) {
	st, ok := providerStatusTable[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return StatusSent, false
	}
	return st, true
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Category classifies a message's business purpose and selects which opt-out
// flags apply to it.
type Category string

const (
	CategoryTransactional Category = "TRANSACTIONAL"
	CategoryMarketing     Category = "MARKETING"
	CategoryNotification  Category = "NOTIFICATION"
)

func (c Category) String() string { return string(c) }

func (c Category) IsValid() bool {
	switch c {
	case CategoryTransactional, CategoryMarketing, CategoryNotification:
		return true
	}
	return false
}

func ParseCategoryFromString(s string) (Category, error) {
	cat := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !cat.IsValid() {
		return "", fmt.Errorf("%w: invalid category %q", ErrValidation, s)
	}
	return cat, nil
}

// Message is one attempted delivery. Content fields hold the fully resolved
// subject/body snapshot, never the raw template, so historical records stay
// readable after template edits.
type Message struct {
	ID            string
	Channel       Channel
	Category      Category
	Recipient     string
	RecipientName string

	// Email content snapshot; SMS sends use TextBody only.
	Subject  string
	HTMLBody string
	TextBody string

	UserID            *string
	TemplateID        *string
	TemplateVariables map[string]string
	ReferenceType     *string
	ReferenceID       *string

	Status            Status
	ProviderMessageID *string

	SentAt      *time.Time
	DeliveredAt *time.Time
	OpenedAt    *time.Time
	ClickedAt   *time.Time
	BouncedAt   *time.Time
	FailedAt    *time.Time

	ErrorCode    *string
	ErrorMessage *string
	RetryCount   int
	LastRetryAt  *time.Time

	// SegmentCount is the computed SMS segment count; zero for email.
	SegmentCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Message) Validate() error {
	if strings.TrimSpace(m.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, m.Channel)
	}
	if !m.Category.IsValid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, m.Category)
	}

	switch m.Channel {
	case ChannelEmail:
		if strings.TrimSpace(m.Subject) == "" {
			return fmt.Errorf("%w: subject is required for email", ErrValidation)
		}
		if strings.TrimSpace(m.HTMLBody) == "" && strings.TrimSpace(m.TextBody) == "" {
			return fmt.Errorf("%w: email body is required", ErrValidation)
		}
	case ChannelSMS:
		if strings.TrimSpace(m.TextBody) == "" {
			return fmt.Errorf("%w: sms body is required", ErrValidation)
		}
	}

	return nil
}
