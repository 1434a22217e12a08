package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Template is named, reusable message content. The slug is the stable
// external contract: immutable, unique per channel, and the only key used by
// the send path. Database ids never leak into send requests.
type Template struct {
	ID      string
	Slug    string
	Name    string
	Channel Channel
	Version int

	// Email content; SMS templates use Body only.
	Subject  string
	HTMLBody string
	TextBody string
	Body     string

	Category    Category
	Description string
	Variables   []string
	IsActive    bool
	IsSystem    bool
	SentCount   int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func (t *Template) Validate() error {
	if !slugPattern.MatchString(t.Slug) {
		return fmt.Errorf("%w: invalid slug %q", ErrValidation, t.Slug)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	if !t.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, t.Channel)
	}
	if !t.Category.IsValid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, t.Category)
	}

	switch t.Channel {
	case ChannelEmail:
		if strings.TrimSpace(t.Subject) == "" {
			return fmt.Errorf("%w: email template requires a subject", ErrValidation)
		}
		if strings.TrimSpace(t.HTMLBody) == "" {
			return fmt.Errorf("%w: email template requires an html body", ErrValidation)
		}
	case ChannelSMS:
		if strings.TrimSpace(t.Body) == "" {
			return fmt.Errorf("%w: sms template requires a body", ErrValidation)
		}
	}

	return nil
}

// ContentChanged reports whether an edit touches rendered output and should
// therefore bump the version counter.
func (t *Template) ContentChanged(other *Template) bool {
	if other == nil {
		return false
	}
	return t.Subject != other.Subject ||
		t.HTMLBody != other.HTMLBody ||
		t.TextBody != other.TextBody ||
		t.Body != other.Body
}
