package service

import (
	"context"
	"strings"
	"testing"

	"github.com/campushq/messaging/internal/domain"
)

func welcomeEmailTemplate() *domain.Template {
	return &domain.Template{
		ID:       "tpl-welcome",
		Slug:     "welcome-email",
		Name:     "Welcome Email",
		Channel:  domain.ChannelEmail,
		Version:  1,
		Subject:  "Welcome {{name}}!",
		HTMLBody: "<p>Hi {{name}}, welcome to {{school}}.</p>",
		TextBody: "Hi {{name}}, welcome to {{school}}.",
		Category: domain.CategoryTransactional,
		IsActive: true,
		IsSystem: true,
	}
}

func TestSendTemplatedEmailInterpolates(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	fixture.templates = newFakeTemplateRepo(welcomeEmailTemplate())
	fixture.dispatcher.templates = fixture.templates

	result, err := fixture.dispatcher.SendTemplatedEmail(context.Background(), TemplatedEmailRequest{
		To:           "ana@example.com",
		ToName:       "Ana",
		TemplateSlug: "welcome-email",
		Variables:    map[string]string{"name": "Ana", "school": "Northside High"},
	})
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	record := fixture.messages.single(t)
	if record.Subject != "Welcome Ana!" {
		t.Fatalf("subject = %q, want %q", record.Subject, "Welcome Ana!")
	}
	if !strings.Contains(record.HTMLBody, "welcome to Northside High") {
		t.Fatalf("html body = %q, want interpolated school", record.HTMLBody)
	}
	if record.TemplateID == nil || *record.TemplateID != "tpl-welcome" {
		t.Fatalf("template id = %v, want tpl-welcome", record.TemplateID)
	}

	tpl, err := fixture.templates.GetByID(context.Background(), "tpl-welcome")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if tpl.SentCount != 1 {
		t.Fatalf("sentCount = %d, want 1", tpl.SentCount)
	}
}

func TestSendTemplatedEmailUnknownVariablesLeftVerbatim(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	fixture.templates = newFakeTemplateRepo(welcomeEmailTemplate())
	fixture.dispatcher.templates = fixture.templates

	result, err := fixture.dispatcher.SendTemplatedEmail(context.Background(), TemplatedEmailRequest{
		To:           "ana@example.com",
		TemplateSlug: "welcome-email",
		Variables:    map[string]string{"name": "Ana"},
	})
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	record := fixture.messages.single(t)
	if !strings.Contains(record.TextBody, "{{school}}") {
		t.Fatalf("text body = %q, want unmatched placeholder kept", record.TextBody)
	}
}

func TestSendTemplatedEmailTemplateNotFound(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())

	result, err := fixture.dispatcher.SendTemplatedEmail(context.Background(), TemplatedEmailRequest{
		To:           "ana@example.com",
		TemplateSlug: "missing-template",
	})
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}
	if result.Success {
		t.Fatal("send should fail for a missing template")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Fatalf("error = %q, want not-found message", result.Error)
	}
	if fixture.messages.count() != 0 {
		t.Fatalf("record count = %d, want 0", fixture.messages.count())
	}
}

func TestSendTemplatedEmailInactiveTemplate(t *testing.T) {
	t.Parallel()

	tpl := welcomeEmailTemplate()
	tpl.IsActive = false

	fixture := newDispatcherFixture(t, bothChannelSettings())
	fixture.templates = newFakeTemplateRepo(tpl)
	fixture.dispatcher.templates = fixture.templates

	result, err := fixture.dispatcher.SendTemplatedEmail(context.Background(), TemplatedEmailRequest{
		To:           "ana@example.com",
		TemplateSlug: "welcome-email",
	})
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}
	if result.Success {
		t.Fatal("send should fail for an inactive template")
	}
	if !strings.Contains(result.Error, "inactive") {
		t.Fatalf("error = %q, want inactive message", result.Error)
	}
	if fixture.messages.count() != 0 {
		t.Fatalf("record count = %d, want 0", fixture.messages.count())
	}
}

func TestSendTemplatedEmailSlugIsChannelScoped(t *testing.T) {
	t.Parallel()

	smsTemplate := &domain.Template{
		ID:       "tpl-sms-welcome",
		Slug:     "welcome-email",
		Name:     "Welcome SMS",
		Channel:  domain.ChannelSMS,
		Version:  1,
		Body:     "Welcome {{name}}!",
		Category: domain.CategoryTransactional,
		IsActive: true,
	}

	fixture := newDispatcherFixture(t, bothChannelSettings())
	fixture.templates = newFakeTemplateRepo(smsTemplate)
	fixture.dispatcher.templates = fixture.templates

	result, err := fixture.dispatcher.SendTemplatedEmail(context.Background(), TemplatedEmailRequest{
		To:           "ana@example.com",
		TemplateSlug: "welcome-email",
	})
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}
	if result.Success {
		t.Fatal("an sms template must not satisfy an email send")
	}
}

func TestSendTemplatedEmailPreferenceGate(t *testing.T) {
	t.Parallel()

	marketingTemplate := welcomeEmailTemplate()
	marketingTemplate.Slug = "spring-newsletter"
	marketingTemplate.Category = domain.CategoryMarketing

	userID := "user-1"

	tests := []struct {
		name     string
		pref     *domain.Preference
		wantSent bool
		wantDeny string
	}{
		{
			name:     "no preference record allows send",
			pref:     nil,
			wantSent: true,
		},
		{
			name: "marketing opt-out blocks marketing email",
			pref: &domain.Preference{
				UserID:             userID,
				EmailEnabled:       true,
				EmailMarketing:     false,
				EmailNotifications: true,
			},
			wantSent: false,
			wantDeny: "opted out",
		},
		{
			name: "channel disabled blocks everything",
			pref: &domain.Preference{
				UserID:         userID,
				EmailEnabled:   false,
				EmailMarketing: true,
			},
			wantSent: false,
			wantDeny: "opted out",
		},
		{
			name: "marketing opt-in allows send",
			pref: &domain.Preference{
				UserID:             userID,
				EmailEnabled:       true,
				EmailMarketing:     true,
				EmailNotifications: true,
			},
			wantSent: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := newDispatcherFixture(t, bothChannelSettings())
			fixture.templates = newFakeTemplateRepo(marketingTemplate)
			fixture.dispatcher.templates = fixture.templates
			if tt.pref != nil {
				fixture.prefs = newFakePreferenceRepo(tt.pref)
				fixture.dispatcher.prefs = fixture.prefs
			}

			uid := userID
			result, err := fixture.dispatcher.SendTemplatedEmail(context.Background(), TemplatedEmailRequest{
				To:           "ana@example.com",
				UserID:       &uid,
				TemplateSlug: "spring-newsletter",
			})
			if err != nil {
				t.Fatalf("SendTemplatedEmail() error = %v", err)
			}

			if result.Success != tt.wantSent {
				t.Fatalf("success = %v, want %v (error: %s)", result.Success, tt.wantSent, result.Error)
			}
			if !tt.wantSent {
				if !strings.Contains(result.Error, tt.wantDeny) {
					t.Fatalf("error = %q, want %q", result.Error, tt.wantDeny)
				}
				if fixture.messages.count() != 0 {
					t.Fatalf("record count = %d, want 0 on denial", fixture.messages.count())
				}
			}
		})
	}
}

func TestSendTemplatedEmailTransactionalIgnoresSubFlags(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	fixture.templates = newFakeTemplateRepo(welcomeEmailTemplate())
	fixture.dispatcher.templates = fixture.templates

	uid := "user-1"
	fixture.prefs = newFakePreferenceRepo(&domain.Preference{
		UserID:             uid,
		EmailEnabled:       true,
		EmailMarketing:     false,
		EmailNotifications: false,
	})
	fixture.dispatcher.prefs = fixture.prefs

	result, err := fixture.dispatcher.SendTemplatedEmail(context.Background(), TemplatedEmailRequest{
		To:           "ana@example.com",
		UserID:       &uid,
		TemplateSlug: "welcome-email",
		Variables:    map[string]string{"name": "Ana"},
	})
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("transactional email should ignore category opt-outs, got error %q", result.Error)
	}
}

func TestSendTemplatedSMSInterpolatesBody(t *testing.T) {
	t.Parallel()

	smsTemplate := &domain.Template{
		ID:       "tpl-reminder",
		Slug:     "class-reminder",
		Name:     "Class Reminder",
		Channel:  domain.ChannelSMS,
		Version:  1,
		Body:     "Reminder: {{class}} starts at {{time}}.",
		Category: domain.CategoryNotification,
		IsActive: true,
	}

	fixture := newDispatcherFixture(t, bothChannelSettings())
	fixture.templates = newFakeTemplateRepo(smsTemplate)
	fixture.dispatcher.templates = fixture.templates

	result, err := fixture.dispatcher.SendTemplatedSMS(context.Background(), TemplatedSMSRequest{
		To:           "+15551234567",
		TemplateSlug: "class-reminder",
		Variables:    map[string]string{"class": "Biology", "time": "9:00"},
	})
	if err != nil {
		t.Fatalf("SendTemplatedSMS() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	record := fixture.messages.single(t)
	if record.TextBody != "Reminder: Biology starts at 9:00." {
		t.Fatalf("body = %q, want interpolated reminder", record.TextBody)
	}
	if record.Category != domain.CategoryNotification {
		t.Fatalf("category = %s, want NOTIFICATION from template", record.Category)
	}
}
