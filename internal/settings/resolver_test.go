package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/campushq/messaging/internal/config"
	"github.com/campushq/messaging/internal/domain"
	"go.uber.org/zap"
)

type fakeSettingsRepo struct {
	getFn    func(ctx context.Context) (*domain.Settings, error)
	upsertFn func(ctx context.Context, s *domain.Settings) error
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	if f.getFn != nil {
		return f.getFn(ctx)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSettingsRepo) Upsert(ctx context.Context, s *domain.Settings) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, s)
	}
	return nil
}

func TestResolverEmailPrefersStoredSettings(t *testing.T) {
	t.Parallel()

	repo := &fakeSettingsRepo{
		getFn: func(ctx context.Context) (*domain.Settings, error) {
			return &domain.Settings{
				EmailEnabled:     true,
				SMTPHost:         "smtp.stored.example",
				SMTPPort:         465,
				FromAddress:      "stored@campus.example",
				FromName:         "Stored Sender",
				EmailHourlyLimit: 100,
			}, nil
		},
	}
	cfg := &config.Config{
		SMTPHost:         "smtp.env.example",
		EmailFromAddress: "env@campus.example",
	}

	got := NewResolver(repo, cfg, zap.NewNop()).Email(context.Background())
	if !got.Enabled {
		t.Fatal("email should be enabled")
	}
	if got.Host != "smtp.stored.example" {
		t.Fatalf("Host = %s, want smtp.stored.example", got.Host)
	}
	if got.HourlyLimit != 100 {
		t.Fatalf("HourlyLimit = %d, want 100", got.HourlyLimit)
	}
}

func TestResolverEmailFallsBackToEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		repo *fakeSettingsRepo
	}{
		{
			name: "no settings row",
			repo: &fakeSettingsRepo{},
		},
		{
			name: "row disabled",
			repo: &fakeSettingsRepo{
				getFn: func(ctx context.Context) (*domain.Settings, error) {
					return &domain.Settings{EmailEnabled: false, SMTPHost: "x", FromAddress: "y"}, nil
				},
			},
		},
		{
			name: "row missing credentials",
			repo: &fakeSettingsRepo{
				getFn: func(ctx context.Context) (*domain.Settings, error) {
					return &domain.Settings{EmailEnabled: true}, nil
				},
			},
		},
		{
			name: "settings read fails",
			repo: &fakeSettingsRepo{
				getFn: func(ctx context.Context) (*domain.Settings, error) {
					return nil, errors.New("db down")
				},
			},
		},
	}

	cfg := &config.Config{
		SMTPHost:         "smtp.env.example",
		SMTPPort:         587,
		EmailFromAddress: "env@campus.example",
		EmailHourlyLimit: 42,
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NewResolver(tt.repo, cfg, zap.NewNop()).Email(context.Background())
			if !got.Enabled {
				t.Fatal("email should fall back to environment credentials")
			}
			if got.Host != "smtp.env.example" {
				t.Fatalf("Host = %s, want smtp.env.example", got.Host)
			}
			if got.HourlyLimit != 42 {
				t.Fatalf("HourlyLimit = %d, want 42", got.HourlyLimit)
			}
		})
	}
}

func TestResolverEmailDisabledWhenNothingUsable(t *testing.T) {
	t.Parallel()

	got := NewResolver(&fakeSettingsRepo{}, &config.Config{}, zap.NewNop()).Email(context.Background())
	if got.Enabled {
		t.Fatal("email should be disabled with no usable credentials")
	}
}

func TestResolverSMSPrefersStoredSettings(t *testing.T) {
	t.Parallel()

	repo := &fakeSettingsRepo{
		getFn: func(ctx context.Context) (*domain.Settings, error) {
			return &domain.Settings{
				SMSEnabled:     true,
				SMSAccountSID:  "AC-stored",
				SMSAuthToken:   "token-stored",
				SMSFromNumber:  "+15550001111",
				SMSHourlyLimit: 60,
			}, nil
		},
	}
	cfg := &config.Config{SMSAPIBaseURL: "https://api.twilio.com"}

	got := NewResolver(repo, cfg, zap.NewNop()).SMS(context.Background())
	if !got.Enabled {
		t.Fatal("sms should be enabled")
	}
	if got.AccountSID != "AC-stored" {
		t.Fatalf("AccountSID = %s, want AC-stored", got.AccountSID)
	}
	if got.APIBaseURL != "https://api.twilio.com" {
		t.Fatalf("APIBaseURL = %s, want https://api.twilio.com", got.APIBaseURL)
	}
}

func TestResolverSMSDisabledWhenNothingUsable(t *testing.T) {
	t.Parallel()

	got := NewResolver(&fakeSettingsRepo{}, &config.Config{SMSAccountSID: "AC-env"}, zap.NewNop()).SMS(context.Background())
	if got.Enabled {
		t.Fatal("sms should stay disabled when env credentials are incomplete")
	}
}
