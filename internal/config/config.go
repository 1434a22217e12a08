package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

// Config carries process-level defaults. Transport credentials here are the
// fallback tier; the persisted settings row wins when usable (see the
// settings resolver).
type Config struct {
	DatabaseDSN  string `env:"DATABASE_DSN,required=true"`
	RedisURL     string `env:"REDIS_URL,required=true"`
	PublicAppURL string `env:"PUBLIC_APP_URL,default=http://localhost:8080"`
	APIPort      int    `env:"API_PORT,default=8080"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`

	SMTPHost         string `env:"SMTP_HOST"`
	SMTPPort         int    `env:"SMTP_PORT,default=587"`
	SMTPUsername     string `env:"SMTP_USERNAME"`
	SMTPPassword     string `env:"SMTP_PASSWORD"`
	EmailFromAddress string `env:"EMAIL_FROM_ADDRESS"`
	EmailFromName    string `env:"EMAIL_FROM_NAME,default=Campus Notifications"`
	EmailReplyTo     string `env:"EMAIL_REPLY_TO"`

	SMSAccountSID string `env:"SMS_ACCOUNT_SID"`
	SMSAuthToken  string `env:"SMS_AUTH_TOKEN"`
	SMSFromNumber string `env:"SMS_FROM_NUMBER"`
	SMSAPIBaseURL string `env:"SMS_API_BASE_URL,default=https://api.twilio.com"`

	EmailHourlyLimit int `env:"EMAIL_HOURLY_LIMIT,default=500"`
	SMSHourlyLimit   int `env:"SMS_HOURLY_LIMIT,default=200"`

	RetrySweepIntervalSec int `env:"RETRY_SWEEP_INTERVAL_SEC,default=300"`
	RetryMaxAttempts      int `env:"RETRY_MAX_ATTEMPTS,default=3"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
