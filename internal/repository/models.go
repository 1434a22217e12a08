package repository

import (
	"encoding/json"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"gorm.io/datatypes"
)

// MessageModel is the persistence model for the messages table. Both
// channels share the table behind a channel discriminator.
type MessageModel struct {
	ID            string          `gorm:"type:uuid;primaryKey"`
	Channel       domain.Channel  `gorm:"type:varchar(10);not null"`
	Category      domain.Category `gorm:"type:varchar(20);not null"`
	Recipient     string          `gorm:"type:varchar(255);not null"`
	RecipientName string          `gorm:"type:varchar(255)"`

	Subject  string `gorm:"type:text"`
	HTMLBody string `gorm:"type:text"`
	TextBody string `gorm:"type:text"`

	UserID            *string        `gorm:"type:varchar(64)"`
	TemplateID        *string        `gorm:"type:uuid"`
	TemplateVariables datatypes.JSON `gorm:"type:jsonb"`
	ReferenceType     *string        `gorm:"type:varchar(64)"`
	ReferenceID       *string        `gorm:"type:varchar(64)"`

	Status            domain.Status `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string       `gorm:"type:varchar(255)"`

	SentAt      *time.Time
	DeliveredAt *time.Time
	OpenedAt    *time.Time
	ClickedAt   *time.Time
	BouncedAt   *time.Time
	FailedAt    *time.Time

	ErrorCode    *string `gorm:"type:varchar(64)"`
	ErrorMessage *string `gorm:"type:text"`
	RetryCount   int     `gorm:"not null;default:0"`
	LastRetryAt  *time.Time

	SegmentCount int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MessageModel) TableName() string {
	return "messages"
}

// TemplateModel is the persistence model for the templates table.
type TemplateModel struct {
	ID      string         `gorm:"type:uuid;primaryKey"`
	Slug    string         `gorm:"type:varchar(128);not null"`
	Name    string         `gorm:"type:varchar(255);not null"`
	Channel domain.Channel `gorm:"type:varchar(10);not null"`
	Version int            `gorm:"not null;default:1"`

	Subject  string `gorm:"type:text"`
	HTMLBody string `gorm:"type:text"`
	TextBody string `gorm:"type:text"`
	Body     string `gorm:"type:text"`

	Category    domain.Category `gorm:"type:varchar(20);not null"`
	Description string          `gorm:"type:text"`
	Variables   datatypes.JSON  `gorm:"type:jsonb"`
	IsActive    bool            `gorm:"not null;default:true"`
	IsSystem    bool            `gorm:"not null;default:false"`
	SentCount   int64           `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TemplateModel) TableName() string {
	return "templates"
}

// SettingsModel is the persistence model for the singleton settings row.
type SettingsModel struct {
	ID string `gorm:"type:varchar(32);primaryKey"`

	EmailEnabled bool   `gorm:"not null;default:false"`
	SMTPHost     string `gorm:"type:varchar(255)"`
	SMTPPort     int    `gorm:"not null;default:587"`
	SMTPUsername string `gorm:"type:varchar(255)"`
	SMTPPassword string `gorm:"type:varchar(255)"`
	FromAddress  string `gorm:"type:varchar(255)"`
	FromName     string `gorm:"type:varchar(255)"`
	ReplyTo      string `gorm:"type:varchar(255)"`

	SMSEnabled    bool   `gorm:"not null;default:false"`
	SMSAccountSID string `gorm:"type:varchar(255)"`
	SMSAuthToken  string `gorm:"type:varchar(255)"`
	SMSFromNumber string `gorm:"type:varchar(32)"`

	DefaultEmailOptIn bool `gorm:"not null;default:true"`
	DefaultSMSOptIn   bool `gorm:"not null;default:false"`

	EmailHourlyLimit int `gorm:"not null;default:0"`
	SMSHourlyLimit   int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SettingsModel) TableName() string {
	return "messaging_settings"
}

// PreferenceModel is the persistence model for user notification preferences.
type PreferenceModel struct {
	UserID string `gorm:"type:varchar(64);primaryKey"`

	EmailEnabled       bool `gorm:"not null;default:true"`
	EmailMarketing     bool `gorm:"not null;default:true"`
	EmailNotifications bool `gorm:"not null;default:true"`

	SMSEnabled       bool `gorm:"not null;default:true"`
	SMSMarketing     bool `gorm:"not null;default:true"`
	SMSNotifications bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PreferenceModel) TableName() string {
	return "notification_preferences"
}

func messageModelFromDomain(m *domain.Message) *MessageModel {
	if m == nil {
		return nil
	}

	return &MessageModel{
		ID:                m.ID,
		Channel:           m.Channel,
		Category:          m.Category,
		Recipient:         m.Recipient,
		RecipientName:     m.RecipientName,
		Subject:           m.Subject,
		HTMLBody:          m.HTMLBody,
		TextBody:          m.TextBody,
		UserID:            m.UserID,
		TemplateID:        m.TemplateID,
		TemplateVariables: variablesToJSON(m.TemplateVariables),
		ReferenceType:     m.ReferenceType,
		ReferenceID:       m.ReferenceID,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		OpenedAt:          m.OpenedAt,
		ClickedAt:         m.ClickedAt,
		BouncedAt:         m.BouncedAt,
		FailedAt:          m.FailedAt,
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
		RetryCount:        m.RetryCount,
		LastRetryAt:       m.LastRetryAt,
		SegmentCount:      m.SegmentCount,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	return &domain.Message{
		ID:                m.ID,
		Channel:           m.Channel,
		Category:          m.Category,
		Recipient:         m.Recipient,
		RecipientName:     m.RecipientName,
		Subject:           m.Subject,
		HTMLBody:          m.HTMLBody,
		TextBody:          m.TextBody,
		UserID:            m.UserID,
		TemplateID:        m.TemplateID,
		TemplateVariables: variablesFromJSON(m.TemplateVariables),
		ReferenceType:     m.ReferenceType,
		ReferenceID:       m.ReferenceID,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		SentAt:            m.SentAt,
		DeliveredAt:       m.DeliveredAt,
		OpenedAt:          m.OpenedAt,
		ClickedAt:         m.ClickedAt,
		BouncedAt:         m.BouncedAt,
		FailedAt:          m.FailedAt,
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
		RetryCount:        m.RetryCount,
		LastRetryAt:       m.LastRetryAt,
		SegmentCount:      m.SegmentCount,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func templateModelFromDomain(t *domain.Template) *TemplateModel {
	if t == nil {
		return nil
	}

	return &TemplateModel{
		ID:          t.ID,
		Slug:        t.Slug,
		Name:        t.Name,
		Channel:     t.Channel,
		Version:     t.Version,
		Subject:     t.Subject,
		HTMLBody:    t.HTMLBody,
		TextBody:    t.TextBody,
		Body:        t.Body,
		Category:    t.Category,
		Description: t.Description,
		Variables:   stringsToJSON(t.Variables),
		IsActive:    t.IsActive,
		IsSystem:    t.IsSystem,
		SentCount:   t.SentCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:          m.ID,
		Slug:        m.Slug,
		Name:        m.Name,
		Channel:     m.Channel,
		Version:     m.Version,
		Subject:     m.Subject,
		HTMLBody:    m.HTMLBody,
		TextBody:    m.TextBody,
		Body:        m.Body,
		Category:    m.Category,
		Description: m.Description,
		Variables:   stringsFromJSON(m.Variables),
		IsActive:    m.IsActive,
		IsSystem:    m.IsSystem,
		SentCount:   m.SentCount,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func settingsModelFromDomain(s *domain.Settings) *SettingsModel {
	if s == nil {
		return nil
	}

	return &SettingsModel{
		ID:                s.ID,
		EmailEnabled:      s.EmailEnabled,
		SMTPHost:          s.SMTPHost,
		SMTPPort:          s.SMTPPort,
		SMTPUsername:      s.SMTPUsername,
		SMTPPassword:      s.SMTPPassword,
		FromAddress:       s.FromAddress,
		FromName:          s.FromName,
		ReplyTo:           s.ReplyTo,
		SMSEnabled:        s.SMSEnabled,
		SMSAccountSID:     s.SMSAccountSID,
		SMSAuthToken:      s.SMSAuthToken,
		SMSFromNumber:     s.SMSFromNumber,
		DefaultEmailOptIn: s.DefaultEmailOptIn,
		DefaultSMSOptIn:   s.DefaultSMSOptIn,
		EmailHourlyLimit:  s.EmailHourlyLimit,
		SMSHourlyLimit:    s.SMSHourlyLimit,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func settingsModelToDomain(m *SettingsModel) *domain.Settings {
	if m == nil {
		return nil
	}

	return &domain.Settings{
		ID:                m.ID,
		EmailEnabled:      m.EmailEnabled,
		SMTPHost:          m.SMTPHost,
		SMTPPort:          m.SMTPPort,
		SMTPUsername:      m.SMTPUsername,
		SMTPPassword:      m.SMTPPassword,
		FromAddress:       m.FromAddress,
		FromName:          m.FromName,
		ReplyTo:           m.ReplyTo,
		SMSEnabled:        m.SMSEnabled,
		SMSAccountSID:     m.SMSAccountSID,
		SMSAuthToken:      m.SMSAuthToken,
		SMSFromNumber:     m.SMSFromNumber,
		DefaultEmailOptIn: m.DefaultEmailOptIn,
		DefaultSMSOptIn:   m.DefaultSMSOptIn,
		EmailHourlyLimit:  m.EmailHourlyLimit,
		SMSHourlyLimit:    m.SMSHourlyLimit,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func preferenceModelFromDomain(p *domain.Preference) *PreferenceModel {
	if p == nil {
		return nil
	}

	return &PreferenceModel{
		UserID:             p.UserID,
		EmailEnabled:       p.EmailEnabled,
		EmailMarketing:     p.EmailMarketing,
		EmailNotifications: p.EmailNotifications,
		SMSEnabled:         p.SMSEnabled,
		SMSMarketing:       p.SMSMarketing,
		SMSNotifications:   p.SMSNotifications,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func preferenceModelToDomain(m *PreferenceModel) *domain.Preference {
	if m == nil {
		return nil
	}

	return &domain.Preference{
		UserID:             m.UserID,
		EmailEnabled:       m.EmailEnabled,
		EmailMarketing:     m.EmailMarketing,
		EmailNotifications: m.EmailNotifications,
		SMSEnabled:         m.SMSEnabled,
		SMSMarketing:       m.SMSMarketing,
		SMSNotifications:   m.SMSNotifications,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func variablesToJSON(vars map[string]string) datatypes.JSON {
	if len(vars) == 0 {
		return nil
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func variablesFromJSON(raw datatypes.JSON) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var vars map[string]string
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil
	}
	return vars
}

func stringsToJSON(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func stringsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
