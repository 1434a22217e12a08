package migrations

import (
	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// System templates the application's own flows depend on. Admins can edit
// them but not delete them; reruns never overwrite admin edits.
func seedSystemTemplates() *gormigrate.Migration {
	seeds := []repository.TemplateModel{
		{
			Slug:     "welcome-email",
			Name:     "Welcome Email",
			Channel:  domain.ChannelEmail,
			Subject:  "Welcome {{name}}!",
			HTMLBody: "<p>Hi {{name}},</p><p>Your account at {{school}} is ready. Sign in at {{loginUrl}}.</p>",
			TextBody: "Hi {{name}}, your account at {{school}} is ready. Sign in at {{loginUrl}}.",
			Category: domain.CategoryTransactional,
		},
		{
			Slug:     "password-reset",
			Name:     "Password Reset",
			Channel:  domain.ChannelEmail,
			Subject:  "Reset your password",
			HTMLBody: "<p>Hi {{name}},</p><p>Use this link to reset your password: {{resetUrl}}. It expires in {{expiresIn}}.</p>",
			TextBody: "Hi {{name}}, use this link to reset your password: {{resetUrl}}. It expires in {{expiresIn}}.",
			Category: domain.CategoryTransactional,
		},
		{
			Slug:     "class-reminder",
			Name:     "Class Reminder",
			Channel:  domain.ChannelSMS,
			Body:     "Reminder: {{class}} starts at {{time}} in {{room}}.",
			Category: domain.CategoryNotification,
		},
	}

	return &gormigrate.Migration{
		ID: "000005_seed_system_templates",
		Migrate: func(tx *gorm.DB) error {
			for _, seed := range seeds {
				seed.ID = uuid.NewString()
				seed.Version = 1
				seed.IsActive = true
				seed.IsSystem = true

				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "slug"}, {Name: "channel"}},
					DoNothing: true,
				}).Create(&seed).Error
				if err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for _, seed := range seeds {
				err := tx.
					Where("slug = ? AND channel = ? AND is_system", seed.Slug, seed.Channel).
					Delete(&repository.TemplateModel{}).Error
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
