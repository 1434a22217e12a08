package migrations

import (
	"github.com/campushq/messaging/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createMessagesTable(),
		createTemplatesTable(),
		createPreferencesTable(),
		createSettingsTable(),
		seedSystemTemplates(),
	})

	return m.Migrate()
}

func createMessagesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_messages_status_channel_created ON messages (status, channel, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_provider_message_id ON messages (provider_message_id) WHERE provider_message_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages (user_id) WHERE user_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_messages_retry ON messages (channel, created_at) WHERE status = 'FAILED'`,
				`CREATE INDEX IF NOT EXISTS idx_messages_reference ON messages (reference_type, reference_id) WHERE reference_id IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageModel{})
		},
	}
}

func createTemplatesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_templates",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TemplateModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_slug_channel ON templates (slug, channel)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TemplateModel{})
		},
	}
}

func createPreferencesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_notification_preferences",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.PreferenceModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PreferenceModel{})
		},
	}
}

func createSettingsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_messaging_settings",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.SettingsModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SettingsModel{})
		},
	}
}
