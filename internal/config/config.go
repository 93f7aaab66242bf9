package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Mail account
	MailAddress  string `env:"MAIL_ADDRESS,required"`
	MailPassword string `env:"MAIL_PASSWORD,required"`
	IMAPServer   string `env:"IMAP_SERVER"` // host:port; resolved from the address when empty
	SMTPServer   string `env:"SMTP_SERVER"` // host:port
	SMTPStartTLS bool   `env:"SMTP_STARTTLS" envDefault:"false"`

	// Sync policy
	SyncWindow         int           `env:"SYNC_WINDOW" envDefault:"50"`
	SyncPollInterval   time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"1m"`
	DialTimeout        time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	AttachmentMaxBytes int64         `env:"ATTACHMENT_MAX_BYTES" envDefault:"10485760"`
	AttachmentTimeout  time.Duration `env:"ATTACHMENT_FETCH_TIMEOUT" envDefault:"30s"`
	AttachmentPaceN    int           `env:"ATTACHMENT_PACE_EVERY" envDefault:"5"`
	AttachmentPaceWait time.Duration `env:"ATTACHMENT_PACE_DELAY" envDefault:"200ms"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/mailsync.db"`

	// Object storage (S3/MinIO)
	StorageEndpoint  string `env:"STORAGE_ENDPOINT,required"`
	StorageRegion    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	StorageBucket    string `env:"STORAGE_BUCKET" envDefault:"mail-attachments"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY,required"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY,required"`
	StorageUseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.SyncWindow < 1 {
		return nil, fmt.Errorf("SYNC_WINDOW must be positive, got %d", cfg.SyncWindow)
	}
	if cfg.AttachmentMaxBytes < 1 {
		return nil, fmt.Errorf("ATTACHMENT_MAX_BYTES must be positive, got %d", cfg.AttachmentMaxBytes)
	}

	return cfg, nil
}
