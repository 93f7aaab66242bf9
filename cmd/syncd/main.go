package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/shopdesk/mailsync/internal/config"
	"github.com/shopdesk/mailsync/internal/database"
	"github.com/shopdesk/mailsync/internal/imapmail"
	"github.com/shopdesk/mailsync/internal/ingest"
	"github.com/shopdesk/mailsync/internal/orders"
	"github.com/shopdesk/mailsync/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mailbox sync daemon")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Resolve mail servers when not configured explicitly
	imapServer := cfg.IMAPServer
	if imapServer == "" {
		imapServer, err = imapmail.ResolveIMAPServer(cfg.MailAddress)
		if err != nil {
			logger.Error("failed to resolve imap server", "error", err)
			os.Exit(1)
		}
		logger.Info("resolved imap server", "server", imapServer)
	}
	smtpServer := cfg.SMTPServer
	if smtpServer == "" {
		smtpServer, err = imapmail.ResolveSMTPServer(cfg.MailAddress)
		if err != nil {
			logger.Error("failed to resolve smtp server", "error", err)
			os.Exit(1)
		}
		logger.Info("resolved smtp server", "server", smtpServer)
	}

	// Create components
	store, err := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
		Bucket:    cfg.StorageBucket,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		UseSSL:    cfg.StorageUseSSL,
	})
	if err != nil {
		logger.Error("failed to create object store", "error", err)
		os.Exit(1)
	}

	matcher := orders.NewTokenMatcher(db)
	pipeline := ingest.NewPipeline(db, store, matcher, logger)

	provider := imapmail.NewProvider(
		imapmail.Config{
			Address:            imapServer,
			Username:           cfg.MailAddress,
			Password:           cfg.MailPassword,
			DialTimeout:        cfg.DialTimeout,
			SyncWindow:         cfg.SyncWindow,
			AttachmentMaxBytes: cfg.AttachmentMaxBytes,
			AttachmentTimeout:  cfg.AttachmentTimeout,
			PaceEvery:          cfg.AttachmentPaceN,
			PaceDelay:          cfg.AttachmentPaceWait,
		},
		imapmail.SMTPConfig{
			Address:  smtpServer,
			Username: cfg.MailAddress,
			Password: cfg.MailPassword,
			From:     cfg.MailAddress,
			StartTLS: cfg.SMTPStartTLS,
		},
		logger,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Poll loop
	logger.Info("sync daemon is running, press Ctrl+C to stop",
		"interval", cfg.SyncPollInterval)
	runSyncLoop(ctx, provider, pipeline, cfg.SyncPollInterval, logger)

	logger.Info("sync daemon stopped")
}

func runSyncLoop(ctx context.Context, provider *imapmail.Provider, pipeline *ingest.Pipeline, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	syncOnce(ctx, provider, pipeline, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncOnce(ctx, provider, pipeline, logger)
		}
	}
}

func syncOnce(ctx context.Context, provider *imapmail.Provider, pipeline *ingest.Pipeline, logger *slog.Logger) {
	msgs, err := provider.SyncEmails(ctx, "")
	if err != nil {
		logger.Error("sync failed", "error", err)
		return
	}

	results := pipeline.IngestBatch(ctx, msgs)

	var stored, skipped int
	for _, r := range results {
		if r.Skipped {
			skipped++
		} else {
			stored++
		}
	}
	logger.Info("sync completed",
		"fetched", len(msgs), "stored", stored, "skipped", skipped)
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
