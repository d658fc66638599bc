package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/zysolutions/octodash/internal/api"
	"github.com/zysolutions/octodash/internal/auth"
	"github.com/zysolutions/octodash/internal/config"
	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/images"
	"github.com/zysolutions/octodash/internal/pkg/httpretry"
	"github.com/zysolutions/octodash/internal/pkg/logger"
	"github.com/zysolutions/octodash/internal/quota"
	"github.com/zysolutions/octodash/internal/sheets"
	"github.com/zysolutions/octodash/internal/templates"
	"github.com/zysolutions/octodash/internal/usage"
)

const sessionCleanupInterval = 10 * time.Minute

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("OCTODASH_CONFIG"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fatal("Failed to load config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	if cfg.EmailOctopus.APIKey == "" {
		fatal("EmailOctopus API key is required", fmt.Errorf("set emailoctopus.api_key or EMAILOCTOPUS_API_KEY"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// EmailOctopus client
	octopus := emailoctopus.NewClient(emailoctopus.Config{
		APIKey:    cfg.EmailOctopus.APIKey,
		BaseURL:   cfg.EmailOctopus.BaseURL,
		PageLimit: cfg.EmailOctopus.PageLimit,
	})
	octopus.SetHTTPClient(httpretry.NewRetryClient(&http.Client{Timeout: cfg.EmailOctopus.Timeout()}, cfg.EmailOctopus.MaxRetries))
	octopus.SetImportDelay(cfg.EmailOctopus.ImportDelay())

	// Redis (optional)
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis: ping failed at startup", "addr", cfg.Redis.Addr, "error", err)
		} else {
			logger.Info("Redis: connected", "addr", cfg.Redis.Addr)
		}
		pingCancel()
		defer redisClient.Close()
	}

	// Usage cache
	limits := usage.Limits{
		Emails:    cfg.Usage.EmailLimit,
		Contacts:  cfg.Usage.ContactLimit,
		Campaigns: cfg.Usage.CampaignLimit,
	}
	var snapshots usage.SnapshotStore
	if cfg.Usage.PersistSnapshots && redisClient != nil {
		snapshots = usage.NewRedisStore(redisClient, cfg.Redis.Prefix)
	}
	aggregator := usage.NewAggregator(octopus, limits, cfg.Usage.ReportFanOut, nil)
	usageCache := usage.NewCache(aggregator, usage.CacheConfig{
		TTL:            cfg.Usage.TTL(),
		ComputeTimeout: cfg.Usage.ComputeTimeout(),
		Limits:         limits,
		Store:          snapshots,
	})

	// Monthly quota
	var quotaStore quota.Store = quota.NewMemoryStore()
	if cfg.Quota.Backend == "redis" {
		if redisClient == nil {
			fatal("Quota backend redis requires redis.addr", fmt.Errorf("redis not configured"))
		}
		quotaStore = quota.NewRedisStore(redisClient, cfg.Redis.Prefix)
	}
	tracker := quota.NewTracker(quotaStore, quota.Limits{
		quota.EmailsSent:       cfg.Quota.MaxEmails,
		quota.ContactsImported: cfg.Quota.MaxContacts,
		quota.CampaignsCreated: cfg.Quota.MaxCampaigns,
		quota.TemplatesCreated: cfg.Quota.MaxTemplates,
	}, nil)

	handlers := api.NewHandlers(octopus, usageCache)
	handlers.SetQuotaTracker(tracker)

	// Templates database (optional)
	var db *sql.DB
	if cfg.Templates.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.Templates.DatabaseURL)
		if err != nil {
			fatal("Failed to open templates database", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		defer db.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn("Templates: database ping failed at startup", "error", err)
		}
		pingCancel()
		handlers.SetTemplateStore(templates.NewStore(db))
		logger.Info("Templates: store enabled")
	}

	// Image storage (optional)
	var s3Client *s3.Client
	var bucketProbe api.HeadBucketAPI
	if cfg.Images.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Images.S3Region))
		if err != nil {
			fatal("Failed to load AWS config", err)
		}
		s3Client = s3.NewFromConfig(awsCfg)
		bucketProbe = s3Client
		handlers.SetImageUploader(images.NewStore(s3Client, images.Config{
			Bucket:    cfg.Images.S3Bucket,
			Region:    cfg.Images.S3Region,
			KeyPrefix: cfg.Images.KeyPrefix,
			CDNDomain: cfg.Images.CDNDomain,
			MaxBytes:  cfg.Images.MaxBytes,
			MaxWidth:  cfg.Images.MaxWidth,
			MaxHeight: cfg.Images.MaxHeight,
			MaxPixels: cfg.Images.MaxPixels,
		}))
		logger.Info("Images: S3 uploads enabled", "bucket", cfg.Images.S3Bucket)
	}

	// Google Sheets user directory (optional unless auth is on)
	var users *sheets.UserRepository
	if cfg.GoogleSheets.SpreadsheetID != "" {
		sheetsClient, err := sheets.NewClient(ctx, sheets.Config{
			BaseURL:         cfg.GoogleSheets.BaseURL,
			SpreadsheetID:   cfg.GoogleSheets.SpreadsheetID,
			APIKey:          cfg.GoogleSheets.APIKey,
			CredentialsFile: cfg.GoogleSheets.CredentialsFile,
			Timeout:         cfg.GoogleSheets.Timeout(),
		})
		if err != nil {
			fatal("Failed to create Google Sheets client", err)
		}
		users = sheets.NewUserRepository(sheetsClient, cfg.GoogleSheets.UsersRange, cfg.GoogleSheets.CampaignsRange)
		handlers.SetSheetCampaigns(users)
	}

	opts := api.Options{
		Health:  api.NewHealthChecker(octopus, usageCache, db, redisClient, bucketProbe, cfg.Images.S3Bucket),
		Metrics: cfg.Metrics,
	}
	if cfg.Auth.Enabled {
		if users == nil {
			fatal("Auth requires the Google Sheets user table", fmt.Errorf("google_sheets.spreadsheet_id not set"))
		}
		authManager := auth.NewManager(cfg.Auth, users, nil)
		authManager.CleanupExpiredSessions(ctx, sessionCleanupInterval)
		opts.Auth = authManager
		logger.Info("Auth: session login enabled")
	} else {
		logger.Warn("Auth: disabled, /api is open")
	}

	server := api.NewServer(cfg.Server, handlers, opts)

	// Warm the usage snapshot so the first dashboard load is a cache hit.
	go usageCache.Get(ctx)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		logger.Info("Starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			fatal("Server error", err)
		}
	}()

	<-done
	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
