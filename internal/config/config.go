package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	EmailOctopus EmailOctopusConfig `yaml:"emailoctopus"`
	GoogleSheets GoogleSheetsConfig `yaml:"google_sheets"`
	Usage        UsageConfig        `yaml:"usage"`
	Quota        QuotaConfig        `yaml:"quota"`
	Redis        RedisConfig        `yaml:"redis"`
	Templates    TemplatesConfig    `yaml:"templates"`
	Images       ImagesConfig       `yaml:"images"`
	Auth         AuthConfig         `yaml:"auth"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, honoring a SERVER_HOST override.
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// EmailOctopusConfig holds EmailOctopus API configuration
type EmailOctopusConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	PageLimit      int    `yaml:"page_limit"`
	// ImportDelayMillis spaces out single-contact creates during a bulk import.
	ImportDelayMillis int `yaml:"import_delay_millis"`
}

// Timeout returns the configured timeout as a duration
func (c EmailOctopusConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ImportDelay returns the per-contact delay used by bulk imports.
func (c EmailOctopusConfig) ImportDelay() time.Duration {
	return time.Duration(c.ImportDelayMillis) * time.Millisecond
}

// GoogleSheetsConfig holds the spreadsheet-backed user table settings.
type GoogleSheetsConfig struct {
	BaseURL         string `yaml:"base_url"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	APIKey          string `yaml:"api_key"`
	CredentialsFile string `yaml:"credentials_file"` // service-account JSON; takes precedence over api_key
	UsersRange      string `yaml:"users_range"`
	CampaignsRange  string `yaml:"campaigns_range"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c GoogleSheetsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// UsageConfig holds plan limits and cache behavior for the usage widget.
type UsageConfig struct {
	EmailLimit            int64 `yaml:"email_limit"`
	ContactLimit          int64 `yaml:"contact_limit"`
	CampaignLimit         int64 `yaml:"campaign_limit"`
	CacheTTLSeconds       int   `yaml:"cache_ttl_seconds"`
	ReportFanOut          int   `yaml:"report_fan_out"`
	ComputeTimeoutSeconds int   `yaml:"compute_timeout_seconds"`
	// PersistSnapshots stores the last good snapshot in Redis so a restart
	// still has a fallback while EmailOctopus is down.
	PersistSnapshots bool `yaml:"persist_snapshots"`
}

// TTL returns the snapshot freshness window.
func (c UsageConfig) TTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ComputeTimeout bounds a single aggregation run.
func (c UsageConfig) ComputeTimeout() time.Duration {
	return time.Duration(c.ComputeTimeoutSeconds) * time.Second
}

// QuotaConfig holds the per-user monthly allowance.
type QuotaConfig struct {
	MaxEmails    int64  `yaml:"max_emails"`
	MaxContacts  int64  `yaml:"max_contacts"`
	MaxCampaigns int64  `yaml:"max_campaigns"`
	MaxTemplates int64  `yaml:"max_templates"`
	Backend      string `yaml:"backend"` // "redis" or "memory"
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// TemplatesConfig holds the Postgres template store settings.
type TemplatesConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// ImagesConfig holds S3 image storage settings.
type ImagesConfig struct {
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	KeyPrefix string `yaml:"key_prefix"`
	CDNDomain string `yaml:"cdn_domain"`
	MaxBytes  int64  `yaml:"max_bytes"`
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
	MaxPixels int64  `yaml:"max_pixels"`
}

// AuthConfig holds session cookie settings.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CookieName   string `yaml:"cookie_name"`
	CookieMaxAge int    `yaml:"cookie_max_age"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

// MaxAge returns the session lifetime.
func (c AuthConfig) MaxAge() time.Duration {
	return time.Duration(c.CookieMaxAge) * time.Second
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.EmailOctopus.BaseURL == "" {
		cfg.EmailOctopus.BaseURL = "https://emailoctopus.com/api/1.6"
	}
	if cfg.EmailOctopus.TimeoutSeconds == 0 {
		cfg.EmailOctopus.TimeoutSeconds = 30
	}
	if cfg.EmailOctopus.MaxRetries == 0 {
		cfg.EmailOctopus.MaxRetries = 3
	}
	if cfg.EmailOctopus.PageLimit == 0 {
		cfg.EmailOctopus.PageLimit = 100
	}
	if cfg.EmailOctopus.ImportDelayMillis == 0 {
		cfg.EmailOctopus.ImportDelayMillis = 200
	}

	if cfg.GoogleSheets.BaseURL == "" {
		cfg.GoogleSheets.BaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	if cfg.GoogleSheets.UsersRange == "" {
		cfg.GoogleSheets.UsersRange = "usuarios!A:J"
	}
	if cfg.GoogleSheets.CampaignsRange == "" {
		cfg.GoogleSheets.CampaignsRange = "campanas!A:L"
	}
	if cfg.GoogleSheets.TimeoutSeconds == 0 {
		cfg.GoogleSheets.TimeoutSeconds = 15
	}

	if cfg.Usage.EmailLimit == 0 {
		cfg.Usage.EmailLimit = 10000
	}
	if cfg.Usage.ContactLimit == 0 {
		cfg.Usage.ContactLimit = 2500
	}
	if cfg.Usage.CampaignLimit == 0 {
		cfg.Usage.CampaignLimit = 50
	}
	if cfg.Usage.CacheTTLSeconds == 0 {
		cfg.Usage.CacheTTLSeconds = 300
	}
	if cfg.Usage.ReportFanOut == 0 {
		cfg.Usage.ReportFanOut = 5
	}
	if cfg.Usage.ComputeTimeoutSeconds == 0 {
		cfg.Usage.ComputeTimeoutSeconds = 60
	}

	if cfg.Quota.MaxEmails == 0 {
		cfg.Quota.MaxEmails = 10000
	}
	if cfg.Quota.MaxContacts == 0 {
		cfg.Quota.MaxContacts = 2400
	}
	if cfg.Quota.MaxCampaigns == 0 {
		cfg.Quota.MaxCampaigns = 50
	}
	if cfg.Quota.MaxTemplates == 0 {
		cfg.Quota.MaxTemplates = 20
	}
	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = "memory"
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "octodash"
	}

	if cfg.Images.S3Region == "" {
		cfg.Images.S3Region = "us-east-1"
	}
	if cfg.Images.KeyPrefix == "" {
		cfg.Images.KeyPrefix = "uploads"
	}
	if cfg.Images.MaxBytes == 0 {
		cfg.Images.MaxBytes = 5 * 1024 * 1024
	}
	if cfg.Images.MaxWidth == 0 {
		cfg.Images.MaxWidth = 800
	}
	if cfg.Images.MaxHeight == 0 {
		cfg.Images.MaxHeight = 600
	}

	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "octodash_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is loaded first when present so secrets can live there locally.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("EMAILOCTOPUS_API_KEY"); v != "" {
		cfg.EmailOctopus.APIKey = v
	}
	if v := os.Getenv("EMAILOCTOPUS_BASE_URL"); v != "" {
		cfg.EmailOctopus.BaseURL = v
	}
	if v := os.Getenv("GOOGLE_SHEETS_API_KEY"); v != "" {
		cfg.GoogleSheets.APIKey = v
	}
	if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"); v != "" {
		cfg.GoogleSheets.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && cfg.GoogleSheets.CredentialsFile == "" {
		cfg.GoogleSheets.CredentialsFile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Templates.DatabaseURL = v
	}
	if v := os.Getenv("IMAGES_S3_BUCKET"); v != "" {
		cfg.Images.S3Bucket = v
	}
	if v := os.Getenv("IMAGE_CDN_DOMAIN"); v != "" {
		cfg.Images.CDNDomain = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("USAGE_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Usage.CacheTTLSeconds = n
		}
	}

	return cfg, nil
}
