package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SMTPConfig holds the SMTP transport settings for outbound email.
type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS (SMTPS) instead of STARTTLS
	Username string
	Password string
	From     string
	To       string
}

// AirtableConfig holds credentials and location for the tabular record store.
type AirtableConfig struct {
	APIKey          string
	BaseID          string
	TableName       string
	AttachmentField string
}

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
// The pipeline components receive this struct; they never read the environment
// themselves.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// PublicBaseURL is the externally reachable URL of this service. It is
	// used to build submission status links embedded in delivery emails.
	PublicBaseURL string

	// Template source: one remote URL plus ordered local filesystem
	// fallbacks for differing deployment root directories.
	TemplateURL           string
	TemplateFallbackPaths []string

	// Delivery endpoints
	StorageUploadURL string
	RecordUpdateURL  string

	SMTP     SMTPConfig
	Airtable AirtableConfig

	// DatabaseURL is optional; when empty the submission archive is disabled.
	DatabaseURL string

	// NATSURL is optional; when empty delivery events are not published.
	NATSURL string
}

// Load reads configuration from environment variables and validates all
// required fields. Returns an error if any required configuration is missing
// or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.PublicBaseURL = getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	cfg.TemplateURL = os.Getenv("TEMPLATE_URL")
	if cfg.TemplateURL == "" {
		errs = append(errs, fmt.Errorf("TEMPLATE_URL is required"))
	}

	// Comma-separated list of filesystem fallbacks. The defaults cover the
	// two deployment layouts we run: binary-relative and repo-root-relative.
	fallbacks := getEnvOrDefault("TEMPLATE_FALLBACK_PATHS", "templates/contract-summary.pdf,service/render/templates/contract-summary.pdf")
	for _, p := range strings.Split(fallbacks, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.TemplateFallbackPaths = append(cfg.TemplateFallbackPaths, p)
		}
	}

	cfg.StorageUploadURL = os.Getenv("STORAGE_UPLOAD_URL")
	cfg.RecordUpdateURL = os.Getenv("RECORD_UPDATE_URL")

	cfg.SMTP.Host = os.Getenv("SMTP_HOST")
	if cfg.SMTP.Host == "" {
		errs = append(errs, fmt.Errorf("SMTP_HOST is required"))
	}
	port, err := parseInt("SMTP_PORT", 587)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SMTP.Port = port
	}
	secure, err := parseBool("SMTP_SECURE", false)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SMTP.Secure = secure
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = getEnvOrDefault("SMTP_FROM", "submissions@dealdesk.example.com")
	cfg.SMTP.To = getEnvOrDefault("SMTP_TO", "coordinator@dealdesk.example.com")

	cfg.Airtable.APIKey = os.Getenv("AIRTABLE_API_KEY")
	cfg.Airtable.BaseID = os.Getenv("AIRTABLE_BASE_ID")
	cfg.Airtable.TableName = getEnvOrDefault("AIRTABLE_TABLE_NAME", "Transactions")
	cfg.Airtable.AttachmentField = getEnvOrDefault("AIRTABLE_ATTACHMENT_FIELD", "Contract Summary")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.TemplateURL == "" {
		errs = append(errs, fmt.Errorf("TemplateURL is required"))
	}

	if c.SMTP.Host == "" {
		errs = append(errs, fmt.Errorf("SMTP.Host is required"))
	}

	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("SMTP.Port must be in range 1-65535, got %d", c.SMTP.Port))
	}

	if c.SMTP.From == "" {
		errs = append(errs, fmt.Errorf("SMTP.From is required"))
	}

	if c.SMTP.To == "" {
		errs = append(errs, fmt.Errorf("SMTP.To is required"))
	}

	// The storage upload and record update endpoints travel together: the
	// update step consumes the URL produced by the upload step.
	if c.StorageUploadURL != "" && c.RecordUpdateURL == "" {
		errs = append(errs, fmt.Errorf("RecordUpdateURL is required when StorageUploadURL is set"))
	}

	// The Airtable fallback needs a full credential set or none at all.
	if c.Airtable.APIKey != "" && c.Airtable.BaseID == "" {
		errs = append(errs, fmt.Errorf("Airtable.BaseID is required when Airtable.APIKey is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// ArchiveEnabled reports whether the submission archive store is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
}

// EventsEnabled reports whether delivery event publishing is configured.
func (c *Config) EventsEnabled() bool {
	return c.NATSURL != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}
