package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("TEMPLATE_URL", "https://storage.example.com/template.pdf")
	os.Setenv("SMTP_HOST", "smtp.example.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://storage.example.com/template.pdf", cfg.TemplateURL)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, 587, cfg.SMTP.Port)      // Default
	assert.False(t, cfg.SMTP.Secure)
	assert.Len(t, cfg.TemplateFallbackPaths, 2)
	assert.False(t, cfg.ArchiveEnabled())
	assert.False(t, cfg.EventsEnabled())
}

func TestLoad_MissingTemplateURL(t *testing.T) {
	os.Setenv("SMTP_HOST", "smtp.example.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TEMPLATE_URL is required")
}

func TestLoad_MissingSMTPHost(t *testing.T) {
	os.Setenv("TEMPLATE_URL", "https://storage.example.com/template.pdf")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SMTP_HOST is required")
}

func TestLoad_InvalidSMTPPort(t *testing.T) {
	os.Setenv("TEMPLATE_URL", "https://storage.example.com/template.pdf")
	os.Setenv("SMTP_HOST", "smtp.example.com")
	os.Setenv("SMTP_PORT", "not-a-port")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SMTP_PORT")
}

func TestLoad_FallbackPathsParsing(t *testing.T) {
	os.Setenv("TEMPLATE_URL", "https://storage.example.com/template.pdf")
	os.Setenv("SMTP_HOST", "smtp.example.com")
	os.Setenv("TEMPLATE_FALLBACK_PATHS", " a.pdf , b.pdf ,, c.pdf ")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, cfg.TemplateFallbackPaths)
}

func TestLoad_OptionalSubsystems(t *testing.T) {
	os.Setenv("TEMPLATE_URL", "https://storage.example.com/template.pdf")
	os.Setenv("SMTP_HOST", "smtp.example.com")
	os.Setenv("DATABASE_URL", "postgres://localhost/dealdesk")
	os.Setenv("NATS_URL", "nats://localhost:4222")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ArchiveEnabled())
	assert.True(t, cfg.EventsEnabled())
}

func TestValidate_StorageEndpointsTravelTogether(t *testing.T) {
	cfg := validConfig()
	cfg.StorageUploadURL = "https://upload.example.com"
	cfg.RecordUpdateURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RecordUpdateURL is required")
}

func TestValidate_AirtableCredentialSet(t *testing.T) {
	cfg := validConfig()
	cfg.Airtable.APIKey = "key123"
	cfg.Airtable.BaseID = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Airtable.BaseID is required")
}

func TestValidate_SMTPPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.SMTP.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP.Port")
}

func validConfig() *Config {
	return &Config{
		ServerAddr:  ":8080",
		TemplateURL: "https://storage.example.com/template.pdf",
		SMTP: SMTPConfig{
			Host: "smtp.example.com",
			Port: 587,
			From: "submissions@example.com",
			To:   "coordinator@example.com",
		},
	}
}

func cleanupEnv() {
	vars := []string{
		"SERVER_ADDR", "LOG_LEVEL", "PUBLIC_BASE_URL",
		"TEMPLATE_URL", "TEMPLATE_FALLBACK_PATHS",
		"STORAGE_UPLOAD_URL", "RECORD_UPDATE_URL",
		"SMTP_HOST", "SMTP_PORT", "SMTP_SECURE", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM", "SMTP_TO",
		"AIRTABLE_API_KEY", "AIRTABLE_BASE_ID", "AIRTABLE_TABLE_NAME", "AIRTABLE_ATTACHMENT_FIELD",
		"DATABASE_URL", "NATS_URL",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
