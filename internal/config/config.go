// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

// Package config loads and validates the ReviewForge configuration using
// Koanf v2 with layered sources: built-in defaults, a YAML config file, and
// environment variable overrides (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/reviewforge/reviewforge/internal/models"
)

// Config is the root configuration document.
type Config struct {
	Company   CompanyConfig   `koanf:"company"`
	Chat      ChatConfig      `koanf:"chat"`
	Ingestion IngestionConfig `koanf:"ingestion"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// CompanyConfig carries the branding injected into rendered templates.
type CompanyConfig struct {
	Name           string `koanf:"name" json:"name"`
	Phone          string `koanf:"phone" json:"phone"`
	BrandColor     string `koanf:"brand_color" json:"brand_color"`
	BrandColorDark string `koanf:"brand_color_dark" json:"brand_color_dark"`
	LogoURL        string `koanf:"logo_url" json:"logo_url"`
}

// ChatConfig configures the chat workspace integration. The integration is
// optional; an empty bot token disables sharing.
type ChatConfig struct {
	BotToken string `koanf:"bot_token"`
	Channel  string `koanf:"channel"`

	// UploadURL overrides the chat file-upload endpoint, mainly for tests.
	UploadURL string `koanf:"upload_url"`

	// Technicians maps display names to workspace mention IDs.
	Technicians map[string]string `koanf:"technicians"`
}

// Configured reports whether chat sharing can be attempted.
func (c *ChatConfig) Configured() bool {
	return c.BotToken != "" && c.Channel != ""
}

// SourceConfig is the per-adapter configuration. The core only reads
// Enabled, PollInterval, and WebhookSecret; the remaining fields are the
// adapter-specific credential blob.
type SourceConfig struct {
	Enabled       bool          `koanf:"enabled"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	WebhookSecret string        `koanf:"webhook_secret"`

	// BaseURL overrides the adapter's API endpoint, mainly for tests.
	BaseURL string `koanf:"base_url"`

	// Google business-profile adapter.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RefreshToken string `koanf:"refresh_token"`
	AccountID    string `koanf:"account_id"`
	LocationID   string `koanf:"location_id"`

	// Yelp review-feed adapter.
	APIKey     string `koanf:"api_key"`
	BusinessID string `koanf:"business_id"`

	// Angi partner adapter.
	APIToken  string `koanf:"api_token"`
	CompanyID string `koanf:"company_id"`
}

// GenericConfig configures the push-only generic adapter used for webhook
// and import ingress from unknown platforms.
type GenericConfig struct {
	WebhookSecret string `koanf:"webhook_secret"`

	// FieldMapping maps well-known record fields onto payload keys.
	// Recognised keys: reviewer_name_field, rating_field, review_text_field,
	// review_date_field, tech_name_field, tech_photo_url_field.
	FieldMapping map[string]string `koanf:"field_mapping"`
}

// IngestionConfig configures sources, polling, and the fan-out pipeline.
type IngestionConfig struct {
	Enabled              bool   `koanf:"enabled"`
	AutoGenerate         bool   `koanf:"auto_generate"`
	AutoShare            bool   `koanf:"auto_share"`
	MinRatingForShare    int    `koanf:"min_rating_for_auto_share"`
	DefaultTemplate      string `koanf:"default_template"`
	DefaultSize          string `koanf:"default_size"`
	PollIntervalMinutes  int    `koanf:"poll_interval_minutes"`
	DataPath             string `koanf:"data_path"`
	RetentionDays        int    `koanf:"retention_days"`
	TechnicianPhotoDir   string `koanf:"technician_photo_dir"`

	Sources map[string]SourceConfig `koanf:"sources"`
	Generic GenericConfig           `koanf:"generic"`
}

// PollInterval returns the configured global poll interval.
func (c *IngestionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// BaseURL absolutises relative asset URLs in rendered templates. When
	// empty, the scheme and host of the inbound request are used.
	BaseURL string `koanf:"base_url"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks cross-field constraints that koanf unmarshaling cannot
// express. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Company.Name == "" {
		return fmt.Errorf("company.name is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, ok := models.SizePresets[c.Ingestion.DefaultSize]; !ok {
		return fmt.Errorf("ingestion.default_size %q is not a known size preset", c.Ingestion.DefaultSize)
	}
	if c.Ingestion.MinRatingForShare < 1 || c.Ingestion.MinRatingForShare > 5 {
		return fmt.Errorf("ingestion.min_rating_for_auto_share must be 1..5, got %d", c.Ingestion.MinRatingForShare)
	}
	if c.Ingestion.DataPath == "" {
		return fmt.Errorf("ingestion.data_path is required")
	}
	for name, src := range c.Ingestion.Sources {
		if src.Enabled && src.PollInterval < 0 {
			return fmt.Errorf("ingestion.sources.%s.poll_interval must not be negative", name)
		}
	}
	return nil
}
