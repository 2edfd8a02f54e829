// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reviewforge/config.yaml",
	"/etc/reviewforge/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible defaults. These are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Company: CompanyConfig{
			BrandColor:     "#2563eb",
			BrandColorDark: "#1e40af",
		},
		Chat: ChatConfig{
			UploadURL:   "https://slack.com/api/files.upload",
			Technicians: map[string]string{},
		},
		Ingestion: IngestionConfig{
			Enabled:             true,
			AutoGenerate:        false,
			AutoShare:           false,
			MinRatingForShare:   4,
			DefaultTemplate:     "default",
			DefaultSize:         "square",
			PollIntervalMinutes: 60,
			DataPath:            "/data/reviews.json",
			RetentionDays:       90,
			TechnicianPhotoDir:  "/data/technicians",
			Sources:             map[string]SourceConfig{},
		},
		Server: ServerConfig{
			Port:    3000,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: required YAML file (the service refuses to start blind)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath == "" {
		return nil, fmt.Errorf("no config file found (searched %s; set %s to override)",
			strings.Join(DefaultConfigPaths, ", "), ConfigPathEnvVar)
	}
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment noise cannot pollute
// the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Deployment surface
		"port":     "server.port",
		"base_url": "server.base_url",
		"host":     "server.host",

		// Company branding
		"company_name":       "company.name",
		"company_phone":      "company.phone",
		"brand_color":        "company.brand_color",
		"brand_color_dark":   "company.brand_color_dark",
		"company_logo_url":   "company.logo_url",

		// Chat workspace
		"chat_bot_token":  "chat.bot_token",
		"chat_channel":    "chat.channel",
		"chat_upload_url": "chat.upload_url",

		// Ingestion behaviour
		"ingestion_enabled":         "ingestion.enabled",
		"auto_generate":             "ingestion.auto_generate",
		"auto_share":                "ingestion.auto_share",
		"min_rating_for_auto_share": "ingestion.min_rating_for_auto_share",
		"poll_interval_minutes":     "ingestion.poll_interval_minutes",
		"data_path":                 "ingestion.data_path",
		"retention_days":            "ingestion.retention_days",

		// Source credentials
		"google_client_id":     "ingestion.sources.google.client_id",
		"google_client_secret": "ingestion.sources.google.client_secret",
		"google_refresh_token": "ingestion.sources.google.refresh_token",
		"yelp_api_key":         "ingestion.sources.yelp.api_key",
		"angi_api_token":       "ingestion.sources.angi.api_token",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
