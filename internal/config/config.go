// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AccountConfig holds Gmail credentials for a single synced account.
type AccountConfig struct {
	User         string `yaml:"user"` // account email, also the Firestore user ID
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// Config holds all configuration for the sync service.
type Config struct {
	Accounts []AccountConfig

	// Extraction
	GeminiAPIKey string
	GeminiModel  string
	ChunkSize    int
	MaxEmails    int

	// Mailbox
	MailboxQuery string // empty means the built-in travel query

	// Firestore
	FirestoreProject string

	// Postgres (run history)
	DatabaseURL string

	// Redis (duplicate filter)
	RedisURL string

	// Periodic sync; zero disables the loop.
	SyncInterval time.Duration

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Accounts []struct {
		User         string `yaml:"user"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RefreshToken string `yaml:"refresh_token"`
	} `yaml:"accounts"`
	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
	Firestore struct {
		Project string `yaml:"project"`
	} `yaml:"firestore"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Mailbox struct {
		Query string `yaml:"query"`
	} `yaml:"mailbox"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		GeminiAPIKey:     firstNonEmpty(raw.Gemini.APIKey, os.Getenv("GEMINI_API_KEY")),
		GeminiModel:      firstNonEmpty(raw.Gemini.Model, envOrDefault("GEMINI_MODEL", "gemini-2.0-flash")),
		ChunkSize:        envOrDefaultInt("EXTRACT_CHUNK_SIZE", 5),
		MaxEmails:        envOrDefaultInt("MAX_EMAILS_PER_SYNC", 25),
		MailboxQuery:     firstNonEmpty(raw.Mailbox.Query, os.Getenv("MAILBOX_QUERY")),
		FirestoreProject: firstNonEmpty(raw.Firestore.Project, os.Getenv("FIRESTORE_PROJECT")),
		DatabaseURL:      firstNonEmpty(raw.Postgres.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/tripsync")),
		RedisURL:         firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		SyncInterval:     envOrDefaultDuration("SYNC_INTERVAL", 0),
		Port:             envOrDefaultInt("PORT", 8080),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured — set gemini.api_key or GEMINI_API_KEY")
	}
	if cfg.FirestoreProject == "" {
		return nil, fmt.Errorf("firestore project not configured — set firestore.project or FIRESTORE_PROJECT")
	}

	// Build account configs
	for _, a := range raw.Accounts {
		ac := AccountConfig(a)

		// Skip accounts with empty credentials (commented out in YAML)
		if ac.User == "" || ac.ClientID == "" || ac.ClientSecret == "" || ac.RefreshToken == "" {
			continue
		}

		cfg.Accounts = append(cfg.Accounts, ac)
	}

	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured — check config.yaml and environment variables")
	}

	return cfg, nil
}

// Account returns the config for a user, or nil when unknown.
func (c *Config) Account(user string) *AccountConfig {
	for i := range c.Accounts {
		if strings.EqualFold(c.Accounts[i].User, user) {
			return &c.Accounts[i]
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
