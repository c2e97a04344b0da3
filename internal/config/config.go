// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds the simulator configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	Client ClientConfig
	Auth   AuthConfig
}

// ServerConfig holds the in-process reference server settings.
type ServerConfig struct {
	Host string `envconfig:"SIM_SERVER_HOST" default:"127.0.0.1"`
	Port int    `envconfig:"SIM_SERVER_PORT" default:"8787"`
}

// ClientConfig holds sync client settings.
type ClientConfig struct {
	DBPath         string        `envconfig:"SIM_DB_PATH" default:":memory:"`
	CacheTTL       time.Duration `envconfig:"SIM_CACHE_TTL" default:"1h"`
	RequestTimeout time.Duration `envconfig:"SIM_REQUEST_TIMEOUT" default:"10s"`
	SyncDebounce   time.Duration `envconfig:"SIM_SYNC_DEBOUNCE" default:"1500ms"`
	RetryBackoff   time.Duration `envconfig:"SIM_RETRY_BACKOFF" default:"500ms"`
	MaxAttempts    int           `envconfig:"SIM_MAX_ATTEMPTS" default:"3"`
}

// AuthConfig holds the demo identity the simulator runs under.
type AuthConfig struct {
	JWTSecret  string `envconfig:"SIM_JWT_SECRET" default:"tamali-sim-secret"`
	BusinessID string `envconfig:"SIM_BUSINESS_ID" default:"biz-demo"`
	CashierID  string `envconfig:"SIM_CASHIER_ID" default:"cashier-demo"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
