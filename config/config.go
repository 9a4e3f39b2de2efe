// Package config holds the environment-driven application configuration.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See the individual domain config files:
//   - database.go: Postgres, Redis and object-storage configuration
//   - services.go: synchronizer, reaper, webhook and print-service configuration
//   - observability.go: metrics configuration
package config

import (
	"fmt"
	"strings"
)

// AppConfig composes the domain-specific configuration sections.
type AppConfig struct {
	// IsDev controls development mode behavior (dotenv loading, text logs).
	IsDev bool `env:"DEV" envDefault:"false"`

	// Services selects the enabled service modes, comma separated.
	Services string `env:"SERVICES" envDefault:"sync"`

	Postgres DBConfig     `envPrefix:"DB_"`
	Redis    RedisConfig  `envPrefix:"REDIS_"`
	Blob     BlobConfig   `envPrefix:"BLOB_"`
	Cache    CacheConfig  `envPrefix:"CACHE_"`

	PrintService PrintServiceConfig `envPrefix:"PRINT_SERVICE_"`
	Webhook      WebhookConfig      `envPrefix:"WEBHOOK_"`
	Sync         SyncConfig         `envPrefix:"SYNC_"`
	Reaper       ReaperConfig       `envPrefix:"REAPER_"`
	Converters   ConverterConfig    `envPrefix:"CONVERTER_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to values loaded from env. Call after parsing.
func (c *AppConfig) Sanitize() {
	c.Sync.Sanitize()
	c.Reaper.Sanitize()
	c.PrintService.Sanitize()
	c.Webhook.Sanitize()
	c.Observability.Sanitize()
}

// ServiceMode identifies one runnable service within the binary.
type ServiceMode string

const (
	// ServiceModeSync runs the job synchronizer.
	ServiceModeSync ServiceMode = "sync"
	// ServiceModeReaper runs the retention reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ParseServices parses the comma-separated SERVICES value into a mode set.
func ParseServices(value string) (map[ServiceMode]bool, error) {
	modes := make(map[ServiceMode]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		mode := ServiceMode(part)
		switch mode {
		case ServiceModeSync, ServiceModeReaper:
			modes[mode] = true
		default:
			return nil, fmt.Errorf("unknown service mode %q", part)
		}
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("no service modes enabled in %q", value)
	}
	return modes, nil
}

// GetEnabledServices returns the enabled service modes.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}
