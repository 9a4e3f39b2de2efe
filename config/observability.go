package config

import "strings"

// ObservabilityConfig contains the metrics sink configuration.
type ObservabilityConfig struct {
	StatsdEnabled bool   `env:"STATSD_ENABLED" envDefault:"false"`
	StatsdAddress string `env:"STATSD_ADDRESS" envDefault:"localhost:8125"`
	StatsdPrefix  string `env:"STATSD_PREFIX"  envDefault:"printforge"`
}

// Sanitize applies guardrails to observability settings.
func (c *ObservabilityConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.StatsdEnabled = false
	}
}
