package config

import "time"

// SyncConfig controls the job synchronizer.
type SyncConfig struct {
	// PollInterval is the cadence of the main reconciliation sweep.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	// CleanupInterval is the cadence of the secondary safety-net sweep that
	// evicts tracked entries whose persisted job is gone or terminal.
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
	// MaxRetries is the consecutive reconciliation-failure budget per job
	// before the synchronizer forces the job to failed.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"5"`
	// MaxConcurrent caps the per-sweep reconciliation fan-out.
	MaxConcurrent int `env:"MAX_CONCURRENT" envDefault:"8"`
}

// Sanitize applies guardrails to synchronizer settings.
func (c *SyncConfig) Sanitize() {
	if c.PollInterval < time.Second {
		c.PollInterval = 30 * time.Second
	}
	if c.CleanupInterval < c.PollInterval {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
}

// ReaperConfig controls the retention housekeeping loop.
type ReaperConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
	// RetentionAge is the grace period after a terminal status before a job
	// becomes cleanup_pending.
	RetentionAge time.Duration `env:"RETENTION_AGE" envDefault:"168h"`
	// PurgeAge is how long a cleanup_pending job and its artifacts are kept
	// before deletion.
	PurgeAge  time.Duration `env:"PURGE_AGE"  envDefault:"24h"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper settings.
func (c *ReaperConfig) Sanitize() {
	if c.Interval < time.Minute {
		c.Interval = time.Hour
	}
	if c.RetentionAge <= 0 {
		c.RetentionAge = 168 * time.Hour
	}
	if c.PurgeAge <= 0 {
		c.PurgeAge = 24 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}

// PrintServiceConfig configures the external printer-control client.
type PrintServiceConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8090"`
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// MaxAttempts bounds retries per call, including the first attempt.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"3"`
	// RetryBackoff is the initial backoff, doubled per retry.
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"500ms"`
}

// Sanitize applies guardrails to print-service client settings.
func (c *PrintServiceConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
}

// WebhookConfig configures outbound job-status notifications.
type WebhookConfig struct {
	// Secret, when set, enables HMAC-SHA256 payload signing.
	Secret  string        `env:"SECRET"  envDefault:""`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to webhook settings.
func (c *WebhookConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// ConverterConfig configures the image-to-3D conversion backends, a comma
// separated priority list of name=url pairs.
type ConverterConfig struct {
	Backends string        `env:"BACKENDS" envDefault:""`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"120s"`
}
