package config

import (
	"fmt"
	"time"
)

// DBConfig contains PostgreSQL configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"printforge"`
	Password string `env:"PASSWORD" envDefault:"printforge"`
	Name     string `env:"NAME"     envDefault:"printforge"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
}

// DSN renders the pgx connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig contains Redis configuration for the artifact cache.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// CacheConfig controls prepared-artifact caching.
type CacheConfig struct {
	// EstimateTTL is the lifetime of cached estimate documents.
	EstimateTTL time.Duration `env:"ESTIMATE_TTL" envDefault:"30m"`
}

// BlobConfig contains the object-storage settings for raw uploads and
// prepared STL artifacts.
type BlobConfig struct {
	Endpoint  string `env:"ENDPOINT"   envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:""`
	SecretKey string `env:"SECRET_KEY" envDefault:""`
	Bucket    string `env:"BUCKET"     envDefault:"printforge-models"`
	UseSSL    bool   `env:"USE_SSL"    envDefault:"false"`
}
