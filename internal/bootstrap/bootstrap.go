// Package bootstrap wires configuration, infrastructure connections and
// services together for the printforge binary.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/printforge/printforge/config"
	"github.com/printforge/printforge/internal/data"
	"github.com/printforge/printforge/internal/observability/statsd"
)

// InitLogger builds the process logger: JSON in production, text in dev.
func InitLogger(isDev bool) *slog.Logger {
	var handler slog.Handler
	if isDev {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads .env in dev, parses the environment and applies
// guardrails.
func LoadConfig() (config.AppConfig, error) {
	// Missing .env is fine; the environment is the source of truth.
	_ = godotenv.Load() //nolint:errcheck // dotenv is optional

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ConnectDB opens and pings the pgx pool.
func ConnectDB(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// ConnectRedis opens and pings the cache client.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // connection failed anyway
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ConnectBlobStore connects the object storage repository.
func ConnectBlobStore(ctx context.Context, cfg config.BlobConfig) (*data.MinioBlobRepo, error) {
	return data.NewMinioBlobRepo(ctx, data.MinioConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
}

// NewMetrics builds the StatsD sink from configuration.
func NewMetrics(cfg config.ObservabilityConfig, logger *slog.Logger) (*statsd.Client, error) {
	return statsd.NewClient(statsd.Config{
		Enabled: cfg.StatsdEnabled,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.StatsdPrefix,
		Logger:  logger,
	})
}
