package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/phrazzld/fetchstore/internal/redact"
	"github.com/sethvargo/go-retry"
)

// PoolConfig controls the connection pool and the startup ping.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// PingAttempts is how many times Open pings before giving up
	PingAttempts int
	// PingBackoff is the first delay between pings
	PingBackoff time.Duration
}

// DefaultPoolConfig returns pool settings sized for a small worker pool.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		PingAttempts:    5,
		PingBackoff:     500 * time.Millisecond,
	}
}

// Open connects to PostgreSQL through the pgx driver and waits until the
// database answers a ping. The database may still be starting up, so pings
// are retried with exponential backoff.
func Open(ctx context.Context, databaseURL string, config PoolConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	attempts := config.PingAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := config.PingBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	log := logger.With("component", "postgres", "database_url", redact.URL(databaseURL))
	attempt := 0
	err = retry.Do(ctx, retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(backoff)),
		func(ctx context.Context) error {
			attempt++
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				log.Warn("database ping failed", "attempt", attempt, "error", redact.Error(err))
				return retry.RetryableError(err)
			}
			return nil
		})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempt, err)
	}

	log.Info("database connection established")
	return db, nil
}
