package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// DB wraps the pgx pool shared by every repository
type DB struct {
	*pgxpool.Pool
}

type connectOptions struct {
	maxConns     int32
	attempts     int
	retryDelay   time.Duration
	appName      string
	queryTimeout time.Duration
}

// Option tunes how NewConnection opens the pool
type Option func(*connectOptions)

// WithMaxConns caps the pool size. The polling queue runs one user at a time
// so a handful of connections covers the scheduler plus admin commands.
func WithMaxConns(n int32) Option {
	return func(o *connectOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithConnectRetry retries the initial ping, for containers that start
// before postgres accepts connections
func WithConnectRetry(attempts int, delay time.Duration) Option {
	return func(o *connectOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
		o.retryDelay = delay
	}
}

// WithStatementTimeout sets the server side statement_timeout for every session
func WithStatementTimeout(d time.Duration) Option {
	return func(o *connectOptions) {
		o.queryTimeout = d
	}
}

// NewConnection opens and pings a pool against databaseURL
func NewConnection(ctx context.Context, databaseURL string, opts ...Option) (*DB, error) {
	options := connectOptions{
		maxConns:   8,
		attempts:   1,
		retryDelay: 2 * time.Second,
		appName:    "weatherbot",
	}
	for _, opt := range opts {
		opt(&options)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = options.maxConns
	config.ConnConfig.RuntimeParams["application_name"] = options.appName
	// Calendar days are computed in Go; the session stays in UTC so DATE
	// columns round-trip unchanged
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"
	if options.queryTimeout > 0 {
		config.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", options.queryTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := ping(ctx, pool, options); err != nil {
		pool.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"database":  RedactURL(databaseURL),
		"max_conns": options.maxConns,
	}).Debug("Database pool ready")

	return &DB{Pool: pool}, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, options connectOptions) error {
	var err error
	for attempt := 1; attempt <= options.attempts; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		if attempt == options.attempts {
			break
		}
		log.WithFields(log.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Database not reachable yet, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(options.retryDelay):
		}
	}
	return fmt.Errorf("failed to ping database after %d attempts: %w", options.attempts, err)
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}
