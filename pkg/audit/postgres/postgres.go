// Package postgres stores authentication decision events in PostgreSQL.
// It uses pgx/v5 connection pooling and embedded schema migrations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/ldapgate/pkg/audit"
	"github.com/rhuss/ldapgate/pkg/debug"
)

// Store is a PostgreSQL-backed audit.Recorder.
type Store struct {
	pool         *pgxpool.Pool
	writeTimeout time.Duration
}

var _ audit.Recorder = (*Store)(nil)

// New connects to the database and, when MigrateOnStart is set, applies
// schema migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, writeTimeout: cfg.WriteTimeout}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Record inserts one decision event.
func (s *Store) Record(ctx context.Context, ev audit.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_decisions (
			decided_at, request_id, identity, remote_addr,
			endpoint, outcome, reason, cache_hit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		ev.Time.UTC(), ev.RequestID, ev.Identity, ev.RemoteAddr,
		ev.Endpoint, ev.Outcome, ev.Reason, ev.CacheHit,
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}

	debug.Log("audit", "decision recorded", "identity", ev.Identity, "outcome", ev.Outcome)
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT decided_at, request_id, identity, remote_addr,
		       endpoint, outcome, reason, cache_hit
		FROM auth_decisions
		ORDER BY decided_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var ev audit.Event
		if err := rows.Scan(
			&ev.Time, &ev.RequestID, &ev.Identity, &ev.RemoteAddr,
			&ev.Endpoint, &ev.Outcome, &ev.Reason, &ev.CacheHit,
		); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
