// Package store is the relational persistence layer. It presents one
// surface over either a primary PostgreSQL database or an embedded
// SQLite fallback, with batched natural-key upserts and a migration
// runner.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/ballparklabs/mlbedge/internal/config"
)

// ErrInvariant marks violations that must abort the process: lookahead
// leaks, settling non-final games, schema drift.
var ErrInvariant = errors.New("invariant violation")

// DefaultBatchSize bounds rows per upsert statement.
const DefaultBatchSize = 500

// Store wraps the database handle plus repository accessors.
type Store struct {
	db      *sqlx.DB
	driver  string
	timeout time.Duration

	Games    *GamesRepo
	Events   *EventsRepo
	Features *FeaturesRepo
	Odds     *OddsRepo
	Scores   *ScoresRepo
	Outcomes *OutcomesRepo
	Lineups  *LineupsRepo
	Runs     *RunsRepo
	Ref      *RefRepo
}

// Open connects to the primary database when a URL is configured and
// falls back to the embedded SQLite file otherwise.
func Open(cfg config.DB) (*Store, error) {
	driver := "postgres"
	dsn := cfg.URL
	if dsn == "" {
		driver = "sqlite"
		dsn = cfg.FallbackPath
		log.Warn().Str("path", dsn).Msg("no database URL configured, using embedded fallback")
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Store{db: db, driver: driver, timeout: timeout}
	s.Games = &GamesRepo{s}
	s.Events = &EventsRepo{s}
	s.Features = &FeaturesRepo{s}
	s.Odds = &OddsRepo{s}
	s.Scores = &ScoresRepo{s}
	s.Outcomes = &OutcomesRepo{s}
	s.Lineups = &LineupsRepo{s}
	s.Runs = &RunsRepo{s}
	s.Ref = &RefRepo{s}
	return s, nil
}

// DB exposes the raw handle for migrations and tests.
func (s *Store) DB() *sqlx.DB { return s.db }

// Driver reports "postgres" or "sqlite".
func (s *Store) Driver() string { return s.driver }

// Close closes the underlying pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// opCtx derives a per-call timeout context, scaled up for large batches
// the way large trade inserts are handled upstream.
func (s *Store) opCtx(ctx context.Context, rows int) (context.Context, context.CancelFunc) {
	timeout := s.timeout * time.Duration(rows/100+1)
	return context.WithTimeout(ctx, timeout)
}

// namedBatch executes one multi-row named statement per chunk inside a
// single transaction. Each chunk is at most DefaultBatchSize rows so
// transaction size stays bounded.
func namedBatch[T any](ctx context.Context, s *Store, query string, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	opCtx, cancel := s.opCtx(ctx, len(rows))
	defer cancel()

	tx, err := s.db.BeginTxx(opCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for start := 0; start < len(rows); start += DefaultBatchSize {
		end := start + DefaultBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		res, err := tx.NamedExecContext(opCtx, query, rows[start:end])
		if err != nil {
			return total, fmt.Errorf("batch upsert rows %d..%d: %w", start, end, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		} else {
			total += int64(end - start)
		}
	}
	if err := tx.Commit(); err != nil {
		return total, fmt.Errorf("commit batch tx: %w", err)
	}
	return total, nil
}

// rebind translates '?' placeholders into the driver's style.
func (s *Store) rebind(query string) string { return s.db.Rebind(query) }

// selectCtx runs a '?'-style query into dest with the store timeout.
func (s *Store) selectCtx(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	opCtx, cancel := s.opCtx(ctx, 1)
	defer cancel()
	return s.db.SelectContext(opCtx, dest, s.rebind(query), args...)
}

// getCtx runs a single-row '?'-style query with the store timeout.
func (s *Store) getCtx(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	opCtx, cancel := s.opCtx(ctx, 1)
	defer cancel()
	return s.db.GetContext(opCtx, dest, s.rebind(query), args...)
}

// execCtx runs a '?'-style statement with the store timeout.
func (s *Store) execCtx(ctx context.Context, query string, args ...interface{}) (int64, error) {
	opCtx, cancel := s.opCtx(ctx, 1)
	defer cancel()
	res, err := s.db.ExecContext(opCtx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UTCNow renders the canonical stored timestamp. All persisted
// timestamps are UTC RFC3339 text so both dialects compare lexically.
func UTCNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
