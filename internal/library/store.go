package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bibneat/internal/logging"
)

// EntryIndex is the stable handle of one library entry.
type EntryIndex int64

// Store manages library persistence backed by SQLite.
type Store struct {
	db           *sql.DB
	path         string
	preserveKeys bool
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPreserveKeys keeps an entry's existing cite key when its content is
// replaced by registry metadata.
func WithPreserveKeys(preserve bool) Option {
	return func(s *Store) {
		s.preserveKeys = preserve
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// withTx runs fn in a transaction, retrying the whole unit while SQLite
// reports the database busy.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Open initializes or connects to the library database at path.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("library path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure library directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// foreign_keys is per connection; pin the pool to one so it always applies.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: path}
	for _, opt := range opts {
		opt(store)
	}
	store.logger = logging.NewComponentLogger(store.logger, "library")
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Generation returns the reset counter.
func (s *Store) Generation(ctx context.Context) (int64, error) {
	var generation int64
	if err := s.db.QueryRowContext(ctx, "SELECT generation FROM library_state WHERE id = 1").Scan(&generation); err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	return generation, nil
}

// Reset removes every entry and superseded mark and bumps the generation.
func (s *Store) Reset(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM superseded_identifiers",
			"DELETE FROM entries",
			"UPDATE library_state SET generation = generation + 1 WHERE id = 1",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("reset library: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("library reset", logging.String("path", s.path))
	return nil
}

func timestampNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
