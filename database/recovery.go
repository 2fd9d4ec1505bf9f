package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	retry "github.com/codeGROOVE-dev/retry-go"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// isTransient reports whether err is a connectivity or lock error worth one
// retry on a fresh connection pool.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return strings.Contains(err.Error(), "sql: database is closed")
}

// withRecovery runs fn against the current pool. A transient failure reopens
// the pool and runs fn once more.
func (r *Repository) withRecovery(ctx context.Context, operation string, fn func(db *sql.DB) error) error {
	var used *sql.DB
	return retry.Do(
		func() error {
			used = r.conn()
			return fn(used)
		},
		retry.Attempts(2),
		retry.Delay(50*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("Transient storage error, reconnecting",
				zap.String("operation", operation),
				zap.Uint("attempt", n),
				zap.Error(err))
			if reconnectErr := r.reconnect(used); reconnectErr != nil {
				r.logger.Error("Reconnect failed", zap.String("operation", operation), zap.Error(reconnectErr))
			}
		}),
	)
}

// reconnect replaces failed with a fresh pool. It does nothing when another
// caller already replaced failed, so concurrent failures reopen the pool once.
func (r *Repository) reconnect(failed *sql.DB) error {
	if r.dbPath == "" {
		return errors.New("repository has no database path to reconnect to")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != failed {
		return nil
	}

	fresh, err := openDB(r.dbPath)
	if err != nil {
		return fmt.Errorf("reopen database: %w", err)
	}
	r.db = fresh

	if failed != nil {
		failed.Close()
	}
	return nil
}

func (r *Repository) conn() *sql.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}
