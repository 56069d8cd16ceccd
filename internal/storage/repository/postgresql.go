// Package repository implements the PostgreSQL storage for plans, users,
// subscriptions, the history ledger, webhook events, the forum, the
// trading journal and portfolio holdings.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	// pgx driver registration for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage wraps the database connection and implements all repositories.
type Storage struct {
	DB *sql.DB
}

// New opens a connection to PostgreSQL and pings it.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady verifies the schema has been migrated.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table subscriptions missing or query error: %w", err)
	}
	return nil
}

// Advisory lock keys, one per scheduler scan so a running reminder scan
// never blocks or skips a due downgrade scan.
const (
	ReminderScanLockKey  int64 = 7831002
	DowngradeScanLockKey int64 = 7831003
)

// TryAdvisoryLock takes one scheduler advisory lock on a dedicated
// connection. Returns the connection holding the lock, or ok=false when
// the same scan is already running elsewhere.
func (s *Storage) TryAdvisoryLock(ctx context.Context, key int64) (conn *sql.Conn, ok bool, err error) {
	const op = "storage.TryAdvisoryLock"
	conn, err = s.DB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

// AdvisoryUnlock releases one scheduler lock and its connection.
func (s *Storage) AdvisoryUnlock(ctx context.Context, conn *sql.Conn, key int64) error {
	const op = "storage.AdvisoryUnlock"
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, key); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	return conn.Close()
}
