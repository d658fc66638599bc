// Package distlock serializes one-off jobs across processes with
// PostgreSQL advisory locks.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
)

// ErrNotAcquired is returned when another session holds the lock.
var ErrNotAcquired = errors.New("distlock: lock held by another session")

// AdvisoryLock is a session-scoped pg_try_advisory_lock. The lock lives on
// one pinned connection, so Acquire and Release must be paired on the same
// value.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// New creates a lock whose ID is derived from key.
func New(db *sql.DB, key string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &AdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// ID returns the advisory lock ID.
func (l *AdvisoryLock) ID() int64 {
	return l.lockID
}

// Acquire tries once to take the lock. It returns false without error when
// the lock is held elsewhere.
func (l *AdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return true, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("distlock: get connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("distlock: acquire: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		return fmt.Errorf("distlock: release: %w", err)
	}
	return nil
}

// WithLock runs fn while holding the lock for key.
func WithLock(ctx context.Context, db *sql.DB, key string, fn func(context.Context) error) error {
	l := New(db, key)
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer l.Release(context.WithoutCancel(ctx))
	return fn(ctx)
}
