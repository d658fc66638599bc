package distlock

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockRunsAndReleases(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := New(db, "octodash:migrate").ID()
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ran := false
	err = WithLock(context.Background(), db, "octodash:migrate", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithLockHeldElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = WithLock(context.Background(), db, "octodash:migrate", func(ctx context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithLockQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).WillReturnError(errors.New("conn reset"))

	err = WithLock(context.Background(), db, "k", func(ctx context.Context) error { return nil })
	assert.ErrorContains(t, err, "conn reset")
}

func TestLockIDIsStable(t *testing.T) {
	assert.Equal(t, New(nil, "a").ID(), New(nil, "a").ID())
	assert.NotEqual(t, New(nil, "a").ID(), New(nil, "b").ID())
}
