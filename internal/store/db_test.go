package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(DriverSQLite, filepath.Join(t.TempDir(), "nested", "rollbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func count(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", sqliteDSN("a.db?cache=shared"))
}

func TestNewDBUnsupportedDriver(t *testing.T) {
	_, err := NewDB("oracle", "x")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, DriverSQLite, db.Driver)
	assert.NoError(t, db.Migrate(context.Background()))
	assert.True(t, db.Healthy(context.Background()))
}

func TestCascadeAndConstraints(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()
	c := db.Client

	c.MustExec(`INSERT INTO students (id, name, roll_number, section, created_at) VALUES ('s1', 'A', '1', 'A', ?)`, now)
	_, err := c.Exec(`INSERT INTO students (id, name, roll_number, section, created_at) VALUES ('s2', 'B', '1', 'A', ?)`, now)
	assert.Error(t, err, "roll number is unique within a section")

	c.MustExec(`INSERT INTO sessions (id, teacher_name, subject, section, date, created_at, teacher_user_id) VALUES ('x1', 'T', 'Math', 'A', '2024-03-01', ?, 't1')`, now)
	c.MustExec(`INSERT INTO attendance (id, session_id, student_id, status, marked_at) VALUES ('a1', 'x1', 's1', 'present', ?)`, now)

	_, err = c.Exec(`INSERT INTO attendance (id, session_id, student_id, status, marked_at) VALUES ('a2', 'x1', 's1', 'present', ?)`, now)
	assert.Error(t, err, "one row per student per session")
	_, err = c.Exec(`INSERT INTO attendance (id, session_id, student_id, status, marked_at) VALUES ('a3', 'x1', 'missing', 'present', ?)`, now)
	assert.Error(t, err, "foreign keys are enforced")

	c.MustExec(`DELETE FROM sessions WHERE id = 'x1'`)
	assert.Equal(t, 0, count(t, c, "attendance"))
	assert.Equal(t, 1, count(t, c, "students"))
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, db.Client, func(tx *sqlx.Tx) error {
		tx.MustExecContext(ctx, `INSERT INTO students (id, name, roll_number, section, created_at) VALUES ('s1', 'A', '1', 'A', ?)`, time.Now().UTC())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db.Client, "students"))

	assert.Panics(t, func() {
		_ = WithTx(ctx, db.Client, func(tx *sqlx.Tx) error {
			tx.MustExecContext(ctx, `INSERT INTO students (id, name, roll_number, section, created_at) VALUES ('s1', 'A', '1', 'A', ?)`, time.Now().UTC())
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, count(t, db.Client, "students"))

	require.NoError(t, WithTx(ctx, db.Client, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO students (id, name, roll_number, section, created_at) VALUES ('s1', 'A', '1', 'A', ?)`, time.Now().UTC())
		return err
	}))
	assert.Equal(t, 1, count(t, db.Client, "students"))
}
