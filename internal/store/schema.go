package store

import (
	"context"
	"fmt"
)

// The same statements run on SQLite and Postgres: ids are uuid strings,
// session dates are ISO "YYYY-MM-DD" text and timestamps are stored in UTC.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		roll_number TEXT NOT NULL,
		section     TEXT NOT NULL,
		email       TEXT,
		photo_url   TEXT,
		face_token  TEXT,
		usn         TEXT,
		semester    TEXT,
		created_at  TIMESTAMP NOT NULL,
		UNIQUE (roll_number, section)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('teacher', 'student')),
		name          TEXT NOT NULL,
		student_id    TEXT REFERENCES students(id) ON DELETE CASCADE,
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		department TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT PRIMARY KEY,
		teacher_name    TEXT NOT NULL,
		subject         TEXT NOT NULL,
		section         TEXT NOT NULL,
		date            TEXT NOT NULL,
		created_at      TIMESTAMP NOT NULL,
		teacher_user_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		status     TEXT NOT NULL CHECK (status IN ('present', 'absent', 'late')),
		marked_at  TIMESTAMP NOT NULL,
		UNIQUE (session_id, student_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_student ON users(student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_teacher ON sessions(teacher_user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance(student_id)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
