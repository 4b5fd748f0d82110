package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"rollbook/internal/store"
)

const studentColumns = `id, name, roll_number, section, email, photo_url, face_token, usn, semester, created_at`

const sessionColumns = `s.id, s.teacher_name, s.subject, s.section, s.date, s.created_at, s.teacher_user_id`

// Repository persists sessions, students and attendance rows.
// Write methods take the transaction they must run in.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// WithTx runs fn in a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return store.WithTx(ctx, r.db, fn)
}

// ResolveStudent returns the id of the student with (rollNumber, section),
// creating the row with displayName and createdAt when it does not exist. An existing
// student's name is never changed. Concurrent resolvers converge on the
// same row through the unique (roll_number, section) constraint.
func (r *Repository) ResolveStudent(ctx context.Context, q sqlx.ExtContext, rollNumber, section, displayName string, createdAt time.Time) (string, error) {
	id, err := r.studentID(ctx, q, rollNumber, section)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	if displayName == "" {
		displayName = rollNumber
	}
	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO students (id, name, roll_number, section, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (roll_number, section) DO NOTHING
	`), uuid.NewString(), displayName, rollNumber, section, createdAt)
	if err != nil {
		return "", err
	}
	return r.studentID(ctx, q, rollNumber, section)
}

func (r *Repository) studentID(ctx context.Context, q sqlx.ExtContext, rollNumber, section string) (string, error) {
	var id string
	err := sqlx.GetContext(ctx, q, &id, q.Rebind(`SELECT id FROM students WHERE roll_number = ? AND section = ?`), rollNumber, section)
	return id, err
}

// InsertSession writes a new session row.
func (r *Repository) InsertSession(ctx context.Context, q sqlx.ExtContext, s Session) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO sessions (id, teacher_name, subject, section, date, created_at, teacher_user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), s.ID, s.TeacherName, s.Subject, s.Section, s.Date, s.CreatedAt, s.TeacherUserID)
	return err
}

// UpsertRecord writes one attendance row; a second row for the same
// (session, student) replaces the earlier status.
func (r *Repository) UpsertRecord(ctx context.Context, q sqlx.ExtContext, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO attendance (id, session_id, student_id, status, marked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			status = excluded.status,
			marked_at = excluded.marked_at
	`), rec.ID, rec.SessionID, rec.StudentID, string(rec.Status), rec.MarkedAt)
	return err
}

// ListSessionsByTeacher returns the teacher's sessions, most recent first.
func (r *Repository) ListSessionsByTeacher(ctx context.Context, teacherUserID string) ([]SessionSummary, error) {
	var res []SessionSummary
	err := r.db.SelectContext(ctx, &res, r.db.Rebind(`
		SELECT `+sessionColumns+`,
			(SELECT COUNT(*) FROM attendance a WHERE a.session_id = s.id) AS record_count
		FROM sessions s
		WHERE s.teacher_user_id = ?
		ORDER BY s.created_at DESC
	`), teacherUserID)
	return res, err
}

// GetSession returns a session owned by teacherUserID, or sql.ErrNoRows.
func (r *Repository) GetSession(ctx context.Context, teacherUserID, sessionID string) (Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`
		SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ? AND s.teacher_user_id = ?
	`), sessionID, teacherUserID)
	return s, err
}

// SessionRecords returns the session's rows joined with students. Roll
// numbers are opaque strings, so "10" sorts before "2".
func (r *Repository) SessionRecords(ctx context.Context, sessionID string) ([]SessionRecord, error) {
	var res []SessionRecord
	err := r.db.SelectContext(ctx, &res, r.db.Rebind(`
		SELECT st.id AS student_id, st.name, st.roll_number, a.status, a.marked_at
		FROM attendance a
		JOIN students st ON st.id = a.student_id
		WHERE a.session_id = ?
		ORDER BY st.roll_number ASC
	`), sessionID)
	return res, err
}

// SessionStudentIDs lists the students with a row in the session.
func (r *Repository) SessionStudentIDs(ctx context.Context, sessionID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`SELECT student_id FROM attendance WHERE session_id = ?`), sessionID)
	return ids, err
}

// DeleteSession removes an owned session; attendance rows go with it.
// It reports whether a row was deleted.
func (r *Repository) DeleteSession(ctx context.Context, teacherUserID, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE id = ? AND teacher_user_id = ?`), sessionID, teacherUserID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindStudentByRoll returns the student with the roll number. With an empty
// section the earliest created match is returned.
func (r *Repository) FindStudentByRoll(ctx context.Context, rollNumber, section string) (Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE roll_number = ?`
	args := []any{rollNumber}
	if section != "" {
		query += ` AND section = ?`
		args = append(args, section)
	}
	query += ` ORDER BY created_at ASC LIMIT 1`

	var st Student
	err := r.db.GetContext(ctx, &st, r.db.Rebind(query), args...)
	return st, err
}

// GetStudent returns a student by id.
func (r *Repository) GetStudent(ctx context.Context, id string) (Student, error) {
	var st Student
	err := r.db.GetContext(ctx, &st, r.db.Rebind(`SELECT `+studentColumns+` FROM students WHERE id = ?`), id)
	return st, err
}

// ListStudents returns students, optionally for one section, by section and roll number.
func (r *Repository) ListStudents(ctx context.Context, section string) ([]Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	args := []any{}
	if section != "" {
		query += ` WHERE section = ?`
		args = append(args, section)
	}
	query += ` ORDER BY section ASC, roll_number ASC`

	var res []Student
	err := r.db.SelectContext(ctx, &res, r.db.Rebind(query), args...)
	return res, err
}

// ListEnrolledFaces returns students that have a face descriptor.
func (r *Repository) ListEnrolledFaces(ctx context.Context) ([]Student, error) {
	var res []Student
	err := r.db.SelectContext(ctx, &res, `SELECT `+studentColumns+` FROM students WHERE face_token IS NOT NULL AND face_token <> ''`)
	return res, err
}

// InsertStudent writes a fully specified student row.
func (r *Repository) InsertStudent(ctx context.Context, q sqlx.ExtContext, st Student) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO students (id, name, roll_number, section, email, usn, semester, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), st.ID, st.Name, st.RollNumber, st.Section, st.Email, st.USN, st.Semester, st.CreatedAt)
	return err
}

// UpdateProfile applies non-nil fields of the update.
func (r *Repository) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE students SET
			name = COALESCE(?, name),
			email = COALESCE(?, email),
			usn = COALESCE(?, usn),
			semester = COALESCE(?, semester)
		WHERE id = ?
	`), u.Name, u.Email, u.USN, u.Semester, id)
	return err
}

// UpdatePhoto sets the student's photo URL.
func (r *Repository) UpdatePhoto(ctx context.Context, id, photoURL string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE students SET photo_url = ? WHERE id = ?`), photoURL, id)
	return err
}

// UpdateFaceToken stores the encoded face descriptor.
func (r *Repository) UpdateFaceToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE students SET face_token = ? WHERE id = ?`), token, id)
	return err
}

// DeleteStudent removes a student; attendance rows and the linked user go with it.
func (r *Repository) DeleteStudent(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM students WHERE id = ?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// StudentCounts aggregates a student's rows by status.
func (r *Repository) StudentCounts(ctx context.Context, studentID string) (Metrics, error) {
	var m Metrics
	row := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'present' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'late' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'absent' THEN 1 ELSE 0 END), 0)
		FROM attendance
		WHERE student_id = ?
	`), studentID)
	if err := row.Scan(&m.Total, &m.Present, &m.Late, &m.Absent); err != nil {
		return Metrics{}, fmt.Errorf("count attendance: %w", err)
	}
	return m, nil
}

// StudentHistory returns the student's rows by session date then session creation time.
func (r *Repository) StudentHistory(ctx context.Context, studentID string) ([]HistoryEntry, error) {
	var res []HistoryEntry
	err := r.db.SelectContext(ctx, &res, r.db.Rebind(`
		SELECT s.id AS session_id, s.subject, s.section, s.date, s.teacher_name,
			s.created_at AS session_created_at, a.status, a.marked_at
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		WHERE a.student_id = ?
		ORDER BY s.date ASC, s.created_at ASC
	`), studentID)
	return res, err
}
