package account

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// User is a login identity. StudentID links student accounts to their roster row.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Name         string    `db:"name" json:"name"`
	StudentID    *string   `db:"student_id" json:"student_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Teacher is the staff profile behind a teacher user.
type Teacher struct {
	ID         string  `db:"id" json:"id"`
	UserID     string  `db:"user_id" json:"user_id"`
	Name       string  `db:"name" json:"name"`
	Department *string `db:"department" json:"department,omitempty"`
}

// login is a user joined with the roster row of a student account.
type login struct {
	User
	RollNumber *string `db:"roll_number"`
	Section    *string `db:"section"`
}

// Repository persists users and teacher profiles.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user inside q.
func (r *Repository) CreateUser(ctx context.Context, q sqlx.ExtContext, u User) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO users (id, email, password_hash, role, name, student_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), u.ID, u.Email, u.PasswordHash, u.Role, u.Name, u.StudentID, u.CreatedAt)
	return err
}

// CreateTeacher inserts a teacher profile inside q.
func (r *Repository) CreateTeacher(ctx context.Context, q sqlx.ExtContext, t Teacher) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO teachers (id, user_id, name, department) VALUES (?, ?, ?, ?)
	`), t.ID, t.UserID, t.Name, t.Department)
	return err
}

// EmailTaken reports whether a user with the email exists.
func (r *Repository) EmailTaken(ctx context.Context, q sqlx.ExtContext, email string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`), email)
	return n > 0, err
}

func (r *Repository) loginByEmail(ctx context.Context, email string) (login, error) {
	var l login
	err := r.db.GetContext(ctx, &l, r.db.Rebind(`
		SELECT u.id, u.email, u.password_hash, u.role, u.name, u.student_id, u.created_at,
			st.roll_number, st.section
		FROM users u
		LEFT JOIN students st ON st.id = u.student_id
		WHERE u.email = ?
	`), email)
	return l, err
}

func (r *Repository) loginByStudentID(ctx context.Context, studentID string) (login, error) {
	var l login
	err := r.db.GetContext(ctx, &l, r.db.Rebind(`
		SELECT u.id, u.email, u.password_hash, u.role, u.name, u.student_id, u.created_at,
			st.roll_number, st.section
		FROM users u
		JOIN students st ON st.id = u.student_id
		WHERE u.student_id = ?
	`), studentID)
	return l, err
}
