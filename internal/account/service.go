package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/facematch"
	"rollbook/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown emails, wrong passwords and unmatched faces alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when a login already uses the email.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", attendance.ErrConflict)
)

const minPasswordLen = 6

// Service authenticates users and manages login rows.
type Service struct {
	repo     *Repository
	db       *sqlx.DB
	students *attendance.Service
	matcher  facematch.Matcher
}

// NewService creates the account service.
func NewService(db *sqlx.DB, students *attendance.Service, matcher facematch.Matcher) *Service {
	return &Service{repo: NewRepository(db), db: db, students: students, matcher: matcher}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks an email and password and returns the caller identity.
func (s *Service) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	l, err := s.repo.loginByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Identity{}, ErrInvalidCredentials
		}
		return auth.Identity{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(l.PasswordHash, password) {
		return auth.Identity{}, ErrInvalidCredentials
	}
	return l.identity()
}

// FaceLogin matches a descriptor against enrolled students and returns the
// identity of the closest student account under the threshold.
func (s *Service) FaceLogin(ctx context.Context, probe facematch.Descriptor) (auth.Identity, facematch.Match, error) {
	if err := probe.Validate(); err != nil {
		return auth.Identity{}, facematch.Match{}, fmt.Errorf("%w: %v", attendance.ErrValidation, err)
	}
	enrolled, err := s.students.EnrolledFaces(ctx)
	if err != nil {
		return auth.Identity{}, facematch.Match{}, fmt.Errorf("load faces: %w", err)
	}

	candidates := make([]facematch.Candidate, 0, len(enrolled))
	for _, st := range enrolled {
		d, err := facematch.Decode(*st.FaceToken)
		if err != nil {
			continue
		}
		candidates = append(candidates, facematch.Candidate{Key: st.ID, Descriptor: d})
	}

	match, ok := s.matcher.Best(probe, candidates)
	if !ok {
		return auth.Identity{}, facematch.Match{}, ErrInvalidCredentials
	}
	l, err := s.repo.loginByStudentID(ctx, match.Key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Identity{}, facematch.Match{}, ErrInvalidCredentials
		}
		return auth.Identity{}, facematch.Match{}, fmt.Errorf("load user: %w", err)
	}
	id, err := l.identity()
	return id, match, err
}

func (l login) identity() (auth.Identity, error) {
	role, ok := auth.ParseRole(l.Role)
	if !ok {
		return auth.Identity{}, fmt.Errorf("user %s has unknown role %q", l.ID, l.Role)
	}
	id := auth.Identity{UserID: l.ID, Role: role, Name: l.Name}
	if role == auth.RoleStudent {
		if l.RollNumber == nil || l.Section == nil {
			return auth.Identity{}, fmt.Errorf("student user %s has no roster row", l.ID)
		}
		id.RollNumber = *l.RollNumber
		id.Section = *l.Section
	}
	return id, nil
}

// StudentLogin returns a hook for attendance.Service.AddStudent that creates
// a student login in the same transaction as the roster row.
func (s *Service) StudentLogin(email, password string) func(ctx context.Context, tx *sqlx.Tx, st attendance.Student) error {
	return func(ctx context.Context, tx *sqlx.Tx, st attendance.Student) error {
		studentID := st.ID
		_, err := s.createUser(ctx, tx, User{
			Email:     email,
			Role:      string(auth.RoleStudent),
			Name:      st.Name,
			StudentID: &studentID,
		}, password)
		return err
	}
}

// CreateTeacher creates a teacher login and profile.
func (s *Service) CreateTeacher(ctx context.Context, name, email, password, department string) (User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name required", attendance.ErrValidation)
	}
	var u User
	err := store.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		u, err = s.createUser(ctx, tx, User{Email: email, Role: string(auth.RoleTeacher), Name: name}, password)
		if err != nil {
			return err
		}
		var dept *string
		if d := strings.TrimSpace(department); d != "" {
			dept = &d
		}
		return s.repo.CreateTeacher(ctx, tx, Teacher{ID: uuid.NewString(), UserID: u.ID, Name: name, Department: dept})
	})
	return u, err
}

func (s *Service) createUser(ctx context.Context, tx *sqlx.Tx, u User, password string) (User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return User{}, fmt.Errorf("%w: valid email required", attendance.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", attendance.ErrValidation, minPasswordLen)
	}
	taken, err := s.repo.EmailTaken(ctx, tx, u.Email)
	if err != nil {
		return User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return User{}, ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u.ID = uuid.NewString()
	u.PasswordHash = hash
	u.CreatedAt = time.Now().UTC()
	if err := s.repo.CreateUser(ctx, tx, u); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}
