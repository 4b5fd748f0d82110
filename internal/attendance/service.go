package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"rollbook/internal/auth"
	"rollbook/internal/telemetry"
)

const dateLayout = "2006-01-02"

// Service records roll calls and answers the read paths over them.
type Service struct {
	repo  *Repository
	cache MetricsCache
	now   func() time.Time

	// invalidations counts cache invalidations; a refresh that overlaps one
	// must not leave its result behind.
	invalidations atomic.Uint64
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the metrics read-through cache.
func WithCache(c MetricsCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithClock overrides the timestamp source used for sessions and rows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, opts ...Option) *Service {
	s := &Service{repo: repo, cache: nopCache{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type validEntry struct {
	rollNumber string
	status     Status
	name       string
}

func (sub *Submission) normalize() ([]validEntry, []int, error) {
	sub.TeacherName = strings.TrimSpace(sub.TeacherName)
	sub.Subject = strings.TrimSpace(sub.Subject)
	sub.Section = strings.TrimSpace(sub.Section)
	sub.Date = strings.TrimSpace(sub.Date)

	var missing []string
	if sub.TeacherName == "" {
		missing = append(missing, "teacherName")
	}
	if sub.Subject == "" {
		missing = append(missing, "subject")
	}
	if sub.Section == "" {
		missing = append(missing, "section")
	}
	if sub.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if _, err := time.Parse(dateLayout, sub.Date); err != nil {
		return nil, nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}

	entries := make([]validEntry, 0, len(sub.Students))
	skipped := []int{}
	for i, e := range sub.Students {
		roll := strings.TrimSpace(e.RollNumber)
		if roll == "" || strings.TrimSpace(e.Status) == "" {
			skipped = append(skipped, i)
			continue
		}
		status, ok := ParseStatus(e.Status)
		if !ok {
			return nil, nil, fmt.Errorf("%w: students[%d]: unknown status %q", ErrValidation, i, e.Status)
		}
		entries = append(entries, validEntry{rollNumber: roll, status: status, name: strings.TrimSpace(e.Name)})
	}
	return entries, skipped, nil
}

// Record persists one roll call as a session plus one attendance row per
// valid entry, in a single transaction. Entries without a roll number or
// status are skipped and reported; students missing from the roster are
// created in the session's section.
func (s *Service) Record(ctx context.Context, id auth.Identity, sub Submission) (RecordResult, error) {
	if err := id.RequireTeacher(); err != nil {
		return RecordResult{}, err
	}
	entries, skipped, err := sub.normalize()
	if err != nil {
		return RecordResult{}, err
	}

	now := s.now().UTC()
	sess := Session{
		ID:            uuid.NewString(),
		TeacherName:   sub.TeacherName,
		Subject:       sub.Subject,
		Section:       sub.Section,
		Date:          sub.Date,
		CreatedAt:     now,
		TeacherUserID: id.UserID,
	}

	var studentIDs []string
	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		studentIDs = studentIDs[:0]
		if err := s.repo.InsertSession(ctx, tx, sess); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			studentID, err := s.repo.ResolveStudent(ctx, tx, e.rollNumber, sess.Section, e.name, now)
			if err != nil {
				return fmt.Errorf("resolve student %s: %w", e.rollNumber, err)
			}
			rec := Record{SessionID: sess.ID, StudentID: studentID, Status: e.status, MarkedAt: now}
			if err := s.repo.UpsertRecord(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert attendance for %s: %w", e.rollNumber, err)
			}
			if !seen[studentID] {
				seen[studentID] = true
				studentIDs = append(studentIDs, studentID)
			}
		}
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}

	telemetry.SessionsRecorded.Inc()
	telemetry.AttendanceRows.Add(float64(len(studentIDs)))
	telemetry.SkippedEntries.Add(float64(len(skipped)))
	s.invalidate(ctx, studentIDs...)

	return RecordResult{
		SessionID:  sess.ID,
		Recorded:   len(studentIDs),
		Skipped:    skipped,
		StudentIDs: studentIDs,
	}, nil
}

// ListSessions returns the teacher's own sessions, most recent first.
func (s *Service) ListSessions(ctx context.Context, id auth.Identity) ([]SessionSummary, error) {
	if err := id.RequireTeacher(); err != nil {
		return nil, err
	}
	res, err := s.repo.ListSessionsByTeacher(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if res == nil {
		res = []SessionSummary{}
	}
	return res, nil
}

// SessionDetail returns an owned session with its records. Sessions of
// other teachers are reported as not found.
func (s *Service) SessionDetail(ctx context.Context, id auth.Identity, sessionID string) (SessionDetail, error) {
	if err := id.RequireTeacher(); err != nil {
		return SessionDetail{}, err
	}
	sess, err := s.repo.GetSession(ctx, id.UserID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionDetail{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return SessionDetail{}, fmt.Errorf("get session: %w", err)
	}
	records, err := s.repo.SessionRecords(ctx, sess.ID)
	if err != nil {
		return SessionDetail{}, fmt.Errorf("session records: %w", err)
	}
	if records == nil {
		records = []SessionRecord{}
	}
	return SessionDetail{Session: sess, Records: records}, nil
}

// DeleteSession removes an owned session and its rows.
func (s *Service) DeleteSession(ctx context.Context, id auth.Identity, sessionID string) error {
	if err := id.RequireTeacher(); err != nil {
		return err
	}
	if _, err := s.repo.GetSession(ctx, id.UserID, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return fmt.Errorf("get session: %w", err)
	}
	studentIDs, err := s.repo.SessionStudentIDs(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session students: %w", err)
	}
	deleted, err := s.repo.DeleteSession(ctx, id.UserID, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	s.invalidate(ctx, studentIDs...)
	return nil
}

// Student returns the profile behind a roll number, subject to access control.
func (s *Service) Student(ctx context.Context, id auth.Identity, rollNumber, section string) (Student, error) {
	rollNumber = strings.TrimSpace(rollNumber)
	if rollNumber == "" {
		return Student{}, fmt.Errorf("%w: roll number required", ErrValidation)
	}
	if err := id.CanViewStudent(rollNumber); err != nil {
		return Student{}, err
	}
	st, err := s.repo.FindStudentByRoll(ctx, rollNumber, id.StudentScope(strings.TrimSpace(section)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, fmt.Errorf("student %s: %w", rollNumber, ErrNotFound)
		}
		return Student{}, fmt.Errorf("find student: %w", err)
	}
	return st, nil
}

// StudentHistory returns a student's rows in chronological order.
func (s *Service) StudentHistory(ctx context.Context, id auth.Identity, rollNumber, section string) (History, error) {
	st, err := s.Student(ctx, id, rollNumber, section)
	if err != nil {
		return History{}, err
	}
	entries, err := s.repo.StudentHistory(ctx, st.ID)
	if err != nil {
		return History{}, fmt.Errorf("student history: %w", err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return History{Student: st, History: entries}, nil
}

// Metrics returns a student's attendance percentage, where late counts as attended.
func (s *Service) Metrics(ctx context.Context, id auth.Identity, rollNumber, section string) (Metrics, error) {
	st, err := s.Student(ctx, id, rollNumber, section)
	if err != nil {
		return Metrics{}, err
	}
	if m, ok, err := s.cache.Get(ctx, st.ID); err != nil {
		log.Printf("metrics cache get %s: %v", st.ID, err)
	} else if ok {
		return m, nil
	}
	return s.RefreshMetrics(ctx, st.ID)
}

// RefreshMetrics recomputes a student's metrics and stores them in the cache.
// If an invalidation lands while the counts are computed, the stored entry
// is dropped again so the next read recomputes.
func (s *Service) RefreshMetrics(ctx context.Context, studentID string) (Metrics, error) {
	epoch := s.invalidations.Load()
	m, err := s.repo.StudentCounts(ctx, studentID)
	if err != nil {
		return Metrics{}, err
	}
	m.OverallPercentage = percentage(m.Present+m.Late, m.Total)
	if err := s.cache.Set(ctx, studentID, m); err != nil {
		log.Printf("metrics cache set %s: %v", studentID, err)
	}
	if s.invalidations.Load() != epoch {
		if err := s.cache.Invalidate(ctx, studentID); err != nil {
			log.Printf("metrics cache invalidate %s: %v", studentID, err)
		}
	}
	return m, nil
}

func percentage(attended, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(attended) / float64(total) * 100
	return math.Round(p*100) / 100
}

// SessionStudents lists the ids of students recorded in a session.
func (s *Service) SessionStudents(ctx context.Context, sessionID string) ([]string, error) {
	return s.repo.SessionStudentIDs(ctx, sessionID)
}

// ListStudents returns the roster, optionally for one section. Teachers only.
func (s *Service) ListStudents(ctx context.Context, id auth.Identity, section string) ([]Student, error) {
	if err := id.RequireTeacher(); err != nil {
		return nil, err
	}
	res, err := s.repo.ListStudents(ctx, strings.TrimSpace(section))
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if res == nil {
		res = []Student{}
	}
	return res, nil
}

// AddStudent creates a roster entry. The optional extend hook runs in the
// same transaction, so a login created alongside the student commits or
// rolls back with it.
func (s *Service) AddStudent(ctx context.Context, id auth.Identity, ns NewStudent, extend func(ctx context.Context, tx *sqlx.Tx, st Student) error) (Student, error) {
	if err := id.RequireTeacher(); err != nil {
		return Student{}, err
	}
	st := Student{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(ns.Name),
		RollNumber: strings.TrimSpace(ns.RollNumber),
		Section:    strings.TrimSpace(ns.Section),
		Email:      optional(ns.Email),
		USN:        optional(ns.USN),
		Semester:   optional(ns.Semester),
		CreatedAt:  s.now().UTC(),
	}
	if st.Name == "" || st.RollNumber == "" || st.Section == "" {
		return Student{}, fmt.Errorf("%w: name, rollNumber and section are required", ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.repo.studentID(ctx, tx, st.RollNumber, st.Section); err == nil {
			return fmt.Errorf("%w: roll %s already exists in section %s", ErrConflict, st.RollNumber, st.Section)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := s.repo.InsertStudent(ctx, tx, st); err != nil {
			return fmt.Errorf("insert student: %w", err)
		}
		if extend != nil {
			return extend(ctx, tx, st)
		}
		return nil
	})
	if err != nil {
		return Student{}, err
	}
	return st, nil
}

// DeleteStudent removes a student with their attendance rows and login. Teachers only.
func (s *Service) DeleteStudent(ctx context.Context, id auth.Identity, studentID string) error {
	if err := id.RequireTeacher(); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteStudent(ctx, studentID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if !deleted {
		return fmt.Errorf("student %s: %w", studentID, ErrNotFound)
	}
	s.invalidate(ctx, studentID)
	return nil
}

// Self resolves the calling student's own row.
func (s *Service) Self(ctx context.Context, id auth.Identity) (Student, error) {
	if !id.IsStudent() {
		return Student{}, ErrForbidden
	}
	return s.Student(ctx, id, id.RollNumber, id.Section)
}

// UpdateProfile changes the calling student's editable fields.
func (s *Service) UpdateProfile(ctx context.Context, id auth.Identity, u ProfileUpdate) (Student, error) {
	st, err := s.Self(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return Student{}, fmt.Errorf("%w: name cannot be blank", ErrValidation)
	}
	if err := s.repo.UpdateProfile(ctx, st.ID, u); err != nil {
		return Student{}, fmt.Errorf("update profile: %w", err)
	}
	return s.repo.GetStudent(ctx, st.ID)
}

// UpdatePhoto stores the calling student's uploaded photo URL.
func (s *Service) UpdatePhoto(ctx context.Context, id auth.Identity, photoURL string) (Student, error) {
	st, err := s.Self(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err := s.repo.UpdatePhoto(ctx, st.ID, photoURL); err != nil {
		return Student{}, fmt.Errorf("update photo: %w", err)
	}
	return s.repo.GetStudent(ctx, st.ID)
}

// UpdateFaceToken stores the calling student's encoded face descriptor.
func (s *Service) UpdateFaceToken(ctx context.Context, id auth.Identity, token string) error {
	st, err := s.Self(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateFaceToken(ctx, st.ID, token); err != nil {
		return fmt.Errorf("update face token: %w", err)
	}
	return nil
}

// EnrolledFaces returns students with a stored face descriptor.
func (s *Service) EnrolledFaces(ctx context.Context) ([]Student, error) {
	return s.repo.ListEnrolledFaces(ctx)
}

func (s *Service) invalidate(ctx context.Context, studentIDs ...string) {
	if len(studentIDs) == 0 {
		return
	}
	s.invalidations.Add(1)
	if err := s.cache.Invalidate(ctx, studentIDs...); err != nil {
		log.Printf("metrics cache invalidate: %v", err)
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
