package attendance

import (
	"strings"
	"time"
)

// Status is the state of one student within one session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// ParseStatus accepts a status case-insensitively.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPresent:
		return StatusPresent, true
	case StatusAbsent:
		return StatusAbsent, true
	case StatusLate:
		return StatusLate, true
	}
	return "", false
}

// Student is identified for resolution by (RollNumber, Section).
type Student struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	RollNumber string    `db:"roll_number" json:"roll_number"`
	Section    string    `db:"section" json:"section"`
	Email      *string   `db:"email" json:"email,omitempty"`
	PhotoURL   *string   `db:"photo_url" json:"photo_url,omitempty"`
	FaceToken  *string   `db:"face_token" json:"-"`
	USN        *string   `db:"usn" json:"usn,omitempty"`
	Semester   *string   `db:"semester" json:"semester,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// HasFace reports whether a face descriptor is enrolled.
func (s Student) HasFace() bool {
	return s.FaceToken != nil && *s.FaceToken != ""
}

// Session is one roll-call event. It is never updated after creation.
type Session struct {
	ID            string    `db:"id" json:"id"`
	TeacherName   string    `db:"teacher_name" json:"teacher_name"`
	Subject       string    `db:"subject" json:"subject"`
	Section       string    `db:"section" json:"section"`
	Date          string    `db:"date" json:"date"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	TeacherUserID string    `db:"teacher_user_id" json:"teacher_user_id"`
}

// SessionSummary is a session row in a teacher's list.
type SessionSummary struct {
	Session
	RecordCount int `db:"record_count" json:"record_count"`
}

// Record is one attendance row.
type Record struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Status    Status    `db:"status" json:"status"`
	MarkedAt  time.Time `db:"marked_at" json:"marked_at"`
}

// SessionRecord is an attendance row joined with its student.
type SessionRecord struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	Name       string    `db:"name" json:"name"`
	RollNumber string    `db:"roll_number" json:"roll_number"`
	Status     Status    `db:"status" json:"status"`
	MarkedAt   time.Time `db:"marked_at" json:"marked_at"`
}

// SessionDetail is a session plus its records ordered by roll number.
type SessionDetail struct {
	Session Session         `json:"session"`
	Records []SessionRecord `json:"records"`
}

// HistoryEntry is one attendance row of a student joined with its session.
type HistoryEntry struct {
	SessionID        string    `db:"session_id" json:"session_id"`
	Subject          string    `db:"subject" json:"subject"`
	Section          string    `db:"section" json:"section"`
	Date             string    `db:"date" json:"date"`
	TeacherName      string    `db:"teacher_name" json:"teacher_name"`
	SessionCreatedAt time.Time `db:"session_created_at" json:"session_created_at"`
	Status           Status    `db:"status" json:"status"`
	MarkedAt         time.Time `db:"marked_at" json:"marked_at"`
}

// History is a student with their chronological attendance.
type History struct {
	Student Student        `json:"student"`
	History []HistoryEntry `json:"history"`
}

// Metrics aggregates a student's attendance.
type Metrics struct {
	OverallPercentage float64 `json:"overall_percentage"`
	Total             int     `json:"total"`
	Present           int     `json:"present"`
	Late              int     `json:"late"`
	Absent            int     `json:"absent"`
}

// Entry is one student's status in a submission. Entries without a roll
// number or status are skipped.
type Entry struct {
	RollNumber string `json:"rollNumber"`
	Status     string `json:"status"`
	Name       string `json:"name,omitempty"`
}

// Submission is one teacher's roll call.
type Submission struct {
	TeacherName string  `json:"teacherName"`
	Subject     string  `json:"subject"`
	Section     string  `json:"section"`
	Date        string  `json:"date"`
	Students    []Entry `json:"students"`
}

// RecordResult reports the stored session and the input indexes that were skipped.
type RecordResult struct {
	SessionID  string   `json:"sessionId"`
	Recorded   int      `json:"recorded"`
	Skipped    []int    `json:"skipped"`
	StudentIDs []string `json:"-"`
}

// NewStudent is the teacher-facing "add student" input.
type NewStudent struct {
	Name       string
	RollNumber string
	Section    string
	Email      string
	USN        string
	Semester   string
}

// ProfileUpdate changes the editable fields of a student profile. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	USN      *string
	Semester *string
}
