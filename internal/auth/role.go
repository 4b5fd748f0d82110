package auth

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when an identity may not access a resource.
var ErrForbidden = errors.New("forbidden")

// Role is the closed set of caller roles.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole maps a stored or claimed role string onto a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// Identity is the trusted caller handed to the core by the auth layer.
// RollNumber and Section are only set for students.
type Identity struct {
	UserID     string `json:"id"`
	Role       Role   `json:"role"`
	Name       string `json:"name,omitempty"`
	RollNumber string `json:"roll_number,omitempty"`
	Section    string `json:"section,omitempty"`
}

func (id Identity) IsStudent() bool { return id.Role == RoleStudent }

// CanViewStudent allows teachers to read any student and students only
// their own roll number.
func (id Identity) CanViewStudent(rollNumber string) error {
	switch id.Role {
	case RoleTeacher:
		return nil
	case RoleStudent:
		if id.RollNumber != "" && id.RollNumber == rollNumber {
			return nil
		}
	}
	return ErrForbidden
}

// RequireTeacher rejects anything but a teacher identity.
func (id Identity) RequireTeacher() error {
	if id.Role != RoleTeacher || id.UserID == "" {
		return ErrForbidden
	}
	return nil
}

// StudentScope narrows a roll lookup to the caller's own section when the
// caller is a student, so a roll number repeated in another section stays hidden.
func (id Identity) StudentScope(section string) string {
	if id.Role == RoleStudent && id.Section != "" {
		return id.Section
	}
	return section
}
