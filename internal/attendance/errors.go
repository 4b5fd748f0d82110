package attendance

import (
	"errors"

	"rollbook/internal/auth"
)

var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing session or student.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation such as a duplicate roll number in a section.
	ErrConflict = errors.New("conflict")
	// ErrForbidden marks a role or ownership mismatch.
	ErrForbidden = auth.ErrForbidden
)
