package account

import (
	"context"
	"errors"
	"log"

	"rollbook/internal/attendance"
	"rollbook/internal/auth"
)

// Demo accounts created by SeedDemo.
const (
	DemoTeacherEmail    = "teacher@demo.local"
	DemoTeacherPassword = "teacher123"
	DemoStudentEmail    = "student@demo.local"
	DemoStudentPassword = "student123"
)

// SeedDemo creates a demo teacher and a demo student (roll 1, section A)
// unless their emails are already registered.
func (s *Service) SeedDemo(ctx context.Context) error {
	if _, err := s.CreateTeacher(ctx, "Demo Teacher", DemoTeacherEmail, DemoTeacherPassword, "Science"); err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			return err
		}
	} else {
		log.Printf("seeded demo teacher %s", DemoTeacherEmail)
	}

	seeder := auth.Identity{UserID: "seed", Role: auth.RoleTeacher}
	_, err := s.students.AddStudent(ctx, seeder, attendance.NewStudent{
		Name:       "Demo Student",
		RollNumber: "1",
		Section:    "A",
		Email:      DemoStudentEmail,
	}, s.StudentLogin(DemoStudentEmail, DemoStudentPassword))
	switch {
	case err == nil:
		log.Printf("seeded demo student %s", DemoStudentEmail)
	case errors.Is(err, attendance.ErrConflict):
	default:
		return err
	}
	return nil
}
