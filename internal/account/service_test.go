package account

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/facematch"
	"rollbook/internal/store"
)

func setup(t *testing.T) (*Service, *attendance.Service) {
	t.Helper()
	db, err := store.NewDB(store.DriverSQLite, filepath.Join(t.TempDir(), "rollbook.db"))
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("setup() migrate failed: %v", err)
	}
	students := attendance.NewService(attendance.NewRepository(db.Client))
	return NewService(db.Client, students, facematch.NewMatcher(0)), students
}

func TestSeedDemoAndLogin(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedDemo(ctx))
	require.NoError(t, svc.SeedDemo(ctx), "seeding twice is a no-op")

	teacher, err := svc.Login(ctx, "Teacher@Demo.local ", DemoTeacherPassword)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleTeacher, teacher.Role)
	assert.Empty(t, teacher.RollNumber)

	student, err := svc.Login(ctx, DemoStudentEmail, DemoStudentPassword)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, student.Role)
	assert.Equal(t, "1", student.RollNumber)
	assert.Equal(t, "A", student.Section)

	_, err = svc.Login(ctx, DemoStudentEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@demo.local", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStudentLoginRollsBackWithStudent(t *testing.T) {
	svc, students := setup(t)
	ctx := context.Background()
	teacher := auth.Identity{UserID: "t1", Role: auth.RoleTeacher}

	_, err := students.AddStudent(ctx, teacher, attendance.NewStudent{Name: "Asha", RollNumber: "1", Section: "A"},
		svc.StudentLogin("asha@example.com", "secret1"))
	require.NoError(t, err)

	_, err = students.AddStudent(ctx, teacher, attendance.NewStudent{Name: "Other", RollNumber: "2", Section: "A"},
		svc.StudentLogin("asha@example.com", "secret2"))
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, attendance.ErrConflict)

	_, err = students.Student(ctx, teacher, "2", "A")
	assert.ErrorIs(t, err, attendance.ErrNotFound)

	_, err = students.AddStudent(ctx, teacher, attendance.NewStudent{Name: "Short", RollNumber: "3", Section: "A"},
		svc.StudentLogin("short@example.com", "123"))
	assert.ErrorIs(t, err, attendance.ErrValidation)
}

func TestDeleteStudentRemovesLogin(t *testing.T) {
	svc, students := setup(t)
	ctx := context.Background()
	teacher := auth.Identity{UserID: "t1", Role: auth.RoleTeacher}

	st, err := students.AddStudent(ctx, teacher, attendance.NewStudent{Name: "Asha", RollNumber: "1", Section: "A"},
		svc.StudentLogin("asha@example.com", "secret1"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, "asha@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, students.DeleteStudent(ctx, teacher, st.ID))
	_, err = svc.Login(ctx, "asha@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFaceLogin(t *testing.T) {
	svc, students := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.SeedDemo(ctx))

	me, err := svc.Login(ctx, DemoStudentEmail, DemoStudentPassword)
	require.NoError(t, err)

	enrolled := facematch.Descriptor{0.1, 0.2, 0.3, 0.4}
	token, err := enrolled.Encode()
	require.NoError(t, err)
	require.NoError(t, students.UpdateFaceToken(ctx, me, token))

	id, match, err := svc.FaceLogin(ctx, facematch.Descriptor{0.1, 0.2, 0.3, 0.45})
	require.NoError(t, err)
	assert.Equal(t, me, id)
	assert.InDelta(t, 0.05, match.Distance, 1e-9)

	_, _, err = svc.FaceLogin(ctx, facematch.Descriptor{3, 3, 3, 3})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.FaceLogin(ctx, facematch.Descriptor{})
	assert.ErrorIs(t, err, attendance.ErrValidation)
}
