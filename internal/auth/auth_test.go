package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "rollbook-test"
)

func TestCanViewStudent(t *testing.T) {
	teacher := Identity{UserID: "t1", Role: RoleTeacher}
	student := Identity{UserID: "u7", Role: RoleStudent, RollNumber: "7", Section: "A"}

	assert.NoError(t, teacher.CanViewStudent("9"))
	assert.NoError(t, student.CanViewStudent("7"))

	err := student.CanViewStudent("9")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for roll 9, got %v", err)
	}

	anonymous := Identity{Role: RoleStudent}
	assert.ErrorIs(t, anonymous.CanViewStudent(""), ErrForbidden)
}

func TestStudentScope(t *testing.T) {
	student := Identity{Role: RoleStudent, RollNumber: "7", Section: "A"}
	teacher := Identity{Role: RoleTeacher}

	assert.Equal(t, "A", student.StudentScope("B"))
	assert.Equal(t, "B", teacher.StudentScope("B"))
	assert.Equal(t, "", teacher.StudentScope(""))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Teacher ")
	assert.True(t, ok)
	assert.Equal(t, RoleTeacher, r)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}

func TestIssueAndParse(t *testing.T) {
	id := Identity{UserID: "u7", Role: RoleStudent, Name: "Asha", RollNumber: "7", Section: "A"}
	tok, err := Issue(id, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.After(time.Now()))

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	got, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Parse(tok.AccessToken, "wrong-key", testIssuer)
	assert.Error(t, err)

	_, err = Parse(tok.AccessToken, testKey, "other-issuer")
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	tok, err := Issue(Identity{UserID: "t1", Role: RoleTeacher}, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)

	_, err = Parse(tok.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "nope"))
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teacher", Authenticate(testKey, testIssuer), RequireRole(RoleTeacher), func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.String(http.StatusOK, id.UserID)
	})
	return r
}

func TestAuthenticateMiddleware(t *testing.T) {
	r := newAuthRouter()

	teacherTok, err := Issue(Identity{UserID: "t1", Role: RoleTeacher}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	studentTok, err := Issue(Identity{UserID: "s1", Role: RoleStudent, RollNumber: "1"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "teacher bearer", header: "Bearer " + teacherTok.AccessToken, status: http.StatusOK},
		{name: "teacher cookie", cookie: teacherTok.AccessToken, status: http.StatusOK},
		{name: "student", header: "Bearer " + studentTok.AccessToken, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
