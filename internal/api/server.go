package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollbook/internal/account"
	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/cloudinary"
	"rollbook/internal/config"
	"rollbook/internal/faceclient"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/queue"
	"rollbook/internal/store"
	"rollbook/internal/telemetry"
)

// Embedder turns an uploaded photo into a face descriptor.
type Embedder interface {
	Embed(ctx context.Context, imageURL string) (faceclient.Embedding, error)
	Health(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer needs. Redis, Limiter, Uploads
// and Faces may be nil.
type Deps struct {
	Config     config.App
	DB         *store.DB
	Redis      *store.Redis
	Attendance *attendance.Service
	Accounts   *account.Service
	Queue      queue.Queue
	Limiter    httpmiddleware.Limiter
	Uploads    *cloudinary.Client
	Faces      Embedder
}

// Handler serves the JSON API.
type Handler struct {
	cfg      config.App
	db       *store.DB
	redis    *store.Redis
	att      *attendance.Service
	accounts *account.Service
	queue    queue.Queue
	uploads  *cloudinary.Client
	faces    Embedder
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	registerValidators()

	q := d.Queue
	if q == nil {
		q = queue.Nop{}
	}
	h := &Handler{
		cfg:      d.Config,
		db:       d.DB,
		redis:    d.Redis,
		att:      d.Attendance,
		accounts: d.Accounts,
		queue:    q,
		uploads:  d.Uploads,
		faces:    d.Faces,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(telemetry.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	if d.Limiter != nil {
		api.Use(httpmiddleware.RateLimit(d.Limiter))
	}

	api.POST("/auth/login", h.Login)
	api.POST("/auth/face-login", h.FaceLogin)
	api.POST("/auth/logout", h.Logout)

	authed := api.Group("", auth.Authenticate(d.Config.JWTSigningKey, d.Config.JWTIssuer))
	authed.GET("/auth/me", h.Me)
	authed.GET("/students/:roll/history", h.StudentHistory)
	authed.GET("/student/attendance/metrics", h.StudentMetrics)
	authed.GET("/student/profile", h.Profile)

	teacher := authed.Group("", auth.RequireRole(auth.RoleTeacher))
	teacher.POST("/attendance", h.RecordAttendance)
	teacher.GET("/sessions", h.ListSessions)
	teacher.GET("/sessions/:id", h.SessionDetail)
	teacher.DELETE("/sessions/:id", h.DeleteSession)
	teacher.GET("/students", h.ListStudents)
	teacher.POST("/students", h.AddStudent)
	teacher.DELETE("/students/:id", h.DeleteStudent)

	student := authed.Group("", auth.RequireRole(auth.RoleStudent))
	student.PUT("/student/profile", h.UpdateProfile)
	student.POST("/student/photo", h.UploadPhoto)
	student.PUT("/student/face", h.EnrollFace)

	mountFrontend(r, d.Config.FrontendDir)
	return r
}

func mountFrontend(r *gin.Engine, dir string) {
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return
	}
	r.StaticFile("/", index)
	if st, err := os.Stat(filepath.Join(dir, "static")); err == nil && st.IsDir() {
		r.Static("/static", filepath.Join(dir, "static"))
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.db.Healthy(ctx)
	body := gin.H{"status": "ok", "db": dbHealthy}
	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		if !redisHealthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	if h.faces != nil {
		body["face_service"] = h.faces.Health(ctx) == nil
	}
	c.JSON(status, body)
}
