package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env         string
	HTTPPort    string
	FrontendDir string

	DBDriver    string
	DatabaseURL string
	RedisAddr   string

	QueueBackend     string
	CacheBackend     string
	MetricsCacheTTL  time.Duration
	RateLimitBackend string
	RateLimitPerMin  int

	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration
	CookieSecure  bool

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	FaceServiceURL         string
	FaceMatchThreshold     float64
	LowAttendanceThreshold float64

	SeedDemo bool
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory (or the path in ENV_FILE) is applied first when present.
func Load() App {
	loadDotEnv(getEnv("ENV_FILE", ".env"))

	return App{
		Env:         getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8081"),
		FrontendDir: getEnv("FRONTEND_DIR", "web"),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL: getEnv("DATABASE_URL", "./data/rollbook.db"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		QueueBackend:     getEnv("QUEUE_BACKEND", "memory"),
		CacheBackend:     getEnv("CACHE_BACKEND", "memory"),
		MetricsCacheTTL:  durationEnv("METRICS_CACHE_TTL", 10*time.Minute),
		RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "memory"),
		RateLimitPerMin:  intEnv("RATE_LIMIT_PER_MIN", 120),

		JWTIssuer:     getEnv("JWT_ISSUER", "rollbook"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:     durationEnv("ACCESS_TTL", 12*time.Hour),
		CookieSecure:  boolEnv("COOKIE_SECURE", false),

		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "rollbook/students"),

		FaceServiceURL:         getEnv("FACE_SERVICE_URL", ""),
		FaceMatchThreshold:     floatEnv("FACE_MATCH_THRESHOLD", 0.6),
		LowAttendanceThreshold: floatEnv("LOW_ATTENDANCE_THRESHOLD", 75),

		SeedDemo: boolEnv("SEED_DEMO", false),
	}
}

// Production reports whether the app runs with production settings.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// UsesRedis reports whether any backend needs a redis connection.
func (a App) UsesRedis() bool {
	return a.QueueBackend == "redis" || a.CacheBackend == "redis" || a.RateLimitBackend == "redis"
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: stat %s: %v", path, err)
		}
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("config: load %s: %v", path, err)
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func floatEnv(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return parsed
		}
		log.Printf("invalid float for %s, using fallback %v", key, fallback)
	}
	return fallback
}
