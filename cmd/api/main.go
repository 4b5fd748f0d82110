package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rollbook/internal/account"
	"rollbook/internal/api"
	"rollbook/internal/attendance"
	"rollbook/internal/cache"
	"rollbook/internal/cloudinary"
	"rollbook/internal/config"
	"rollbook/internal/faceclient"
	"rollbook/internal/facematch"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/queue"
	"rollbook/internal/store"
	"rollbook/internal/worker"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	var redisClient *store.Redis
	if cfg.UsesRedis() {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			log.Printf("warning: redis not reachable at %s", cfg.RedisAddr)
		}
	}

	var q queue.Queue
	switch cfg.QueueBackend {
	case "redis":
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	case "none":
		q = queue.Nop{}
	default:
		q = queue.NewInMemory(64)
	}

	var metricsCache attendance.MetricsCache
	switch cfg.CacheBackend {
	case "redis":
		metricsCache = cache.NewRedis(redisClient.Client, cfg.MetricsCacheTTL)
	case "none":
	default:
		metricsCache = cache.NewMemory(cfg.MetricsCacheTTL)
	}

	var limiter httpmiddleware.Limiter
	switch {
	case cfg.RateLimitPerMin <= 0:
	case cfg.RateLimitBackend == "redis":
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	default:
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	att := attendance.NewService(attendance.NewRepository(db.Client), attendance.WithCache(metricsCache))
	accounts := account.NewService(db.Client, att, facematch.NewMatcher(cfg.FaceMatchThreshold))

	if cfg.SeedDemo {
		if err := accounts.SeedDemo(ctx); err != nil {
			log.Printf("seed demo accounts failed: %v", err)
		}
	}

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	var faces api.Embedder
	if cfg.FaceServiceURL != "" {
		fc := faceclient.New(cfg.FaceServiceURL, 30*time.Second)
		if err := fc.Health(ctx); err != nil {
			log.Printf("WARNING: Face service not available: %v", err)
		} else {
			log.Println("Face service connected")
		}
		faces = fc
	}

	// The in-memory queue only reaches a worker in this process.
	if mem, ok := q.(*queue.InMemory); ok {
		p := worker.NewProcessor(att, cfg.LowAttendanceThreshold)
		go func() {
			if err := p.Run(ctx, mem); err != nil {
				log.Printf("in-process worker: %v", err)
			}
		}()
	}

	r := api.NewRouter(api.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      redisClient,
		Attendance: att,
		Accounts:   accounts,
		Queue:      q,
		Limiter:    limiter,
		Uploads:    cdnClient,
		Faces:      faces,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (db=%s)", cfg.HTTPPort, db.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
