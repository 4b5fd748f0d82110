package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollbook/internal/attendance"
	"rollbook/internal/cache"
	"rollbook/internal/config"
	"rollbook/internal/queue"
	"rollbook/internal/store"
	"rollbook/internal/worker"
)

// Worker consumes session.recorded messages from redis, refreshes cached
// metrics and reports students under the low attendance threshold.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis (got %q); the memory queue is consumed inside the api process", cfg.QueueBackend)
	}

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not reachable at %s, will keep retrying", cfg.RedisAddr)
	}

	var opts []attendance.Option
	if cfg.CacheBackend == "redis" {
		opts = append(opts, attendance.WithCache(cache.NewRedis(redisClient.Client, cfg.MetricsCacheTTL)))
	}
	att := attendance.NewService(attendance.NewRepository(db.Client), opts...)

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	p := worker.NewProcessor(att, cfg.LowAttendanceThreshold)
	if err := p.Run(ctx, q); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}
