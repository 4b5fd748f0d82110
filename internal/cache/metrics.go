package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rollbook/internal/attendance"
)

const defaultPrefix = "rollbook:metrics:"

// Memory is an in-process metrics cache for single-instance deployments and tests.
type Memory struct {
	ttl   time.Duration
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	m   attendance.Metrics
	exp time.Time
}

// NewMemory creates an in-process cache; ttl <= 0 keeps entries until invalidated.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, items: make(map[string]memoryItem), now: time.Now}
}

func (c *Memory) Get(_ context.Context, studentID string) (attendance.Metrics, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[studentID]
	if !ok {
		return attendance.Metrics{}, false, nil
	}
	if !it.exp.IsZero() && c.now().After(it.exp) {
		delete(c.items, studentID)
		return attendance.Metrics{}, false, nil
	}
	return it.m, true, nil
}

func (c *Memory) Set(_ context.Context, studentID string, m attendance.Metrics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := memoryItem{m: m}
	if c.ttl > 0 {
		it.exp = c.now().Add(c.ttl)
	}
	c.items[studentID] = it
	return nil
}

func (c *Memory) Invalidate(_ context.Context, studentIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range studentIDs {
		delete(c.items, id)
	}
	return nil
}

// Redis keeps metrics as JSON strings with a TTL so several API instances and
// the worker share one view.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a redis-backed metrics cache.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: defaultPrefix, ttl: ttl}
}

func (c *Redis) key(studentID string) string { return c.prefix + studentID }

func (c *Redis) Get(ctx context.Context, studentID string) (attendance.Metrics, bool, error) {
	raw, err := c.client.Get(ctx, c.key(studentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return attendance.Metrics{}, false, nil
		}
		return attendance.Metrics{}, false, err
	}
	var m attendance.Metrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return attendance.Metrics{}, false, err
	}
	return m, true, nil
}

func (c *Redis) Set(ctx context.Context, studentID string, m attendance.Metrics) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(studentID), raw, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	keys := make([]string, len(studentIDs))
	for i, id := range studentIDs {
		keys[i] = c.key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
