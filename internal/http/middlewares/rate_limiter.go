package middlewares

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/campuskit/schoolhub/internal/redisclient"
	"github.com/gin-gonic/gin"
)

// WindowStore counts hits per key inside a fixed window. Implementations:
// in-process map (single instance) and redis (shared across instances).
type WindowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, retryAfter time.Duration, err error)
}

type RateLimiter struct {
	store  WindowStore
	window time.Duration
	limit  int
}

func NewRateLimiter(store WindowStore, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

// Middleware enforces the rate limit for a derived key.

func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived

			key = clientIP(c)
		}

		count, retryAfter, err := rl.store.Incr(c.Request.Context(), "rl:"+key, rl.window)

		if err != nil {
			// fail open rather than lock everyone out on a store hiccup
			c.Next()
			return
		}

		if count > rl.limit {
			secs := int(retryAfter.Seconds())

			if secs < 0 {
				secs = 0
			}

			c.Header("Retry-After", strconv.Itoa(secs))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "Too many requests. Please try again shortly.",
				},
			})

			return
		}

		c.Next()
	}
}

// MemoryWindowStore is the single-instance fallback when redis is not
// configured.
type MemoryWindowStore struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{clients: make(map[string]*clientBucket)}
}

func (s *MemoryWindowStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.clients[key]

	if !ok || now.After(b.windowEnd) {
		s.clients[key] = &clientBucket{
			count:     1,
			windowEnd: now.Add(window),
		}

		return 1, window, nil
	}

	b.count++

	return b.count, time.Until(b.windowEnd), nil
}

// RedisWindowStore shares the window across all API instances.
type RedisWindowStore struct {
	client *redisclient.Client
}

func NewRedisWindowStore(client *redisclient.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (s *RedisWindowStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	count, ttl, err := s.client.IncrWindow(ctx, key, window)

	return int(count), ttl, err
}

// helper functions

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available

func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
