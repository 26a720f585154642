package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rbrabson/chronicles/pkg/metrics"
	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const apiKeyHeader = "X-API-Key"

var openAPIWarning sync.Once

// APIKeyAuth rejects requests without the expected X-API-Key header. With no key configured
// every request is let through.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			openAPIWarning.Do(func() {
				log.Warn("API_KEY is not set, the API is open to everyone")
			})
			c.Next()
			return
		}
		got := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			log.WithFields(log.Fields{"ip": c.ClientIP(), "path": c.Request.URL.Path}).Warn("unauthorized API request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RateLimiter is a fixed-window rate limiter kept in Redis.
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter connects to Redis. When addr is empty or Redis cannot be reached the limiter
// lets every request through.
func NewRateLimiter(addr, password string, db int) *RateLimiter {
	if addr == "" {
		return &RateLimiter{}
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithFields(log.Fields{"addr": addr, "error": err}).Warn("redis unavailable, API rate limiting disabled")
		client.Close()
		return &RateLimiter{}
	}
	return &RateLimiter{client: client}
}

// Close releases the Redis connection.
func (l *RateLimiter) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

// Middleware allows at most maxRequests per client IP in every window.
// Keys have the form rl:<window_seconds>:<ip>.
func (l *RateLimiter) Middleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.client == nil {
			c.Next()
			return
		}

		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		ctx := c.Request.Context()

		val, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			l.client.Expire(ctx, key, window)
		}
		if val > int64(maxRequests) {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("API request")
	}
}
