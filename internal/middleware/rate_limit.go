package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"recon-engine/internal/utils"
	"recon-engine/pkg/response"
)

// RateLimiterConfig configures per-client request limiting.
type RateLimiterConfig struct {
	// RPM is the sustained requests-per-minute limit.
	RPM int `json:"rpm"`
	// Burst is the short-term burst allowance.
	Burst int `json:"burst"`
	// CleanupInterval bounds how long idle clients stay tracked.
	CleanupInterval time.Duration `json:"cleanupInterval"`
}

// DefaultRateLimiterConfig returns the default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RPM:             60,
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiter tracks one token bucket per client.
type RateLimiter struct {
	config   RateLimiterConfig
	clients  map[string]*clientLimiter
	mutex    sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RPM <= 0 {
		config.RPM = 60
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		config:   config,
		clients:  make(map[string]*clientLimiter),
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop terminates the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// RateLimit is the gin middleware enforcing the limit.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rl.clientFor(clientID(c))
		if !client.Allow() {
			correlationID := c.GetString(CorrelationIDKey)
			c.JSON(http.StatusTooManyRequests, response.ErrorResponse(
				utils.ErrCodeRateLimitExceeded,
				"Rate limit exceeded. Please try again later.",
				fmt.Sprintf("maximum %d requests per minute allowed", rl.config.RPM),
				correlationID,
			))
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.RPM))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(client.Tokens())))
		c.Next()
	}
}

func (rl *RateLimiter) clientFor(id string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cl, ok := rl.clients[id]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.config.RPM)), rl.config.Burst),
		}
		rl.clients[id] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// clientID identifies the caller: authenticated user first, then API
// key, then client IP.
func clientID(c *gin.Context) string {
	if userID, ok := c.Get("user_id"); ok {
		if id, ok := userID.(string); ok {
			return "user:" + id
		}
	}
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		return "apikey:" + apiKey
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mutex.Lock()
			now := time.Now()
			for id, cl := range rl.clients {
				if now.Sub(cl.lastSeen) > rl.config.CleanupInterval {
					delete(rl.clients, id)
				}
			}
			rl.mutex.Unlock()
		case <-rl.stopChan:
			return
		}
	}
}

// RateLimitStats reports the current tracking state.
type RateLimitStats struct {
	ActiveClients int               `json:"active_clients"`
	Config        RateLimiterConfig `json:"config"`
}

// GetStats returns current rate limiting statistics.
func (rl *RateLimiter) GetStats() RateLimitStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return RateLimitStats{
		ActiveClients: len(rl.clients),
		Config:        rl.config,
	}
}
