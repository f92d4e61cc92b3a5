package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/metrics"
)

// Window is one rate limit rule: at most Limit requests per Period.
type Window struct {
	Period time.Duration
	Limit  int
}

// Decision is the outcome of a rate limit check. Limit, Remaining and Reset
// describe the window that rejected the request, or the tightest window when
// it was allowed.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
	Period    time.Duration
}

// Limiter counts requests per client key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// WindowsFromConfig builds the per-minute and per-hour windows. A limit of
// zero disables that window.
func WindowsFromConfig(perMinute, perHour int) []Window {
	var windows []Window
	if perMinute > 0 {
		windows = append(windows, Window{Period: time.Minute, Limit: perMinute})
	}
	if perHour > 0 {
		windows = append(windows, Window{Period: time.Hour, Limit: perHour})
	}
	return windows
}

// RateLimiter enforces a Limiter on gin routes, keyed by client IP
type RateLimiter struct {
	limiter Limiter
	logger  *slog.Logger
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(limiter Limiter, l *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		logger:  logger.OrDefault(l),
	}
}

// RateLimitMiddleware returns a Gin middleware that enforces rate limiting
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		decision, err := rl.limiter.Allow(c.Request.Context(), clientIP)
		if err != nil {
			// fail open: a broken limiter backend must not take the service down
			metrics.RateLimitErrors.Inc()
			rl.logger.WarnContext(c.Request.Context(), "rate limit check failed",
				"client_ip", clientIP,
				"error", err)
			c.Header("X-RateLimit-Error", "rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if !decision.Allowed {
			metrics.RateLimitRejects.Inc()
			retryAfter := int(time.Until(decision.Reset).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			rl.logger.InfoContext(c.Request.Context(), "rate limit exceeded",
				"client_ip", clientIP,
				"limit", decision.Limit,
				"period", decision.Period.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   fmt.Sprintf("Has superado el límite de %d solicitudes por %s. Inténtalo más tarde.", decision.Limit, periodName(decision.Period)),
			})
			return
		}

		c.Next()
	}
}

func periodName(d time.Duration) string {
	switch d {
	case time.Minute:
		return "minuto"
	case time.Hour:
		return "hora"
	default:
		return d.String()
	}
}

// tightest picks the decision with the fewest remaining requests.
func tightest(decisions []Decision) Decision {
	best := decisions[0]
	for _, d := range decisions[1:] {
		if d.Remaining < best.Remaining {
			best = d
		}
	}
	return best
}
