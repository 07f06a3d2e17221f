package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"recordproof/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	routeRecordsRead  = "records:read"
	routeRecordsWrite = "records:write"
	routeExport       = "export"
	routeKeysRead     = "keys:read"
)

func (s *Server) limit(routeID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.enforceRateLimit(c, routeID) {
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) enforceRateLimit(c *gin.Context, routeID string) bool {
	if s.rateLimiter == nil || s.rateQuota.Unlimited() {
		return true
	}
	caller := fmt.Sprintf("client:%s:endpoint:%s", c.ClientIP(), routeID)

	admission, err := s.rateLimiter.Admit(c.Request.Context(), caller, s.rateQuota)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", zap.String("route", routeID), zap.Error(err))
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, admission, time.Now())
	if !admission.Admitted {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, admission domain.Admission, now time.Time) {
	if admission.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(admission.Limit))
	}
	if admission.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(admission.Remaining))
	}
	if admission.ResetAt.IsZero() {
		return
	}
	c.Header("RateLimit-Reset", strconv.FormatInt(admission.ResetAt.Unix(), 10))
	if !admission.Admitted {
		c.Header("Retry-After", strconv.Itoa(int(admission.RetryAfter(now)/time.Second)))
	}
}
