package httpapi

import (
	"context"
	"net/http"

	"callbridge/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// UsageLimiter is what the usage endpoints need from the rate limiter.
// *ratelimit.Limiter satisfies it.
type UsageLimiter interface {
	Check(ctx context.Context, addr string) ratelimit.Result
	Consume(ctx context.Context, addr string, seconds int) ratelimit.Result
}

// UsageHandler exposes the per-address call-time window.
//
// The limiter is advisory: a limited caller still gets 200 with limited=true,
// and the client decides whether to refuse new calls.
type UsageHandler struct {
	Limiter UsageLimiter
}

// GetUsage handles GET /usage.
func (h UsageHandler) GetUsage(c *gin.Context) {
	res := h.Limiter.Check(c.Request.Context(), c.ClientIP())
	c.JSON(http.StatusOK, res)
}

type reportUsageRequest struct {
	Seconds int `json:"seconds"`
}

// ReportUsage handles POST /usage. Seconds are clamped server-side; a caller
// cannot burn more than the per-report cap in one request.
func (h UsageHandler) ReportUsage(c *gin.Context) {
	var req reportUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	res := h.Limiter.Consume(c.Request.Context(), c.ClientIP(), req.Seconds)
	c.JSON(http.StatusOK, res)
}
