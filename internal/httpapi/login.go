package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/lockout"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// LockoutGuard is what the login flow needs from the failed-login guard.
// *lockout.Guard satisfies it.
type LockoutGuard interface {
	CheckLockout(ctx context.Context, accountKey string) lockout.Status
	RecordFailure(ctx context.Context, accountKey string) lockout.Status
	Clear(ctx context.Context, accountKey string)
}

// LoginHandler authenticates accounts against the external session service,
// gated by the lockout guard.
//
// Failure accounting rule: only a definitive credential rejection counts as a
// failed attempt. Session-service outages return 503 and leave the streak
// untouched.
type LoginHandler struct {
	Verifier auth.CredentialVerifier
	Guard    LockoutGuard
	Tokens   *auth.Manager
	Audit    *audit.Service
}

type loginRequest struct {
	AccountKey string `json:"account_key"`
	Password   string `json:"password"`
}

// Login handles POST /v1/auth/login.
func (h LoginHandler) Login(c *gin.Context) {
	log := logger.FromGin(c)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AccountKey == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "account_key and password are required"})
		return
	}

	key := lockout.NormalizeKey(req.AccountKey)
	ctx := c.Request.Context()

	if st := h.Guard.CheckLockout(ctx, key); st.Locked {
		lockedResponse(c, st)
		return
	}

	accountID, err := h.Verifier.Verify(ctx, key, req.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrBadCredentials) {
			log.Error("credential verification unavailable", "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "verification unavailable"})
			return
		}

		st := h.Guard.RecordFailure(ctx, key)
		if st.Locked {
			log.Warn("account locked after repeated failures")
			if h.Audit != nil {
				_ = h.Audit.LogAccountLocked(ctx, key, c.ClientIP())
			}
			lockedResponse(c, st)
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":              "invalid credentials",
			"attempts_remaining": st.AttemptsRemaining,
		})
		return
	}

	h.Guard.Clear(ctx, key)

	pair, err := h.Tokens.IssuePair(time.Now().UTC(), accountID)
	if err != nil {
		log.Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func lockedResponse(c *gin.Context, st lockout.Status) {
	retryAfter := int(st.Remaining.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":               "account temporarily locked",
		"retry_after_seconds": retryAfter,
	})
}
