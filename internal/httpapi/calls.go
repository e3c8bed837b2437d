package httpapi

import (
	"errors"
	"net/http"

	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallsHandler serves the authenticated client-side call endpoints.
type CallsHandler struct {
	Reconciler *calls.Reconciler
	Repo       calls.Repository
}

type startCallRequest struct {
	Provider       string `json:"provider"`
	ProviderCallID string `json:"provider_call_id"`
	SessionType    string `json:"session_type"`
}

// StartCall handles POST /v1/calls/start: the client's early write, issued
// before any webhook can land. It commutes with webhook writes, so calling it
// late (or twice) is harmless.
func (h CallsHandler) StartCall(c *gin.Context) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	provider := calls.Provider(req.Provider)
	if !provider.Valid() || req.ProviderCallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "provider and provider_call_id are required"})
		return
	}

	sessionType := calls.SessionType(req.SessionType)
	switch sessionType {
	case "":
		sessionType = calls.SessionVoice
	case calls.SessionVoice, calls.SessionText:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "session_type must be voice or text"})
		return
	}

	res, err := h.Reconciler.StartCall(c.Request.Context(), provider, req.ProviderCallID, accountID, sessionType)
	if err != nil {
		if errors.Is(err, calls.ErrInvalidEvent) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call"})
			return
		}
		logger.FromGin(c).Error("start call failed", "provider", provider, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	status := http.StatusOK
	if res.Outcome == calls.OutcomeCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"call_id": res.CallID,
		"outcome": res.Outcome,
	})
}

// GetCall handles GET /v1/calls/:call_id. A record owned by a different
// account reads as absent.
func (h CallsHandler) GetCall(c *gin.Context) {
	accountID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	rec, err := h.Repo.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		logger.FromGin(c).Error("get call failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if rec.AccountID != accountID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}
