package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AdminHandler holds the operator escape hatches.
type AdminHandler struct {
	Repo  calls.Repository
	Audit *audit.Service
}

// ResetEnrichment handles POST /v1/admin/calls/:call_id/enrichment/reset.
// It re-arms enrichment for a call whose branches failed (state stuck at
// pending) or whose results need regenerating (done). A record already at
// none has nothing to reset and answers 409.
func (h AdminHandler) ResetEnrichment(c *gin.Context) {
	operatorID, err := auth.AccountID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	callID := c.Param("call_id")
	ok, err := h.Repo.ResetEnrichment(c.Request.Context(), callID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		logger.FromGin(c).Error("enrichment reset failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "enrichment not active"})
		return
	}

	logger.FromGin(c).Info("enrichment reset", "call_id", callID, "operator", operatorID)
	if h.Audit != nil {
		_ = h.Audit.LogEnrichmentReset(c.Request.Context(), operatorID, callID)
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}
