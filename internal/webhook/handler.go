package webhook

import (
	"context"
	"errors"
	"net/http"

	"callbridge/internal/audit"
	"callbridge/internal/calls"
	"callbridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// EnrichmentScheduler is what the handler needs from the enrichment
// dispatcher; the at-most-once guard lives behind it.
type EnrichmentScheduler interface {
	MaybeDispatch(ctx context.Context, callID, transcript string) (bool, error)
}

// Handler serves the per-provider webhook endpoints.
//
// Response policy: providers retry on 5xx, so after a payload is accepted the
// handler always answers {received:true} even for events it ignores. Only
// validation (400), authenticity (401), and exhausted storage retries (500)
// break that, and each of those is safe to redeliver.
type Handler struct {
	Registry   Registry
	Reconciler *calls.Reconciler
	Enricher   EnrichmentScheduler
	Audit      *audit.Service
}

// Receive handles POST /webhooks/:provider.
func (h Handler) Receive(c *gin.Context) {
	log := logger.FromGin(c)

	adapter, ok := h.Registry.Lookup(c.Param("provider"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := adapter.Verify(c.Request.Header, body); err != nil {
		log.Warn("webhook authenticity check failed", "provider", adapter.Provider())
		if h.Audit != nil {
			_ = h.Audit.LogWebhookAuthFailure(c.Request.Context(), string(adapter.Provider()), c.ClientIP())
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ev, err := adapter.Parse(body)
	if err != nil {
		log.Warn("webhook parse failed", "provider", adapter.Provider(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if ev.Type == calls.EventUnhandled {
		log.Debug("webhook event unhandled", "provider", adapter.Provider())
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	res, err := h.Reconciler.Reconcile(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, calls.ErrInvalidEvent) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		log.Error("reconcile failed after retries", "provider", ev.Provider, "provider_call_id", ev.ProviderCallID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	log.Info("webhook reconciled",
		"provider", ev.Provider, "provider_call_id", ev.ProviderCallID,
		"event", ev.Type, "outcome", res.Outcome)

	// Answer the provider first; enrichment continues on its own clock.
	c.JSON(http.StatusOK, gin.H{"received": true})

	if res.EnrichmentEligible && h.Enricher != nil {
		taskLog := log.With("call_id", res.CallID)
		go func() {
			if _, err := h.Enricher.MaybeDispatch(context.Background(), res.CallID, res.Transcript); err != nil {
				taskLog.Error("enrichment dispatch failed", "err", err)
			}
		}()
	}
}

// Health handles GET /webhooks/:provider for provider-side probes.
func (h Handler) Health(c *gin.Context) {
	if _, ok := h.Registry.Lookup(c.Param("provider")); !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
