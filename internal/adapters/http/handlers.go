package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/domain"
	"github.com/proctorlab/Proctor/internal/media"
	"github.com/proctorlab/Proctor/internal/metrics"
)

const sdpContentType = "application/sdp"

// MediaHandlers exposes the publish/subscribe/status/create endpoints over
// the media broker stack.
type MediaHandlers struct {
	Broker  *media.Broker
	Prov    *media.Provisioner
	Status  *media.Reconciler
	Metrics *metrics.Metrics
	Limiter *PublishRateLimiter
}

// Publish handles POST /:stream/publish. The body is the opaque offer.
// 200 carries the primary answer verbatim; 202 is a degraded success with a
// usable fallback locator; 503 means both transports are down.
func (h *MediaHandlers) Publish(c *gin.Context) {
	name := domain.StreamName(c.Param("stream"))
	if h.Limiter != nil && !h.Limiter.Allow(name) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many publish attempts"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	res, err := h.Broker.Publish(c.Request.Context(), name, string(body))
	switch {
	case errors.Is(err, media.ErrEmptyOffer):
		c.JSON(http.StatusBadRequest, gin.H{"error": "offer payload required"})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Str("stream", string(name)).Msg("publish failed on both transports")
		if h.Metrics != nil {
			h.Metrics.IncPublishFailed()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	if res.Primary {
		if h.Metrics != nil {
			h.Metrics.IncPublishPrimary()
		}
		c.Data(http.StatusOK, sdpContentType, res.Answer)
		return
	}
	if h.Metrics != nil {
		h.Metrics.IncPublishFallback()
	}
	c.JSON(http.StatusAccepted, gin.H{
		"stream":      name,
		"fallbackUrl": res.FallbackURL,
		"reason":      res.Reason,
	})
}

// Subscribe handles POST /:stream/subscribe: pass-through negotiation with
// the primary transport, no fallback branch.
func (h *MediaHandlers) Subscribe(c *gin.Context) {
	name := domain.StreamName(c.Param("stream"))
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	answer, err := h.Broker.Subscribe(c.Request.Context(), name, string(body))
	switch {
	case errors.Is(err, media.ErrEmptyOffer):
		c.JSON(http.StatusBadRequest, gin.H{"error": "offer payload required"})
	case errors.Is(err, media.ErrRemoteTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.Data(http.StatusOK, sdpContentType, answer)
	}
}

// StreamStatus handles GET /api/stream/:stream/status. Always 200: the
// reconciler folds every failure into the snapshot.
func (h *MediaHandlers) StreamStatus(c *gin.Context) {
	st := h.Status.Status(c.Request.Context(), domain.StreamName(c.Param("stream")))
	c.JSON(http.StatusOK, st)
}

// CreateStream handles POST /api/stream/:stream/create, exposing the
// provisioner directly.
func (h *MediaHandlers) CreateStream(c *gin.Context) {
	name := domain.StreamName(c.Param("stream"))
	outcome, err := h.Prov.Ensure(c.Request.Context(), name)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("stream", string(name)).Msg("provision failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if outcome == media.OutcomeCreated && h.Metrics != nil {
		h.Metrics.IncPathsProvisioned()
	}
	c.JSON(http.StatusOK, gin.H{"stream": name, "outcome": outcome})
}
