package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// CountdownHandler exposes the persisted countdown.
type CountdownHandler struct {
	promo PromoCountdown
	now   func() time.Time
}

// NewCountdownHandler constructs a CountdownHandler.
func NewCountdownHandler(promo PromoCountdown) *CountdownHandler {
	return &CountdownHandler{promo: promo, now: time.Now}
}

// Get returns the remaining time of the persisted countdown.
func (h *CountdownHandler) Get(c *gin.Context) {
	if h == nil || h.promo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "countdown unavailable"})
		return
	}
	c.JSON(http.StatusOK, promoResponse{RemainingSeconds: h.promo.Remaining(), Label: h.promo.Label()})
}

// Reset reseeds the persisted countdown to its full duration.
func (h *CountdownHandler) Reset(c *gin.Context) {
	if h == nil || h.promo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "countdown unavailable"})
		return
	}
	if errReset := h.promo.Reset(c.Request.Context(), h.now()); errReset != nil {
		// The in-memory countdown is reseeded even when the checkpoint write fails.
		log.WithError(errReset).Warn("countdown: reset checkpoint failed")
	}
	c.JSON(http.StatusOK, promoResponse{RemainingSeconds: h.promo.Remaining(), Label: h.promo.Label()})
}
