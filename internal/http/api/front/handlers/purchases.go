package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashvest/minerdash/internal/accrual"
	"github.com/hashvest/minerdash/internal/poller"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// PurchaseHandler proxies purchase creation to the backend.
type PurchaseHandler struct {
	creator PurchaseCreator
	poller  Dashboard
	now     func() time.Time
}

// NewPurchaseHandler constructs a PurchaseHandler. p, when set, is refreshed after each purchase.
func NewPurchaseHandler(creator PurchaseCreator, p Dashboard) *PurchaseHandler {
	return &PurchaseHandler{creator: creator, poller: p, now: time.Now}
}

type createPurchaseRequest struct {
	EngineID string          `json:"engine_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// Create buys into an engine and returns the derived snapshot of the new purchase.
func (h *PurchaseHandler) Create(c *gin.Context) {
	if h == nil || h.creator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "purchases unavailable"})
		return
	}
	var body createPurchaseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	engineID := strings.TrimSpace(body.EngineID)
	if engineID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing engine_id"})
		return
	}
	if !body.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	raw, errCreate := h.creator.CreatePurchase(c.Request.Context(), engineID, body.Amount)
	if errCreate != nil {
		log.WithError(errCreate).Warnf("purchases: create failed (engine=%s)", engineID)
		abortWithBackendError(c, errCreate)
		return
	}

	if h.poller != nil {
		go func() {
			if errRefresh := h.poller.Refresh(context.Background()); errRefresh != nil && !errors.Is(errRefresh, poller.ErrBusy) {
				log.WithError(errRefresh).Warn("purchases: refresh after purchase failed")
			}
		}()
	}

	res := accrual.Read(raw, h.now())
	if !res.OK() {
		c.JSON(http.StatusCreated, gin.H{"purchase": nil, "warning": res.Err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"purchase": res.Snapshot, "issues": res.Issues})
}
