package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashvest/minerdash/internal/countdown"
	"github.com/hashvest/minerdash/internal/poller"
	log "github.com/sirupsen/logrus"
)

const (
	refreshTaskTTL      = 10 * time.Minute
	refreshTaskMaxTasks = 50
)

// DashboardHandler serves the merged purchase view and manual refreshes.
type DashboardHandler struct {
	poller    Dashboard
	entries   CountdownEntries
	promo     PromoCountdown
	taskStore *refreshTaskStore
}

// NewDashboardHandler constructs a DashboardHandler. entries and promo may be nil.
func NewDashboardHandler(p Dashboard, entries CountdownEntries, promo PromoCountdown) *DashboardHandler {
	return &DashboardHandler{
		poller:    p,
		entries:   entries,
		promo:     promo,
		taskStore: newRefreshTaskStore(refreshTaskTTL, refreshTaskMaxTasks),
	}
}

type dashboardResponse struct {
	poller.View
	Countdowns map[string]countdown.Entry `json:"countdowns"`
	Promo      *promoResponse             `json:"promo,omitempty"`
}

type promoResponse struct {
	RemainingSeconds int64  `json:"remaining_seconds"`
	Label            string `json:"label"`
}

// Get returns the current view with per-purchase countdowns.
func (h *DashboardHandler) Get(c *gin.Context) {
	if h == nil || h.poller == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard unavailable"})
		return
	}
	resp := dashboardResponse{
		View:       h.poller.View(),
		Countdowns: map[string]countdown.Entry{},
	}
	if h.entries != nil {
		resp.Countdowns = h.entries.Entries()
	}
	if h.promo != nil {
		resp.Promo = &promoResponse{RemainingSeconds: h.promo.Remaining(), Label: h.promo.Label()}
	}
	c.JSON(http.StatusOK, resp)
}

// CreateRefresh starts a manual refresh in the background and returns its task id.
func (h *DashboardHandler) CreateRefresh(c *gin.Context) {
	if h == nil || h.poller == nil || h.taskStore == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard unavailable"})
		return
	}
	if h.poller.Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": poller.ErrBusy.Error()})
		return
	}

	task := h.taskStore.Create()
	go h.runRefreshTask(task.TaskID)

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.TaskID,
		"status":  task.Status,
	})
}

// GetRefresh reports the state of a manual refresh task.
func (h *DashboardHandler) GetRefresh(c *gin.Context) {
	if h == nil || h.taskStore == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard unavailable"})
		return
	}
	taskID := strings.TrimSpace(c.Param("task_id"))
	task, ok := h.taskStore.Get(taskID)
	if taskID == "" || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id":     task.TaskID,
		"status":      task.Status,
		"started_at":  task.CreatedAt,
		"finished_at": task.FinishedAt,
		"last_error":  task.LastError,
	})
}

// DismissError clears the inline error banner.
func (h *DashboardHandler) DismissError(c *gin.Context) {
	if h == nil || h.poller == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard unavailable"})
		return
	}
	h.poller.DismissError()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *DashboardHandler) runRefreshTask(taskID string) {
	var errRefresh error
	defer func() {
		if recovered := recover(); recovered != nil {
			stack := strings.TrimSpace(string(debug.Stack()))
			log.Errorf("dashboard refresh panic (task=%s): %v\n%s", taskID, recovered, stack)
			errRefresh = fmt.Errorf("panic: %v", recovered)
		}
		h.taskStore.Finish(taskID, errRefresh)
	}()

	errRefresh = h.poller.Refresh(context.Background())
	if errors.Is(errRefresh, poller.ErrBusy) {
		// A fetch that started after the Busy check covers this request.
		errRefresh = nil
		return
	}
	if errRefresh != nil {
		log.WithError(errRefresh).Warnf("dashboard: manual refresh failed (task=%s)", taskID)
	}
}
