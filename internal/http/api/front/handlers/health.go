package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashvest/minerdash/internal/db"
	"gorm.io/gorm"
)

// LoopStatus reports whether a background loop is active.
type LoopStatus interface {
	Running() bool
}

// HealthHandler reports storage reachability and whether polling is active.
type HealthHandler struct {
	conn    *gorm.DB
	storage string
	loop    LoopStatus
}

// NewHealthHandler constructs a HealthHandler. conn is nil when storage is not table-backed,
// in which case storage names the driver in use.
func NewHealthHandler(conn *gorm.DB, storage string, loop LoopStatus) *HealthHandler {
	if conn != nil {
		storage = db.DialectName(conn)
	}
	return &HealthHandler{conn: conn, storage: storage, loop: loop}
}

// Healthz answers 503 only when the database cannot be pinged.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	body := gin.H{"ok": true, "storage": h.storage, "polling": h.loop != nil && h.loop.Running()}
	if h.conn != nil {
		if errPing := ping(c, h.conn); errPing != nil {
			body["ok"] = false
			body["error"] = errPing.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

func ping(c *gin.Context, conn *gorm.DB) error {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return errDB
	}
	return sqlDB.PingContext(c.Request.Context())
}
