package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashvest/minerdash/internal/accrual"
	"github.com/hashvest/minerdash/internal/backend"
	"github.com/hashvest/minerdash/internal/countdown"
	"github.com/hashvest/minerdash/internal/errs"
	"github.com/hashvest/minerdash/internal/poller"
	"github.com/shopspring/decimal"
)

// SessionService is the login surface used by the session handler and middleware.
type SessionService interface {
	Login(ctx context.Context, phone, password string) error
	Logout(ctx context.Context) error
	LoggedIn(ctx context.Context) bool
	Phone(ctx context.Context) (string, error)
}

// Dashboard is the poller surface rendered by the dashboard handler.
type Dashboard interface {
	View() poller.View
	Refresh(ctx context.Context) error
	Busy() bool
	DismissError()
}

// CountdownEntries exposes the per-purchase countdowns.
type CountdownEntries interface {
	Entries() map[string]countdown.Entry
}

// PromoCountdown is the persisted countdown.
type PromoCountdown interface {
	Remaining() int64
	Label() string
	Reset(ctx context.Context, now time.Time) error
}

// PurchaseCreator creates purchases on the backend.
type PurchaseCreator interface {
	CreatePurchase(ctx context.Context, engineID string, amount decimal.Decimal) (accrual.RawPurchase, error)
}

// abortWithBackendError maps client-layer errors to HTTP responses.
func abortWithBackendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrNotLoggedIn), errors.Is(err, errs.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "backend timeout"})
	default:
		status := backend.StatusCodeOf(err)
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
