package front

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashvest/minerdash/internal/http/api/front/handlers"
	"gorm.io/gorm"
)

// Deps are the components the client API routes are served from.
type Deps struct {
	DB *gorm.DB
	// StorageDriver labels /healthz when DB is nil.
	StorageDriver string
	// Loop reports whether background polling is active.
	Loop      handlers.LoopStatus
	Sessions  handlers.SessionService
	Dashboard handlers.Dashboard
	Entries   handlers.CountdownEntries
	Promo     handlers.PromoCountdown
	Purchases handlers.PurchaseCreator
	// AfterLogin runs after each successful login (countdown reset, immediate refresh).
	AfterLogin func(ctx context.Context)
	// WriteLimit guards mutating routes; nil disables it.
	WriteLimit gin.HandlerFunc
}

// RegisterFrontRoutes registers health, session and dashboard routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.Sessions == nil || deps.Dashboard == nil {
		return
	}
	writeLimit := deps.WriteLimit
	if writeLimit == nil {
		writeLimit = func(c *gin.Context) { c.Next() }
	}

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.StorageDriver, deps.Loop)
	r.GET("/healthz", healthHandler.Healthz)

	v0 := r.Group("/v0")

	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.AfterLogin)
	v0.GET("/session", sessionHandler.Status)
	v0.POST("/session/login", writeLimit, sessionHandler.Login)
	v0.POST("/session/logout", sessionHandler.Logout)

	authed := v0.Group("")
	authed.Use(sessionRequiredMiddleware(deps.Sessions))

	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard, deps.Entries, deps.Promo)
	authed.GET("/dashboard", dashboardHandler.Get)
	authed.POST("/dashboard/refresh", writeLimit, dashboardHandler.CreateRefresh)
	authed.GET("/dashboard/refresh/:task_id", dashboardHandler.GetRefresh)
	authed.POST("/dashboard/error/dismiss", dashboardHandler.DismissError)

	countdownHandler := handlers.NewCountdownHandler(deps.Promo)
	authed.GET("/countdown", countdownHandler.Get)
	authed.POST("/countdown/reset", writeLimit, countdownHandler.Reset)

	purchaseHandler := handlers.NewPurchaseHandler(deps.Purchases, deps.Dashboard)
	authed.POST("/purchases", writeLimit, purchaseHandler.Create)
}

// sessionRequiredMiddleware rejects requests while no usable backend session is stored.
func sessionRequiredMiddleware(sessions handlers.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessions.LoggedIn(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}
		c.Next()
	}
}
