package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SessionHandler handles login and logout against the backend.
type SessionHandler struct {
	sessions   SessionService
	afterLogin func(ctx context.Context)
}

// NewSessionHandler constructs a SessionHandler. afterLogin runs after every successful login.
func NewSessionHandler(sessions SessionService, afterLogin func(ctx context.Context)) *SessionHandler {
	return &SessionHandler{sessions: sessions, afterLogin: afterLogin}
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login exchanges credentials for a backend session.
func (h *SessionHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	phone := strings.TrimSpace(body.Phone)
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing phone"})
		return
	}
	if body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}

	if errLogin := h.sessions.Login(c.Request.Context(), phone, body.Password); errLogin != nil {
		log.WithError(errLogin).Warn("session: login failed")
		abortWithBackendError(c, errLogin)
		return
	}
	if h.afterLogin != nil {
		h.afterLogin(context.WithoutCancel(c.Request.Context()))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Logout forgets the stored session.
func (h *SessionHandler) Logout(c *gin.Context) {
	if errLogout := h.sessions.Logout(c.Request.Context()); errLogout != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Status reports whether a session is stored and returns the remembered phone for autofill.
func (h *SessionHandler) Status(c *gin.Context) {
	phone, errPhone := h.sessions.Phone(c.Request.Context())
	if errPhone != nil {
		log.WithError(errPhone).Warn("session: read phone failed")
	}
	c.JSON(http.StatusOK, gin.H{
		"logged_in": h.sessions.LoggedIn(c.Request.Context()),
		"phone":     phone,
	})
}
