package http

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// CORSMiddleware allows the given browser origins; it returns nil when none are configured.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
		case trimmed == "*":
			allowed = []string{"*"}
		case strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://"):
			allowed = append(allowed, strings.TrimSuffix(trimmed, "/"))
		default:
			log.Warnf("http: ignoring cors origin without scheme: %s", trimmed)
		}
		if len(allowed) == 1 && allowed[0] == "*" {
			break
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	corsConfig := cors.DefaultConfig()
	if allowed[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowed
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Retry-After"}
	return cors.New(corsConfig)
}
