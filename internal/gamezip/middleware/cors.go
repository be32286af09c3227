package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         string
}

// CORSMiddleware applies CORS headers for browser clients. Headers are set
// before any handler writes a status, so error responses carry them too and
// callers never see an opaque CORS failure. Preflight requests short-circuit
// with 204.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	allowedMethods := strings.Join(cfg.AllowedMethods, ",")
	if allowedMethods == "" {
		allowedMethods = "GET,HEAD,POST,DELETE,OPTIONS"
	}
	allowedHeaders := strings.Join(cfg.AllowedHeaders, ",")
	if allowedHeaders == "" {
		allowedHeaders = "*"
	}
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ",")

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if allowedOrigins == "*" {
			header.Set("Access-Control-Allow-Origin", "*")
		} else if origin := c.GetHeader("Origin"); origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
			header.Set("Access-Control-Allow-Origin", origin)
		} else {
			header.Set("Access-Control-Allow-Origin", allowedOrigins)
		}
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Allow-Headers", allowedHeaders)
		if exposedHeaders != "" {
			header.Set("Access-Control-Expose-Headers", exposedHeaders)
		}
		if cfg.MaxAge != "" {
			header.Set("Access-Control-Max-Age", cfg.MaxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, item := range allowed {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if item == "*" || strings.EqualFold(item, origin) {
			return true
		}
	}
	return false
}
