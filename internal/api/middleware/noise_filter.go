package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthenticatedKey is set by the API key check on authenticated requests
const AuthenticatedKey = "authenticated"

// probePrefixes are paths vulnerability scanners try on any exposed host
var probePrefixes = []string{
	"/.env", "/.git", "/.aws", "/.well-known",
	"/wp-admin", "/wp-login", "/phpmyadmin", "/cgi-bin",
	"/actuator", "/console", "/manager", "/backup",
	"/robots.txt", "/favicon.ico", "/sitemap.xml",
}

// probeSuffixes are file types the bridge never serves
var probeSuffixes = []string{".php", ".asp", ".aspx", ".jsp", ".bak", ".old", ".sql", ".zip", ".tar", ".gz"}

// NoiseFilter keeps unauthenticated scanner probes out of the request log.
// They are still visible at debug level.
func NoiseFilter(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.GetBool(AuthenticatedKey) || !isNoise(c.Request.URL.Path, c.Writer.Status()) {
			return
		}

		c.Set(skipLoggingKey, true)
		logger.Debug("Scanner request filtered",
			"component", "api",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP())
	}
}

// isNoise reports whether a failed request looks like a scanner probe
func isNoise(path string, status int) bool {
	if status == http.StatusMethodNotAllowed {
		return true
	}
	if status < 400 {
		return false
	}

	path = strings.ToLower(path)
	for _, prefix := range probePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, suffix := range probeSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
