package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminKeyHeader = "X-Admin-Key"

// requireAdmin guards routes that spend gas or expose the audit log. With no
// ADMIN_API_KEY configured those routes are closed.
func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusForbidden, "ADMIN_DISABLED", "admin routes are disabled")
		return false
	}
	key := strings.TrimSpace(c.GetHeader(adminKeyHeader))
	if key == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}
