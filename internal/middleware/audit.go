package middleware

import (
	"bytes"
	"io"
	"strings"

	"rentcheck/internal/logger"
	"rentcheck/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditMiddleware records authenticated mutations: who did what, from where.
// Read-only requests and anonymous traffic are not logged.
func AuditMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		c.Next()

		user := CurrentUser(c)
		if user == nil {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" {
			return
		}

		path := c.Request.URL.Path
		action := c.Request.Method + " " + path
		// bank routes carry access tokens in the body; never log those
		if len(bodyBytes) > 0 && len(bodyBytes) < 1000 && !strings.Contains(path, "/bank") {
			action += " " + string(bodyBytes)
		}

		entry := models.AuditLog{
			UserID:    &user.ID,
			Path:      path,
			Method:    c.Request.Method,
			Action:    action,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if err := db.Create(&entry).Error; err != nil {
			log := logger.FromContext(c.Request.Context())
			log.Error().Err(err).Msg("write audit log")
		}
	}
}
