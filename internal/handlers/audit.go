package handlers

import (
	"net/http"

	"labdesk/internal/models"

	"github.com/gin-gonic/gin"
)

const auditPageSize = 200

// ListAuditLogs returns the latest entries, newest first.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Order("created_at desc, id desc").
		Limit(auditPageSize)
	if id := queryID(c, "sample_id"); id != 0 {
		q = q.Where("sample_id = ?", id)
	}
	if entity := c.Query("entity"); entity != "" {
		q = q.Where("entity = ?", entity)
	}

	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
