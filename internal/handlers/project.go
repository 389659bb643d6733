package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"labdesk/internal/apperr"
	"labdesk/internal/database"
	"labdesk/internal/middleware"
	"labdesk/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errStatusNotAllowed = errors.New("status change not allowed for this role")

func (h *Handler) ListProjects(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Preload("Client").Order("created_at desc")
	if id := queryID(c, "client_id"); id != 0 {
		q = q.Where("client_id = ?", id)
	}
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", s)
	}
	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

type statusRequest struct {
	Status models.ProjectStatus `json:"status"`
}

func (h *Handler) ChangeProjectStatus(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.Status.Valid() {
		h.fail(c, apperr.Validation(apperr.Violations{"status": "unknown status"}))
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	var project models.Project
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, id).Error; err != nil {
			return apperr.FromDB("project", err)
		}
		if !canChangeProjectStatus(user.Role, project.Status, req.Status) {
			return fmt.Errorf("%w: %s -> %s", errStatusNotAllowed, project.Status, req.Status)
		}

		updates := map[string]interface{}{"status": req.Status}
		if req.Status == models.ProjectCompleted || req.Status == models.ProjectCancelled {
			now := h.now().UTC()
			updates["end_date"] = &now
			project.EndDate = &now
		}
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return err
		}
		project.Status = req.Status

		return database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      user.ID,
			Entity:      "project",
			EntityID:    project.ID,
			ActionType:  "status_change",
			Description: "status changed to " + string(req.Status),
		})
	})
	if errors.Is(err, errStatusNotAllowed) {
		_ = c.Error(err)
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "forbidden", "message": err.Error()}})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// canChangeProjectStatus encodes who may move a project between states.
// Admins may do anything except a no-op change.
func canChangeProjectStatus(role models.UserRole, current, next models.ProjectStatus) bool {
	if current == next {
		return false
	}

	switch role {
	case models.RoleAdmin:
		return true

	case models.RoleReceptionist:
		switch current {
		case models.ProjectActive:
			return next == models.ProjectOnHold || next == models.ProjectCancelled
		case models.ProjectOnHold:
			return next == models.ProjectActive || next == models.ProjectCancelled
		}
		return false

	case models.RoleTechnician:
		return current == models.ProjectActive && next == models.ProjectCompleted

	default:
		return false
	}
}
