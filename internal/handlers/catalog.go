package handlers

import (
	"net/http"
	"strings"

	"labdesk/internal/apperr"
	"labdesk/internal/database"
	"labdesk/internal/middleware"
	"labdesk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type testInput struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Standard    string          `json:"standard"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

func (h *Handler) ListTests(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Order("code asc")
	if cat := strings.TrimSpace(c.Query("category")); cat != "" {
		q = q.Where("LOWER(category) = LOWER(?)", cat)
	}
	var tests []models.Test
	if err := q.Find(&tests).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tests)
}

func (h *Handler) CreateTest(c *gin.Context) {
	var in testInput
	if !h.bind(c, &in) {
		return
	}
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)

	v := apperr.Violations{}
	v.Required("code", in.Code)
	v.Required("name", in.Name)
	if in.Price.IsNegative() {
		v["price"] = "must not be negative"
	}
	if !v.Empty() {
		h.fail(c, apperr.Validation(v))
		return
	}

	test := models.Test{
		Code:        in.Code,
		Name:        in.Name,
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Standard:    strings.TrimSpace(in.Standard),
		Price:       in.Price.Round(2),
		Description: in.Description,
	}
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&test).Error; err != nil {
			return apperr.FromDB("test", err)
		}
		return database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      user.ID,
			Entity:      "test",
			EntityID:    test.ID,
			ActionType:  "create",
			Description: "catalog test added: " + test.Code + " " + test.Name,
		})
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, test)
}
