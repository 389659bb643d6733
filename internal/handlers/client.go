package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"labdesk/internal/apperr"
	"labdesk/internal/database"
	"labdesk/internal/middleware"
	"labdesk/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var errClientExists = errors.New("client with the same details already exists")

type clientInput struct {
	Name           string `json:"name"`
	ContactPerson  string `json:"contactPerson"`
	ContactEmail   string `json:"contactEmail"`
	ContactPhone   string `json:"contactPhone"`
	Address        string `json:"address"`
	BillingAddress string `json:"billingAddress"`
	TaxNumber      string `json:"taxNumber"`
	TaxExempt      bool   `json:"taxExempt"`
	Notes          string `json:"notes"`
}

func (in *clientInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.TaxNumber = strings.TrimSpace(in.TaxNumber)
	in.Notes = strings.TrimSpace(in.Notes)
}

func (in clientInput) apply(c *models.Client) {
	c.Name = in.Name
	c.ContactPerson = in.ContactPerson
	c.ContactEmail = in.ContactEmail
	c.ContactPhone = in.ContactPhone
	c.Address = in.Address
	c.BillingAddress = in.BillingAddress
	c.TaxNumber = in.TaxNumber
	c.TaxExempt = in.TaxExempt
	c.Notes = in.Notes
}

// checkUnique reports which of name, email and phone already belong to a
// client other than exceptID.
func checkUnique(ctx context.Context, db *gorm.DB, in clientInput, exceptID uint) (apperr.Violations, error) {
	v := apperr.Violations{}
	checks := []struct {
		field, where, value string
	}{
		{"name", "LOWER(name) = LOWER(?)", in.Name},
		{"contactEmail", "LOWER(contact_email) = LOWER(?)", in.ContactEmail},
		{"contactPhone", "contact_phone = ?", in.ContactPhone},
	}
	for _, ch := range checks {
		if ch.value == "" {
			continue
		}
		var count int64
		if err := db.WithContext(ctx).Model(&models.Client{}).
			Where(ch.where, ch.value).
			Where("id <> ?", exceptID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			v[ch.field] = "already used by another client"
		}
	}
	return v, nil
}

func (h *Handler) ListClients(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Order("name asc")
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+s+"%")
	}
	var clients []models.Client
	if err := q.Find(&clients).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *Handler) GetClient(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var client models.Client
	err := h.db.WithContext(c.Request.Context()).
		Preload("Projects", func(db *gorm.DB) *gorm.DB { return db.Order("created_at desc") }).
		First(&client, id).Error
	if err != nil {
		h.fail(c, apperr.FromDB("client", err))
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) CreateClient(c *gin.Context) {
	var in clientInput
	if !h.bind(c, &in) {
		return
	}
	in.normalize()
	if len(in.Name) < 3 {
		h.fail(c, apperr.Validation(apperr.Violations{"name": "must be at least 3 characters"}))
		return
	}

	ctx := c.Request.Context()
	taken, err := checkUnique(ctx, h.db, in, 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !taken.Empty() {
		h.fail(c, &apperr.Error{Kind: apperr.KindConflict, Code: "client_exists", Err: errClientExists, Violations: taken})
		return
	}

	var client models.Client
	in.apply(&client)
	user := middleware.CurrentUser(c)
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&client).Error; err != nil {
			return apperr.FromDB("client", err)
		}
		return database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      user.ID,
			Entity:      "client",
			EntityID:    client.ID,
			ActionType:  "create",
			Description: "client created: " + client.Name,
		})
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info("Client created", "client_id", client.ID,
		"email", maskEmail(client.ContactEmail), "phone", maskPhone(client.ContactPhone))
	created(c, client)
}

func (h *Handler) UpdateClient(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var in clientInput
	if !h.bind(c, &in) {
		return
	}
	in.normalize()
	if len(in.Name) < 3 {
		h.fail(c, apperr.Validation(apperr.Violations{"name": "must be at least 3 characters"}))
		return
	}

	ctx := c.Request.Context()
	var client models.Client
	if err := h.db.WithContext(ctx).First(&client, id).Error; err != nil {
		h.fail(c, apperr.FromDB("client", err))
		return
	}
	taken, err := checkUnique(ctx, h.db, in, client.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !taken.Empty() {
		h.fail(c, &apperr.Error{Kind: apperr.KindConflict, Code: "client_exists", Err: errClientExists, Violations: taken})
		return
	}

	in.apply(&client)
	user := middleware.CurrentUser(c)
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&client).Error; err != nil {
			return apperr.FromDB("client", err)
		}
		return database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      user.ID,
			Entity:      "client",
			EntityID:    client.ID,
			ActionType:  "update",
			Description: "client updated: " + client.Name,
		})
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}
