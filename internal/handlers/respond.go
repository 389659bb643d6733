package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"labdesk/internal/apperr"
	"labdesk/internal/billing"
	"labdesk/internal/intake"
	"labdesk/internal/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the JSON API.
type Handler struct {
	db       *gorm.DB
	intake   *intake.Service
	invoices *billing.InvoiceService
	payments *billing.Reconciler
	log      *logger.Logger
	now      func() time.Time
}

type Deps struct {
	DB         *gorm.DB
	Intake     *intake.Service
	Invoices   *billing.InvoiceService
	Reconciler *billing.Reconciler
	Log        *logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		db:       d.DB,
		intake:   d.Intake,
		invoices: d.Invoices,
		payments: d.Reconciler,
		log:      d.Log,
		now:      d.Now,
	}
}

// fail writes the error envelope. Internal errors are logged and their
// message is not returned.
func (h *Handler) fail(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(err)
	}
	_ = c.Error(err)

	body := gin.H{"code": ae.Code, "message": ae.Error()}
	if ae.Kind == apperr.KindInternal {
		h.log.Error("Request failed", "path", c.FullPath(), "error", err)
		body["message"] = "internal server error"
	}
	if !ae.Violations.Empty() {
		body["details"] = ae.Violations
	}
	c.JSON(ae.Kind.Status(), gin.H{"error": body})
}

func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, apperr.New(apperr.KindValidation, "invalid_body", err))
		return false
	}
	return true
}

func (h *Handler) paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.fail(c, apperr.Validation(apperr.Violations{name: "must be a positive integer"}))
		return 0, false
	}
	return uint(id), true
}

// queryID reads an optional numeric filter; absent or malformed is zero.
func queryID(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func created(c *gin.Context, v interface{}) { c.JSON(http.StatusCreated, v) }
