package handlers

import (
	"net/http"

	"labdesk/internal/billing"
	"labdesk/internal/middleware"
	"labdesk/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateInvoice(c *gin.Context) {
	var in billing.CreateInvoiceInput
	if !h.bind(c, &in) {
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), middleware.CurrentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, inv)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c *gin.Context) {
	invoices, err := h.invoices.List(c.Request.Context(), billing.InvoiceFilter{
		Status:   models.InvoiceStatus(c.Query("status")),
		ClientID: queryID(c, "client_id"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *Handler) CancelInvoice(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Cancel(c.Request.Context(), id, middleware.CurrentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoicePayments(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	payments, err := h.invoices.Payments(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}
