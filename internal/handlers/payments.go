package handlers

import (
	"labdesk/internal/billing"
	"labdesk/internal/middleware"

	"github.com/gin-gonic/gin"
)

// CreatePayment records a payment and reports the invoice balance after it.
func (h *Handler) CreatePayment(c *gin.Context) {
	var in billing.PaymentInput
	if !h.bind(c, &in) {
		return
	}
	rec, err := h.payments.Apply(c.Request.Context(), middleware.CurrentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, rec)
}
