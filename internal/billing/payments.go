package billing

import (
	"context"
	"fmt"
	"time"

	"labdesk/internal/apperr"
	"labdesk/internal/database"
	"labdesk/internal/jsondate"
	"labdesk/internal/locks"
	"labdesk/internal/logger"
	"labdesk/internal/metrics"
	"labdesk/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentInput struct {
	InvoiceID   uint                 `json:"invoiceId"`
	Amount      decimal.Decimal      `json:"amount"`
	Method      models.PaymentMethod `json:"paymentMethod"`
	Reference   string               `json:"reference"`
	Notes       string               `json:"notes"`
	PaymentDate *jsondate.Date       `json:"paymentDate"`
	ReceivedBy  uint                 `json:"receivedBy"`
}

func (in PaymentInput) validate() error {
	v := apperr.Violations{}
	if in.InvoiceID == 0 {
		v["invoiceId"] = "required"
	}
	switch {
	case !in.Amount.IsPositive():
		v["amount"] = "must be positive"
	case !isCents(in.Amount):
		v["amount"] = "must have at most 2 decimal places"
	}
	switch {
	case in.Method == "":
		v["paymentMethod"] = "required"
	case !in.Method.Valid():
		v["paymentMethod"] = "is not a known payment method"
	}
	if in.ReceivedBy == 0 {
		v["receivedBy"] = "required"
	}
	if !v.Empty() {
		return apperr.Validation(v)
	}
	return nil
}

// Reconciliation is the outcome of applying one payment.
type Reconciliation struct {
	Payment   models.Payment  `json:"payment"`
	Invoice   models.Invoice  `json:"invoice"`
	TotalPaid decimal.Decimal `json:"totalPaid"`
	Balance   decimal.Decimal `json:"balance"`
	// Settled is true when this payment moved the invoice to paid.
	Settled bool `json:"settled"`
}

// Reconciler records payments one invoice at a time.
type Reconciler struct {
	db      *gorm.DB
	locker  locks.Locker
	metrics *metrics.Metrics
	log     *logger.Logger

	Now func() time.Time
}

func NewReconciler(db *gorm.DB, locker locks.Locker, m *metrics.Metrics, log *logger.Logger) *Reconciler {
	return &Reconciler{db: db, locker: locker, metrics: m, log: log, Now: time.Now}
}

// Apply stores the payment and, if the invoice's payments now cover its
// total, marks it paid. The total is summed inside the same transaction
// under the invoice lock.
func (r *Reconciler) Apply(ctx context.Context, userID uint, in PaymentInput) (*Reconciliation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := database.CheckActors(ctx, r.db, userID, map[string]uint{"receivedBy": in.ReceivedBy}); err != nil {
		return nil, err
	}

	unlock, err := r.locker.Lock(ctx, InvoiceLockKey(in.InvoiceID))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("lock invoice %d: %w", in.InvoiceID, err))
	}
	defer unlock()

	now := r.Now().UTC()
	var out Reconciliation
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, in.InvoiceID).Error; err != nil {
			return apperr.FromDB("invoice", err)
		}
		if inv.Status == models.InvoiceCancelled {
			return apperr.Conflict("invoice_cancelled", fmt.Errorf("invoice %s is cancelled", inv.InvoiceNumber))
		}

		payment := models.Payment{
			InvoiceID:    inv.ID,
			Amount:       in.Amount,
			Method:       in.Method,
			Reference:    in.Reference,
			Notes:        in.Notes,
			PaymentDate:  now,
			ReceivedByID: in.ReceivedBy,
		}
		if d := in.PaymentDate.Ptr(); d != nil {
			payment.PaymentDate = *d
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		totalPaid, err := sumPayments(tx, inv.ID)
		if err != nil {
			return err
		}

		settled := false
		if totalPaid.GreaterThanOrEqual(inv.TotalAmount) && inv.Status.Open() {
			if err := tx.Model(&inv).Updates(map[string]interface{}{
				"status":    models.InvoicePaid,
				"paid_date": now,
			}).Error; err != nil {
				return err
			}
			inv.Status = models.InvoicePaid
			inv.PaidDate = &now
			settled = true
		}

		desc := fmt.Sprintf("Payment of %s received for invoice %s", in.Amount.StringFixed(2), inv.InvoiceNumber)
		if settled {
			desc += " (settled)"
		}
		if err := database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      userID,
			SampleID:    inv.SampleID,
			Entity:      "payment",
			EntityID:    payment.ID,
			ActionType:  "payment_received",
			Description: desc,
		}); err != nil {
			return err
		}

		balance := inv.TotalAmount.Sub(totalPaid)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		out = Reconciliation{Payment: payment, Invoice: inv, TotalPaid: totalPaid, Balance: balance, Settled: settled}
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB("payment", err)
	}

	r.metrics.PaymentApplied(out.Settled)
	r.log.Info("Payment applied",
		"invoice_id", out.Invoice.ID, "payment_id", out.Payment.ID,
		"amount", in.Amount.StringFixed(2), "total_paid", out.TotalPaid.StringFixed(2),
		"settled", out.Settled)
	return &out, nil
}

func sumPayments(tx *gorm.DB, invoiceID uint) (decimal.Decimal, error) {
	var rows []models.Payment
	if err := tx.Select("amount").Where("invoice_id = ?", invoiceID).Find(&rows).Error; err != nil {
		return decimal.Zero, fmt.Errorf("sum payments for invoice %d: %w", invoiceID, err)
	}
	total := decimal.Zero
	for _, p := range rows {
		total = total.Add(p.Amount)
	}
	return total, nil
}
