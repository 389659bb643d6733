package billing

import (
	"context"
	"fmt"
	"strings"
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

const maxNumberAttempts = 3

type ItemInput struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TestID      *uint           `json:"testId"`
}

type CreateInvoiceInput struct {
	ClientID uint           `json:"clientId"`
	SampleID *uint          `json:"sampleId"`
	Items    []ItemInput    `json:"items"`
	DueDate  *jsondate.Date `json:"dueDate"`
	Notes    string         `json:"notes"`
	Terms    string         `json:"terms"`
	IssuedBy uint           `json:"issuedBy"`
}

func (in CreateInvoiceInput) validate() error {
	v := apperr.Violations{}
	if in.ClientID == 0 {
		v["clientId"] = "required"
	}
	if in.IssuedBy == 0 {
		v["issuedBy"] = "required"
	}
	if in.DueDate.Ptr() == nil {
		v["dueDate"] = "required"
	}
	if len(in.Items) == 0 {
		v["items"] = "at least one item is required"
	}
	for i, it := range in.Items {
		key := fmt.Sprintf("items[%d]", i)
		switch {
		case strings.TrimSpace(it.Description) == "":
			v[key+".description"] = "required"
		case it.Quantity <= 0:
			v[key+".quantity"] = "must be positive"
		case it.UnitPrice.IsNegative():
			v[key+".unitPrice"] = "must not be negative"
		case !isCents(it.UnitPrice):
			v[key+".unitPrice"] = "must have at most 2 decimal places"
		}
	}
	if !v.Empty() {
		return apperr.Validation(v)
	}
	return nil
}

type InvoiceFilter struct {
	Status   models.InvoiceStatus
	ClientID uint
}

// InvoiceService issues and cancels invoices. Numbers come from the
// Allocator; totals from the TaxPolicy.
type InvoiceService struct {
	db      *gorm.DB
	alloc   *Allocator
	locker  locks.Locker
	tax     TaxPolicy
	metrics *metrics.Metrics
	log     *logger.Logger

	Now func() time.Time
}

func NewInvoiceService(db *gorm.DB, locker locks.Locker, tax TaxPolicy, m *metrics.Metrics, log *logger.Logger) *InvoiceService {
	if tax == nil {
		tax = FixedRate{Value: DefaultTaxRate}
	}
	return &InvoiceService{
		db:      db,
		alloc:   NewAllocator(locker),
		locker:  locker,
		tax:     tax,
		metrics: m,
		log:     log,
		Now:     time.Now,
	}
}

// Create issues an invoice on behalf of userID. IssuedBy is recorded on
// the invoice; the audit entry names userID.
func (s *InvoiceService) Create(ctx context.Context, userID uint, in CreateInvoiceInput) (*models.Invoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := database.CheckActors(ctx, s.db, userID, map[string]uint{"issuedBy": in.IssuedBy}); err != nil {
		return nil, err
	}
	issued := s.Now().UTC()

	unlock, err := s.alloc.Lock(ctx, issued.Year())
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("lock invoice sequence: %w", err))
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		inv, err := s.create(ctx, userID, in, issued)
		if err == nil {
			s.metrics.InvoiceCreated()
			s.log.Info("Invoice issued",
				"invoice_id", inv.ID, "number", inv.InvoiceNumber,
				"client_id", inv.ClientID, "total", inv.TotalAmount.StringFixed(2))
			return inv, nil
		}
		if !apperr.IsUniqueViolation(err) || attempt == maxNumberAttempts {
			return nil, apperr.FromDB("invoice", err)
		}
		s.log.Warn("Invoice number conflict, retrying", "attempt", attempt, "error", err)
	}
}

func (s *InvoiceService) create(ctx context.Context, userID uint, in CreateInvoiceInput, issued time.Time) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, in.ClientID).Error; err != nil {
			return apperr.FromDB("client", err)
		}
		if in.SampleID != nil {
			var sample models.Sample
			if err := tx.Select("id").First(&sample, *in.SampleID).Error; err != nil {
				return apperr.FromDB("sample", err)
			}
		}

		number, err := s.alloc.Next(ctx, tx, issued)
		if err != nil {
			return err
		}

		items := make([]models.InvoiceItem, 0, len(in.Items))
		for _, it := range in.Items {
			items = append(items, models.InvoiceItem{
				Description: strings.TrimSpace(it.Description),
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				TestID:      it.TestID,
			})
		}
		rate := s.tax.Rate(&client)
		totals := ComputeTotals(items, rate)

		inv = models.Invoice{
			InvoiceNumber: number,
			ClientID:      client.ID,
			SampleID:      in.SampleID,
			Amount:        totals.Amount,
			TaxRate:       rate,
			TaxAmount:     totals.TaxAmount,
			TotalAmount:   totals.TotalAmount,
			Status:        models.InvoicePending,
			DueDate:       in.DueDate.Value(),
			IssuedDate:    issued,
			Notes:         in.Notes,
			Terms:         in.Terms,
			IssuedByID:    in.IssuedBy,
			Items:         items,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}

		return database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      userID,
			SampleID:    in.SampleID,
			Entity:      "invoice",
			EntityID:    inv.ID,
			ActionType:  "invoice_issued",
			Description: fmt.Sprintf("Invoice %s issued to %s for %s", number, client.Name, totals.TotalAmount.StringFixed(2)),
		})
	})
	if err != nil {
		return nil, err
	}
	inv.Client = nil
	return &inv, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date, id") }).
		First(&inv, id).Error
	if err != nil {
		return nil, apperr.FromDB("invoice", err)
	}
	return &inv, nil
}

func (s *InvoiceService) List(ctx context.Context, f InvoiceFilter) ([]models.Invoice, error) {
	q := s.db.WithContext(ctx).Preload("Client").Order("issued_date DESC, id DESC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	var out []models.Invoice
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.FromDB("invoice", err)
	}
	return out, nil
}

// Cancel moves an open invoice to cancelled. Paid and cancelled invoices
// are left alone and reported as a conflict.
func (s *InvoiceService) Cancel(ctx context.Context, id, userID uint) (*models.Invoice, error) {
	unlock, err := s.locker.Lock(ctx, InvoiceLockKey(id))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("lock invoice %d: %w", id, err))
	}
	defer unlock()

	var inv models.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, id).Error; err != nil {
			return apperr.FromDB("invoice", err)
		}
		if inv.Status.Terminal() {
			return apperr.Conflict("invoice_not_open", fmt.Errorf("invoice %s is %s", inv.InvoiceNumber, inv.Status))
		}
		if err := tx.Model(&inv).Update("status", models.InvoiceCancelled).Error; err != nil {
			return err
		}
		inv.Status = models.InvoiceCancelled
		return database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      userID,
			SampleID:    inv.SampleID,
			Entity:      "invoice",
			EntityID:    inv.ID,
			ActionType:  "invoice_cancelled",
			Description: fmt.Sprintf("Invoice %s cancelled", inv.InvoiceNumber),
		})
	})
	if err != nil {
		return nil, apperr.FromDB("invoice", err)
	}
	s.log.Info("Invoice cancelled", "invoice_id", inv.ID, "number", inv.InvoiceNumber, "user_id", userID)
	return &inv, nil
}

// Payments lists the payments recorded against an invoice, oldest first.
func (s *InvoiceService) Payments(ctx context.Context, invoiceID uint) ([]models.Payment, error) {
	db := s.db.WithContext(ctx)
	var inv models.Invoice
	if err := db.Select("id").First(&inv, invoiceID).Error; err != nil {
		return nil, apperr.FromDB("invoice", err)
	}
	var out []models.Payment
	if err := db.Where("invoice_id = ?", invoiceID).Order("payment_date, id").Find(&out).Error; err != nil {
		return nil, apperr.FromDB("payment", err)
	}
	return out, nil
}

func InvoiceLockKey(id uint) string {
	return fmt.Sprintf("invoice:%d", id)
}
