package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"labdesk/internal/apperr"
	"labdesk/internal/locks"
	"labdesk/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FormatNumber renders INV-{year}-{seq}, seq zero-padded to three digits.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%03d", year, seq)
}

// Allocator hands out invoice numbers from the per-year row in
// invoice_sequences.
type Allocator struct {
	locker locks.Locker
}

func NewAllocator(locker locks.Locker) *Allocator {
	return &Allocator{locker: locker}
}

// Lock serialises allocation for year. Take it before opening the
// transaction that calls Next.
func (a *Allocator) Lock(ctx context.Context, year int) (func(), error) {
	return a.locker.Lock(ctx, fmt.Sprintf("invoice-seq:%d", year))
}

// Next reserves the next number for the year of issued. It must run inside
// tx; the reservation is undone if tx rolls back.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, issued time.Time) (string, error) {
	db := tx.WithContext(ctx)
	year := issued.Year()

	seq, err := lockSequence(db, year)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq, err = createSequence(db, issued)
	}
	if err != nil {
		return "", err
	}

	// Skip numbers already taken outside the sequence.
	var number string
	for {
		seq.LastValue++
		number = FormatNumber(year, seq.LastValue)
		var n int64
		if err := db.Model(&models.Invoice{}).Where("invoice_number = ?", number).Count(&n).Error; err != nil {
			return "", fmt.Errorf("check invoice number %s: %w", number, err)
		}
		if n == 0 {
			break
		}
	}

	if err := db.Model(&models.InvoiceSequence{}).
		Where("year = ?", year).
		Updates(map[string]interface{}{"last_value": seq.LastValue, "updated_at": time.Now()}).Error; err != nil {
		return "", fmt.Errorf("advance invoice sequence %d: %w", year, err)
	}
	return number, nil
}

func lockSequence(db *gorm.DB, year int) (models.InvoiceSequence, error) {
	var seq models.InvoiceSequence
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("year = ?", year).Take(&seq).Error
	return seq, err
}

// createSequence seeds a year's counter from the invoices already issued in
// it. If another writer seeded it first, its row is used instead.
func createSequence(db *gorm.DB, issued time.Time) (models.InvoiceSequence, error) {
	count, err := countIssuedInYear(db, issued)
	if err != nil {
		return models.InvoiceSequence{}, err
	}
	seq := models.InvoiceSequence{Year: issued.Year(), LastValue: int(count)}
	err = db.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&seq).Error
	})
	if apperr.IsUniqueViolation(err) {
		return lockSequence(db, issued.Year())
	}
	if err != nil {
		return models.InvoiceSequence{}, fmt.Errorf("seed invoice sequence %d: %w", issued.Year(), err)
	}
	return seq, nil
}

func countIssuedInYear(db *gorm.DB, issued time.Time) (int64, error) {
	start := time.Date(issued.Year(), time.January, 1, 0, 0, 0, 0, issued.Location())
	end := start.AddDate(1, 0, 0)
	var n int64
	err := db.Model(&models.Invoice{}).
		Where("issued_date >= ? AND issued_date < ?", start, end).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count invoices issued in %d: %w", issued.Year(), err)
	}
	return n, nil
}

// PreviewByCount derives a number from the count of invoices issued in the
// year without reserving it. Two callers that are not serialised can be
// handed the same number; Next is the allocation path.
func PreviewByCount(ctx context.Context, db *gorm.DB, issued time.Time) (string, error) {
	n, err := countIssuedInYear(db.WithContext(ctx), issued)
	if err != nil {
		return "", err
	}
	return FormatNumber(issued.Year(), int(n)+1), nil
}
