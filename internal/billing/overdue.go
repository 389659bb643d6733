package billing

import (
	"context"
	"time"

	"labdesk/internal/logger"
	"labdesk/internal/metrics"
	"labdesk/internal/models"

	"gorm.io/gorm"
)

// OverduePolicy moves pending invoices past their due date to overdue. It
// runs on a timer and has no part in reconciliation.
type OverduePolicy struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewOverduePolicy(db *gorm.DB, m *metrics.Metrics, log *logger.Logger) *OverduePolicy {
	return &OverduePolicy{db: db, metrics: m, log: log}
}

// MarkOverdue returns how many invoices changed.
func (p *OverduePolicy) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := p.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoicePending, now.UTC()).
		Update("status", models.InvoiceOverdue)
	if res.Error != nil {
		return 0, res.Error
	}
	p.metrics.OverdueMarked(res.RowsAffected)
	return res.RowsAffected, nil
}

// RunSweeper calls MarkOverdue every interval until ctx is done.
func (p *OverduePolicy) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	p.log.Info("Overdue sweeper started", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Overdue sweeper stopped")
			return
		case now := <-ticker.C:
			n, err := p.MarkOverdue(ctx, now)
			if err != nil {
				p.log.Error("Overdue sweep failed", "error", err)
				continue
			}
			if n > 0 {
				p.log.Info("Invoices marked overdue", "count", n)
			}
		}
	}
}
