// Package billing issues invoices and reconciles payments against them.
package billing

import (
	"labdesk/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is applied to every invoice unless another policy is
// configured.
var DefaultTaxRate = decimal.RequireFromString("0.18")

// TaxPolicy resolves the rate charged to a client.
type TaxPolicy interface {
	Rate(client *models.Client) decimal.Decimal
}

// FixedRate charges the same rate to every client. TaxExempt is not
// consulted.
type FixedRate struct {
	Value decimal.Decimal
}

func (f FixedRate) Rate(*models.Client) decimal.Decimal { return f.Value }

type Totals struct {
	Amount      decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// isCents reports whether d needs no more than two decimal places.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// ComputeTotals fills each item's TotalPrice and sums the invoice amounts.
// Tax is rounded to two places.
func ComputeTotals(items []models.InvoiceItem, rate decimal.Decimal) Totals {
	amount := decimal.Zero
	for i := range items {
		items[i].TotalPrice = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity))).Round(2)
		amount = amount.Add(items[i].TotalPrice)
	}
	tax := amount.Mul(rate).Round(2)
	return Totals{Amount: amount, TaxAmount: tax, TotalAmount: amount.Add(tax)}
}
