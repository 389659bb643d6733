package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentMobileMoney  PaymentMethod = "mobile_money"
	PaymentCheque       PaymentMethod = "cheque"
	PaymentCard         PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentMobileMoney, PaymentCheque, PaymentCard:
		return true
	}
	return false
}

// Payment is append-only.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	InvoiceID uint            `gorm:"index;not null" json:"invoiceId"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Method    PaymentMethod   `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	Reference string          `gorm:"size:128" json:"reference"`
	Notes     string          `gorm:"type:text" json:"notes"`

	PaymentDate  time.Time `gorm:"not null" json:"paymentDate"`
	ReceivedByID uint      `gorm:"not null" json:"receivedBy"`
}
