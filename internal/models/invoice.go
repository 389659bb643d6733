package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

// Open reports whether payments can still settle the invoice.
func (s InvoiceStatus) Open() bool {
	return s == InvoicePending || s == InvoiceOverdue
}

type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	InvoiceNumber string `gorm:"size:32;uniqueIndex;not null" json:"invoiceNumber"` // INV-2024-001

	ClientID uint    `gorm:"index;not null" json:"clientId"`
	Client   *Client `json:"client,omitempty"`
	SampleID *uint   `gorm:"index" json:"sampleId,omitempty"`

	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"taxRate"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"taxAmount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"totalAmount"`

	Status     InvoiceStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	DueDate    time.Time     `gorm:"not null" json:"dueDate"`
	IssuedDate time.Time     `gorm:"not null;index" json:"issuedDate"`
	PaidDate   *time.Time    `json:"paidDate,omitempty"`

	Notes      string `gorm:"type:text" json:"notes"`
	Terms      string `gorm:"type:text" json:"terms"`
	IssuedByID uint   `gorm:"not null" json:"issuedById"`

	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

type InvoiceItem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	InvoiceID uint `gorm:"index;not null" json:"invoiceId"`

	Description string          `gorm:"size:255;not null" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unitPrice"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"totalPrice"`
	TestID      *uint           `json:"testId,omitempty"`
}

// InvoiceSequence holds the last invoice number handed out for a year.
type InvoiceSequence struct {
	Year      int `gorm:"primaryKey;autoIncrement:false"`
	LastValue int `gorm:"not null"`
	UpdatedAt time.Time
}
