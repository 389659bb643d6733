package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Test is a catalog entry for a laboratory test the lab can perform.
type Test struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Code        string          `gorm:"size:32;uniqueIndex" json:"code"`
	Name        string          `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Category    string          `gorm:"size:64" json:"category"`  // concrete, bricks, pavers...
	Standard    string          `gorm:"size:128" json:"standard"` // BS EN 12390-3, ASTM C140...
	Price       decimal.Decimal `gorm:"type:decimal(20,2)" json:"price"`
	Description string          `gorm:"type:text" json:"description"`
}
