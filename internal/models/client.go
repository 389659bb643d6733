package models

import "time"

type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name           string `gorm:"size:255;not null;uniqueIndex" json:"name"`
	ContactPerson  string `gorm:"size:255" json:"contactPerson"`
	ContactEmail   string `gorm:"size:255" json:"contactEmail"`
	ContactPhone   string `gorm:"size:50" json:"contactPhone"`
	Address        string `gorm:"type:text" json:"address"`
	BillingAddress string `gorm:"type:text" json:"billingAddress"`
	TaxNumber      string `gorm:"size:50" json:"taxNumber"`
	// Not consulted by the default tax policy.
	TaxExempt bool   `gorm:"not null;default:false" json:"taxExempt"`
	Notes     string `gorm:"type:text" json:"notes"`

	Projects []Project `json:"projects,omitempty"`
}
