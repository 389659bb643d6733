package models

import "time"

// AuditLog is append-only; nothing in the service updates or deletes rows.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`

	UserID uint  `gorm:"index" json:"userId"`
	User   *User `json:"user,omitempty"`

	SampleID *uint `gorm:"index" json:"sampleId,omitempty"`

	Entity      string `gorm:"size:50;not null" json:"entity"` // "sample", "invoice", "payment", "client"
	EntityID    uint   `json:"entityId"`
	ActionType  string `gorm:"size:50;not null" json:"actionType"`
	Description string `gorm:"type:text" json:"description"`
}
