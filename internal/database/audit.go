package database

import (
	"context"

	"labdesk/internal/models"

	"gorm.io/gorm"
)

// AuditEntry is what callers record; the row itself is append-only.
type AuditEntry struct {
	UserID      uint
	SampleID    *uint
	Entity      string
	EntityID    uint
	ActionType  string
	Description string
}

// CreateAuditLog writes entry on tx so it commits or rolls back with the
// change it describes.
func CreateAuditLog(ctx context.Context, tx *gorm.DB, entry AuditEntry) error {
	record := models.AuditLog{
		UserID:      entry.UserID,
		SampleID:    entry.SampleID,
		Entity:      entry.Entity,
		EntityID:    entry.EntityID,
		ActionType:  entry.ActionType,
		Description: entry.Description,
	}
	return tx.WithContext(ctx).Create(&record).Error
}
