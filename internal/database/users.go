package database

import (
	"context"

	"labdesk/internal/apperr"
	"labdesk/internal/models"

	"gorm.io/gorm"
)

// CheckActors verifies the acting principal and every user id named in the
// request body. An unknown principal is a not-found error; unknown body ids
// are field violations.
func CheckActors(ctx context.Context, db *gorm.DB, principal uint, fields map[string]uint) error {
	ids := []uint{principal}
	for _, id := range fields {
		ids = append(ids, id)
	}

	var found []uint
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return apperr.FromDB("user", err)
	}
	known := make(map[uint]bool, len(found))
	for _, id := range found {
		known[id] = true
	}

	if !known[principal] {
		return apperr.NotFound("user", principal)
	}
	v := apperr.Violations{}
	for field, id := range fields {
		if !known[id] {
			v[field] = "unknown user"
		}
	}
	if !v.Empty() {
		return apperr.Validation(v)
	}
	return nil
}
