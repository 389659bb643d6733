// Package logstore persists the per-kind intake log records.
package logstore

import (
	"context"
	"errors"
	"fmt"

	"labdesk/internal/apperr"
	"labdesk/internal/models"

	"gorm.io/gorm"
)

// Store reads and writes log records. Every method runs on the handle it is
// given so callers can keep it inside their transaction.
type Store struct{}

func New() *Store { return &Store{} }

// Write inserts rec. A set that already has a record in any log table is
// rejected with a conflict.
func (s *Store) Write(ctx context.Context, tx *gorm.DB, rec models.LogRecord) error {
	_, setID := rec.SetRef()
	existing, err := s.FindBySet(ctx, tx, setID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperr.Conflict("log_exists",
			fmt.Errorf("set %d already logged as %s #%d", setID, existing.Kind(), existing.RecordID()))
	}

	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return apperr.Conflict("log_exists", err)
		}
		return fmt.Errorf("write %s log: %w", rec.Kind(), err)
	}
	return nil
}

// FindBySet returns the record written for setID, or nil when there is none.
func (s *Store) FindBySet(ctx context.Context, tx *gorm.DB, setID uint) (models.LogRecord, error) {
	for _, kind := range models.LogKinds {
		rec := models.NewLogRecord(kind)
		err := tx.WithContext(ctx).Where("sample_set_id = ?", setID).Take(rec).Error
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find %s log for set %d: %w", kind, setID, err)
		}
	}
	return nil, nil
}

// ListBySample returns every record of a sample, grouped by kind in
// models.LogKinds order.
func (s *Store) ListBySample(ctx context.Context, tx *gorm.DB, sampleID uint) ([]models.LogRecord, error) {
	db := tx.WithContext(ctx)
	var out []models.LogRecord
	for _, kind := range models.LogKinds {
		recs, err := listers[kind](db, sampleID)
		if err != nil {
			return nil, fmt.Errorf("list %s logs for sample %d: %w", kind, sampleID, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

var listers = map[models.LogKind]func(*gorm.DB, uint) ([]models.LogRecord, error){
	models.LogConcreteCube:     listKind[models.ConcreteCubeLog],
	models.LogBricksBlocks:     listKind[models.BricksBlocksLog],
	models.LogPavers:           listKind[models.PaversLog],
	models.LogConcreteCylinder: listKind[models.ConcreteCylinderLog],
	models.LogWaterAbsorption:  listKind[models.WaterAbsorptionLog],
	models.LogProjects:         listKind[models.ProjectsLog],
}

func listKind[T any, PT interface {
	*T
	models.LogRecord
}](db *gorm.DB, sampleID uint) ([]models.LogRecord, error) {
	var rows []T
	if err := db.Where("sample_id = ?", sampleID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.LogRecord, 0, len(rows))
	for i := range rows {
		out = append(out, PT(&rows[i]))
	}
	return out, nil
}
