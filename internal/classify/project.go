package classify

import (
	"strings"
	"time"

	"labdesk/internal/models"
)

// Source is everything a log record can be projected from: the set itself
// plus the denormalised context of the intake it belongs to.
type Source struct {
	Set          *models.SampleSet
	ClientName   string
	ProjectTitle string
	ReceiptNo    string
	DateReceived time.Time
}

// JoinSerials joins serial numbers with ",". A single serial passes through
// unchanged.
func JoinSerials(serials []string) string {
	if len(serials) == 1 {
		return serials[0]
	}
	return strings.Join(serials, ",")
}

// Record classifies src.Set and returns an unsaved record of the chosen kind.
func Record(src Source) models.LogRecord {
	return Project(Classify(src.Set.Category, src.Set.AssignedTests), src)
}

// Project builds the record for kind. Only the fields the schema defines
// are copied.
func Project(kind models.LogKind, src Source) models.LogRecord {
	set := src.Set
	base := models.LogBase{SampleID: set.SampleID, SampleSetID: set.ID}
	serial := JoinSerials(set.SerialNumbers)
	received := datePtr(src.DateReceived)
	age := ageDays(set)

	switch kind {
	case models.LogConcreteCube:
		return &models.ConcreteCubeLog{
			LogBase:      base,
			Client:       src.ClientName,
			Project:      src.ProjectTitle,
			DateReceived: received,
			ReceiptNo:    src.ReceiptNo,
			Class:        set.Class,
			AreaOfUse:    set.AreaOfUse,
			SampleSerial: serial,
			LengthMm:     set.LengthMm,
			WidthMm:      set.WidthMm,
			HeightMm:     set.HeightMm,
			CastingDate:  set.CastingDate,
			TestingDate:  set.TestingDate,
			AgeDays:      age,
		}
	case models.LogBricksBlocks:
		return &models.BricksBlocksLog{
			LogBase:      base,
			Client:       src.ClientName,
			Project:      src.ProjectTitle,
			DateReceived: received,
			ReceiptNo:    src.ReceiptNo,
			SampleType:   set.BlockType,
			AreaOfUse:    set.AreaOfUse,
			SampleSerial: serial,
			LengthMm:     set.LengthMm,
			WidthMm:      set.WidthMm,
			HeightMm:     set.HeightMm,
			CastingDate:  set.CastingDate,
			TestingDate:  set.TestingDate,
			AgeDays:      age,
		}
	case models.LogPavers:
		return &models.PaversLog{
			LogBase:      base,
			AreaOfUse:    set.AreaOfUse,
			SampleSerial: serial,
			CastingDate:  set.CastingDate,
			TestingDate:  set.TestingDate,
			AgeDays:      age,
			PaverType:    set.BlockType,
			PaversPerM2:  set.NumPerSqm,
		}
	case models.LogConcreteCylinder:
		return &models.ConcreteCylinderLog{
			LogBase:      base,
			AreaOfUse:    set.AreaOfUse,
			SampleSerial: serial,
			DiameterMm:   set.DiameterMm,
			HeightMm:     set.HeightMm,
			CastingDate:  set.CastingDate,
			TestingDate:  set.TestingDate,
			AgeDays:      age,
			ReceiptNo:    src.ReceiptNo,
		}
	case models.LogWaterAbsorption:
		return &models.WaterAbsorptionLog{
			LogBase:       base,
			DateOfReceipt: received,
			Client:        src.ClientName,
			Project:       src.ProjectTitle,
			CastingDate:   set.CastingDate,
			TestingDate:   set.TestingDate,
			AgeDays:       age,
			AreaOfUse:     set.AreaOfUse,
			SampleSerial:  serial,
			SampleType:    set.BlockType,
			LengthMm:      set.LengthMm,
			WidthMm:       set.WidthMm,
			HeightMm:      set.HeightMm,
			ReceiptNo:     src.ReceiptNo,
		}
	default:
		return &models.ProjectsLog{
			LogBase: base,
			Date:    received,
			Client:  src.ClientName,
			Project: src.ProjectTitle,
		}
	}
}

func datePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ageDays prefers the age recorded on the set and otherwise derives it from
// the casting and testing dates.
func ageDays(set *models.SampleSet) *int {
	if set.AgeDays != nil {
		return set.AgeDays
	}
	if set.CastingDate == nil || set.TestingDate == nil {
		return nil
	}
	d := int(set.TestingDate.Sub(*set.CastingDate).Hours() / 24)
	if d < 0 {
		return nil
	}
	return &d
}
