package models

import "time"

// LogKind names one of the mutually exclusive intake log schemas.
type LogKind string

const (
	LogConcreteCube     LogKind = "concrete_cube"
	LogBricksBlocks     LogKind = "bricks_blocks"
	LogPavers           LogKind = "pavers"
	LogConcreteCylinder LogKind = "concrete_cylinder"
	LogWaterAbsorption  LogKind = "water_absorption"
	LogProjects         LogKind = "projects"
)

// LogKinds lists every kind in lookup order.
var LogKinds = []LogKind{
	LogConcreteCube,
	LogBricksBlocks,
	LogPavers,
	LogConcreteCylinder,
	LogWaterAbsorption,
	LogProjects,
}

// LogRecord is implemented by the six log tables. Records are written once
// and never updated.
type LogRecord interface {
	Kind() LogKind
	RecordID() uint
	SetRef() (sampleID, sampleSetID uint)
}

// NewLogRecord returns an empty record of the given kind, or nil.
func NewLogRecord(kind LogKind) LogRecord {
	switch kind {
	case LogConcreteCube:
		return &ConcreteCubeLog{}
	case LogBricksBlocks:
		return &BricksBlocksLog{}
	case LogPavers:
		return &PaversLog{}
	case LogConcreteCylinder:
		return &ConcreteCylinderLog{}
	case LogWaterAbsorption:
		return &WaterAbsorptionLog{}
	case LogProjects:
		return &ProjectsLog{}
	}
	return nil
}

// LogModels returns one pointer per log table, for migrations.
func LogModels() []interface{} {
	out := make([]interface{}, 0, len(LogKinds))
	for _, k := range LogKinds {
		out = append(out, NewLogRecord(k))
	}
	return out
}

// LogBase ties a record to the set it was classified from. The unique index
// on SampleSetID keeps a set from being logged twice in the same table.
type LogBase struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	SampleID    uint      `gorm:"index;not null" json:"sampleId"`
	SampleSetID uint      `gorm:"uniqueIndex;not null" json:"sampleSetId"`
}

func (b *LogBase) RecordID() uint                       { return b.ID }
func (b *LogBase) SetRef() (sampleID, sampleSetID uint) { return b.SampleID, b.SampleSetID }

type ConcreteCubeLog struct {
	LogBase
	Client       string     `gorm:"size:255" json:"client"`
	Project      string     `gorm:"size:255" json:"project"`
	DateReceived *time.Time `json:"dateReceived,omitempty"`
	ReceiptNo    string     `gorm:"size:64" json:"receiptNo"`
	Class        string     `gorm:"size:32" json:"class"`
	AreaOfUse    string     `gorm:"size:255" json:"areaOfUse"`
	SampleSerial string     `gorm:"type:text" json:"sampleSerial"`
	LengthMm     *float64   `json:"lengthMm,omitempty"`
	WidthMm      *float64   `json:"widthMm,omitempty"`
	HeightMm     *float64   `json:"heightMm,omitempty"`
	CastingDate  *time.Time `json:"castingDate,omitempty"`
	TestingDate  *time.Time `json:"testingDate,omitempty"`
	AgeDays      *int       `json:"ageDays,omitempty"`
}

func (ConcreteCubeLog) TableName() string { return "concrete_cube_logs" }
func (*ConcreteCubeLog) Kind() LogKind    { return LogConcreteCube }

type BricksBlocksLog struct {
	LogBase
	Client       string     `gorm:"size:255" json:"client"`
	Project      string     `gorm:"size:255" json:"project"`
	DateReceived *time.Time `json:"dateReceived,omitempty"`
	ReceiptNo    string     `gorm:"size:64" json:"receiptNo"`
	SampleType   string     `gorm:"size:64" json:"sampleType"`
	AreaOfUse    string     `gorm:"size:255" json:"areaOfUse"`
	SampleSerial string     `gorm:"type:text" json:"sampleSerial"`
	LengthMm     *float64   `json:"lengthMm,omitempty"`
	WidthMm      *float64   `json:"widthMm,omitempty"`
	HeightMm     *float64   `json:"heightMm,omitempty"`
	CastingDate  *time.Time `json:"castingDate,omitempty"`
	TestingDate  *time.Time `json:"testingDate,omitempty"`
	AgeDays      *int       `json:"ageDays,omitempty"`
}

func (BricksBlocksLog) TableName() string { return "bricks_blocks_logs" }
func (*BricksBlocksLog) Kind() LogKind    { return LogBricksBlocks }

type PaversLog struct {
	LogBase
	AreaOfUse    string     `gorm:"size:255" json:"areaOfUse"`
	SampleSerial string     `gorm:"type:text" json:"sampleSerial"`
	CastingDate  *time.Time `json:"castingDate,omitempty"`
	TestingDate  *time.Time `json:"testingDate,omitempty"`
	AgeDays      *int       `json:"ageDays,omitempty"`
	PaverType    string     `gorm:"size:64" json:"paverType"`
	PaversPerM2  *float64   `json:"paversPerM2,omitempty"`
}

func (PaversLog) TableName() string { return "pavers_logs" }
func (*PaversLog) Kind() LogKind    { return LogPavers }

type ConcreteCylinderLog struct {
	LogBase
	AreaOfUse    string     `gorm:"size:255" json:"areaOfUse"`
	SampleSerial string     `gorm:"type:text" json:"sampleSerial"`
	DiameterMm   *float64   `json:"diameterMm,omitempty"`
	HeightMm     *float64   `json:"heightMm,omitempty"`
	CastingDate  *time.Time `json:"castingDate,omitempty"`
	TestingDate  *time.Time `json:"testingDate,omitempty"`
	AgeDays      *int       `json:"ageDays,omitempty"`
	ReceiptNo    string     `gorm:"size:64" json:"receiptNo"`
}

func (ConcreteCylinderLog) TableName() string { return "concrete_cylinder_logs" }
func (*ConcreteCylinderLog) Kind() LogKind    { return LogConcreteCylinder }

type WaterAbsorptionLog struct {
	LogBase
	DateOfReceipt *time.Time `json:"dateOfReceipt,omitempty"`
	Client        string     `gorm:"size:255" json:"client"`
	Project       string     `gorm:"size:255" json:"project"`
	CastingDate   *time.Time `json:"castingDate,omitempty"`
	TestingDate   *time.Time `json:"testingDate,omitempty"`
	AgeDays       *int       `json:"ageDays,omitempty"`
	AreaOfUse     string     `gorm:"size:255" json:"areaOfUse"`
	SampleSerial  string     `gorm:"type:text" json:"sampleSerial"`
	SampleType    string     `gorm:"size:64" json:"sampleType"`
	LengthMm      *float64   `json:"lengthMm,omitempty"`
	WidthMm       *float64   `json:"widthMm,omitempty"`
	HeightMm      *float64   `json:"heightMm,omitempty"`
	ReceiptNo     string     `gorm:"size:64" json:"receiptNo"`
}

func (WaterAbsorptionLog) TableName() string { return "water_absorption_logs" }
func (*WaterAbsorptionLog) Kind() LogKind    { return LogWaterAbsorption }

// ProjectsLog is the fallback for categories no other schema covers.
type ProjectsLog struct {
	LogBase
	Date    *time.Time `json:"date,omitempty"`
	Client  string     `gorm:"size:255" json:"client"`
	Project string     `gorm:"size:255" json:"project"`
}

func (ProjectsLog) TableName() string { return "projects_logs" }
func (*ProjectsLog) Kind() LogKind    { return LogProjects }
