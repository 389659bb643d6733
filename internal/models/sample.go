package models

import (
	"time"

	"gorm.io/datatypes"
)

type SampleStatus string

const (
	SampleReceived  SampleStatus = "received"
	SampleInTesting SampleStatus = "in_testing"
	SampleCompleted SampleStatus = "completed"
	SampleReported  SampleStatus = "reported"
)

type Sample struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Code   string       `gorm:"size:32;uniqueIndex;not null" json:"code"` // SMP-2024-123456
	Status SampleStatus `gorm:"type:varchar(20);not null" json:"status"`

	ClientID  uint     `gorm:"index;not null" json:"clientId"`
	Client    *Client  `json:"client,omitempty"`
	ProjectID uint     `gorm:"index;not null" json:"projectId"`
	Project   *Project `json:"project,omitempty"`

	ReceivedDate    time.Time `gorm:"not null" json:"receivedDate"`
	ReceiptTime     string    `gorm:"size:16" json:"receiptTime"`
	ReceiptNo       string    `gorm:"size:64" json:"receiptNo"`
	ReceivedByID    uint      `gorm:"not null" json:"receivedById"`
	DeliveredBy     string    `gorm:"size:255" json:"deliveredBy"`
	DeliveryContact string    `gorm:"size:255" json:"deliveryContact"`
	ModeOfTransmit  string    `gorm:"size:64" json:"modeOfTransmit"`
	AssignedToID    *uint     `json:"assignedToId,omitempty"`
	Notes           string    `gorm:"type:text" json:"notes"`

	Sets  []SampleSet  `json:"sets,omitempty"`
	Tests []SampleTest `json:"tests,omitempty"`
}

// SampleSet is one homogeneous group of specimens inside a sample.
type SampleSet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	SampleID uint `gorm:"index;not null" json:"sampleId"`

	Category  string `gorm:"size:64" json:"category"`
	Class     string `gorm:"size:32" json:"class"`
	BlockType string `gorm:"size:64" json:"blockType"`
	AreaOfUse string `gorm:"size:255" json:"areaOfUse"`

	LengthMm    *float64 `json:"lengthMm,omitempty"`
	WidthMm     *float64 `json:"widthMm,omitempty"`
	HeightMm    *float64 `json:"heightMm,omitempty"`
	DiameterMm  *float64 `json:"diameterMm,omitempty"`
	ThicknessMm *float64 `json:"thicknessMm,omitempty"`
	NumPerSqm   *float64 `json:"numPerSqm,omitempty"`

	CastingDate *time.Time `json:"castingDate,omitempty"`
	TestingDate *time.Time `json:"testingDate,omitempty"`
	AgeDays     *int       `json:"ageDays,omitempty"`

	SerialNumbers datatypes.JSONSlice[string] `json:"serialNumbers"`
	AssignedTests datatypes.JSONSlice[string] `json:"assignedTests"`
}
