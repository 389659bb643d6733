package models

import "time"

type SampleTestStatus string

const (
	SampleTestPending    SampleTestStatus = "pending"
	SampleTestInProgress SampleTestStatus = "in_progress"
	SampleTestCompleted  SampleTestStatus = "completed"
)

// SampleTest links a sample (and the set it was requested for) to a catalog test.
type SampleTest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SampleID    uint  `gorm:"index;not null" json:"sampleId"`
	SampleSetID *uint `gorm:"index" json:"sampleSetId,omitempty"`
	TestID      uint  `gorm:"index;not null" json:"testId"`
	Test        *Test `json:"test,omitempty"`

	Status       SampleTestStatus `gorm:"type:varchar(20);not null" json:"status"`
	AssignedToID *uint            `json:"assignedToId,omitempty"`
}
