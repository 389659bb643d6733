package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"labdesk/internal/apperr"
	"labdesk/internal/jsondate"
	"labdesk/internal/models"
)

// SerialList accepts either a JSON array of serial numbers or a single
// string. A single string is kept as one element and never split.
type SerialList []string

func (s *SerialList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		if strings.TrimSpace(one) == "" {
			*s = nil
			return nil
		}
		*s = SerialList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("serialNumbers must be a string or an array of strings: %w", err)
	}
	*s = many
	return nil
}

type SetInput struct {
	Category  string `json:"category"`
	Class     string `json:"class"`
	BlockType string `json:"blockType"`
	AreaOfUse string `json:"areaOfUse"`

	LengthMm    *float64 `json:"lengthMm"`
	WidthMm     *float64 `json:"widthMm"`
	HeightMm    *float64 `json:"heightMm"`
	DiameterMm  *float64 `json:"diameterMm"`
	ThicknessMm *float64 `json:"thicknessMm"`
	NumPerSqm   *float64 `json:"numPerSqm"`

	CastingDate *jsondate.Date `json:"castingDate"`
	TestingDate *jsondate.Date `json:"testingDate"`
	AgeDays     *int           `json:"ageDays"`

	SerialNumbers SerialList `json:"serialNumbers"`
	AssignedTests []string   `json:"assignedTests"`
}

func (in SetInput) model(sampleID uint) models.SampleSet {
	return models.SampleSet{
		SampleID:      sampleID,
		Category:      strings.TrimSpace(in.Category),
		Class:         in.Class,
		BlockType:     in.BlockType,
		AreaOfUse:     in.AreaOfUse,
		LengthMm:      in.LengthMm,
		WidthMm:       in.WidthMm,
		HeightMm:      in.HeightMm,
		DiameterMm:    in.DiameterMm,
		ThicknessMm:   in.ThicknessMm,
		NumPerSqm:     in.NumPerSqm,
		CastingDate:   in.CastingDate.Ptr(),
		TestingDate:   in.TestingDate.Ptr(),
		AgeDays:       in.AgeDays,
		SerialNumbers: []string(in.SerialNumbers),
		AssignedTests: in.AssignedTests,
	}
}

type TestRequest struct {
	MaterialTest string `json:"materialTest"`
}

// Request is one front-desk receipt: who brought what, for which client and
// project.
type Request struct {
	ClientName      string         `json:"clientName"`
	ProjectTitle    string         `json:"projectTitle"`
	ReceivedDate    *jsondate.Date `json:"receivedDate"`
	ReceivedBy      uint           `json:"receivedBy"`
	ReceiptNo       string         `json:"receiptNo"`
	ReceiptTime     string         `json:"receiptTime"`
	DeliveredBy     string         `json:"deliveredBy"`
	DeliveryContact string         `json:"deliveryContact"`
	ModeOfTransmit  string         `json:"modeOfTransmit"`
	Notes           string         `json:"notes"`

	Sets  []SetInput    `json:"sets"`
	Tests []TestRequest `json:"tests"`
}

func (r Request) validate() error {
	v := apperr.Violations{}
	v.Required("clientName", strings.TrimSpace(r.ClientName))
	v.Required("projectTitle", strings.TrimSpace(r.ProjectTitle))
	if r.ReceivedDate.Ptr() == nil {
		v["receivedDate"] = "required"
	}
	if r.ReceivedBy == 0 {
		v["receivedBy"] = "required"
	}
	if !v.Empty() {
		return apperr.Validation(v)
	}
	return nil
}

// testNames returns the requested catalog names, trimmed and deduplicated,
// in request order.
func (r Request) testNames() []string {
	seen := make(map[string]bool, len(r.Tests))
	var out []string
	for _, t := range r.Tests {
		name := strings.TrimSpace(t.MaterialTest)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
