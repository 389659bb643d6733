// Package classify routes a sample set to exactly one intake log schema and
// projects the set's fields onto that schema.
package classify

import (
	"strings"

	"labdesk/internal/models"
)

const waterAbsorption = "water absorption"

// Classify picks the log kind for a set. A water absorption test overrides
// the category; unknown categories fall back to the projects log.
func Classify(category string, assignedTests []string) models.LogKind {
	for _, t := range assignedTests {
		if strings.Contains(strings.ToLower(t), waterAbsorption) {
			return models.LogWaterAbsorption
		}
	}

	switch strings.ToLower(strings.TrimSpace(category)) {
	case "concrete":
		return models.LogConcreteCube
	case "pavers":
		return models.LogPavers
	case "bricks", "blocks":
		return models.LogBricksBlocks
	case "concrete cylinder", "cylinder":
		return models.LogConcreteCylinder
	default:
		return models.LogProjects
	}
}

// knownTests is the vocabulary assigned test names are checked against.
var knownTests = []string{
	"compressive strength",
	"water absorption",
	"dimensions",
	"density",
	"flexural strength",
	"splitting tensile strength",
	"abrasion resistance",
	"slump",
	"efflorescence",
	"moisture content",
}

// IsKnownTest reports whether name mentions a test in the lab vocabulary,
// ignoring case.
func IsKnownTest(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	for _, k := range knownTests {
		if strings.Contains(n, k) {
			return true
		}
	}
	return false
}

// UnknownTests returns the names not covered by the vocabulary, in input order.
func UnknownTests(names []string) []string {
	var out []string
	for _, n := range names {
		if !IsKnownTest(n) {
			out = append(out, n)
		}
	}
	return out
}
