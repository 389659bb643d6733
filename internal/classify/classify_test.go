package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdesk/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		category string
		tests    []string
		want     models.LogKind
	}{
		{"concrete", []string{"Compressive Strength"}, models.LogConcreteCube},
		{"Concrete", nil, models.LogConcreteCube},
		{"  CONCRETE \t", nil, models.LogConcreteCube},
		{"pavers", nil, models.LogPavers},
		{"Bricks", nil, models.LogBricksBlocks},
		{"blocks", []string{"Dimensions"}, models.LogBricksBlocks},
		{"Concrete Cylinder", nil, models.LogConcreteCylinder},
		{"cylinder", nil, models.LogConcreteCylinder},
		{"", nil, models.LogProjects},
		{"steel rebar", nil, models.LogProjects},
		{"concrete cube", nil, models.LogProjects},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.category, tc.tests), "category=%q tests=%v", tc.category, tc.tests)
	}
}

func TestClassifyWaterAbsorptionOverridesCategory(t *testing.T) {
	for _, category := range []string{"concrete", "Bricks", "pavers", "cylinder", "", "unknown"} {
		for _, test := range []string{"Water Absorption", "water absorption test", "24h WATER ABSORPTION (BS EN 772-21)"} {
			got := Classify(category, []string{"Compressive Strength", test})
			assert.Equal(t, models.LogWaterAbsorption, got, "category=%q test=%q", category, test)
		}
	}
	assert.Equal(t, models.LogBricksBlocks, Classify("bricks", []string{"water-absorption"}))
}

func TestKnownTests(t *testing.T) {
	assert.True(t, IsKnownTest("Compressive Strength"))
	assert.True(t, IsKnownTest("WATER ABSORPTION TEST"))
	assert.False(t, IsKnownTest("  "))
	assert.Equal(t, []string{"Chloride ingress"}, UnknownTests([]string{"Density", "Chloride ingress"}))
}

func TestJoinSerials(t *testing.T) {
	assert.Equal(t, "", JoinSerials(nil))
	assert.Equal(t, "A1, A2", JoinSerials([]string{"A1, A2"}))
	assert.Equal(t, "C1,C2,C3", JoinSerials([]string{"C1", "C2", "C3"}))
}

func fptr(v float64) *float64 { return &v }

func testSet(category string, tests ...string) *models.SampleSet {
	cast := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	test := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)
	return &models.SampleSet{
		ID:            11,
		SampleID:      7,
		Category:      category,
		Class:         "C25",
		BlockType:     "hollow",
		AreaOfUse:     "Slab",
		LengthMm:      fptr(150),
		WidthMm:       fptr(150),
		HeightMm:      fptr(150),
		DiameterMm:    fptr(100),
		NumPerSqm:     fptr(50),
		CastingDate:   &cast,
		TestingDate:   &test,
		SerialNumbers: []string{"S1", "S2"},
		AssignedTests: tests,
	}
}

func testSource(set *models.SampleSet) Source {
	return Source{
		Set:          set,
		ClientName:   "Acme Builders",
		ProjectTitle: "Bridge Deck",
		ReceiptNo:    "RCT-9",
		DateReceived: time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestRecordConcreteCube(t *testing.T) {
	rec := Record(testSource(testSet("Concrete", "Compressive Strength")))
	cube, ok := rec.(*models.ConcreteCubeLog)
	require.True(t, ok, "got %T", rec)

	assert.Equal(t, uint(11), cube.SampleSetID)
	assert.Equal(t, uint(7), cube.SampleID)
	assert.Equal(t, "Acme Builders", cube.Client)
	assert.Equal(t, "Bridge Deck", cube.Project)
	assert.Equal(t, "RCT-9", cube.ReceiptNo)
	assert.Equal(t, "C25", cube.Class)
	assert.Equal(t, "S1,S2", cube.SampleSerial)
	require.NotNil(t, cube.AgeDays)
	assert.Equal(t, 28, *cube.AgeDays)
	require.NotNil(t, cube.DateReceived)
}

func TestRecordProjections(t *testing.T) {
	bricks, ok := Record(testSource(testSet("bricks"))).(*models.BricksBlocksLog)
	require.True(t, ok)
	assert.Equal(t, "hollow", bricks.SampleType)
	assert.Equal(t, "Acme Builders", bricks.Client)

	pavers, ok := Record(testSource(testSet("pavers"))).(*models.PaversLog)
	require.True(t, ok)
	assert.Equal(t, "hollow", pavers.PaverType)
	assert.Equal(t, 50.0, *pavers.PaversPerM2)

	cyl, ok := Record(testSource(testSet("cylinder"))).(*models.ConcreteCylinderLog)
	require.True(t, ok)
	assert.Equal(t, 100.0, *cyl.DiameterMm)
	assert.Equal(t, "RCT-9", cyl.ReceiptNo)

	wa, ok := Record(testSource(testSet("bricks", "Water Absorption Test"))).(*models.WaterAbsorptionLog)
	require.True(t, ok)
	assert.Equal(t, "hollow", wa.SampleType)
	require.NotNil(t, wa.DateOfReceipt)

	fallback, ok := Record(testSource(testSet("timber"))).(*models.ProjectsLog)
	require.True(t, ok)
	assert.Equal(t, "Bridge Deck", fallback.Project)
	require.NotNil(t, fallback.Date)
}

func TestRecordOmitsMissingDates(t *testing.T) {
	set := testSet("concrete")
	set.CastingDate = nil
	src := testSource(set)
	src.DateReceived = time.Time{}

	cube := Record(src).(*models.ConcreteCubeLog)
	assert.Nil(t, cube.CastingDate)
	assert.Nil(t, cube.DateReceived)
	assert.Nil(t, cube.AgeDays)
	assert.NotNil(t, cube.TestingDate)
}

func TestRecordKeepsExplicitAge(t *testing.T) {
	set := testSet("concrete")
	age := 7
	set.AgeDays = &age
	cube := Record(testSource(set)).(*models.ConcreteCubeLog)
	assert.Equal(t, 7, *cube.AgeDays)
}
