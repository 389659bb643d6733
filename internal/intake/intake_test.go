package intake_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"labdesk/internal/apperr"
	"labdesk/internal/intake"
	"labdesk/internal/jsondate"
	"labdesk/internal/logger"
	"labdesk/internal/logstore"
	"labdesk/internal/metrics"
	"labdesk/internal/models"
	"labdesk/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// failingStore refuses to write records of one kind.
type failingStore struct {
	*logstore.Store
	kind models.LogKind
}

func (f failingStore) Write(ctx context.Context, tx *gorm.DB, rec models.LogRecord) error {
	if rec.Kind() == f.kind {
		return errors.New("log table unavailable")
	}
	return f.Store.Write(ctx, tx, rec)
}

type fixture struct {
	db   *gorm.DB
	svc  *intake.Service
	user models.User
}

func newFixture(t *testing.T, store intake.LogStore) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	if store == nil {
		store = logstore.New()
	}
	svc := intake.NewService(db, store, metrics.New(), logger.Nop())
	svc.Now = func() time.Time { return time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC) }
	seq := 0
	svc.NewCode = func(now time.Time) string {
		seq++
		return fmt.Sprintf("SMP-%d-%06d", now.Year(), seq)
	}
	return &fixture{db: db, svc: svc, user: testutil.CreateUser(t, db, "desk", models.RoleReceptionist)}
}

func (f *fixture) request(sets ...intake.SetInput) intake.Request {
	return intake.Request{
		ClientName:      "Acme Builders",
		ProjectTitle:    "Riverside Towers",
		ReceivedDate:    &jsondate.Date{Time: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		ReceivedBy:      f.user.ID,
		ReceiptTime:     "10:15",
		DeliveredBy:     "J. Mwangi",
		DeliveryContact: "+255 700 000 000",
		ModeOfTransmit:  "site vehicle",
		Sets:            sets,
	}
}

func countLogs(t *testing.T, db *gorm.DB, setID uint) int64 {
	t.Helper()
	var total int64
	for _, k := range models.LogKinds {
		var n int64
		require.NoError(t, db.Model(models.NewLogRecord(k)).Where("sample_set_id = ?", setID).Count(&n).Error)
		total += n
	}
	return total
}

func date(y int, m time.Month, d int) *jsondate.Date {
	return &jsondate.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func TestReceiveConcreteSetWritesCubeLog(t *testing.T) {
	f := newFixture(t, nil)
	testutil.CreateTest(t, f.db, "CC-CS", "Compressive Strength", "concrete", 50000)
	length := 150.0

	req := f.request(intake.SetInput{
		Category:      "Concrete",
		Class:         "C25",
		AreaOfUse:     "Slab level 2",
		LengthMm:      &length,
		CastingDate:   date(2024, 2, 5),
		TestingDate:   date(2024, 3, 4),
		SerialNumbers: intake.SerialList{"C1", "C2", "C3"},
		AssignedTests: []string{"Compressive Strength"},
	})
	req.Tests = []intake.TestRequest{{MaterialTest: "Compressive Strength"}}

	res, err := f.svc.Receive(context.Background(), f.user.ID, req)
	require.NoError(t, err)

	require.Len(t, res.Sample.Sets, 1)
	setID := res.Sample.Sets[0].ID
	assert.Equal(t, models.SampleReceived, res.Sample.Status)
	assert.Equal(t, "SMP-2024-000001", res.Sample.Code)
	assert.Equal(t, res.Sample.Code, res.Sample.ReceiptNo)
	assert.Equal(t, "Acme Builders", res.Client.Name)
	assert.Equal(t, models.ProjectActive, res.Project.Status)
	assert.Empty(t, res.FailedSets)
	assert.Empty(t, res.UnmatchedTests)
	require.Len(t, res.SucceededSets, 1)
	assert.Equal(t, models.LogConcreteCube, res.SucceededSets[0].LogKind)

	var cube models.ConcreteCubeLog
	require.NoError(t, f.db.Where("sample_set_id = ?", setID).First(&cube).Error)
	assert.Equal(t, res.SucceededSets[0].LogID, cube.ID)
	assert.Equal(t, res.Sample.ID, cube.SampleID)
	assert.Equal(t, "Acme Builders", cube.Client)
	assert.Equal(t, "Riverside Towers", cube.Project)
	assert.Equal(t, "C1,C2,C3", cube.SampleSerial)
	assert.Equal(t, "C25", cube.Class)
	require.NotNil(t, cube.AgeDays)
	assert.Equal(t, 28, *cube.AgeDays)
	assert.EqualValues(t, 1, countLogs(t, f.db, setID))

	var links []models.SampleTest
	require.NoError(t, f.db.Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, models.SampleTestPending, links[0].Status)
	require.NotNil(t, links[0].SampleSetID)
	assert.Equal(t, setID, *links[0].SampleSetID)

	var audits []models.AuditLog
	require.NoError(t, f.db.Order("id").Find(&audits).Error)
	require.Len(t, audits, 2)
	assert.Equal(t, "sample_receipt", audits[0].ActionType)
	assert.Contains(t, audits[0].Description, "delivered by J. Mwangi")
	assert.Equal(t, "sample_received", audits[1].ActionType)
}

func TestReceiveWaterAbsorptionOverridesBricks(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Receive(context.Background(), f.user.ID, f.request(intake.SetInput{
		Category:      "Bricks",
		BlockType:     "solid",
		SerialNumbers: intake.SerialList{"B-7"},
		AssignedTests: []string{"Water Absorption Test"},
	}))
	require.NoError(t, err)
	setID := res.Sample.Sets[0].ID

	var wa models.WaterAbsorptionLog
	require.NoError(t, f.db.Where("sample_set_id = ?", setID).First(&wa).Error)
	assert.Equal(t, "B-7", wa.SampleSerial)
	assert.Equal(t, "solid", wa.SampleType)

	var bricks int64
	f.db.Model(&models.BricksBlocksLog{}).Count(&bricks)
	assert.Zero(t, bricks)
	assert.EqualValues(t, 1, countLogs(t, f.db, setID))
}

func TestReceiveOneLogPerSetAcrossKinds(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Receive(context.Background(), f.user.ID, f.request(
		intake.SetInput{Category: "  CONCRETE "},
		intake.SetInput{Category: "pavers"},
		intake.SetInput{Category: "Blocks"},
		intake.SetInput{Category: "Cylinder"},
		intake.SetInput{Category: "soil"},
		intake.SetInput{},
	))
	require.NoError(t, err)

	want := []models.LogKind{
		models.LogConcreteCube, models.LogPavers, models.LogBricksBlocks,
		models.LogConcreteCylinder, models.LogProjects, models.LogProjects,
	}
	require.Len(t, res.SucceededSets, len(want))
	for i, set := range res.Sample.Sets {
		assert.Equal(t, want[i], res.SucceededSets[i].LogKind)
		assert.Equal(t, set.ID, res.SucceededSets[i].SetID)
		assert.EqualValues(t, 1, countLogs(t, f.db, set.ID), "set %d", set.ID)
	}
}

func TestReceiveValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Receive(context.Background(), f.user.ID, intake.Request{ClientName: "  "})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	for _, field := range []string{"clientName", "projectTitle", "receivedDate", "receivedBy"} {
		assert.Contains(t, ae.Violations, field)
	}

	var n int64
	f.db.Model(&models.Client{}).Count(&n)
	assert.Zero(t, n)
}

func TestReceiveReusesClientAndAlwaysCreatesProject(t *testing.T) {
	f := newFixture(t, nil)
	existing := testutil.CreateClient(t, f.db, "Acme Builders")

	for i := 0; i < 2; i++ {
		res, err := f.svc.Receive(context.Background(), f.user.ID, f.request())
		require.NoError(t, err)
		assert.Equal(t, existing.ID, res.Client.ID)
	}

	var clients, projects int64
	f.db.Model(&models.Client{}).Count(&clients)
	f.db.Model(&models.Project{}).Count(&projects)
	assert.EqualValues(t, 1, clients)
	assert.EqualValues(t, 2, projects)
}

func TestReceiveSkipsUnknownTests(t *testing.T) {
	f := newFixture(t, nil)
	testutil.CreateTest(t, f.db, "GN-DM", "Dimensions", "general", 5000)

	req := f.request(intake.SetInput{Category: "pavers"}, intake.SetInput{Category: "pavers"})
	req.Tests = []intake.TestRequest{
		{MaterialTest: "Dimensions"},
		{MaterialTest: "Telepathy"},
		{MaterialTest: "dimensions"}, // names match exactly
		{MaterialTest: "Dimensions"},
	}
	res, err := f.svc.Receive(context.Background(), f.user.ID, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Telepathy", "dimensions"}, res.UnmatchedTests)

	var links int64
	f.db.Model(&models.SampleTest{}).Count(&links)
	assert.EqualValues(t, 2, links, "one link per set")
}

func TestReceiveIsolatesFailedSetAndRetryRecovers(t *testing.T) {
	store := logstore.New()
	f := newFixture(t, failingStore{Store: store, kind: models.LogPavers})

	res, err := f.svc.Receive(context.Background(), f.user.ID, f.request(
		intake.SetInput{Category: "concrete"},
		intake.SetInput{Category: "pavers", SerialNumbers: intake.SerialList{"P-1"}},
		intake.SetInput{Category: "bricks"},
	))
	require.NoError(t, err)

	require.Len(t, res.Sample.Sets, 3)
	require.Len(t, res.FailedSets, 1)
	failed := res.FailedSets[0]
	assert.Equal(t, res.Sample.Sets[1].ID, failed.SetID)
	assert.Contains(t, failed.Reason, "log table unavailable")
	assert.Len(t, res.SucceededSets, 2)

	// the failed set keeps its row but has no log
	var sets int64
	f.db.Model(&models.SampleSet{}).Count(&sets)
	assert.EqualValues(t, 3, sets)
	assert.Zero(t, countLogs(t, f.db, failed.SetID))

	healthy := intake.NewService(f.db, store, nil, logger.Nop())
	out, created, err := healthy.RetrySetLog(context.Background(), f.user.ID, res.Sample.ID, failed.SetID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.LogPavers, out.LogKind)
	assert.EqualValues(t, 1, countLogs(t, f.db, failed.SetID))

	var pavers models.PaversLog
	require.NoError(t, f.db.Where("sample_set_id = ?", failed.SetID).First(&pavers).Error)
	assert.Equal(t, "P-1", pavers.SampleSerial)

	again, created, err := healthy.RetrySetLog(context.Background(), f.user.ID, res.Sample.ID, failed.SetID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, out.LogID, again.LogID)
	assert.EqualValues(t, 1, countLogs(t, f.db, failed.SetID))
}

func TestRetrySetLogUnknownSet(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.Receive(context.Background(), f.user.ID, f.request(intake.SetInput{Category: "concrete"}))
	require.NoError(t, err)

	_, _, err = f.svc.RetrySetLog(context.Background(), f.user.ID, res.Sample.ID+1, res.Sample.Sets[0].ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReceiveGivesUpOnPersistentCodeCollision(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.NewCode = func(time.Time) string { return "SMP-2024-123456" }

	_, err := f.svc.Receive(context.Background(), f.user.ID, f.request(intake.SetInput{Category: "concrete"}))
	require.NoError(t, err)

	req := f.request(intake.SetInput{Category: "concrete"})
	req.ClientName = "Other Client"
	_, err = f.svc.Receive(context.Background(), f.user.ID, req)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// nothing from the failed intake survives
	var clients, projects int64
	f.db.Model(&models.Client{}).Count(&clients)
	f.db.Model(&models.Project{}).Count(&projects)
	assert.EqualValues(t, 1, clients)
	assert.EqualValues(t, 1, projects)
}

func TestReceiveRetriesSampleCodeCollision(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.NewCode = intake.SampleCode
	first := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	// the millisecond suffix repeats every 1000 seconds
	second := first.Add(1000 * time.Second)
	require.Equal(t, intake.SampleCode(first), intake.SampleCode(second))

	clock := first
	f.svc.Now = func() time.Time { return clock }
	a, err := f.svc.Receive(context.Background(), f.user.ID, f.request(intake.SetInput{Category: "concrete"}))
	require.NoError(t, err)

	clock = second
	req := f.request(intake.SetInput{Category: "pavers"})
	b, err := f.svc.Receive(context.Background(), f.user.ID, req)
	require.NoError(t, err)

	assert.Equal(t, intake.SampleCode(first), a.Sample.Code)
	assert.Equal(t, intake.SampleCode(second.Add(time.Millisecond)), b.Sample.Code)
	assert.Equal(t, b.Sample.Code, b.Sample.ReceiptNo)
	require.Len(t, b.SucceededSets, 1)

	var samples int64
	require.NoError(t, f.db.Model(&models.Sample{}).Count(&samples).Error)
	assert.EqualValues(t, 2, samples)
}

func TestReceiveRejectsUnknownUsers(t *testing.T) {
	f := newFixture(t, nil)

	req := f.request()
	req.ReceivedBy = 9999
	_, err := f.svc.Receive(context.Background(), f.user.ID, req)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Equal(t, "unknown user", ae.Violations["receivedBy"])

	_, err = f.svc.Receive(context.Background(), 9999, f.request())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	var samples int64
	require.NoError(t, f.db.Model(&models.Sample{}).Count(&samples).Error)
	assert.Zero(t, samples)
}

func TestReceiveAuditsThePrincipal(t *testing.T) {
	f := newFixture(t, nil)
	courier := testutil.CreateUser(t, f.db, "courier", models.RoleTechnician)

	req := f.request()
	req.ReceivedBy = courier.ID
	res, err := f.svc.Receive(context.Background(), f.user.ID, req)
	require.NoError(t, err)
	assert.Equal(t, courier.ID, res.Sample.ReceivedByID)
	assert.Equal(t, f.user.ID, res.Project.CreatedByID)

	var audits []models.AuditLog
	require.NoError(t, f.db.Where("sample_id = ?", res.Sample.ID).Find(&audits).Error)
	require.NotEmpty(t, audits)
	for _, a := range audits {
		assert.Equal(t, f.user.ID, a.UserID, a.ActionType)
	}
}

func TestGetIncludesLogs(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.Receive(context.Background(), f.user.ID, f.request(
		intake.SetInput{Category: "concrete"},
		intake.SetInput{Category: "soil"},
	))
	require.NoError(t, err)

	view, err := f.svc.Get(context.Background(), res.Sample.ID)
	require.NoError(t, err)
	assert.Len(t, view.Sets, 2)
	require.Len(t, view.Logs, 2)
	assert.Equal(t, models.LogConcreteCube, view.Logs[0].Kind)
	assert.Equal(t, models.LogProjects, view.Logs[1].Kind)

	_, err = f.svc.Get(context.Background(), 999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	list, err := f.svc.List(context.Background(), intake.SampleFilter{ClientID: res.Client.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSerialListAcceptsStringOrArray(t *testing.T) {
	var in intake.SetInput
	require.NoError(t, json.Unmarshal([]byte(`{"serialNumbers":"A1, A2"}`), &in))
	assert.Equal(t, intake.SerialList{"A1, A2"}, in.SerialNumbers)

	require.NoError(t, json.Unmarshal([]byte(`{"serialNumbers":["A1","A2"]}`), &in))
	assert.Equal(t, intake.SerialList{"A1", "A2"}, in.SerialNumbers)

	require.NoError(t, json.Unmarshal([]byte(`{"serialNumbers":null}`), &in))
	assert.Nil(t, in.SerialNumbers)

	assert.Error(t, json.Unmarshal([]byte(`{"serialNumbers":42}`), &in))
}

func TestSampleCode(t *testing.T) {
	ts := time.UnixMilli(1709550123456).UTC()
	assert.Equal(t, "SMP-2024-123456", intake.SampleCode(ts))
}
