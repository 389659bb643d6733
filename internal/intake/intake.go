// Package intake receives samples at the front desk: it resolves the client,
// opens a project, records the sample and its sets, links the requested
// catalog tests and writes one log record per set.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"labdesk/internal/apperr"
	"labdesk/internal/classify"
	"labdesk/internal/database"
	"labdesk/internal/logger"
	"labdesk/internal/metrics"
	"labdesk/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LogStore is the persistence the service needs for log records.
type LogStore interface {
	Write(ctx context.Context, tx *gorm.DB, rec models.LogRecord) error
	FindBySet(ctx context.Context, tx *gorm.DB, setID uint) (models.LogRecord, error)
	ListBySample(ctx context.Context, tx *gorm.DB, sampleID uint) ([]models.LogRecord, error)
}

type SetOutcome struct {
	SetID   uint           `json:"setId"`
	LogKind models.LogKind `json:"logKind"`
	LogID   uint           `json:"logId"`
}

type SetFailure struct {
	SetID  uint   `json:"setId"`
	Reason string `json:"reason"`
}

// Result is returned when the sample was recorded. Sets whose log could not
// be written are listed in FailedSets; the sample and the set rows are kept.
type Result struct {
	Sample         *models.Sample  `json:"sample"`
	Client         *models.Client  `json:"client"`
	Project        *models.Project `json:"project"`
	SucceededSets  []SetOutcome    `json:"succeededSets"`
	FailedSets     []SetFailure    `json:"failedSets"`
	UnmatchedTests []string        `json:"unmatchedTests"`
}

// SampleView is a sample with its sets, tests and log records.
type SampleView struct {
	*models.Sample
	Logs []LogEntry `json:"logs"`
}

type LogEntry struct {
	Kind   models.LogKind   `json:"kind"`
	Record models.LogRecord `json:"record"`
}

type SampleFilter struct {
	ClientID uint
	Status   models.SampleStatus
}

type Service struct {
	db      *gorm.DB
	logs    LogStore
	metrics *metrics.Metrics
	log     *logger.Logger

	Now     func() time.Time
	NewCode func(time.Time) string
}

func NewService(db *gorm.DB, logs LogStore, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		db:      db,
		logs:    logs,
		metrics: m,
		log:     log,
		Now:     time.Now,
		NewCode: SampleCode,
	}
}

const maxCodeAttempts = 5

// SampleCode formats SMP-{year}-{last six digits of the unix millisecond clock}.
func SampleCode(t time.Time) string {
	return fmt.Sprintf("SMP-%d-%06d", t.Year(), t.UnixMilli()%1000000)
}

// Receive records one intake on behalf of userID. Everything except the
// per-set log writes is all or nothing.
func (s *Service) Receive(ctx context.Context, userID uint, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := database.CheckActors(ctx, s.db, userID, map[string]uint{"receivedBy": req.ReceivedBy}); err != nil {
		return nil, err
	}
	now := s.Now()
	clientName := strings.TrimSpace(req.ClientName)

	res := &Result{
		SucceededSets:  []SetOutcome{},
		FailedSets:     []SetFailure{},
		UnmatchedTests: []string{},
	}
	var failedKinds []models.LogKind

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := resolveClient(tx, clientName)
		if err != nil {
			return err
		}

		received := req.ReceivedDate.Value()
		project := models.Project{
			ClientID:    client.ID,
			Title:       strings.TrimSpace(req.ProjectTitle),
			Status:      models.ProjectActive,
			StartDate:   &received,
			CreatedByID: userID,
		}
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		receiptNo := strings.TrimSpace(req.ReceiptNo)
		sample := models.Sample{
			Status:          models.SampleReceived,
			ClientID:        client.ID,
			ProjectID:       project.ID,
			ReceivedDate:    received,
			ReceiptTime:     req.ReceiptTime,
			ReceiptNo:       receiptNo,
			ReceivedByID:    req.ReceivedBy,
			DeliveredBy:     req.DeliveredBy,
			DeliveryContact: req.DeliveryContact,
			ModeOfTransmit:  req.ModeOfTransmit,
			Notes:           req.Notes,
		}
		if err := s.insertSample(tx, &sample, now); err != nil {
			return err
		}
		receiptNo = sample.ReceiptNo

		if err := database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      userID,
			SampleID:    &sample.ID,
			Entity:      "sample",
			EntityID:    sample.ID,
			ActionType:  "sample_receipt",
			Description: receiptDetails(req, receiptNo),
		}); err != nil {
			return err
		}

		tests, unmatched, err := resolveTests(tx, req.testNames())
		if err != nil {
			return err
		}
		res.UnmatchedTests = append(res.UnmatchedTests, unmatched...)

		sets := make([]models.SampleSet, 0, len(req.Sets))
		for _, in := range req.Sets {
			set := in.model(sample.ID)
			if err := tx.Create(&set).Error; err != nil {
				return fmt.Errorf("create sample set: %w", err)
			}
			if err := linkTests(tx, sample.ID, set.ID, tests); err != nil {
				return err
			}
			if unknown := classify.UnknownTests(in.AssignedTests); len(unknown) > 0 {
				s.log.Debug("Assigned tests outside the lab vocabulary", "set_id", set.ID, "tests", unknown)
			}
			sets = append(sets, set)
		}

		src := classify.Source{
			ClientName:   client.Name,
			ProjectTitle: project.Title,
			ReceiptNo:    receiptNo,
			DateReceived: received,
		}
		for i := range sets {
			src.Set = &sets[i]
			rec, err := s.writeLog(ctx, tx, src)
			if err != nil {
				s.log.Warn("Sample set log not written",
					"sample_id", sample.ID, "set_id", sets[i].ID, "kind", rec.Kind(), "error", err)
				res.FailedSets = append(res.FailedSets, SetFailure{SetID: sets[i].ID, Reason: err.Error()})
				failedKinds = append(failedKinds, rec.Kind())
				continue
			}
			res.SucceededSets = append(res.SucceededSets, SetOutcome{SetID: sets[i].ID, LogKind: rec.Kind(), LogID: rec.RecordID()})
		}

		if err := database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:     userID,
			SampleID:   &sample.ID,
			Entity:     "sample",
			EntityID:   sample.ID,
			ActionType: "sample_received",
			Description: fmt.Sprintf("Sample %s received for %s / %s: %d set(s), %d logged, %d failed, %d test(s) linked",
				sample.Code, client.Name, project.Title, len(sets), len(res.SucceededSets), len(res.FailedSets), len(tests)),
		}); err != nil {
			return err
		}

		sample.Sets = sets
		res.Sample = &sample
		res.Client = &client
		res.Project = &project
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB("sample", err)
	}

	for _, o := range res.SucceededSets {
		s.metrics.IntakeSet(string(o.LogKind), "logged")
	}
	for _, k := range failedKinds {
		s.metrics.IntakeSet(string(k), "failed")
	}
	s.log.Info("Sample received",
		"sample_id", res.Sample.ID, "code", res.Sample.Code, "client_id", res.Client.ID,
		"sets", len(res.Sample.Sets), "failed_sets", len(res.FailedSets), "unmatched_tests", len(res.UnmatchedTests))
	return res, nil
}

// insertSample stores sample under a fresh code. On a code collision the
// clock is moved forward one millisecond and the insert is retried in a new
// savepoint. A blank receipt number takes the code.
func (s *Service) insertSample(tx *gorm.DB, sample *models.Sample, at time.Time) error {
	defaultReceipt := sample.ReceiptNo == ""
	for attempt := 1; ; attempt++ {
		sample.ID = 0
		sample.Code = s.NewCode(at)
		if defaultReceipt {
			sample.ReceiptNo = sample.Code
		}
		err := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(sample).Error
		})
		if err == nil {
			return nil
		}
		if !apperr.IsUniqueViolation(err) {
			return fmt.Errorf("create sample: %w", err)
		}
		if attempt == maxCodeAttempts {
			return apperr.Conflict("sample_code_taken", fmt.Errorf("sample code %s already exists", sample.Code))
		}
		s.log.Warn("Sample code taken, retrying", "code", sample.Code, "attempt", attempt)
		at = at.Add(time.Millisecond)
	}
}

// writeLog classifies the set and writes its record in a savepoint, so a
// failure rolls back only this record.
func (s *Service) writeLog(ctx context.Context, tx *gorm.DB, src classify.Source) (models.LogRecord, error) {
	rec := classify.Record(src)
	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.logs.Write(ctx, sp, rec)
	})
	return rec, err
}

// RetrySetLog writes the log record of a set that has none. If one exists it
// is returned unchanged and created is false.
func (s *Service) RetrySetLog(ctx context.Context, userID, sampleID, setID uint) (out *SetOutcome, created bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var set models.SampleSet
		if err := tx.Where("id = ? AND sample_id = ?", setID, sampleID).First(&set).Error; err != nil {
			return apperr.FromDB("sample_set", err)
		}

		existing, err := s.logs.FindBySet(ctx, tx, set.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = &SetOutcome{SetID: set.ID, LogKind: existing.Kind(), LogID: existing.RecordID()}
			return nil
		}

		var sample models.Sample
		if err := tx.Preload("Client").Preload("Project").First(&sample, sampleID).Error; err != nil {
			return apperr.FromDB("sample", err)
		}
		rec := classify.Record(sourceFor(&sample, &set))
		if err := s.logs.Write(ctx, tx, rec); err != nil {
			return err
		}
		out = &SetOutcome{SetID: set.ID, LogKind: rec.Kind(), LogID: rec.RecordID()}
		created = true

		return database.CreateAuditLog(ctx, tx, database.AuditEntry{
			UserID:      userID,
			SampleID:    &sample.ID,
			Entity:      "sample_set",
			EntityID:    set.ID,
			ActionType:  "set_log_written",
			Description: fmt.Sprintf("Set %d of sample %s logged as %s", set.ID, sample.Code, rec.Kind()),
		})
	})
	if err != nil {
		return nil, false, apperr.FromDB("sample_set", err)
	}
	if created {
		s.metrics.IntakeSet(string(out.LogKind), "logged")
		s.log.Info("Sample set log written on retry", "sample_id", sampleID, "set_id", setID, "kind", out.LogKind)
	}
	return out, created, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*SampleView, error) {
	db := s.db.WithContext(ctx)
	var sample models.Sample
	err := db.
		Preload("Client").
		Preload("Project").
		Preload("Sets", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Tests", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Tests.Test").
		First(&sample, id).Error
	if err != nil {
		return nil, apperr.FromDB("sample", err)
	}
	recs, err := s.logs.ListBySample(ctx, db, sample.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	view := &SampleView{Sample: &sample, Logs: make([]LogEntry, 0, len(recs))}
	for _, r := range recs {
		view.Logs = append(view.Logs, LogEntry{Kind: r.Kind(), Record: r})
	}
	return view, nil
}

func (s *Service) List(ctx context.Context, f SampleFilter) ([]models.Sample, error) {
	q := s.db.WithContext(ctx).Preload("Client").Preload("Project").Order("received_date DESC, id DESC")
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []models.Sample
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.FromDB("sample", err)
	}
	return out, nil
}

// resolveClient finds the client by exact name or creates it. A concurrent
// intake creating the same name is absorbed by the unique index.
func resolveClient(tx *gorm.DB, name string) (models.Client, error) {
	client := models.Client{Name: name}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&client).Error
	if err != nil {
		return client, fmt.Errorf("create client: %w", err)
	}
	if client.ID == 0 {
		if err := tx.Where("name = ?", name).First(&client).Error; err != nil {
			return client, fmt.Errorf("load client %q: %w", name, err)
		}
	}
	return client, nil
}

// resolveTests looks catalog tests up by exact name. Names with no match are
// returned separately, in request order.
func resolveTests(tx *gorm.DB, names []string) ([]models.Test, []string, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}
	var found []models.Test
	if err := tx.Where("name IN ?", names).Find(&found).Error; err != nil {
		return nil, nil, fmt.Errorf("resolve tests: %w", err)
	}
	byName := make(map[string]models.Test, len(found))
	for _, t := range found {
		byName[t.Name] = t
	}
	var tests []models.Test
	var unmatched []string
	for _, n := range names {
		if t, ok := byName[n]; ok {
			tests = append(tests, t)
		} else {
			unmatched = append(unmatched, n)
		}
	}
	return tests, unmatched, nil
}

func linkTests(tx *gorm.DB, sampleID, setID uint, tests []models.Test) error {
	if len(tests) == 0 {
		return nil
	}
	rows := make([]models.SampleTest, 0, len(tests))
	for _, t := range tests {
		rows = append(rows, models.SampleTest{
			SampleID:    sampleID,
			SampleSetID: &setID,
			TestID:      t.ID,
			Status:      models.SampleTestPending,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("link tests to set %d: %w", setID, err)
	}
	return nil
}

func sourceFor(sample *models.Sample, set *models.SampleSet) classify.Source {
	src := classify.Source{
		Set:          set,
		ReceiptNo:    sample.ReceiptNo,
		DateReceived: sample.ReceivedDate,
	}
	if sample.Client != nil {
		src.ClientName = sample.Client.Name
	}
	if sample.Project != nil {
		src.ProjectTitle = sample.Project.Title
	}
	return src
}

func receiptDetails(req Request, receiptNo string) string {
	parts := []string{"Receipt " + receiptNo}
	if req.DeliveredBy != "" {
		parts = append(parts, "delivered by "+req.DeliveredBy)
	}
	if req.DeliveryContact != "" {
		parts = append(parts, "contact "+req.DeliveryContact)
	}
	if req.ModeOfTransmit != "" {
		parts = append(parts, "via "+req.ModeOfTransmit)
	}
	if req.ReceiptTime != "" {
		parts = append(parts, "at "+req.ReceiptTime)
	}
	return strings.Join(parts, ", ")
}
