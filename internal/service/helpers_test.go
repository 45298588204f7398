package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
)

// txStub satisfies unitOfWorkRunner without a database. Stub stores ignore
// the unit of work, so fn runs against nil.
type txStub struct {
	runs   int
	failed int
}

func (s *txStub) RunInUnitOfWork(ctx context.Context, fn func(uow *repository.UnitOfWork) error) error {
	s.runs++
	if err := fn(nil); err != nil {
		s.failed++
		return err
	}
	return nil
}

type statusStub struct {
	invalidated []string
}

func (s *statusStub) Invalidate(ctx context.Context, recordID string) {
	s.invalidated = append(s.invalidated, recordID)
}

type recordStoreStub struct {
	records        map[string]*models.Record
	deleted        []string
	marked         []string
	cleared        []string
	updateStateErr error
}

func newRecordStoreStub() *recordStoreStub {
	return &recordStoreStub{records: make(map[string]*models.Record)}
}

func (s *recordStoreStub) add(record *models.Record) { s.records[record.ID] = record }

func (s *recordStoreStub) GetByID(ctx context.Context, id string) (*models.Record, error) {
	if record, ok := s.records[id]; ok {
		copy := *record
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *recordStoreStub) GetByPatient(ctx context.Context, patientID string) (*models.Record, error) {
	for _, record := range s.records {
		if record.PatientID == patientID {
			copy := *record
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *recordStoreStub) Create(ctx context.Context, uow *repository.UnitOfWork, record *models.Record) error {
	if record.ID == "" {
		record.ID = "rec-" + record.PatientID
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.UpdatedAt = record.CreatedAt
	stored := *record
	s.records[record.ID] = &stored
	return nil
}

func (s *recordStoreStub) UpdateState(ctx context.Context, uow *repository.UnitOfWork, record *models.Record, expectedVersion int) error {
	if s.updateStateErr != nil {
		return s.updateStateErr
	}
	stored, ok := s.records[record.ID]
	if !ok || stored.Version != expectedVersion {
		return sql.ErrNoRows
	}
	record.UpdatedAt = time.Now().UTC()
	copy := *record
	s.records[record.ID] = &copy
	return nil
}

func (s *recordStoreStub) MarkPendingReview(ctx context.Context, uow *repository.UnitOfWork, recordID string, since time.Time, reason *string) error {
	s.marked = append(s.marked, recordID)
	if record, ok := s.records[recordID]; ok {
		record.HasPendingReviews = true
		if record.PendingReviewSince == nil {
			record.PendingReviewSince = &since
			record.PendingReviewReason = reason
		}
	}
	return nil
}

func (s *recordStoreStub) ClearPendingReview(ctx context.Context, uow *repository.UnitOfWork, recordID string, verifiedAt time.Time, verifiedBy string) error {
	s.cleared = append(s.cleared, recordID)
	if record, ok := s.records[recordID]; ok {
		record.HasPendingReviews = false
		record.PendingReviewSince = nil
		record.PendingReviewReason = nil
		record.LastVerifiedAt = &verifiedAt
		record.LastVerifiedBy = &verifiedBy
	}
	return nil
}

func (s *recordStoreStub) Delete(ctx context.Context, uow *repository.UnitOfWork, id string) error {
	if _, ok := s.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.records, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type versionStoreStub struct {
	snapshots map[string]*models.VersionSnapshot
	created   []*models.VersionSnapshot
}

func newVersionStoreStub() *versionStoreStub {
	return &versionStoreStub{snapshots: make(map[string]*models.VersionSnapshot)}
}

func (s *versionStoreStub) Create(ctx context.Context, uow *repository.UnitOfWork, snapshot *models.VersionSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = "ver-" + snapshot.RecordID
	}
	stored := *snapshot
	s.snapshots[snapshot.ID] = &stored
	s.created = append(s.created, &stored)
	return nil
}

func (s *versionStoreStub) GetByID(ctx context.Context, id string) (*models.VersionSnapshot, error) {
	if snapshot, ok := s.snapshots[id]; ok {
		copy := *snapshot
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *versionStoreStub) ListByRecord(ctx context.Context, recordID string) ([]models.VersionSnapshot, error) {
	out := make([]models.VersionSnapshot, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		if snapshot.RecordID == recordID {
			out = append(out, *snapshot)
		}
	}
	return out, nil
}

// auditAppenderStub fabricates entries without the real pipeline. The
// requiresReview switch mimics the outside-encounter classification.
type auditAppenderStub struct {
	appended       []AppendAuditParams
	secondary      []AppendAuditParams
	requiresReview bool
	failSecondary  error
}

func (s *auditAppenderStub) Append(ctx context.Context, uow *repository.UnitOfWork, params AppendAuditParams) (*models.AuditLogEntry, []models.FieldDiff, error) {
	s.appended = append(s.appended, params)
	diffs := computeActionDiffs(params)
	entry := &models.AuditLogEntry{
		ID:             "audit-" + params.RecordID,
		RecordID:       params.RecordID,
		PatientID:      params.PatientID,
		Action:         params.Action,
		ActorID:        params.ActorID,
		Severity:       models.SeverityLow,
		RequiresReview: s.requiresReview && params.IsOutsideEncounter,
		CreatedAt:      time.Now().UTC(),
	}
	return entry, diffs, nil
}

func (s *auditAppenderStub) AppendSecondary(ctx context.Context, params AppendAuditParams) SecondaryAudit {
	s.secondary = append(s.secondary, params)
	if s.failSecondary != nil {
		return SecondaryAudit{Err: s.failSecondary}
	}
	return SecondaryAudit{ID: "audit-secondary"}
}

type reviewFlaggerStub struct {
	flagged []*models.AuditLogEntry
	count   int
}

func (s *reviewFlaggerStub) FlagForReview(ctx context.Context, uow *repository.UnitOfWork, entry *models.AuditLogEntry, diffs []models.FieldDiff, reason *string) (int, error) {
	s.flagged = append(s.flagged, entry)
	created := s.count
	if created == 0 {
		created = len(diffs)
	}
	return created, nil
}

func mustStateJSON(state *models.RecordState) []byte {
	raw, err := json.Marshal(state)
	if err != nil {
		panic(err)
	}
	return raw
}

func testRecord(id, patientID string, version int, state *models.RecordState) *models.Record {
	record := &models.Record{
		ID:         id,
		PatientID:  patientID,
		RecordType: "ANAMNESIS",
		Version:    version,
		CreatedBy:  "user-1",
		UpdatedBy:  "user-1",
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
		UpdatedAt:  time.Now().UTC().Add(-time.Hour),
	}
	if state != nil {
		if err := record.SetState(state); err != nil {
			panic(err)
		}
	} else {
		record.Fields = []byte(`{}`)
		record.Payload = []byte(`{}`)
		record.Collections = []byte(`{}`)
	}
	return record
}
