package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

type reviewStoreStub struct {
	reviews    map[string]*models.PendingReview
	created    []*models.PendingReview
	resolveErr error
}

func newReviewStoreStub() *reviewStoreStub {
	return &reviewStoreStub{reviews: make(map[string]*models.PendingReview)}
}

func (s *reviewStoreStub) add(review *models.PendingReview) { s.reviews[review.ID] = review }

func (s *reviewStoreStub) Create(ctx context.Context, uow *repository.UnitOfWork, review *models.PendingReview) error {
	if review.ID == "" {
		review.ID = fmt.Sprintf("rev-%d", len(s.reviews)+1)
	}
	stored := *review
	s.reviews[review.ID] = &stored
	s.created = append(s.created, &stored)
	return nil
}

func (s *reviewStoreStub) GetByID(ctx context.Context, id string) (*models.PendingReview, error) {
	if review, ok := s.reviews[id]; ok {
		copy := *review
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *reviewStoreStub) GetByIDs(ctx context.Context, ids []string) ([]models.PendingReview, error) {
	out := make([]models.PendingReview, 0, len(ids))
	for _, id := range ids {
		if review, ok := s.reviews[id]; ok {
			out = append(out, *review)
		}
	}
	return out, nil
}

func (s *reviewStoreStub) ListDetails(ctx context.Context, filter models.ReviewFilter) ([]models.PendingReviewDetail, error) {
	out := make([]models.PendingReviewDetail, 0, len(s.reviews))
	for _, review := range s.reviews {
		out = append(out, models.PendingReviewDetail{PendingReview: *review})
	}
	return out, nil
}

func (s *reviewStoreStub) CountUnresolvedInTx(ctx context.Context, uow *repository.UnitOfWork, recordID string) (int, error) {
	count := 0
	for _, review := range s.reviews {
		if review.RecordID == recordID && !review.Resolved() {
			count++
		}
	}
	return count, nil
}

func (s *reviewStoreStub) Resolve(ctx context.Context, uow *repository.UnitOfWork, params repository.ResolveReviewParams) error {
	if s.resolveErr != nil {
		return s.resolveErr
	}
	review, ok := s.reviews[params.ID]
	if !ok || review.Resolved() {
		return sql.ErrNoRows
	}
	review.ReviewedAt = &params.ReviewedAt
	review.ReviewedBy = &params.ReviewedBy
	review.ReviewNotes = params.Notes
	approved := params.Approved
	review.IsApproved = &approved
	return nil
}

type auditStamperStub struct {
	stamped []string
}

func (s *auditStamperStub) StampReview(ctx context.Context, uow *repository.UnitOfWork, auditLogID string, reviewedAt time.Time, reviewedBy string) error {
	s.stamped = append(s.stamped, auditLogID)
	return nil
}

func newReviewService(reviews *reviewStoreStub, records *recordStoreStub, stamper *auditStamperStub, tx *txStub, status *statusStub) *ReviewService {
	return NewReviewService(reviews, records, stamper, tx, status, zap.NewNop())
}

func pendingReview(id, recordID string) *models.PendingReview {
	return &models.PendingReview{
		ID:         id,
		RecordID:   recordID,
		PatientID:  "patient-1",
		AuditLogID: "audit-" + recordID,
		FieldPath:  "hasAllergies",
		Severity:   models.SeverityHigh,
		CreatedBy:  "user-1",
		CreatedAt:  time.Now().UTC().Add(-time.Minute),
	}
}

func TestReviewServiceFlagForReviewOnlyQualifyingDiffs(t *testing.T) {
	reviews := newReviewStoreStub()
	records := newRecordStoreStub()
	svc := newReviewService(reviews, records, &auditStamperStub{}, &txStub{}, &statusStub{})

	entry := &models.AuditLogEntry{
		ID:        "audit-1",
		RecordID:  "rec-1",
		PatientID: "patient-1",
		ActorID:   "user-1",
		Severity:  models.SeverityHigh,
		CreatedAt: time.Now().UTC(),
	}
	newValue := models.BoolValue(true)
	diffs := []models.FieldDiff{
		{FieldPath: "hasAllergies", Label: "¿Tiene alergias?", NewValue: &newValue, ChangeType: models.ChangeTypeModified},
		{FieldPath: "notes", Label: "Notas", ChangeType: models.ChangeTypeModified},
	}

	reason := "edicion fuera de consulta"
	created, err := svc.FlagForReview(context.Background(), nil, entry, diffs, &reason)
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Len(t, reviews.created, 1)
	require.Equal(t, "hasAllergies", reviews.created[0].FieldPath)
	require.Equal(t, "audit-1", reviews.created[0].AuditLogID)
	require.Equal(t, models.SeverityHigh, reviews.created[0].Severity)
	require.Equal(t, []string{"rec-1"}, records.marked)
}

func TestReviewServiceFlagForReviewNoQualifyingDiffsLeavesRecordAlone(t *testing.T) {
	reviews := newReviewStoreStub()
	records := newRecordStoreStub()
	svc := newReviewService(reviews, records, &auditStamperStub{}, &txStub{}, &statusStub{})

	entry := &models.AuditLogEntry{ID: "audit-1", RecordID: "rec-1", CreatedAt: time.Now().UTC()}
	diffs := []models.FieldDiff{{FieldPath: "notes", ChangeType: models.ChangeTypeModified}}

	created, err := svc.FlagForReview(context.Background(), nil, entry, diffs, nil)
	require.NoError(t, err)
	require.Zero(t, created)
	require.Empty(t, records.marked)
}

func TestReviewServiceApproveStampsAuditAndClearsFlag(t *testing.T) {
	reviews := newReviewStoreStub()
	reviews.add(pendingReview("rev-1", "rec-1"))
	records := newRecordStoreStub()
	records.add(testRecord("rec-1", "patient-1", 2, nil))
	stamper := &auditStamperStub{}
	status := &statusStub{}
	svc := newReviewService(reviews, records, stamper, &txStub{}, status)

	err := svc.Review(context.Background(), "rev-1", "clin-1", true, nil)
	require.NoError(t, err)
	require.True(t, reviews.reviews["rev-1"].Resolved())
	require.Equal(t, []string{"audit-rec-1"}, stamper.stamped)
	require.Equal(t, []string{"rec-1"}, records.cleared)
	require.Equal(t, []string{"rec-1"}, status.invalidated)
}

func TestReviewServiceRejectSkipsAuditStamp(t *testing.T) {
	reviews := newReviewStoreStub()
	reviews.add(pendingReview("rev-1", "rec-1"))
	records := newRecordStoreStub()
	records.add(testRecord("rec-1", "patient-1", 2, nil))
	stamper := &auditStamperStub{}
	svc := newReviewService(reviews, records, stamper, &txStub{}, &statusStub{})

	notes := "dato no confirmado"
	err := svc.Review(context.Background(), "rev-1", "clin-1", false, &notes)
	require.NoError(t, err)
	require.Empty(t, stamper.stamped)
	require.True(t, reviews.reviews["rev-1"].Resolved())
	require.False(t, *reviews.reviews["rev-1"].IsApproved)
	require.Equal(t, &notes, reviews.reviews["rev-1"].ReviewNotes)
}

func TestReviewServiceKeepsFlagWhileOthersRemainOpen(t *testing.T) {
	reviews := newReviewStoreStub()
	reviews.add(pendingReview("rev-1", "rec-1"))
	reviews.add(pendingReview("rev-2", "rec-1"))
	records := newRecordStoreStub()
	records.add(testRecord("rec-1", "patient-1", 2, nil))
	svc := newReviewService(reviews, records, &auditStamperStub{}, &txStub{}, &statusStub{})

	require.NoError(t, svc.Review(context.Background(), "rev-1", "clin-1", true, nil))
	require.Empty(t, records.cleared)

	require.NoError(t, svc.Review(context.Background(), "rev-2", "clin-1", true, nil))
	require.Equal(t, []string{"rec-1"}, records.cleared)
}

func TestReviewServiceRejectsSecondDecision(t *testing.T) {
	reviews := newReviewStoreStub()
	review := pendingReview("rev-1", "rec-1")
	approved := true
	review.IsApproved = &approved
	reviews.add(review)
	tx := &txStub{}
	svc := newReviewService(reviews, newRecordStoreStub(), &auditStamperStub{}, tx, &statusStub{})

	err := svc.Review(context.Background(), "rev-1", "clin-2", false, nil)
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)
	require.Zero(t, tx.runs)
}

func TestReviewServiceLostRaceMapsToAlreadyResolved(t *testing.T) {
	reviews := newReviewStoreStub()
	reviews.add(pendingReview("rev-1", "rec-1"))
	reviews.resolveErr = sql.ErrNoRows
	svc := newReviewService(reviews, newRecordStoreStub(), &auditStamperStub{}, &txStub{}, &statusStub{})

	err := svc.Review(context.Background(), "rev-1", "clin-1", true, nil)
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)
}

func TestReviewServiceMissingReviewIsNotFound(t *testing.T) {
	svc := newReviewService(newReviewStoreStub(), newRecordStoreStub(), &auditStamperStub{}, &txStub{}, &statusStub{})
	err := svc.Review(context.Background(), "rev-missing", "clin-1", true, nil)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReviewServiceBatchReviewValidatesBeforeWriting(t *testing.T) {
	reviews := newReviewStoreStub()
	reviews.add(pendingReview("rev-1", "rec-1"))
	resolved := pendingReview("rev-2", "rec-2")
	approved := true
	resolved.IsApproved = &approved
	reviews.add(resolved)
	tx := &txStub{}
	svc := newReviewService(reviews, newRecordStoreStub(), &auditStamperStub{}, tx, &statusStub{})

	err := svc.BatchReview(context.Background(), nil, "clin-1", true, nil)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	err = svc.BatchReview(context.Background(), []string{"rev-1", "rev-missing"}, "clin-1", true, nil)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	err = svc.BatchReview(context.Background(), []string{"rev-1", "rev-2"}, "clin-1", true, nil)
	require.ErrorIs(t, err, appErrors.ErrAlreadyResolved)

	// nothing ran and rev-1 stays open
	require.Zero(t, tx.runs)
	require.False(t, reviews.reviews["rev-1"].Resolved())
}

func TestReviewServiceBatchReviewResolvesAllAndInvalidatesOncePerRecord(t *testing.T) {
	reviews := newReviewStoreStub()
	reviews.add(pendingReview("rev-1", "rec-1"))
	reviews.add(pendingReview("rev-2", "rec-1"))
	reviews.add(pendingReview("rev-3", "rec-2"))
	records := newRecordStoreStub()
	records.add(testRecord("rec-1", "patient-1", 2, nil))
	records.add(testRecord("rec-2", "patient-2", 1, nil))
	status := &statusStub{}
	svc := newReviewService(reviews, records, &auditStamperStub{}, &txStub{}, status)

	err := svc.BatchReview(context.Background(), []string{"rev-1", "rev-2", "rev-3", "rev-3"}, "clin-1", true, nil)
	require.NoError(t, err)
	for _, id := range []string{"rev-1", "rev-2", "rev-3"} {
		require.True(t, reviews.reviews[id].Resolved())
	}
	require.ElementsMatch(t, []string{"rec-1", "rec-2"}, records.cleared)
	require.ElementsMatch(t, []string{"rec-1", "rec-2"}, status.invalidated)
}
