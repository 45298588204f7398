package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/diff"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

type reviewStore interface {
	Create(ctx context.Context, uow *repository.UnitOfWork, review *models.PendingReview) error
	GetByID(ctx context.Context, id string) (*models.PendingReview, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.PendingReview, error)
	ListDetails(ctx context.Context, filter models.ReviewFilter) ([]models.PendingReviewDetail, error)
	CountUnresolvedInTx(ctx context.Context, uow *repository.UnitOfWork, recordID string) (int, error)
	Resolve(ctx context.Context, uow *repository.UnitOfWork, params repository.ResolveReviewParams) error
}

type reviewRecordStore interface {
	MarkPendingReview(ctx context.Context, uow *repository.UnitOfWork, recordID string, since time.Time, reason *string) error
	ClearPendingReview(ctx context.Context, uow *repository.UnitOfWork, recordID string, verifiedAt time.Time, verifiedBy string) error
}

type reviewAuditStamper interface {
	StampReview(ctx context.Context, uow *repository.UnitOfWork, auditLogID string, reviewedAt time.Time, reviewedBy string) error
}

type statusInvalidator interface {
	Invalidate(ctx context.Context, recordID string)
}

type reviewMetrics interface {
	ObserveReviewResolved(approved bool)
}

// ReviewService runs the clinician sign-off workflow for edits made outside a
// clinical encounter.
type ReviewService struct {
	reviews reviewStore
	records reviewRecordStore
	audits  reviewAuditStamper
	tx      unitOfWorkRunner
	status  statusInvalidator
	metrics reviewMetrics
	logger  *zap.Logger
}

// ReviewServiceOption configures the service.
type ReviewServiceOption func(*ReviewService)

// WithReviewMetrics wires the resolution counters.
func WithReviewMetrics(metrics reviewMetrics) ReviewServiceOption {
	return func(s *ReviewService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// NewReviewService constructs the service.
func NewReviewService(reviews reviewStore, records reviewRecordStore, audits reviewAuditStamper, tx unitOfWorkRunner, status statusInvalidator, logger *zap.Logger, opts ...ReviewServiceOption) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReviewService{
		reviews: reviews,
		records: records,
		audits:  audits,
		tx:      tx,
		status:  status,
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// FlagForReview creates one pending review per review-worthy diff of an
// outside-encounter edit and marks the owning record pending. It runs inside
// the caller's unit of work, alongside the audit entry the reviews reference.
// Returns the number of reviews created.
func (s *ReviewService) FlagForReview(ctx context.Context, uow *repository.UnitOfWork, entry *models.AuditLogEntry, diffs []models.FieldDiff, reason *string) (int, error) {
	created := 0
	for _, d := range diffs {
		if !diff.RequiresReview(d.FieldPath, d.ChangeType) {
			continue
		}
		review := &models.PendingReview{
			RecordID:   entry.RecordID,
			PatientID:  entry.PatientID,
			AuditLogID: entry.ID,
			FieldPath:  d.FieldPath,
			Label:      d.Label,
			Reason:     reason,
			Severity:   entry.Severity,
			CreatedBy:  entry.ActorID,
			CreatedAt:  entry.CreatedAt,
		}
		var err error
		if d.OldValue != nil {
			if review.OldValue, err = json.Marshal(d.OldValue); err != nil {
				return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode review value")
			}
		}
		if d.NewValue != nil {
			if review.NewValue, err = json.Marshal(d.NewValue); err != nil {
				return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode review value")
			}
		}
		if err := s.reviews.Create(ctx, uow, review); err != nil {
			return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pending review")
		}
		created++
	}
	if created > 0 {
		if err := s.records.MarkPendingReview(ctx, uow, entry.RecordID, entry.CreatedAt, reason); err != nil {
			return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag record for review")
		}
	}
	return created, nil
}

// Review records a single clinician decision. Rejection does not revert the
// underlying data change; it only records the sign-off outcome.
func (s *ReviewService) Review(ctx context.Context, reviewID, reviewerID string, approve bool, notes *string) error {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return mapNotFound(err, "pending review not found")
	}
	if review.Resolved() {
		return appErrors.ErrAlreadyResolved
	}

	now := time.Now().UTC()
	err = s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		return s.resolveOne(ctx, uow, review, reviewerID, approve, notes, now)
	})
	if err != nil {
		return err
	}

	s.status.Invalidate(ctx, review.RecordID)
	if s.metrics != nil {
		s.metrics.ObserveReviewResolved(approve)
	}
	return nil
}

// BatchReview applies one decision to every listed review. Validation happens
// before any write: if any id is missing or already resolved, nothing changes.
func (s *ReviewService) BatchReview(ctx context.Context, reviewIDs []string, reviewerID string, approve bool, notes *string) error {
	if len(reviewIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "review batch must not be empty")
	}
	unique := uniqueStrings(reviewIDs)

	reviews, err := s.reviews.GetByIDs(ctx, unique)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review batch")
	}
	if len(reviews) != len(unique) {
		return appErrors.Clone(appErrors.ErrNotFound, "one or more reviews do not exist")
	}
	for i := range reviews {
		if reviews[i].Resolved() {
			return appErrors.Clone(appErrors.ErrAlreadyResolved, "one or more reviews are already resolved")
		}
	}

	now := time.Now().UTC()
	recordIDs := make([]string, 0, len(reviews))
	err = s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		for i := range reviews {
			if err := s.resolveOne(ctx, uow, &reviews[i], reviewerID, approve, notes, now); err != nil {
				return err
			}
			recordIDs = append(recordIDs, reviews[i].RecordID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, recordID := range uniqueStrings(recordIDs) {
		s.status.Invalidate(ctx, recordID)
	}
	if s.metrics != nil {
		for range reviews {
			s.metrics.ObserveReviewResolved(approve)
		}
	}
	return nil
}

// ListPending returns the review queue for a record or patient.
func (s *ReviewService) ListPending(ctx context.Context, filter models.ReviewFilter) ([]models.PendingReviewDetail, error) {
	return s.reviews.ListDetails(ctx, filter)
}

// resolveOne applies a decision to a single review inside the unit of work
// and clears the record flag when the last open review just got resolved.
func (s *ReviewService) resolveOne(ctx context.Context, uow *repository.UnitOfWork, review *models.PendingReview, reviewerID string, approve bool, notes *string, now time.Time) error {
	err := s.reviews.Resolve(ctx, uow, repository.ResolveReviewParams{
		ID:         review.ID,
		ReviewedAt: now,
		ReviewedBy: reviewerID,
		Notes:      notes,
		Approved:   approve,
	})
	if err != nil {
		if isNoRows(err) {
			// lost the race with another reviewer
			return appErrors.ErrAlreadyResolved
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve review")
	}

	if approve {
		if err := s.audits.StampReview(ctx, uow, review.AuditLogID, now, reviewerID); err != nil && !isNoRows(err) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stamp audit entry")
		}
	}

	remaining, err := s.reviews.CountUnresolvedInTx(ctx, uow, review.RecordID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count open reviews")
	}
	if remaining == 0 {
		if err := s.records.ClearPendingReview(ctx, uow, review.RecordID, now, reviewerID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear record review flag")
		}
	}
	return nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
