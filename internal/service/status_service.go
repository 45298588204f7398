package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

type statusRecordStore interface {
	GetByID(ctx context.Context, id string) (*models.Record, error)
	GetByPatient(ctx context.Context, patientID string) (*models.Record, error)
}

type statusReviewStore interface {
	CountUnresolved(ctx context.Context, recordID string) (int, error)
}

type statusMetrics interface {
	ObserveStatusCache(hit bool)
}

// StatusService derives the verification status of a record from its pending
// reviews and staleness. The result is a cached read model, recomputed lazily
// on read and invalidated after any write that can change the review count.
type StatusService struct {
	records  statusRecordStore
	reviews  statusReviewStore
	cache    *redis.Client
	cacheTTL time.Duration
	validity time.Duration
	metrics  statusMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// StatusServiceOption configures the service.
type StatusServiceOption func(*StatusService)

// WithStatusCache wires the redis-backed read model cache.
func WithStatusCache(client *redis.Client, ttl time.Duration) StatusServiceOption {
	return func(s *StatusService) {
		s.cache = client
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithStatusMetrics wires cache hit/miss counters.
func WithStatusMetrics(metrics statusMetrics) StatusServiceOption {
	return func(s *StatusService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithStatusClock overrides the time source (used in tests).
func WithStatusClock(now func() time.Time) StatusServiceOption {
	return func(s *StatusService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStatusService constructs the service. validityDays defaults to 365.
func NewStatusService(records statusRecordStore, reviews statusReviewStore, validityDays int, logger *zap.Logger, opts ...StatusServiceOption) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validityDays <= 0 {
		validityDays = 365
	}
	svc := &StatusService{
		records:  records,
		reviews:  reviews,
		cacheTTL: 5 * time.Minute,
		validity: time.Duration(validityDays) * 24 * time.Hour,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ForPatient derives the status for the patient's record. A patient without a
// record yields NO_RECORD rather than an error.
func (s *StatusService) ForPatient(ctx context.Context, patientID string) (*models.RecordStatusInfo, error) {
	record, err := s.records.GetByPatient(ctx, patientID)
	if err != nil {
		if isNoRows(err) {
			return &models.RecordStatusInfo{
				PatientID: patientID,
				Status:    models.StatusNoRecord,
				CheckedAt: s.now(),
			}, nil
		}
		return nil, fmt.Errorf("load record for patient: %w", err)
	}
	return s.derive(ctx, record)
}

// ForRecord derives the status for a known record id.
func (s *StatusService) ForRecord(ctx context.Context, recordID string) (*models.RecordStatusInfo, error) {
	if info := s.cached(ctx, recordID); info != nil {
		return info, nil
	}
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, mapNotFound(err, "record not found")
	}
	return s.derive(ctx, record)
}

// Invalidate drops the cached read model after a status-affecting write.
func (s *StatusService) Invalidate(ctx context.Context, recordID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statusCacheKey(recordID)).Err(); err != nil {
		s.logger.Warn("status cache invalidation failed", zap.String("record_id", recordID), zap.Error(err))
	}
}

// derive applies the state machine: pending reviews take precedence over
// staleness; otherwise the validity window decides VALID vs EXPIRED.
func (s *StatusService) derive(ctx context.Context, record *models.Record) (*models.RecordStatusInfo, error) {
	pending, err := s.reviews.CountUnresolved(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("count pending reviews: %w", err)
	}

	now := s.now()
	var status models.RecordStatus
	switch {
	case pending > 0:
		status = models.StatusPendingReview
	case now.Sub(record.UpdatedAt) > s.validity:
		status = models.StatusExpired
	default:
		status = models.StatusValid
	}

	lastModified := record.UpdatedAt
	info := &models.RecordStatusInfo{
		RecordID:            record.ID,
		PatientID:           record.PatientID,
		Status:              status,
		Version:             record.Version,
		LastModifiedAt:      &lastModified,
		LastVerifiedAt:      record.LastVerifiedAt,
		LastVerifiedBy:      record.LastVerifiedBy,
		HasPendingReviews:   pending > 0,
		PendingReviewCount:  pending,
		PendingReviewSince:  record.PendingReviewSince,
		PendingReviewReason: record.PendingReviewReason,
		CheckedAt:           now,
	}
	s.store(ctx, info)
	return info, nil
}

func (s *StatusService) cached(ctx context.Context, recordID string) *models.RecordStatusInfo {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, statusCacheKey(recordID)).Bytes()
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveStatusCache(false)
		}
		return nil
	}
	var info models.RecordStatusInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil
	}
	if s.metrics != nil {
		s.metrics.ObserveStatusCache(true)
	}
	return &info
}

func (s *StatusService) store(ctx context.Context, info *models.RecordStatusInfo) {
	if s.cache == nil || info.RecordID == "" {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statusCacheKey(info.RecordID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("status cache write failed", zap.String("record_id", info.RecordID), zap.Error(err))
	}
}

func statusCacheKey(recordID string) string {
	return "record_status:" + recordID
}
