package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

type reviewCountStub struct {
	counts map[string]int
}

func (s *reviewCountStub) CountUnresolved(ctx context.Context, recordID string) (int, error) {
	return s.counts[recordID], nil
}

func statusServiceAt(t *testing.T, records *recordStoreStub, counts map[string]int, now time.Time) *StatusService {
	t.Helper()
	return NewStatusService(records, &reviewCountStub{counts: counts}, 365, zap.NewNop(),
		WithStatusClock(func() time.Time { return now }))
}

func TestStatusServiceValidWithinWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	records := newRecordStoreStub()
	record := testRecord("rec-1", "patient-1", 3, nil)
	record.UpdatedAt = now.Add(-30 * 24 * time.Hour)
	records.add(record)
	svc := statusServiceAt(t, records, nil, now)

	info, err := svc.ForRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusValid, info.Status)
	require.Equal(t, 3, info.Version)
	require.False(t, info.HasPendingReviews)
}

func TestStatusServiceExpiresAfterValidityWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	records := newRecordStoreStub()
	record := testRecord("rec-1", "patient-1", 1, nil)
	record.UpdatedAt = now.Add(-400 * 24 * time.Hour)
	records.add(record)
	svc := statusServiceAt(t, records, nil, now)

	info, err := svc.ForRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, info.Status)
}

func TestStatusServicePendingReviewOverridesExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	records := newRecordStoreStub()
	record := testRecord("rec-1", "patient-1", 1, nil)
	record.UpdatedAt = now.Add(-400 * 24 * time.Hour)
	since := now.Add(-2 * 24 * time.Hour)
	record.HasPendingReviews = true
	record.PendingReviewSince = &since
	records.add(record)
	svc := statusServiceAt(t, records, map[string]int{"rec-1": 2}, now)

	info, err := svc.ForRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingReview, info.Status)
	require.Equal(t, 2, info.PendingReviewCount)
	require.Equal(t, &since, info.PendingReviewSince)
}

func TestStatusServicePatientWithoutRecord(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := statusServiceAt(t, newRecordStoreStub(), nil, now)

	info, err := svc.ForPatient(context.Background(), "patient-x")
	require.NoError(t, err)
	require.Equal(t, models.StatusNoRecord, info.Status)
	require.Equal(t, "patient-x", info.PatientID)
	require.Empty(t, info.RecordID)
}

func TestStatusServiceMissingRecordIsNotFound(t *testing.T) {
	svc := statusServiceAt(t, newRecordStoreStub(), nil, time.Now().UTC())
	_, err := svc.ForRecord(context.Background(), "rec-missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStatusServiceInvalidateWithoutCacheIsNoop(t *testing.T) {
	svc := statusServiceAt(t, newRecordStoreStub(), nil, time.Now().UTC())
	svc.Invalidate(context.Background(), "rec-1")
}
