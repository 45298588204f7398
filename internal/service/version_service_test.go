package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

func newVersionService(versions *versionStoreStub, records *recordStoreStub, audits *auditAppenderStub, reviews *reviewFlaggerStub, status *statusStub) *VersionService {
	return NewVersionService(versions, records, audits, reviews, &txStub{}, status, zap.NewNop())
}

func snapshotFor(id, recordID string, versionNumber int, state *models.RecordState) *models.VersionSnapshot {
	return &models.VersionSnapshot{
		ID:            id,
		RecordID:      recordID,
		PatientID:     "patient-1",
		VersionNumber: versionNumber,
		State:         mustStateJSON(state),
		CreatedBy:     "user-1",
	}
}

func TestVersionServiceCreateSnapshot(t *testing.T) {
	versions := newVersionStoreStub()
	records := newRecordStoreStub()
	state := &models.RecordState{Fields: map[string]models.Value{"hasAllergies": models.BoolValue(true)}}
	records.add(testRecord("rec-1", "patient-1", 2, state))
	svc := newVersionService(versions, records, &auditAppenderStub{}, &reviewFlaggerStub{}, &statusStub{})

	id, err := svc.CreateSnapshot(context.Background(), "rec-1", 2, nil, nil, Actor{ID: "user-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, versions.created, 1)
	require.Equal(t, 2, versions.created[0].VersionNumber)
	require.Equal(t, "patient-1", versions.created[0].PatientID)
	require.JSONEq(t, string(mustStateJSON(state)), string(versions.created[0].State))
}

func TestVersionServiceCreateSnapshotMissingRecord(t *testing.T) {
	svc := newVersionService(newVersionStoreStub(), newRecordStoreStub(), &auditAppenderStub{}, &reviewFlaggerStub{}, &statusStub{})
	_, err := svc.CreateSnapshot(context.Background(), "rec-missing", 1, nil, nil, Actor{ID: "user-1"})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestVersionServiceRestoreAdvancesVersionForward(t *testing.T) {
	versions := newVersionStoreStub()
	oldState := &models.RecordState{Fields: map[string]models.Value{"painIntensity": models.NumberValue(3)}}
	snapshot := snapshotFor("ver-old", "rec-1", 2, oldState)
	versions.snapshots[snapshot.ID] = snapshot

	records := newRecordStoreStub()
	currentState := &models.RecordState{Fields: map[string]models.Value{"painIntensity": models.NumberValue(8)}}
	records.add(testRecord("rec-1", "patient-1", 3, currentState))

	audits := &auditAppenderStub{}
	status := &statusStub{}
	svc := newVersionService(versions, records, audits, &reviewFlaggerStub{}, status)

	restored, err := svc.RestoreVersion(context.Background(), "rec-1", "ver-old", Actor{ID: "clin-1", Role: models.RoleClinician}, nil, EncounterContext{}, models.RequestContext{})
	require.NoError(t, err)
	require.True(t, restored.Fields["painIntensity"].Equal(models.NumberValue(3)))

	// live record moved to v4, not back to v2
	require.Equal(t, 4, records.records["rec-1"].Version)
	require.Equal(t, "clin-1", records.records["rec-1"].UpdatedBy)

	require.Len(t, versions.created, 1)
	require.Equal(t, 4, versions.created[0].VersionNumber)
	require.NotNil(t, versions.created[0].RestoredFromVersion)
	require.Equal(t, 2, *versions.created[0].RestoredFromVersion)

	require.Len(t, audits.appended, 1)
	require.Equal(t, models.AuditActionRestore, audits.appended[0].Action)
	require.Equal(t, 3, *audits.appended[0].VersionBefore)
	require.Equal(t, 4, *audits.appended[0].VersionAfter)

	require.Equal(t, []string{"rec-1"}, status.invalidated)
}

func TestVersionServiceRestoreRejectsForeignSnapshot(t *testing.T) {
	versions := newVersionStoreStub()
	snapshot := snapshotFor("ver-1", "rec-other", 1, nil)
	versions.snapshots[snapshot.ID] = snapshot
	svc := newVersionService(versions, newRecordStoreStub(), &auditAppenderStub{}, &reviewFlaggerStub{}, &statusStub{})

	_, err := svc.RestoreVersion(context.Background(), "rec-1", "ver-1", Actor{ID: "clin-1"}, nil, EncounterContext{}, models.RequestContext{})
	require.ErrorIs(t, err, appErrors.ErrVersionMismatch)
}

func TestVersionServiceRestoreMissingSnapshot(t *testing.T) {
	svc := newVersionService(newVersionStoreStub(), newRecordStoreStub(), &auditAppenderStub{}, &reviewFlaggerStub{}, &statusStub{})
	_, err := svc.RestoreVersion(context.Background(), "rec-1", "ver-missing", Actor{ID: "clin-1"}, nil, EncounterContext{}, models.RequestContext{})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestVersionServiceRestoreConcurrentEditConflicts(t *testing.T) {
	versions := newVersionStoreStub()
	snapshot := snapshotFor("ver-1", "rec-1", 1, &models.RecordState{})
	versions.snapshots[snapshot.ID] = snapshot

	records := newRecordStoreStub()
	records.add(testRecord("rec-1", "patient-1", 2, nil))
	svc := newVersionService(versions, records, &auditAppenderStub{}, &reviewFlaggerStub{}, &statusStub{})

	// another writer wins the version check inside the transaction
	records.updateStateErr = sql.ErrNoRows

	_, err := svc.RestoreVersion(context.Background(), "rec-1", "ver-1", Actor{ID: "clin-1"}, nil, EncounterContext{}, models.RequestContext{})
	require.ErrorIs(t, err, appErrors.ErrConflict)
	require.Empty(t, versions.created)
}

func TestVersionServiceRestoreOutsideEncounterFlagsReview(t *testing.T) {
	versions := newVersionStoreStub()
	oldState := &models.RecordState{Fields: map[string]models.Value{"hasAllergies": models.BoolValue(true)}}
	snapshot := snapshotFor("ver-1", "rec-1", 1, oldState)
	versions.snapshots[snapshot.ID] = snapshot

	records := newRecordStoreStub()
	records.add(testRecord("rec-1", "patient-1", 2, &models.RecordState{Fields: map[string]models.Value{"hasAllergies": models.BoolValue(false)}}))

	audits := &auditAppenderStub{requiresReview: true}
	reviews := &reviewFlaggerStub{}
	svc := newVersionService(versions, records, audits, reviews, &statusStub{})

	_, err := svc.RestoreVersion(context.Background(), "rec-1", "ver-1", Actor{ID: "user-1"}, nil, EncounterContext{IsOutsideEncounter: true}, models.RequestContext{})
	require.NoError(t, err)
	require.Len(t, reviews.flagged, 1)
}

func TestVersionServiceListVersions(t *testing.T) {
	versions := newVersionStoreStub()
	versions.snapshots["ver-1"] = snapshotFor("ver-1", "rec-1", 1, nil)
	versions.snapshots["ver-2"] = snapshotFor("ver-2", "rec-1", 2, nil)
	versions.snapshots["ver-x"] = snapshotFor("ver-x", "rec-other", 1, nil)
	svc := newVersionService(versions, newRecordStoreStub(), &auditAppenderStub{}, &reviewFlaggerStub{}, &statusStub{})

	list, err := svc.ListVersions(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
}
