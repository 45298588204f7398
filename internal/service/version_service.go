package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

type versionStore interface {
	Create(ctx context.Context, uow *repository.UnitOfWork, snapshot *models.VersionSnapshot) error
	GetByID(ctx context.Context, id string) (*models.VersionSnapshot, error)
	ListByRecord(ctx context.Context, recordID string) ([]models.VersionSnapshot, error)
}

type versionRecordStore interface {
	GetByID(ctx context.Context, id string) (*models.Record, error)
	UpdateState(ctx context.Context, uow *repository.UnitOfWork, record *models.Record, expectedVersion int) error
}

type auditAppender interface {
	Append(ctx context.Context, uow *repository.UnitOfWork, params AppendAuditParams) (*models.AuditLogEntry, []models.FieldDiff, error)
}

type reviewFlagger interface {
	FlagForReview(ctx context.Context, uow *repository.UnitOfWork, entry *models.AuditLogEntry, diffs []models.FieldDiff, reason *string) (int, error)
}

// Actor identifies who performs an operation. The engine trusts the caller.
type Actor struct {
	ID   string
	Role models.ActorRole
}

// EncounterContext tells the engine whether an edit happened during a
// clinical encounter; edits outside one feed the review workflow.
type EncounterContext struct {
	EncounterID         *string
	IsOutsideEncounter  bool
	InformationSource   *string
	VerifiedWithPatient *bool
}

// VersionService maintains the immutable version history and restores.
type VersionService struct {
	versions versionStore
	records  versionRecordStore
	audits   auditAppender
	reviews  reviewFlagger
	tx       unitOfWorkRunner
	status   statusInvalidator
	logger   *zap.Logger
}

// NewVersionService constructs the service.
func NewVersionService(versions versionStore, records versionRecordStore, audits auditAppender, reviews reviewFlagger, tx unitOfWorkRunner, status statusInvalidator, logger *zap.Logger) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionService{
		versions: versions,
		records:  records,
		audits:   audits,
		reviews:  reviews,
		tx:       tx,
		status:   status,
		logger:   logger,
	}
}

// CreateSnapshot captures the record's fully-resolved current state as an
// immutable snapshot at the given version number.
func (s *VersionService) CreateSnapshot(ctx context.Context, recordID string, versionNumber int, reason, encounterID *string, actor Actor) (string, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return "", mapNotFound(err, "record not found")
	}
	state, err := record.State()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve record state")
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode snapshot state")
	}

	snapshot := &models.VersionSnapshot{
		RecordID:      record.ID,
		PatientID:     record.PatientID,
		VersionNumber: versionNumber,
		State:         stateJSON,
		Reason:        reason,
		EncounterID:   encounterID,
		CreatedBy:     actor.ID,
	}
	err = s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		return s.versions.Create(ctx, uow, snapshot)
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create snapshot")
	}
	return snapshot.ID, nil
}

// RestoreVersion overwrites the live record from the target snapshot. The
// record's version always advances to current+1, never back to the restored
// snapshot's own number. All five steps commit atomically:
// load snapshot, capture previous state, overwrite the live record, write the
// new back-linked snapshot, append the RESTORE audit entry.
func (s *VersionService) RestoreVersion(ctx context.Context, recordID, versionID string, actor Actor, reason *string, encounter EncounterContext, request models.RequestContext) (*models.RecordState, error) {
	snapshot, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, mapNotFound(err, "version snapshot not found")
	}
	if snapshot.RecordID != recordID {
		return nil, appErrors.ErrVersionMismatch
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, mapNotFound(err, "record not found")
	}
	previousState, err := record.State()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve record state")
	}

	var restoredState models.RecordState
	if err := json.Unmarshal(snapshot.State, &restoredState); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode snapshot state")
	}

	versionBefore := record.Version
	versionAfter := versionBefore + 1

	err = s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		if err := record.SetState(&restoredState); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode restored state")
		}
		record.Version = versionAfter
		record.UpdatedBy = actor.ID
		if err := s.records.UpdateState(ctx, uow, record, versionBefore); err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrConflict, "record was modified concurrently")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to overwrite record")
		}

		restoredFrom := snapshot.VersionNumber
		newSnapshot := &models.VersionSnapshot{
			RecordID:            record.ID,
			PatientID:           record.PatientID,
			VersionNumber:       versionAfter,
			State:               snapshot.State,
			Reason:              reason,
			RestoredFromVersion: &restoredFrom,
			CreatedBy:           actor.ID,
		}
		if err := s.versions.Create(ctx, uow, newSnapshot); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write restore snapshot")
		}

		entry, diffs, err := s.audits.Append(ctx, uow, AppendAuditParams{
			Action:              models.AuditActionRestore,
			RecordID:            record.ID,
			PatientID:           record.PatientID,
			ActorID:             actor.ID,
			ActorRole:           actor.Role,
			PreviousState:       previousState,
			NewState:            &restoredState,
			Reason:              reason,
			Request:             request,
			VersionBefore:       &versionBefore,
			VersionAfter:        &versionAfter,
			IsOutsideEncounter:  encounter.IsOutsideEncounter,
			InformationSource:   encounter.InformationSource,
			VerifiedWithPatient: encounter.VerifiedWithPatient,
		})
		if err != nil {
			return err
		}
		if entry.RequiresReview {
			if _, err := s.reviews.FlagForReview(ctx, uow, entry, diffs, reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.status.Invalidate(ctx, recordID)
	return &restoredState, nil
}

// ListVersions returns the snapshot history of a record.
func (s *VersionService) ListVersions(ctx context.Context, recordID string) ([]models.VersionSnapshot, error) {
	return s.versions.ListByRecord(ctx, recordID)
}
