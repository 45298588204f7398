package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/diff"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/repository"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

type recordStore interface {
	GetByID(ctx context.Context, id string) (*models.Record, error)
	GetByPatient(ctx context.Context, patientID string) (*models.Record, error)
	Create(ctx context.Context, uow *repository.UnitOfWork, record *models.Record) error
	UpdateState(ctx context.Context, uow *repository.UnitOfWork, record *models.Record, expectedVersion int) error
	Delete(ctx context.Context, uow *repository.UnitOfWork, id string) error
}

type snapshotWriter interface {
	Create(ctx context.Context, uow *repository.UnitOfWork, snapshot *models.VersionSnapshot) error
}

type secondaryAuditor interface {
	AppendSecondary(ctx context.Context, params AppendAuditParams) SecondaryAudit
}

// RecordService orchestrates every state-changing operation on a clinical
// record: it drives the differ, the audit writer, the version store and the
// review workflow, committing each operation as one unit of work.
type RecordService struct {
	records   recordStore
	snapshots snapshotWriter
	audits    auditAppender
	secondary secondaryAuditor
	reviews   reviewFlagger
	tx        unitOfWorkRunner
	status    statusInvalidator
	logger    *zap.Logger
}

// NewRecordService constructs the service.
func NewRecordService(records recordStore, snapshots snapshotWriter, audits auditAppender, secondary secondaryAuditor, reviews reviewFlagger, tx unitOfWorkRunner, status statusInvalidator, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		records:   records,
		snapshots: snapshots,
		audits:    audits,
		secondary: secondary,
		reviews:   reviews,
		tx:        tx,
		status:    status,
		logger:    logger,
	}
}

// CreateRecordParams carries a record creation request.
type CreateRecordParams struct {
	PatientID  string
	RecordType string
	State      *models.RecordState
	Actor      Actor
	Reason     *string
	Encounter  EncounterContext
	Request    models.RequestContext
}

// Create persists a new record at version 1, its first snapshot, and the
// CREATE audit entry. Creations never enter the review workflow.
func (s *RecordService) Create(ctx context.Context, params CreateRecordParams) (*models.Record, error) {
	if params.PatientID == "" || params.State == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "patientId and state are required")
	}
	recordType := params.RecordType
	if recordType == "" {
		recordType = "ANAMNESIS"
	}

	record := &models.Record{
		PatientID:  params.PatientID,
		RecordType: recordType,
		Version:    1,
		CreatedBy:  params.Actor.ID,
		UpdatedBy:  params.Actor.ID,
	}
	if err := record.SetState(params.State); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode record state")
	}
	stateJSON, err := json.Marshal(params.State)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode snapshot state")
	}

	versionAfter := 1
	err = s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		if err := s.records.Create(ctx, uow, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
		}
		snapshot := &models.VersionSnapshot{
			RecordID:      record.ID,
			PatientID:     record.PatientID,
			VersionNumber: versionAfter,
			State:         stateJSON,
			Reason:        params.Reason,
			EncounterID:   params.Encounter.EncounterID,
			CreatedBy:     params.Actor.ID,
		}
		if err := s.snapshots.Create(ctx, uow, snapshot); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write initial snapshot")
		}
		_, _, err := s.audits.Append(ctx, uow, AppendAuditParams{
			Action:              models.AuditActionCreate,
			RecordID:            record.ID,
			PatientID:           record.PatientID,
			ActorID:             params.Actor.ID,
			ActorRole:           params.Actor.Role,
			NewState:            params.State,
			Reason:              params.Reason,
			Request:             params.Request,
			VersionAfter:        &versionAfter,
			IsOutsideEncounter:  params.Encounter.IsOutsideEncounter,
			InformationSource:   params.Encounter.InformationSource,
			VerifiedWithPatient: params.Encounter.VerifiedWithPatient,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.status.Invalidate(ctx, record.ID)
	return record, nil
}

// UpdateRecordParams carries a record update request.
type UpdateRecordParams struct {
	State     *models.RecordState
	Actor     Actor
	Reason    *string
	Encounter EncounterContext
	Request   models.RequestContext
}

// Update diffs the new state against the current one, bumps the version,
// snapshots and audits the change, and feeds the review workflow when an
// outside-encounter edit touches review-worthy fields. A no-op update
// changes nothing.
func (s *RecordService) Update(ctx context.Context, recordID string, params UpdateRecordParams) (*models.Record, []models.FieldDiff, error) {
	if params.State == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "state is required")
	}
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, nil, mapNotFound(err, "record not found")
	}
	previousState, err := record.State()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve record state")
	}

	if len(diff.Compute(previousState, params.State)) == 0 {
		return record, nil, nil
	}

	stateJSON, err := json.Marshal(params.State)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode snapshot state")
	}

	versionBefore := record.Version
	versionAfter := versionBefore + 1
	var appliedDiffs []models.FieldDiff

	err = s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		if err := record.SetState(params.State); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode record state")
		}
		record.Version = versionAfter
		record.UpdatedBy = params.Actor.ID
		if err := s.records.UpdateState(ctx, uow, record, versionBefore); err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrConflict, "record was modified concurrently")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update record")
		}

		snapshot := &models.VersionSnapshot{
			RecordID:      record.ID,
			PatientID:     record.PatientID,
			VersionNumber: versionAfter,
			State:         stateJSON,
			Reason:        params.Reason,
			EncounterID:   params.Encounter.EncounterID,
			CreatedBy:     params.Actor.ID,
		}
		if err := s.snapshots.Create(ctx, uow, snapshot); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write snapshot")
		}

		entry, diffs, err := s.audits.Append(ctx, uow, AppendAuditParams{
			Action:              models.AuditActionUpdate,
			RecordID:            record.ID,
			PatientID:           record.PatientID,
			ActorID:             params.Actor.ID,
			ActorRole:           params.Actor.Role,
			PreviousState:       previousState,
			NewState:            params.State,
			Reason:              params.Reason,
			Request:             params.Request,
			VersionBefore:       &versionBefore,
			VersionAfter:        &versionAfter,
			IsOutsideEncounter:  params.Encounter.IsOutsideEncounter,
			InformationSource:   params.Encounter.InformationSource,
			VerifiedWithPatient: params.Encounter.VerifiedWithPatient,
		})
		if err != nil {
			return err
		}
		appliedDiffs = diffs
		if entry.RequiresReview {
			if _, err := s.reviews.FlagForReview(ctx, uow, entry, diffs, params.Reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.status.Invalidate(ctx, recordID)
	return record, appliedDiffs, nil
}

// Delete removes the record and audits the final state it carried.
func (s *RecordService) Delete(ctx context.Context, recordID string, actor Actor, reason *string, request models.RequestContext) error {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return mapNotFound(err, "record not found")
	}
	previousState, err := record.State()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve record state")
	}

	versionBefore := record.Version
	err = s.tx.RunInUnitOfWork(ctx, func(uow *repository.UnitOfWork) error {
		if err := s.records.Delete(ctx, uow, recordID); err != nil {
			if isNoRows(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "record not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
		}
		_, _, err := s.audits.Append(ctx, uow, AppendAuditParams{
			Action:        models.AuditActionDelete,
			RecordID:      record.ID,
			PatientID:     record.PatientID,
			ActorID:       actor.ID,
			ActorRole:     actor.Role,
			PreviousState: previousState,
			Reason:        reason,
			Request:       request,
			VersionBefore: &versionBefore,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.status.Invalidate(ctx, recordID)
	return nil
}

// Get returns the record and emits a best-effort VIEW audit entry. The view
// audit accompanies the read; its failure never fails the read itself.
func (s *RecordService) Get(ctx context.Context, recordID string, actor Actor, request models.RequestContext) (*models.Record, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, mapNotFound(err, "record not found")
	}
	s.secondary.AppendSecondary(ctx, AppendAuditParams{
		Action:    models.AuditActionView,
		RecordID:  record.ID,
		PatientID: record.PatientID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Request:   request,
	}).Discard(s.logger)
	return record, nil
}

// GetByPatient returns the patient's record without audit side effects.
func (s *RecordService) GetByPatient(ctx context.Context, patientID string) (*models.Record, error) {
	record, err := s.records.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, mapNotFound(err, "record not found")
	}
	return record, nil
}
