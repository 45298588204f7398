package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

const recordColumns = `id, patient_id, record_type, fields, payload, collections, version,
       has_pending_reviews, pending_review_since, pending_review_reason,
       last_verified_at, last_verified_by, created_by, updated_by, created_at, updated_at`

// RecordRepository persists the live clinical intake rows.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// GetByID fetches a record by identifier.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM anamnesis_records WHERE id = $1`, recordColumns)
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByPatient fetches the record owned by the given patient, if any.
func (r *RecordRepository) GetByPatient(ctx context.Context, patientID string) (*models.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM anamnesis_records WHERE patient_id = $1`, recordColumns)
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, patientID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a new record row at version 1.
func (r *RecordRepository) Create(ctx context.Context, uow *UnitOfWork, record *models.Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Version == 0 {
		record.Version = 1
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt
	const query = `INSERT INTO anamnesis_records
	(id, patient_id, record_type, fields, payload, collections, version,
	 has_pending_reviews, pending_review_since, pending_review_reason,
	 last_verified_at, last_verified_by, created_by, updated_by, created_at, updated_at)
	VALUES (:id, :patient_id, :record_type, :fields, :payload, :collections, :version,
	 :has_pending_reviews, :pending_review_since, :pending_review_reason,
	 :last_verified_at, :last_verified_by, :created_by, :updated_by, :created_at, :updated_at)`
	if _, err := uow.tx.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// UpdateState overwrites the state columns and bumps the version, guarded by
// an optimistic check on the expected version. Returns sql.ErrNoRows when a
// concurrent writer got there first.
func (r *RecordRepository) UpdateState(ctx context.Context, uow *UnitOfWork, record *models.Record, expectedVersion int) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE anamnesis_records
	SET fields = :fields, payload = :payload, collections = :collections,
	    version = :version, updated_by = :updated_by, updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	result, err := uow.tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               record.ID,
		"fields":           record.Fields,
		"payload":          record.Payload,
		"collections":      record.Collections,
		"version":          record.Version,
		"updated_by":       record.UpdatedBy,
		"updated_at":       record.UpdatedAt,
		"expected_version": expectedVersion,
	})
	if err != nil {
		return fmt.Errorf("update record state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check record update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkPendingReview flags the record as awaiting sign-off. The first flag sets
// the timestamp and reason; later flags while already pending keep them.
func (r *RecordRepository) MarkPendingReview(ctx context.Context, uow *UnitOfWork, recordID string, since time.Time, reason *string) error {
	const query = `UPDATE anamnesis_records
	SET has_pending_reviews = TRUE,
	    pending_review_since = COALESCE(pending_review_since, $2),
	    pending_review_reason = COALESCE(pending_review_reason, $3)
	WHERE id = $1`
	if _, err := uow.tx.ExecContext(ctx, query, recordID, since, reason); err != nil {
		return fmt.Errorf("mark record pending review: %w", err)
	}
	return nil
}

// ClearPendingReview removes the pending flag and stamps the verification.
func (r *RecordRepository) ClearPendingReview(ctx context.Context, uow *UnitOfWork, recordID string, verifiedAt time.Time, verifiedBy string) error {
	const query = `UPDATE anamnesis_records
	SET has_pending_reviews = FALSE,
	    pending_review_since = NULL,
	    pending_review_reason = NULL,
	    last_verified_at = $2,
	    last_verified_by = $3
	WHERE id = $1`
	if _, err := uow.tx.ExecContext(ctx, query, recordID, verifiedAt, verifiedBy); err != nil {
		return fmt.Errorf("clear record pending review: %w", err)
	}
	return nil
}

// Delete removes the record row.
func (r *RecordRepository) Delete(ctx context.Context, uow *UnitOfWork, id string) error {
	result, err := uow.tx.ExecContext(ctx, `DELETE FROM anamnesis_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check record delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
