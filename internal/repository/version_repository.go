package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

const versionColumns = `id, record_id, patient_id, version_number, state, reason,
       encounter_id, restored_from_version, created_by, created_at`

// VersionRepository persists immutable record snapshots.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create inserts a snapshot row. Snapshots are never updated afterwards.
func (r *VersionRepository) Create(ctx context.Context, uow *UnitOfWork, snapshot *models.VersionSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO record_versions
	(id, record_id, patient_id, version_number, state, reason,
	 encounter_id, restored_from_version, created_by, created_at)
	VALUES (:id, :record_id, :patient_id, :version_number, :state, :reason,
	 :encounter_id, :restored_from_version, :created_by, :created_at)`
	if _, err := uow.tx.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("create version snapshot: %w", err)
	}
	return nil
}

// GetByID fetches one snapshot.
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.VersionSnapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM record_versions WHERE id = $1`, versionColumns)
	var snapshot models.VersionSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, id); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListByRecord returns all snapshots of a record, newest version first.
func (r *VersionRepository) ListByRecord(ctx context.Context, recordID string) ([]models.VersionSnapshot, error) {
	query := fmt.Sprintf(`SELECT %s FROM record_versions WHERE record_id = $1 ORDER BY version_number DESC`, versionColumns)
	var snapshots []models.VersionSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, recordID); err != nil {
		return nil, fmt.Errorf("list version snapshots: %w", err)
	}
	return snapshots, nil
}
