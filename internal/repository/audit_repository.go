package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

const auditColumns = `id, record_id, patient_id, action, actor_id, actor_role,
       ip_address, user_agent, session_id, request_path,
       previous_state, new_state, diffs, summary, severity, reason,
       version_before, version_after, integrity_hash,
       is_outside_encounter, information_source, verified_with_patient, requires_review,
       reviewed_at, reviewed_by, created_at`

// AuditRepository persists audit log entries and their normalized diff rows.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateWithDiffs inserts the entry and one row per field diff through the
// same unit of work, so both land atomically or not at all.
func (r *AuditRepository) CreateWithDiffs(ctx context.Context, uow *UnitOfWork, entry *models.AuditLogEntry, diffs []models.AuditFieldDiff) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_log_entries
	(id, record_id, patient_id, action, actor_id, actor_role,
	 ip_address, user_agent, session_id, request_path,
	 previous_state, new_state, diffs, summary, severity, reason,
	 version_before, version_after, integrity_hash,
	 is_outside_encounter, information_source, verified_with_patient, requires_review,
	 reviewed_at, reviewed_by, created_at)
	VALUES (:id, :record_id, :patient_id, :action, :actor_id, :actor_role,
	 :ip_address, :user_agent, :session_id, :request_path,
	 :previous_state, :new_state, :diffs, :summary, :severity, :reason,
	 :version_before, :version_after, :integrity_hash,
	 :is_outside_encounter, :information_source, :verified_with_patient, :requires_review,
	 :reviewed_at, :reviewed_by, :created_at)`
	if _, err := uow.tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}

	const diffQuery = `INSERT INTO audit_field_diffs
	(id, audit_log_id, record_id, field_path, label, field_type,
	 old_value, new_value, old_display, new_display, is_critical, change_type, created_at)
	VALUES (:id, :audit_log_id, :record_id, :field_path, :label, :field_type,
	 :old_value, :new_value, :old_display, :new_display, :is_critical, :change_type, :created_at)`
	for i := range diffs {
		if diffs[i].ID == "" {
			diffs[i].ID = uuid.NewString()
		}
		diffs[i].AuditLogID = entry.ID
		diffs[i].RecordID = entry.RecordID
		if diffs[i].CreatedAt.IsZero() {
			diffs[i].CreatedAt = entry.CreatedAt
		}
		if _, err := uow.tx.NamedExecContext(ctx, diffQuery, &diffs[i]); err != nil {
			return fmt.Errorf("create audit field diff: %w", err)
		}
	}
	return nil
}

// GetByID fetches one audit entry.
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*models.AuditLogEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_log_entries WHERE id = $1`, auditColumns)
	var entry models.AuditLogEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns audit entries matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM audit_log_entries`, auditColumns))
	args := make([]interface{}, 0, 3)
	conditions := make([]string, 0, 3)
	if filter.RecordID != "" {
		args = append(args, filter.RecordID)
		conditions = append(conditions, fmt.Sprintf("record_id = $%d", len(args)))
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var entries []models.AuditLogEntry
	if err := r.db.SelectContext(ctx, &entries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ListDiffs returns the normalized diff rows for one audit entry.
func (r *AuditRepository) ListDiffs(ctx context.Context, auditLogID string) ([]models.AuditFieldDiff, error) {
	const query = `SELECT id, audit_log_id, record_id, field_path, label, field_type,
	       old_value, new_value, old_display, new_display, is_critical, change_type, created_at
	FROM audit_field_diffs WHERE audit_log_id = $1 ORDER BY field_path`
	var diffs []models.AuditFieldDiff
	if err := r.db.SelectContext(ctx, &diffs, query, auditLogID); err != nil {
		return nil, fmt.Errorf("list audit field diffs: %w", err)
	}
	return diffs, nil
}

// StampReview sets the review outcome fields on an entry. This is the only
// mutation an audit entry ever receives.
func (r *AuditRepository) StampReview(ctx context.Context, uow *UnitOfWork, auditLogID string, reviewedAt time.Time, reviewedBy string) error {
	const query = `UPDATE audit_log_entries SET reviewed_at = $2, reviewed_by = $3 WHERE id = $1`
	result, err := uow.tx.ExecContext(ctx, query, auditLogID, reviewedAt, reviewedBy)
	if err != nil {
		return fmt.Errorf("stamp audit review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check audit stamp rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
