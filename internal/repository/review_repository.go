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

const reviewColumns = `id, record_id, patient_id, audit_log_id, field_path, label,
       old_value, new_value, reason, severity, created_by, created_at,
       reviewed_at, reviewed_by, review_notes, is_approved`

// ReviewRepository persists pending clinical reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a pending review row.
func (r *ReviewRepository) Create(ctx context.Context, uow *UnitOfWork, review *models.PendingReview) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pending_reviews
	(id, record_id, patient_id, audit_log_id, field_path, label,
	 old_value, new_value, reason, severity, created_by, created_at,
	 reviewed_at, reviewed_by, review_notes, is_approved)
	VALUES (:id, :record_id, :patient_id, :audit_log_id, :field_path, :label,
	 :old_value, :new_value, :reason, :severity, :created_by, :created_at,
	 :reviewed_at, :reviewed_by, :review_notes, :is_approved)`
	if _, err := uow.tx.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create pending review: %w", err)
	}
	return nil
}

// GetByID fetches one review.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.PendingReview, error) {
	query := fmt.Sprintf(`SELECT %s FROM pending_reviews WHERE id = $1`, reviewColumns)
	var review models.PendingReview
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// GetByIDs fetches several reviews at once for batch validation.
func (r *ReviewRepository) GetByIDs(ctx context.Context, ids []string) ([]models.PendingReview, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM pending_reviews WHERE id IN (?)`, reviewColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build reviews query: %w", err)
	}
	query = r.db.Rebind(query)
	var reviews []models.PendingReview
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, fmt.Errorf("get reviews by ids: %w", err)
	}
	return reviews, nil
}

// ListDetails returns reviews joined with audit metadata for the review queue.
func (r *ReviewRepository) ListDetails(ctx context.Context, filter models.ReviewFilter) ([]models.PendingReviewDetail, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT pr.id, pr.record_id, pr.patient_id, pr.audit_log_id, pr.field_path, pr.label,
	       pr.old_value, pr.new_value, pr.reason, pr.severity, pr.created_by, pr.created_at,
	       pr.reviewed_at, pr.reviewed_by, pr.review_notes, pr.is_approved,
	       al.action, al.information_source, al.is_outside_encounter
	FROM pending_reviews pr
	JOIN audit_log_entries al ON al.id = pr.audit_log_id`)

	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 3)
	if filter.RecordID != "" {
		args = append(args, filter.RecordID)
		conditions = append(conditions, fmt.Sprintf("pr.record_id = $%d", len(args)))
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		conditions = append(conditions, fmt.Sprintf("pr.patient_id = $%d", len(args)))
	}
	if filter.OnlyPending {
		conditions = append(conditions, "pr.is_approved IS NULL")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY pr.created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var details []models.PendingReviewDetail
	if err := r.db.SelectContext(ctx, &details, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	return details, nil
}

// CountUnresolved returns the number of open reviews for a record.
func (r *ReviewRepository) CountUnresolved(ctx context.Context, recordID string) (int, error) {
	const query = `SELECT COUNT(*) FROM pending_reviews WHERE record_id = $1 AND is_approved IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, recordID); err != nil {
		return 0, fmt.Errorf("count unresolved reviews: %w", err)
	}
	return count, nil
}

// CountUnresolvedInTx counts open reviews through the unit of work, so a
// resolution in flight is already accounted for.
func (r *ReviewRepository) CountUnresolvedInTx(ctx context.Context, uow *UnitOfWork, recordID string) (int, error) {
	const query = `SELECT COUNT(*) FROM pending_reviews WHERE record_id = $1 AND is_approved IS NULL`
	var count int
	if err := uow.tx.GetContext(ctx, &count, query, recordID); err != nil {
		return 0, fmt.Errorf("count unresolved reviews: %w", err)
	}
	return count, nil
}

// ResolveReviewParams groups the reviewer decision columns.
type ResolveReviewParams struct {
	ID         string
	ReviewedAt time.Time
	ReviewedBy string
	Notes      *string
	Approved   bool
}

// Resolve records the decision. The is_approved IS NULL guard makes the
// transition single-use; a second attempt reports sql.ErrNoRows.
func (r *ReviewRepository) Resolve(ctx context.Context, uow *UnitOfWork, params ResolveReviewParams) error {
	const query = `UPDATE pending_reviews
	SET reviewed_at = :reviewed_at, reviewed_by = :reviewed_by,
	    review_notes = :review_notes, is_approved = :is_approved
	WHERE id = :id AND is_approved IS NULL`
	result, err := uow.tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           params.ID,
		"reviewed_at":  params.ReviewedAt,
		"reviewed_by":  params.ReviewedBy,
		"review_notes": params.Notes,
		"is_approved":  params.Approved,
	})
	if err != nil {
		return fmt.Errorf("resolve pending review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
