package models

import "time"

// PendingReview flags one field-level change made outside a clinical encounter
// for later clinician sign-off. It is single-use: IsApproved transitions from
// nil to true/false exactly once.
type PendingReview struct {
	ID          string     `db:"id" json:"id"`
	RecordID    string     `db:"record_id" json:"recordId"`
	PatientID   string     `db:"patient_id" json:"patientId"`
	AuditLogID  string     `db:"audit_log_id" json:"auditLogId"`
	FieldPath   string     `db:"field_path" json:"fieldPath"`
	Label       string     `db:"label" json:"label"`
	OldValue    []byte     `db:"old_value" json:"oldValue,omitempty"`
	NewValue    []byte     `db:"new_value" json:"newValue,omitempty"`
	Reason      *string    `db:"reason" json:"reason,omitempty"`
	Severity    Severity   `db:"severity" json:"severity"`
	CreatedBy   string     `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewNotes *string    `db:"review_notes" json:"reviewNotes,omitempty"`
	IsApproved  *bool      `db:"is_approved" json:"isApproved"`
}

// Resolved reports whether a reviewer decision was already recorded.
func (p *PendingReview) Resolved() bool { return p.IsApproved != nil }

// PendingReviewDetail joins the review with audit metadata for queue listings.
type PendingReviewDetail struct {
	PendingReview
	Action             AuditAction `db:"action" json:"action"`
	InformationSource  *string     `db:"information_source" json:"informationSource,omitempty"`
	IsOutsideEncounter bool        `db:"is_outside_encounter" json:"isOutsideEncounter"`
}

// ReviewFilter constrains pending review listings.
type ReviewFilter struct {
	RecordID     string
	PatientID    string
	OnlyPending  bool
	Limit        int
	Offset       int
}
