package models

import "time"

// RecordStatus is the derived verification state of a clinical record.
type RecordStatus string

const (
	StatusNoRecord      RecordStatus = "NO_RECORD"
	StatusValid         RecordStatus = "VALID"
	StatusPendingReview RecordStatus = "PENDING_REVIEW"
	StatusExpired       RecordStatus = "EXPIRED"
)

// RecordStatusInfo is the read model derived from pending reviews and
// staleness. It is cached, never the source of truth.
type RecordStatusInfo struct {
	RecordID            string       `json:"recordId,omitempty"`
	PatientID           string       `json:"patientId"`
	Status              RecordStatus `json:"status"`
	Version             int          `json:"version,omitempty"`
	LastModifiedAt      *time.Time   `json:"lastModifiedAt,omitempty"`
	LastVerifiedAt      *time.Time   `json:"lastVerifiedAt,omitempty"`
	LastVerifiedBy      *string      `json:"lastVerifiedBy,omitempty"`
	HasPendingReviews   bool         `json:"hasPendingReviews"`
	PendingReviewCount  int          `json:"pendingReviewCount"`
	PendingReviewSince  *time.Time   `json:"pendingReviewSince,omitempty"`
	PendingReviewReason *string      `json:"pendingReviewReason,omitempty"`
	CheckedAt           time.Time    `json:"checkedAt"`
}
