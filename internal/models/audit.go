package models

import "time"

// AuditAction enumerates every auditable action kind.
type AuditAction string

const (
	AuditActionCreate  AuditAction = "CREATE"
	AuditActionUpdate  AuditAction = "UPDATE"
	AuditActionDelete  AuditAction = "DELETE"
	AuditActionView    AuditAction = "VIEW"
	AuditActionRestore AuditAction = "RESTORE"
	AuditActionExport  AuditAction = "EXPORT"
	AuditActionPrint   AuditAction = "PRINT"
)

// IsReadOnly reports whether the action observes state without changing it.
func (a AuditAction) IsReadOnly() bool {
	switch a {
	case AuditActionView, AuditActionExport, AuditActionPrint:
		return true
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete, AuditActionRestore:
		return false
	}
	return false
}

// SanitizationLevel controls how much of the raw snapshots the audit trail keeps.
type SanitizationLevel string

const (
	SanitizationNone    SanitizationLevel = "NONE"
	SanitizationPartial SanitizationLevel = "PARTIAL"
	SanitizationFull    SanitizationLevel = "FULL"
)

// RequestContext carries best-effort request metadata. Every field may be empty.
type RequestContext struct {
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// AuditLogEntry is one immutable audit trail row. Only the review outcome
// fields are ever stamped after insertion.
type AuditLogEntry struct {
	ID                  string      `db:"id" json:"id"`
	RecordID            string      `db:"record_id" json:"recordId"`
	PatientID           string      `db:"patient_id" json:"patientId"`
	Action              AuditAction `db:"action" json:"action"`
	ActorID             string      `db:"actor_id" json:"actorId"`
	ActorRole           ActorRole   `db:"actor_role" json:"actorRole"`
	IPAddress           string      `db:"ip_address" json:"ipAddress"`
	UserAgent           string      `db:"user_agent" json:"userAgent"`
	SessionID           string      `db:"session_id" json:"sessionId"`
	RequestPath         string      `db:"request_path" json:"requestPath"`
	PreviousState       []byte      `db:"previous_state" json:"previousState,omitempty"`
	NewState            []byte      `db:"new_state" json:"newState,omitempty"`
	Diffs               []byte      `db:"diffs" json:"diffs,omitempty"`
	Summary             []byte      `db:"summary" json:"summary,omitempty"`
	Severity            Severity    `db:"severity" json:"severity"`
	Reason              *string     `db:"reason" json:"reason,omitempty"`
	VersionBefore       *int        `db:"version_before" json:"versionBefore,omitempty"`
	VersionAfter        *int        `db:"version_after" json:"versionAfter,omitempty"`
	IntegrityHash       string      `db:"integrity_hash" json:"integrityHash"`
	IsOutsideEncounter  bool        `db:"is_outside_encounter" json:"isOutsideEncounter"`
	InformationSource   *string     `db:"information_source" json:"informationSource,omitempty"`
	VerifiedWithPatient *bool       `db:"verified_with_patient" json:"verifiedWithPatient,omitempty"`
	RequiresReview      bool        `db:"requires_review" json:"requiresReview"`
	ReviewedAt          *time.Time  `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy          *string     `db:"reviewed_by" json:"reviewedBy,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"createdAt"`
}

// AuditFieldDiff is one normalized per-field diff row backing an audit entry.
type AuditFieldDiff struct {
	ID         string     `db:"id" json:"id"`
	AuditLogID string     `db:"audit_log_id" json:"auditLogId"`
	RecordID   string     `db:"record_id" json:"recordId"`
	FieldPath  string     `db:"field_path" json:"fieldPath"`
	Label      string     `db:"label" json:"label"`
	FieldType  string     `db:"field_type" json:"fieldType"`
	OldValue   []byte     `db:"old_value" json:"oldValue,omitempty"`
	NewValue   []byte     `db:"new_value" json:"newValue,omitempty"`
	OldDisplay string     `db:"old_display" json:"oldDisplay"`
	NewDisplay string     `db:"new_display" json:"newDisplay"`
	IsCritical bool       `db:"is_critical" json:"isCritical"`
	ChangeType ChangeType `db:"change_type" json:"changeType"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// AuditFilter constrains audit trail listings.
type AuditFilter struct {
	RecordID  string
	PatientID string
	Action    AuditAction
	Limit     int
	Offset    int
}
