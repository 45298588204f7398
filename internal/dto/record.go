package dto

import (
	"time"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

// EncounterRequest carries the clinical context of an edit. Edits flagged
// as outside an encounter feed the review workflow.
type EncounterRequest struct {
	EncounterID         *string `json:"encounterId,omitempty"`
	IsOutsideEncounter  bool    `json:"isOutsideEncounter"`
	InformationSource   *string `json:"informationSource,omitempty"`
	VerifiedWithPatient *bool   `json:"verifiedWithPatient,omitempty"`
}

// CreateRecordRequest payload for creating a clinical record.
type CreateRecordRequest struct {
	PatientID  string              `json:"patientId" binding:"required"`
	RecordType string              `json:"recordType" binding:"omitempty,recordtype"`
	State      *models.RecordState `json:"state" binding:"required"`
	Reason     *string             `json:"reason,omitempty"`
	Encounter  EncounterRequest    `json:"encounter"`
}

// UpdateRecordRequest payload for replacing the record state.
type UpdateRecordRequest struct {
	State     *models.RecordState `json:"state" binding:"required"`
	Reason    *string             `json:"reason,omitempty"`
	Encounter EncounterRequest    `json:"encounter"`
}

// DeleteRecordRequest payload accompanying a record deletion.
type DeleteRecordRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// RestoreVersionRequest payload for restoring a historical snapshot.
type RestoreVersionRequest struct {
	VersionID string           `json:"versionId" binding:"required"`
	Reason    *string          `json:"reason,omitempty"`
	Encounter EncounterRequest `json:"encounter"`
}

// RecordResponse is the record row with its state resolved for the client.
type RecordResponse struct {
	ID                  string              `json:"id"`
	PatientID           string              `json:"patientId"`
	RecordType          string              `json:"recordType"`
	State               *models.RecordState `json:"state"`
	Version             int                 `json:"version"`
	HasPendingReviews   bool                `json:"hasPendingReviews"`
	PendingReviewSince  *time.Time          `json:"pendingReviewSince,omitempty"`
	PendingReviewReason *string             `json:"pendingReviewReason,omitempty"`
	LastVerifiedAt      *time.Time          `json:"lastVerifiedAt,omitempty"`
	LastVerifiedBy      *string             `json:"lastVerifiedBy,omitempty"`
	CreatedBy           string              `json:"createdBy"`
	UpdatedBy           string              `json:"updatedBy"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// NewRecordResponse resolves the JSONB state columns into the response shape.
func NewRecordResponse(record *models.Record) (*RecordResponse, error) {
	state, err := record.State()
	if err != nil {
		return nil, err
	}
	return &RecordResponse{
		ID:                  record.ID,
		PatientID:           record.PatientID,
		RecordType:          record.RecordType,
		State:               state,
		Version:             record.Version,
		HasPendingReviews:   record.HasPendingReviews,
		PendingReviewSince:  record.PendingReviewSince,
		PendingReviewReason: record.PendingReviewReason,
		LastVerifiedAt:      record.LastVerifiedAt,
		LastVerifiedBy:      record.LastVerifiedBy,
		CreatedBy:           record.CreatedBy,
		UpdatedBy:           record.UpdatedBy,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}, nil
}

// UpdateRecordResponse bundles the stored record with the diffs it produced.
type UpdateRecordResponse struct {
	Record  *RecordResponse       `json:"record"`
	Diffs   []models.FieldDiff    `json:"diffs"`
	Summary models.ChangesSummary `json:"summary"`
}
