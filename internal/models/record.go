package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Named collections carried by every record state.
const (
	CollectionAllergies   = "allergies"
	CollectionMedications = "medications"
	CollectionConditions  = "conditions"
)

// CollectionNames lists the named collections in a stable order.
var CollectionNames = []string{CollectionAllergies, CollectionMedications, CollectionConditions}

// RecordState is the diffable/snapshottable shape of a clinical record at one
// instant: scalar intake fields, a free-form nested payload bag, and the named
// clinical collections.
type RecordState struct {
	Fields      map[string]Value   `json:"fields"`
	Payload     map[string]Value   `json:"payload,omitempty"`
	Collections map[string][]Value `json:"collections,omitempty"`
}

// Clone returns a deep copy via the JSON round trip.
func (s *RecordState) Clone() (*RecordState, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone record state: %w", err)
	}
	var out RecordState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone record state: %w", err)
	}
	return &out, nil
}

// Record is the live clinical intake row tracked by the engine. The state
// columns are JSONB; sub-collections are resolved into Collections.
type Record struct {
	ID                  string     `db:"id" json:"id"`
	PatientID           string     `db:"patient_id" json:"patientId"`
	RecordType          string     `db:"record_type" json:"recordType"`
	Fields              []byte     `db:"fields" json:"-"`
	Payload             []byte     `db:"payload" json:"-"`
	Collections         []byte     `db:"collections" json:"-"`
	Version             int        `db:"version" json:"version"`
	HasPendingReviews   bool       `db:"has_pending_reviews" json:"hasPendingReviews"`
	PendingReviewSince  *time.Time `db:"pending_review_since" json:"pendingReviewSince,omitempty"`
	PendingReviewReason *string    `db:"pending_review_reason" json:"pendingReviewReason,omitempty"`
	LastVerifiedAt      *time.Time `db:"last_verified_at" json:"lastVerifiedAt,omitempty"`
	LastVerifiedBy      *string    `db:"last_verified_by" json:"lastVerifiedBy,omitempty"`
	CreatedBy           string     `db:"created_by" json:"createdBy"`
	UpdatedBy           string     `db:"updated_by" json:"updatedBy"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updatedAt"`
}

// State decodes the JSONB columns into a RecordState.
func (r *Record) State() (*RecordState, error) {
	state := &RecordState{
		Fields:      make(map[string]Value),
		Payload:     make(map[string]Value),
		Collections: make(map[string][]Value),
	}
	if len(r.Fields) > 0 {
		if err := json.Unmarshal(r.Fields, &state.Fields); err != nil {
			return nil, fmt.Errorf("decode record fields: %w", err)
		}
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &state.Payload); err != nil {
			return nil, fmt.Errorf("decode record payload: %w", err)
		}
	}
	if len(r.Collections) > 0 {
		if err := json.Unmarshal(r.Collections, &state.Collections); err != nil {
			return nil, fmt.Errorf("decode record collections: %w", err)
		}
	}
	return state, nil
}

// SetState encodes the given state back into the JSONB columns.
func (r *Record) SetState(state *RecordState) error {
	if state == nil {
		return fmt.Errorf("record state required")
	}
	fields, err := json.Marshal(state.Fields)
	if err != nil {
		return fmt.Errorf("encode record fields: %w", err)
	}
	payload, err := json.Marshal(state.Payload)
	if err != nil {
		return fmt.Errorf("encode record payload: %w", err)
	}
	collections, err := json.Marshal(state.Collections)
	if err != nil {
		return fmt.Errorf("encode record collections: %w", err)
	}
	r.Fields = fields
	r.Payload = payload
	r.Collections = collections
	return nil
}
