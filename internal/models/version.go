package models

import "time"

// VersionSnapshot is an immutable full copy of a record state at one version.
// RestoredFromVersion back-links to the version number a restore came from.
type VersionSnapshot struct {
	ID                  string    `db:"id" json:"id"`
	RecordID            string    `db:"record_id" json:"recordId"`
	PatientID           string    `db:"patient_id" json:"patientId"`
	VersionNumber       int       `db:"version_number" json:"versionNumber"`
	State               []byte    `db:"state" json:"-"`
	Reason              *string   `db:"reason" json:"reason,omitempty"`
	EncounterID         *string   `db:"encounter_id" json:"encounterId,omitempty"`
	RestoredFromVersion *int      `db:"restored_from_version" json:"restoredFromVersion,omitempty"`
	CreatedBy           string    `db:"created_by" json:"createdBy"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
}
