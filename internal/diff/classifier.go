package diff

import (
	"strings"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

// criticalFieldPaths is the fixed registry of clinically sensitive paths.
// Matching is by substring so nested payload paths are covered as well.
var criticalFieldPaths = []string{
	"hasAllergies",
	models.CollectionAllergies,
	"isPregnant",
	"hasActiveMedications",
	models.CollectionMedications,
	"hasChronicConditions",
	"chiefComplaint",
	"painIntensity",
	"perceivedUrgency",
}

// habitFieldPaths covers habitual/hygiene fields that warrant MEDIUM severity.
var habitFieldPaths = []string{
	"bruxism",
	"brushingFrequency",
	"usesFloss",
	"smokes",
	"alcoholUse",
}

// complaintFieldPaths always escalate to HIGH, independent of criticality.
var complaintFieldPaths = []string{
	"chiefComplaint",
	"painIntensity",
	"perceivedUrgency",
}

// IsCritical reports whether the field path touches the sensitive registry.
func IsCritical(fieldPath string) bool {
	return matchesAny(fieldPath, criticalFieldPaths)
}

// ClassifySeverity derives the aggregate severity for a diff list under the
// given action. CREATE and VIEW are always LOW regardless of diff content.
func ClassifySeverity(diffs []models.FieldDiff, action models.AuditAction) models.Severity {
	switch action {
	case models.AuditActionCreate, models.AuditActionView:
		return models.SeverityLow
	case models.AuditActionUpdate, models.AuditActionDelete, models.AuditActionRestore,
		models.AuditActionExport, models.AuditActionPrint:
		// fall through to diff inspection
	}

	for _, d := range diffs {
		if isSevereAllergyAddition(d) || isPregnancyActivation(d) {
			return models.SeverityCritical
		}
	}
	for _, d := range diffs {
		if d.IsCritical || matchesAny(d.FieldPath, complaintFieldPaths) {
			return models.SeverityHigh
		}
	}
	for _, d := range diffs {
		if matchesAny(d.FieldPath, habitFieldPaths) {
			return models.SeverityMedium
		}
	}
	return models.SeverityLow
}

// RequiresReview decides whether a single diff must be flagged for clinician
// sign-off when the edit happened outside an encounter. This deliberately
// diverges from IsCritical: collection membership changes always qualify, and
// the pregnancy flag qualifies on modification.
func RequiresReview(fieldPath string, changeType models.ChangeType) bool {
	if IsCritical(fieldPath) {
		return true
	}
	switch changeType {
	case models.ChangeTypeAdded, models.ChangeTypeRemoved:
		for _, name := range models.CollectionNames {
			if strings.Contains(fieldPath, name) {
				return true
			}
		}
	case models.ChangeTypeModified:
		if strings.Contains(fieldPath, "isPregnant") {
			return true
		}
	}
	return false
}

func isSevereAllergyAddition(d models.FieldDiff) bool {
	if d.ChangeType != models.ChangeTypeAdded || d.NewValue == nil {
		return false
	}
	if !strings.Contains(d.FieldPath, models.CollectionAllergies) {
		return false
	}
	return containsSevereSeverity(*d.NewValue)
}

func isPregnancyActivation(d models.FieldDiff) bool {
	return strings.Contains(d.FieldPath, "isPregnant") && d.NewValue != nil && d.NewValue.IsTrue()
}

func containsSevereSeverity(v models.Value) bool {
	switch v.Kind {
	case models.KindList:
		for _, item := range v.List {
			if containsSevereSeverity(item) {
				return true
			}
		}
	case models.KindMap:
		if sev, ok := v.Map["severity"]; ok && sev.Kind == models.KindString {
			upper := strings.ToUpper(sev.Str)
			if upper == "SEVERE" || upper == "SEVERA" {
				return true
			}
		}
	}
	return false
}

func matchesAny(fieldPath string, registry []string) bool {
	for _, entry := range registry {
		if strings.Contains(fieldPath, entry) {
			return true
		}
	}
	return false
}
