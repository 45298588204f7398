package diff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

func TestIsCriticalMatchesRegistry(t *testing.T) {
	require.True(t, IsCritical("hasAllergies"))
	require.True(t, IsCritical("payload.isPregnant"))
	require.True(t, IsCritical(models.CollectionMedications))
	require.True(t, IsCritical("chiefComplaint"))
	require.False(t, IsCritical("notes"))
	require.False(t, IsCritical("payload.habits.bruxism"))
}

func TestClassifySeverityCreateIsAlwaysLow(t *testing.T) {
	diffs := []models.FieldDiff{
		{FieldPath: "payload.isPregnant", ChangeType: models.ChangeTypeAdded, NewValue: valuePtr(models.BoolValue(true))},
	}
	require.Equal(t, models.SeverityLow, ClassifySeverity(diffs, models.AuditActionCreate))
	require.Equal(t, models.SeverityLow, ClassifySeverity(diffs, models.AuditActionView))
}

func TestClassifySeveritySevereAllergyAdditionIsCritical(t *testing.T) {
	severe := models.ListValue(models.MapValue(map[string]models.Value{
		"name":     models.StringValue("penicilina"),
		"severity": models.StringValue("SEVERA"),
	}))
	diffs := []models.FieldDiff{
		{FieldPath: models.CollectionAllergies, ChangeType: models.ChangeTypeAdded, NewValue: &severe},
	}
	require.Equal(t, models.SeverityCritical, ClassifySeverity(diffs, models.AuditActionUpdate))
}

func TestClassifySeverityPregnancyActivationIsCritical(t *testing.T) {
	diffs := []models.FieldDiff{
		{FieldPath: "payload.isPregnant", ChangeType: models.ChangeTypeModified, NewValue: valuePtr(models.BoolValue(true))},
	}
	require.Equal(t, models.SeverityCritical, ClassifySeverity(diffs, models.AuditActionUpdate))
}

func TestClassifySeverityPregnancyDeactivationIsNotCritical(t *testing.T) {
	diffs := []models.FieldDiff{
		{FieldPath: "payload.isPregnant", ChangeType: models.ChangeTypeModified, IsCritical: true, NewValue: valuePtr(models.BoolValue(false))},
	}
	require.Equal(t, models.SeverityHigh, ClassifySeverity(diffs, models.AuditActionUpdate))
}

func TestClassifySeverityCriticalFieldIsHigh(t *testing.T) {
	diffs := []models.FieldDiff{
		{FieldPath: "chiefComplaint", ChangeType: models.ChangeTypeModified, IsCritical: true},
	}
	require.Equal(t, models.SeverityHigh, ClassifySeverity(diffs, models.AuditActionUpdate))
}

func TestClassifySeverityHabitFieldIsMedium(t *testing.T) {
	diffs := []models.FieldDiff{
		{FieldPath: "payload.habits.smokes", ChangeType: models.ChangeTypeModified},
	}
	require.Equal(t, models.SeverityMedium, ClassifySeverity(diffs, models.AuditActionUpdate))
}

func TestClassifySeverityDefaultsToLow(t *testing.T) {
	diffs := []models.FieldDiff{
		{FieldPath: "notes", ChangeType: models.ChangeTypeModified},
	}
	require.Equal(t, models.SeverityLow, ClassifySeverity(diffs, models.AuditActionUpdate))
	require.Equal(t, models.SeverityLow, ClassifySeverity(nil, models.AuditActionUpdate))
}

func TestRequiresReviewDivergesFromIsCritical(t *testing.T) {
	// critical paths always qualify
	require.True(t, RequiresReview("hasAllergies", models.ChangeTypeModified))

	// non-critical collection membership changes qualify too
	require.True(t, RequiresReview("conditions", models.ChangeTypeAdded))
	require.True(t, RequiresReview("conditions", models.ChangeTypeRemoved))

	// pregnancy flips qualify on modification
	require.True(t, RequiresReview("payload.isPregnant", models.ChangeTypeModified))

	// plain free text never does
	require.False(t, RequiresReview("notes", models.ChangeTypeModified))
	require.False(t, RequiresReview("payload.habits.smokes", models.ChangeTypeModified))
}

func valuePtr(v models.Value) *models.Value { return &v }
