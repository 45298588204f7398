package models

// ChangeType classifies the direction of a field-level change.
type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "ADDED"
	ChangeTypeRemoved  ChangeType = "REMOVED"
	ChangeTypeModified ChangeType = "MODIFIED"
)

// Severity is the aggregate clinical risk classification of a change set.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// FieldDiff is one field-level difference between two record states. Paths use
// dot notation and may reach arbitrarily deep into the payload bag.
type FieldDiff struct {
	FieldPath  string     `json:"fieldPath"`
	Label      string     `json:"label"`
	FieldType  string     `json:"fieldType"`
	OldValue   *Value     `json:"oldValue"`
	NewValue   *Value     `json:"newValue"`
	OldDisplay string     `json:"oldDisplay"`
	NewDisplay string     `json:"newDisplay"`
	IsCritical bool       `json:"isCritical"`
	ChangeType ChangeType `json:"changeType"`
}

// ChangesSummary aggregates a diff list so listings do not re-derive counts.
type ChangesSummary struct {
	Total      int      `json:"total"`
	Critical   int      `json:"critical"`
	Added      int      `json:"added"`
	Removed    int      `json:"removed"`
	Modified   int      `json:"modified"`
	FieldPaths []string `json:"fieldPaths"`
}

// SummarizeDiffs builds the stored aggregate for a diff list.
func SummarizeDiffs(diffs []FieldDiff) ChangesSummary {
	summary := ChangesSummary{Total: len(diffs), FieldPaths: make([]string, 0, len(diffs))}
	for _, d := range diffs {
		summary.FieldPaths = append(summary.FieldPaths, d.FieldPath)
		if d.IsCritical {
			summary.Critical++
		}
		switch d.ChangeType {
		case ChangeTypeAdded:
			summary.Added++
		case ChangeTypeRemoved:
			summary.Removed++
		case ChangeTypeModified:
			summary.Modified++
		}
	}
	return summary
}
