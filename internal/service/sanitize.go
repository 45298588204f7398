package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

// freeTextMaskThreshold is the length beyond which PARTIAL sanitization masks
// a free-text value down to its last characters.
const freeTextMaskThreshold = 32

// freeTextMaskKeep is how many trailing characters survive masking.
const freeTextMaskKeep = 4

// sanitizeState prepares a snapshot for audit storage according to the
// configured level. A nil state stays nil.
func sanitizeState(state *models.RecordState, level models.SanitizationLevel, recordID, patientID string) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	switch level {
	case models.SanitizationNone:
		return json.Marshal(state)
	case models.SanitizationFull:
		return json.Marshal(map[string]string{
			"recordId":  recordID,
			"patientId": patientID,
			"type":      "record_state",
		})
	case models.SanitizationPartial:
		masked := &models.RecordState{
			Fields:      maskValueMap(state.Fields),
			Payload:     maskValueMap(state.Payload),
			Collections: state.Collections,
		}
		return json.Marshal(masked)
	}
	return nil, fmt.Errorf("unknown sanitization level %q", level)
}

func maskValueMap(values map[string]models.Value) map[string]models.Value {
	if values == nil {
		return nil
	}
	out := make(map[string]models.Value, len(values))
	for key, val := range values {
		out[key] = maskValue(val)
	}
	return out
}

// maskValue truncates long free-text scalars to their tail; structured values
// are walked but otherwise untouched.
func maskValue(v models.Value) models.Value {
	switch v.Kind {
	case models.KindString:
		if len(v.Str) > freeTextMaskThreshold {
			return models.StringValue("***" + v.Str[len(v.Str)-freeTextMaskKeep:])
		}
		return v
	case models.KindMap:
		return models.MapValue(maskValueMap(v.Map))
	case models.KindList:
		items := make([]models.Value, len(v.List))
		for i, item := range v.List {
			items[i] = maskValue(item)
		}
		return models.ListValue(items...)
	}
	return v
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
