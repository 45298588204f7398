package diff

import (
	"fmt"
	"sort"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

// Compute returns the field-level differences between two record states.
// Either side may be nil: a nil previous state yields one ADDED diff per key
// of next, a nil next state one REMOVED diff per key of previous. Values are
// compared by deep canonical equality so key ordering never causes a diff.
func Compute(previous, next *models.RecordState) []models.FieldDiff {
	if previous == nil && next == nil {
		return nil
	}
	if previous == nil {
		previous = &models.RecordState{}
	}
	if next == nil {
		next = &models.RecordState{}
	}

	diffs := make([]models.FieldDiff, 0)
	diffs = append(diffs, compareFields(previous.Fields, next.Fields)...)
	diffs = append(diffs, comparePayload("payload", previous.Payload, next.Payload)...)
	diffs = append(diffs, compareCollections(previous.Collections, next.Collections)...)
	return diffs
}

// compareFields walks the union of scalar field keys.
func compareFields(old, new map[string]models.Value) []models.FieldDiff {
	diffs := make([]models.FieldDiff, 0)
	for _, key := range unionKeys(old, new) {
		oldVal, oldOK := old[key]
		newVal, newOK := new[key]
		switch {
		case oldOK && !newOK:
			diffs = append(diffs, newFieldDiff(key, &oldVal, nil, models.ChangeTypeRemoved))
		case !oldOK && newOK:
			diffs = append(diffs, newFieldDiff(key, nil, &newVal, models.ChangeTypeAdded))
		case oldOK && newOK && !oldVal.Equal(newVal):
			diffs = append(diffs, newFieldDiff(key, &oldVal, &newVal, models.ChangeTypeModified))
		}
	}
	return diffs
}

// comparePayload recurses into the free-form bag, accumulating dotted paths
// until leaves are reached. Lists inside the payload are opaque: compared by
// serialized equality, never recursed.
func comparePayload(basePath string, old, new map[string]models.Value) []models.FieldDiff {
	diffs := make([]models.FieldDiff, 0)
	for _, key := range unionKeys(old, new) {
		path := basePath + "." + key
		oldVal, oldOK := old[key]
		newVal, newOK := new[key]
		switch {
		case oldOK && !newOK:
			diffs = append(diffs, newFieldDiff(path, &oldVal, nil, models.ChangeTypeRemoved))
		case !oldOK && newOK:
			diffs = append(diffs, newFieldDiff(path, nil, &newVal, models.ChangeTypeAdded))
		case oldOK && newOK:
			diffs = append(diffs, comparePayloadValue(path, oldVal, newVal)...)
		}
	}
	return diffs
}

func comparePayloadValue(path string, old, new models.Value) []models.FieldDiff {
	if old.Equal(new) {
		return nil
	}
	if old.Kind == models.KindMap && new.Kind == models.KindMap {
		return comparePayload(path, old.Map, new.Map)
	}
	if old.Kind == models.KindList && new.Kind == models.KindList {
		if old.Canonical() == new.Canonical() {
			return nil
		}
	}
	return []models.FieldDiff{newFieldDiff(path, &old, &new, models.ChangeTypeModified)}
}

// compareCollections compares the named collections by cardinality only. An
// add-and-remove of equal count inside one update yields no diff; this is the
// documented behaviour of the product, not an oversight to repair here.
func compareCollections(old, new map[string][]models.Value) []models.FieldDiff {
	diffs := make([]models.FieldDiff, 0)
	for _, name := range collectionOrder(old, new) {
		oldItems, oldOK := old[name]
		newItems, newOK := new[name]
		if len(oldItems) == len(newItems) {
			continue
		}
		changeType := models.ChangeTypeAdded
		if len(newItems) < len(oldItems) {
			changeType = models.ChangeTypeRemoved
		}
		var oldVal, newVal *models.Value
		if oldOK {
			v := models.ListValue(oldItems...)
			oldVal = &v
		}
		if newOK {
			v := models.ListValue(newItems...)
			newVal = &v
		}
		d := newFieldDiff(name, oldVal, newVal, changeType)
		d.OldDisplay = fmt.Sprintf("%d elemento(s)", len(oldItems))
		d.NewDisplay = fmt.Sprintf("%d elemento(s)", len(newItems))
		diffs = append(diffs, d)
	}
	return diffs
}

func newFieldDiff(path string, old, new *models.Value, changeType models.ChangeType) models.FieldDiff {
	d := models.FieldDiff{
		FieldPath:  path,
		Label:      LabelFor(path),
		FieldType:  fieldType(old, new),
		OldValue:   old,
		NewValue:   new,
		IsCritical: IsCritical(path),
		ChangeType: changeType,
	}
	if old != nil {
		d.OldDisplay = old.Display()
	}
	if new != nil {
		d.NewDisplay = new.Display()
	}
	return d
}

func fieldType(old, new *models.Value) string {
	v := new
	if v == nil {
		v = old
	}
	if v == nil {
		return "null"
	}
	switch v.Kind {
	case models.KindBool:
		return "boolean"
	case models.KindNumber:
		return "number"
	case models.KindString:
		return "text"
	case models.KindList:
		return "list"
	case models.KindMap:
		return "object"
	case models.KindNull:
		return "null"
	}
	return "null"
}

func unionKeys(old, new map[string]models.Value) []string {
	seen := make(map[string]struct{}, len(old)+len(new))
	keys := make([]string, 0, len(old)+len(new))
	for key := range old {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range new {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// collectionOrder yields the known collections first, then any extras.
func collectionOrder(old, new map[string][]models.Value) []string {
	seen := make(map[string]struct{}, len(models.CollectionNames))
	order := make([]string, 0, len(models.CollectionNames))
	for _, name := range models.CollectionNames {
		seen[name] = struct{}{}
		order = append(order, name)
	}
	extras := make([]string, 0)
	for name := range old {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			extras = append(extras, name)
		}
	}
	for name := range new {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	return append(order, extras...)
}
