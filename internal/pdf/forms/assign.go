package forms

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	pdferrors "github.com/a3tai/pdf-form-service/internal/pdf/errors"
)

// FieldMappingsKey is the request key that carries the logical-key to field-name table
const FieldMappingsKey = "fieldMappings"

// Stringify converts a decoded JSON value into the text written to a field.
// It returns false for values that have no text form (null).
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val), true
		}
		return string(b), true
	}
}

// ResolveAssignments turns request data into field assignments.
//
// With a non-empty mapping, each logical key that names a field and has a
// value in data becomes an assignment to the mapped field. Otherwise every
// data key is taken as a PDF field name. Values that cannot be stringified
// are reported in the returned collection.
func ResolveAssignments(data map[string]any, mappings map[string]string) ([]Assignment, *pdferrors.ErrorCollection) {
	warnings := pdferrors.NewErrorCollection()
	var out []Assignment

	add := func(key, field string, v any) {
		text, ok := Stringify(v)
		if !ok {
			warnings.Add(pdferrors.NewFieldWarning(field, "value is null and cannot be written"))
			return
		}
		out = append(out, Assignment{Key: key, Field: field, Value: text})
	}

	if len(mappings) > 0 {
		for _, key := range sortedKeys(mappings) {
			field := mappings[key]
			if field == "" {
				continue
			}
			v, present := data[key]
			if !present {
				continue
			}
			add(key, field, v)
		}
		return out, warnings
	}

	for _, key := range sortedKeys(data) {
		if key == FieldMappingsKey {
			continue
		}
		add(key, key, data[key])
	}
	return out, warnings
}

// SplitRequest separates the fieldMappings entry from the data of a fill request.
// A fieldMappings value that is not an object of strings is an error.
func SplitRequest(body map[string]any) (map[string]any, map[string]string, error) {
	data := make(map[string]any, len(body))
	for k, v := range body {
		if k != FieldMappingsKey {
			data[k] = v
		}
	}

	raw, present := body[FieldMappingsKey]
	if !present || raw == nil {
		return data, nil, nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%s must be an object", FieldMappingsKey)
	}

	mappings := make(map[string]string, len(obj))
	for k, v := range obj {
		name, ok := v.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%s.%s must be a string", FieldMappingsKey, k)
		}
		mappings[k] = name
	}
	return data, mappings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
