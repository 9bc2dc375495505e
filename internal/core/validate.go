package core

import (
	"doorcore/pkg/domain"
)

// ValidateNewRecord checks required-field presence for record creation.
// A custom identifier never exempts a record from the required set. Failure
// enumerates every missing field.
func ValidateNewRecord(rec domain.Record) error {
	var missing []string
	if rec.Name == "" {
		missing = append(missing, domain.FieldName)
	}
	if rec.Material == "" {
		missing = append(missing, domain.FieldMaterial)
	}
	if rec.Dimensions.Height <= 0 {
		missing = append(missing, domain.FieldDimensions+".height")
	}
	if rec.Dimensions.Width <= 0 {
		missing = append(missing, domain.FieldDimensions+".width")
	}
	if len(missing) > 0 {
		return domain.InvalidInputError{Reason: "missing required fields", Missing: missing}
	}
	return nil
}

// ValidateUpdateBody rejects update bodies that would empty a required field.
// Bulk writes may leave optional fields in any state, but name, material and
// the dimensions must never be erased from an existing record.
func ValidateUpdateBody(body map[string]any) error {
	for name, value := range body {
		switch name {
		case domain.FieldName, domain.FieldMaterial:
			if s, ok := value.(string); !ok || s == "" {
				return domain.InvalidInputError{Reason: "required field " + name + " cannot be emptied"}
			}
		case domain.FieldDimensions + ".height", domain.FieldDimensions + ".width":
			if !positiveNumber(value) {
				return domain.InvalidInputError{Reason: "required field " + name + " must stay positive"}
			}
		case domain.FieldDimensions:
			dims, ok := value.(map[string]any)
			if !ok {
				return domain.InvalidInputError{Reason: "dimensions must be an object"}
			}
			for _, axis := range []string{"height", "width"} {
				if v, present := dims[axis]; present && !positiveNumber(v) {
					return domain.InvalidInputError{Reason: "required field dimensions." + axis + " must stay positive"}
				}
			}
		}
	}
	return nil
}

func positiveNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return n > 0
	case float32:
		return n > 0
	case int:
		return n > 0
	case int64:
		return n > 0
	}
	return false
}
