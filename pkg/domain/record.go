// Package domain defines the door record entity, the persistence contracts it
// is stored through, and the error taxonomy surfaced by the catalog service.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Identifier aliases accepted on inbound payloads. Whichever alias a caller
// supplies, FieldID is the canonical stored field.
const (
	FieldID         = "id"
	FieldAltID      = "_id"
	FieldName       = "name"
	FieldMaterial   = "material"
	FieldDimensions = "dimensions"
	FieldFinish     = "finish"
)

// RequiredFields lists the fields every record must carry to exist.
var RequiredFields = []string{
	FieldName,
	FieldMaterial,
	FieldDimensions + ".height",
	FieldDimensions + ".width",
}

// Dimensions holds the physical door measurements. Both values must be
// positive for a record to be created.
type Dimensions struct {
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
}

// Record is a catalog entry for one door. The schema is extensible: fields
// outside the typed set live in Extra and round-trip through JSON as top-level
// keys. ID, once set, is immutable; Material doubles as the propagation
// grouping key.
type Record struct {
	ID         string
	Name       string
	Material   string
	Dimensions Dimensions
	Finish     string
	Extra      map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// recordEnvelope is the typed wire shape; extras are merged in around it.
type recordEnvelope struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Material   string     `json:"material"`
	Dimensions Dimensions `json:"dimensions"`
	Finish     string     `json:"finish,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// typedKeys are reserved for the envelope and never stored in Extra.
var typedKeys = map[string]struct{}{
	FieldID: {}, FieldAltID: {}, FieldName: {}, FieldMaterial: {},
	FieldDimensions: {}, FieldFinish: {}, "createdAt": {}, "updatedAt": {},
}

// MarshalJSON flattens Extra alongside the typed fields.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+7)
	for k, v := range r.Extra {
		if _, reserved := typedKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	envelope, err := json.Marshal(recordEnvelope{
		ID:         r.ID,
		Name:       r.Name,
		Material:   r.Material,
		Dimensions: r.Dimensions,
		Finish:     r.Finish,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	var typed map[string]any
	if err := json.Unmarshal(envelope, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both identifier aliases and keeps unknown fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var envelope recordEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if envelope.ID == "" {
		if alt, ok := raw[FieldAltID]; ok {
			if err := json.Unmarshal(alt, &envelope.ID); err != nil {
				return fmt.Errorf("decode %s: %w", FieldAltID, err)
			}
		}
	}
	var extra map[string]any
	for k, v := range raw {
		if _, reserved := typedKeys[k]; reserved {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		extra[k] = value
	}
	r.ID = envelope.ID
	r.Name = envelope.Name
	r.Material = envelope.Material
	r.Dimensions = envelope.Dimensions
	r.Finish = envelope.Finish
	r.Extra = extra
	r.CreatedAt = envelope.CreatedAt
	r.UpdatedAt = envelope.UpdatedAt
	return nil
}

// Clone returns a deep copy safe to hand across store boundaries.
func (r Record) Clone() Record {
	cp := r
	if r.Extra != nil {
		cp.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			cp.Extra[k] = cloneValue(v)
		}
	}
	return cp
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Field resolves a field value by name. Dotted paths address nested values
// (dimensions.height and paths into Extra maps).
func (r Record) Field(name string) (any, bool) {
	switch name {
	case FieldID, FieldAltID:
		return r.ID, true
	case FieldName:
		return r.Name, true
	case FieldMaterial:
		return r.Material, true
	case FieldFinish:
		if r.Finish == "" {
			return nil, false
		}
		return r.Finish, true
	case FieldDimensions:
		return map[string]any{"height": r.Dimensions.Height, "width": r.Dimensions.Width}, true
	case FieldDimensions + ".height":
		return r.Dimensions.Height, true
	case FieldDimensions + ".width":
		return r.Dimensions.Width, true
	case "createdAt":
		return r.CreatedAt, true
	case "updatedAt":
		return r.UpdatedAt, true
	}
	return lookupPath(r.Extra, name)
}

func lookupPath(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[path]; ok {
		return v, true
	}
	for i := 0; i < len(path); i++ {
		if path[i] != '.' {
			continue
		}
		head, tail := path[:i], path[i+1:]
		if nested, ok := m[head].(map[string]any); ok {
			if v, ok := lookupPath(nested, tail); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Apply merges a field-level update into the record, routing typed field names
// to struct fields and everything else into Extra. The identifier is never a
// mutable target; callers strip it before applying. Returns true when any
// value changed.
func (r *Record) Apply(fields map[string]any) bool {
	changed := false
	for name, value := range fields {
		switch name {
		case FieldID, FieldAltID:
			continue
		case FieldName:
			if s, ok := value.(string); ok && s != r.Name {
				r.Name = s
				changed = true
			}
		case FieldMaterial:
			if s, ok := value.(string); ok && s != r.Material {
				r.Material = s
				changed = true
			}
		case FieldFinish:
			if s, ok := value.(string); ok && s != r.Finish {
				r.Finish = s
				changed = true
			}
		case FieldDimensions:
			if dims, ok := value.(map[string]any); ok {
				if h, ok := toFloat(dims["height"]); ok && h != r.Dimensions.Height {
					r.Dimensions.Height = h
					changed = true
				}
				if w, ok := toFloat(dims["width"]); ok && w != r.Dimensions.Width {
					r.Dimensions.Width = w
					changed = true
				}
			}
		case FieldDimensions + ".height":
			if h, ok := toFloat(value); ok && h != r.Dimensions.Height {
				r.Dimensions.Height = h
				changed = true
			}
		case FieldDimensions + ".width":
			if w, ok := toFloat(value); ok && w != r.Dimensions.Width {
				r.Dimensions.Width = w
				changed = true
			}
		case "createdAt", "updatedAt":
			continue
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			if !equalValue(r.Extra[name], value) {
				r.Extra[name] = cloneValue(value)
				changed = true
			}
		}
	}
	return changed
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func equalValue(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}

// MatchesFilter reports whether the record satisfies every clause of a flat
// filter. Dotted keys address nested values. Numeric clauses compare by value
// so a JSON-decoded float64 matches a stored int height. An empty filter
// matches everything.
func (r Record) MatchesFilter(filter map[string]any) bool {
	for key, want := range filter {
		got, ok := r.Field(key)
		if !ok {
			return false
		}
		if wf, wok := toFloat(want); wok {
			if gf, gok := toFloat(got); gok {
				if wf == gf {
					continue
				}
				return false
			}
			return false
		}
		if !equalValue(got, want) {
			return false
		}
	}
	return true
}
