// Package forms discovers and fills the AcroForm fields of a template.
//
// Flattening a filled form locks every field read-only. The values stay in
// the field appearance streams generated during filling and are not merged
// into the page content.
package forms

// FieldKind is the closed set of form field kinds reported to clients
type FieldKind string

const (
	FieldKindText       FieldKind = "text"
	FieldKindCheckbox   FieldKind = "checkbox"
	FieldKindChoice     FieldKind = "choice"
	FieldKindRadioGroup FieldKind = "radio-group"
	FieldKindSignature  FieldKind = "signature"
	FieldKindUnknown    FieldKind = "unknown"
)

// Field flag bits from the Ff entry
const (
	flagReadOnly   = 1 << 0
	flagRadio      = 1 << 15
	flagPushButton = 1 << 16
)

// Descriptor is the public view of a form field
type Descriptor struct {
	Name string    `json:"name"`
	Type FieldKind `json:"type"`
}

// Field is a terminal form field found in a document
type Field struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Value    string    `json:"value,omitempty"`
	ReadOnly bool      `json:"read_only"`
}

// Descriptor returns the name/kind pair of f
func (f Field) Descriptor() Descriptor {
	return Descriptor{Name: f.Name, Type: f.Kind}
}

// Descriptors converts fields to descriptors, preserving order.
// The result is never nil.
func Descriptors(fields []Field) []Descriptor {
	out := make([]Descriptor, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Descriptor())
	}
	return out
}

// Assignment is a single text value destined for a named PDF field
type Assignment struct {
	Key   string
	Field string
	Value string
}
