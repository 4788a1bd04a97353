package forms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	pdferrors "github.com/a3tai/pdf-form-service/internal/pdf/errors"
)

// FillResult is the outcome of a form fill
type FillResult struct {
	PDF      []byte
	Filled   []Assignment
	Warnings *pdferrors.ErrorCollection
}

// fillDocument mirrors the subset of pdfcpu's form JSON that FillForm reads
type fillDocument struct {
	Forms []fillForm `json:"forms"`
}

type fillForm struct {
	TextFields []fillTextField `json:"textfield"`
}

type fillTextField struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Locked bool   `json:"locked"`
}

// Filler writes text values into AcroForm fields and flattens the form
type Filler struct {
	inspector *Inspector
	debugMode bool
}

// NewFiller creates a new form filler
func NewFiller(inspector *Inspector, debugMode bool) *Filler {
	return &Filler{
		inspector: inspector,
		debugMode: debugMode,
	}
}

// Fill applies assignments to the text fields of template. Assignments that
// target a missing or non-text field are skipped and reported as warnings.
// After filling, every field of the form is locked so the result can no
// longer be edited.
func (f *Filler) Fill(template []byte, assignments []Assignment, warnings *pdferrors.ErrorCollection) (*FillResult, error) {
	if warnings == nil {
		warnings = pdferrors.NewErrorCollection()
	}

	fields, err := f.inspector.Fields(template)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Field, len(fields))
	for _, field := range fields {
		if _, dup := byName[field.Name]; !dup {
			byName[field.Name] = field
		}
	}

	// Later assignments to the same field replace earlier ones
	var filled []Assignment
	position := make(map[string]int)
	for _, a := range assignments {
		field, ok := byName[a.Field]
		switch {
		case !ok:
			f.skip(warnings, a.Field, "field not found in template")
			continue
		case field.Kind != FieldKindText:
			f.skip(warnings, a.Field, fmt.Sprintf("field is a %s field, not a text field", field.Kind))
			continue
		}
		if i, seen := position[a.Field]; seen {
			filled[i] = a
			continue
		}
		position[a.Field] = len(filled)
		filled = append(filled, a)
	}

	result := &FillResult{Filled: filled, Warnings: warnings}

	if len(fields) == 0 {
		result.PDF, err = RoundTrip(template)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	current := template
	if len(filled) > 0 {
		current, err = f.fillTextFields(current, filled, byName)
		if err != nil {
			return nil, err
		}
	}

	result.PDF, err = f.flatten(current)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fillTextFields runs pdfcpu's form filler over the text assignments
func (f *Filler) fillTextFields(template []byte, filled []Assignment, byName map[string]Field) ([]byte, error) {
	doc := fillDocument{Forms: []fillForm{{}}}
	for _, a := range filled {
		doc.Forms[0].TextFields = append(doc.Forms[0].TextFields, fillTextField{
			ID:     byName[a.Field].ID,
			Name:   a.Field,
			Value:  a.Value,
			Locked: true,
		})
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form data: %w", err)
	}

	template, err = f.withChoiceFlags(template)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = api.FillForm(bytes.NewReader(template), bytes.NewReader(payload), &out, newConfiguration())
	if errors.Is(err, api.ErrNoFormFieldsAffected) {
		return template, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fill form: %w", err)
	}

	if f.debugMode {
		log.Printf("Filled %d text field(s)", len(filled))
	}
	return out.Bytes(), nil
}

// flatten locks every form field, leaving the rendered values in place
func (f *Filler) flatten(data []byte) ([]byte, error) {
	var out bytes.Buffer
	err := api.LockFormFields(bytes.NewReader(data), &out, nil, newConfiguration())
	if errors.Is(err, api.ErrNoFormFieldsAffected) {
		// Already read-only throughout
		return RoundTrip(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to flatten form: %w", err)
	}
	return out.Bytes(), nil
}

func (f *Filler) skip(warnings *pdferrors.ErrorCollection, field, reason string) {
	log.Printf("Warning: field %q not filled: %s", field, reason)
	warnings.Add(pdferrors.NewFieldWarning(field, reason))
}

// RoundTrip parses and re-serializes data without modifying it
func RoundTrip(data []byte) ([]byte, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return out.Bytes(), nil
}
