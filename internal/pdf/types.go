package pdf

import (
	"fmt"
	"strings"

	"github.com/a3tai/pdf-form-service/internal/cleanup"
	pdferrors "github.com/a3tai/pdf-form-service/internal/pdf/errors"
	"github.com/a3tai/pdf-form-service/internal/pdf/forms"
	"github.com/a3tai/pdf-form-service/internal/pdf/stamp"
)

// Strategy selects how request data is written into the template
type Strategy string

const (
	// StrategyForm fills the template's AcroForm text fields
	StrategyForm Strategy = "form"
	// StrategyStamp draws values at fixed page coordinates
	StrategyStamp Strategy = "stamp"
)

// Strategies lists every supported strategy
var Strategies = []Strategy{StrategyForm, StrategyStamp}

// ParseStrategy converts a strategy name, ignoring case and surrounding space
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyForm, StrategyStamp:
		return s, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (expected %q or %q)", name, StrategyForm, StrategyStamp)
	}
}

// FillRequest is a fill call: the decoded JSON body and an optional strategy
// override. An empty Strategy uses the service default.
type FillRequest struct {
	Body     map[string]any `json:"body"`
	Strategy string         `json:"strategy,omitempty"`
}

// FillResult is the produced document and what went into it
type FillResult struct {
	PDF      []byte   `json:"-"`
	Strategy Strategy `json:"strategy"`

	// Filled lists applied field assignments (form strategy)
	Filled []forms.Assignment `json:"filled,omitempty"`
	// Placements lists drawn text lines (stamp strategy)
	Placements []stamp.Placement `json:"placements,omitempty"`

	Warnings *pdferrors.ErrorCollection `json:"warnings"`

	// OutputPath and Cleanup are set when the output was persisted
	OutputPath string        `json:"output_path,omitempty"`
	Cleanup    *cleanup.Task `json:"-"`
}

// TemplateInfo summarizes the stored template
type TemplateInfo struct {
	Size        int64  `json:"size"`
	Pages       int    `json:"pages"`
	HasForm     bool   `json:"has_form"`
	FieldCount  int    `json:"field_count"`
	TextPreview string `json:"text_preview"`
}
