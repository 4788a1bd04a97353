// Package stamp draws request values as text at fixed page positions.
//
// Stamping ignores any interactive form in the template: each value named by
// the layout is rendered as a text overlay on top of the existing page
// content.
package stamp

import (
	"bytes"
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/a3tai/pdf-form-service/internal/pdf/errors"
	"github.com/a3tai/pdf-form-service/internal/pdf/forms"
)

// Placement records one line of text drawn onto a page
type Placement struct {
	Key  string  `json:"key"`
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// Result is the outcome of stamping a template
type Result struct {
	PDF        []byte
	Placements []Placement
	Warnings   *pdferrors.ErrorCollection
}

// Stamper overlays layout values onto a template
type Stamper struct {
	layout    Layout
	measure   measureFunc
	debugMode bool
}

// NewStamper creates a stamper for layout
func NewStamper(layout Layout, debugMode bool) (*Stamper, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Stamper{
		layout:    layout.withDefaults(),
		measure:   textWidth,
		debugMode: debugMode,
	}, nil
}

// Layout returns the layout in use
func (s *Stamper) Layout() Layout {
	return s.layout
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Stamp draws the value of every slot key present in data onto template.
// Absent, null or blank values draw nothing and keys without a slot are
// ignored.
func (s *Stamper) Stamp(template []byte, data map[string]any) (*Result, error) {
	pageCount, err := api.PageCount(bytes.NewReader(template), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	result := &Result{Warnings: pdferrors.NewErrorCollection()}

	for _, slot := range s.layout.Slots {
		text, ok := forms.Stringify(data[slot.Key])
		if !ok || text == "" {
			continue
		}
		if slot.Page > pageCount {
			msg := fmt.Sprintf("slot page %d is beyond the last page (%d)", slot.Page, pageCount)
			log.Printf("Warning: %q not stamped: %s", slot.Key, msg)
			result.Warnings.Add(pdferrors.NewFieldWarning(slot.Key, msg))
			continue
		}

		lines := wrapText(text, slot.Width, slot.FontName, slot.FontSize, s.measure)
		for i, line := range lines {
			if line == "" {
				continue
			}
			result.Placements = append(result.Placements, Placement{
				Key:  slot.Key,
				Page: slot.Page,
				X:    slot.X,
				Y:    slot.Y - float64(i)*slot.LineHeight,
				Text: line,
			})
		}
	}

	if len(result.Placements) == 0 {
		result.PDF, err = forms.RoundTrip(template)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	overlays := make(map[int][]*model.Watermark)
	for _, p := range result.Placements {
		slot := s.slotFor(p.Key)
		for _, seg := range overlaySegments(p.Text) {
			x := p.X + s.measure(p.Text[:seg.start], slot.FontName, slot.FontSize)
			wm, err := newOverlay(seg.text, x, p.Y, slot)
			if err != nil {
				return nil, fmt.Errorf("failed to stamp %q: %w", p.Key, err)
			}
			overlays[p.Page] = append(overlays[p.Page], wm)
		}
		if s.debugMode {
			log.Printf("Stamping %q on page %d at (%.1f, %.1f)", p.Key, p.Page, p.X, p.Y)
		}
	}

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(template), &out, overlays, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to stamp template: %w", err)
	}

	result.PDF = out.Bytes()
	return result, nil
}

// newOverlay builds a text overlay whose baseline box starts at (x, y)
func newOverlay(text string, x, y float64, slot Slot) (*model.Watermark, error) {
	desc := fmt.Sprintf(
		"fontname:%s, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, opacity:1, fillcolor:#000000",
		slot.FontName, slot.FontSize, x, y)

	wm, err := pdfcpu.ParseTextWatermarkDetails(text, desc, true, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("invalid text overlay: %w", err)
	}
	return wm, nil
}

func (s *Stamper) slotFor(key string) Slot {
	for _, slot := range s.layout.Slots {
		if slot.Key == key {
			return slot
		}
	}
	return Slot{}
}
