package pdftest

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	showTextRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\) Tj`)
	overlayRe  = regexp.MustCompile(`BDC q ([-\d.]+) ([-\d.]+) ([-\d.]+) ([-\d.]+) ([-\d.]+) ([-\d.]+) cm`)
)

// Point is a position in default user space
type Point struct {
	X, Y float64
}

// Streams returns the decoded content of every stream object in data,
// ordered by object number
func Streams(data []byte) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}

	objNrs := make([]int, 0, len(ctx.XRefTable.Table))
	for objNr := range ctx.XRefTable.Table {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	var streams []string
	for _, objNr := range objNrs {
		entry := ctx.XRefTable.Table[objNr]
		if entry == nil || entry.Free {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if err := sd.Decode(); err != nil {
			return nil, fmt.Errorf("object %d: %w", objNr, err)
		}
		streams = append(streams, string(sd.Content))
	}
	return streams, nil
}

// ShownText returns the unescaped operand of every Tj operator in data
func ShownText(data []byte) ([]string, error) {
	streams, err := Streams(data)
	if err != nil {
		return nil, err
	}

	var shown []string
	for _, s := range streams {
		for _, m := range showTextRe.FindAllStringSubmatch(s, -1) {
			b, err := types.Unescape(m[1])
			if err != nil {
				return nil, err
			}
			shown = append(shown, string(b))
		}
	}
	return shown, nil
}

// OverlayOrigins returns the translation of every overlay drawn onto a page
// content stream in data
func OverlayOrigins(data []byte) ([]Point, error) {
	streams, err := Streams(data)
	if err != nil {
		return nil, err
	}

	var points []Point
	for _, s := range streams {
		for _, m := range overlayRe.FindAllStringSubmatch(s, -1) {
			x, err := strconv.ParseFloat(m[5], 64)
			if err != nil {
				return nil, err
			}
			y, err := strconv.ParseFloat(m[6], 64)
			if err != nil {
				return nil, err
			}
			points = append(points, Point{X: x, Y: y})
		}
	}
	return points, nil
}
