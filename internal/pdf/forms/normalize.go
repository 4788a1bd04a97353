package forms

import (
	"bytes"
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// withChoiceFlags returns data with an explicit Ff entry on every choice
// field and choice widget. pdfcpu's filler reads Ff from the widget it
// visits and rejects a choice field that omits or inherits it, even when
// the field is not being filled.
func (f *Filler) withChoiceFlags(data []byte) ([]byte, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}

	roots, err := f.inspector.fieldRoots(ctx)
	if err != nil {
		return nil, err
	}

	added := 0
	for _, root := range roots {
		n, err := f.inspector.addChoiceFlags(ctx, root, nil, 0)
		if err != nil {
			return nil, err
		}
		added += n
	}
	if added == 0 {
		return data, nil
	}

	if f.debugMode {
		log.Printf("Added Ff to %d choice field dictionaries", added)
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return out.Bytes(), nil
}

// addChoiceFlags sets the effective field flags on the terminal choice
// fields below fieldObj and on their widgets, returning how many
// dictionaries changed
func (in *Inspector) addChoiceFlags(ctx *model.Context, fieldObj types.Object, parent types.Dict, depth int) (int, error) {
	if depth > maxFieldDepth {
		return 0, fmt.Errorf("form field tree deeper than %d levels", maxFieldDepth)
	}

	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil {
		return 0, fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return 0, nil
	}

	var childFields []types.Object
	var widgets []types.Dict
	if kidsObj, found := fieldDict.Find("Kids"); found {
		kids, err := ctx.DereferenceArray(kidsObj)
		if err != nil {
			return 0, fmt.Errorf("failed to dereference Kids: %w", err)
		}
		for _, kid := range kids {
			kidDict, err := ctx.DereferenceDict(kid)
			if err != nil || kidDict == nil {
				continue
			}
			if _, isField := kidDict.Find("T"); isField {
				childFields = append(childFields, kid)
			} else {
				widgets = append(widgets, kidDict)
			}
		}
	}

	if len(childFields) > 0 {
		added := 0
		for _, kid := range childFields {
			n, err := in.addChoiceFlags(ctx, kid, fieldDict, depth+1)
			if err != nil {
				return 0, err
			}
			added += n
		}
		return added, nil
	}

	if in.kind(ctx, fieldDict, parent) != FieldKindChoice {
		return 0, nil
	}

	flags := types.Integer(in.flags(ctx, fieldDict, parent))
	added := 0
	for _, d := range append([]types.Dict{fieldDict}, widgets...) {
		if d.Insert("Ff", flags) {
			added++
		}
	}
	return added, nil
}
