package forms

import (
	"bytes"
	"fmt"
	"log"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxFieldDepth bounds Kids recursion on malformed field trees
const maxFieldDepth = 32

// Inspector lists the interactive form fields of a PDF using pdfcpu
type Inspector struct {
	debugMode bool
}

// NewInspector creates a new form inspector
func NewInspector(debugMode bool) *Inspector {
	return &Inspector{
		debugMode: debugMode,
	}
}

// newConfiguration returns the pdfcpu configuration used for every read
func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// readContext parses data into a pdfcpu context
func readContext(data []byte) (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	return ctx, nil
}

// Fields returns every terminal form field of the document in document order.
// A document without an AcroForm yields an empty slice.
func (in *Inspector) Fields(data []byte) ([]Field, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}
	return in.fieldsFromContext(ctx)
}

// PageCount returns the number of pages of the document
func (in *Inspector) PageCount(data []byte) (int, error) {
	ctx, err := readContext(data)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

// fieldsFromContext walks the AcroForm Fields array
func (in *Inspector) fieldsFromContext(ctx *model.Context) ([]Field, error) {
	fields := []Field{}

	roots, err := in.fieldRoots(ctx)
	if err != nil {
		return nil, err
	}

	for _, fieldRef := range roots {
		fields, err = in.collect(ctx, fieldRef, "", nil, 0, fields)
		if err != nil {
			return nil, err
		}
	}

	return fields, nil
}

// fieldRoots returns the AcroForm Fields array, or nil without a form
func (in *Inspector) fieldRoots(ctx *model.Context) (types.Array, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		if in.debugMode {
			log.Printf("No AcroForm dictionary found in document")
		}
		return nil, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}
	return fieldsArray, nil
}

// collect appends the terminal fields below fieldObj to fields
func (in *Inspector) collect(ctx *model.Context, fieldObj types.Object, parentName string,
	parent types.Dict, depth int, fields []Field,
) ([]Field, error) {
	if depth > maxFieldDepth {
		return nil, fmt.Errorf("form field tree deeper than %d levels", maxFieldDepth)
	}

	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return fields, nil
	}

	name := parentName
	if partial := in.partialName(ctx, fieldDict); partial != "" {
		if name != "" {
			name += "."
		}
		name += partial
	}

	// Kids carrying a T entry are child fields; kids without one are widgets
	var childFields []types.Object
	if kidsObj, found := fieldDict.Find("Kids"); found {
		kids, err := ctx.DereferenceArray(kidsObj)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference Kids of %q: %w", name, err)
		}
		for _, kid := range kids {
			kidDict, err := ctx.DereferenceDict(kid)
			if err != nil || kidDict == nil {
				continue
			}
			if _, isField := kidDict.Find("T"); isField {
				childFields = append(childFields, kid)
			}
		}
	}

	if len(childFields) > 0 {
		for _, kid := range childFields {
			fields, err = in.collect(ctx, kid, name, fieldDict, depth+1, fields)
			if err != nil {
				return nil, err
			}
		}
		return fields, nil
	}

	field := Field{
		ID:   objectID(fieldObj),
		Name: name,
		Kind: in.kind(ctx, fieldDict, parent),
	}
	flags := in.flags(ctx, fieldDict, parent)
	field.ReadOnly = flags&flagReadOnly != 0

	if field.Kind == FieldKindText {
		if valueObj, found := fieldDict.Find("V"); found {
			if val, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
				field.Value = val
			}
		}
	}

	if in.debugMode {
		log.Printf("Found field: %s (kind: %s)", field.Name, field.Kind)
	}

	return append(fields, field), nil
}

// partialName returns the T entry of a field dictionary
func (in *Inspector) partialName(ctx *model.Context, fieldDict types.Dict) string {
	nameObj, found := fieldDict.Find("T")
	if !found {
		return ""
	}
	name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil)
	if err != nil {
		return ""
	}
	return name
}

// flags returns the Ff entry, inherited from the parent when absent
func (in *Inspector) flags(ctx *model.Context, fieldDict, parent types.Dict) int {
	for _, d := range []types.Dict{fieldDict, parent} {
		if d == nil {
			continue
		}
		if flagsObj, found := d.Find("Ff"); found {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				return int(*flags)
			}
		}
	}
	return 0
}

// kind determines the field kind from the FT entry and field flags
func (in *Inspector) kind(ctx *model.Context, fieldDict, parent types.Dict) FieldKind {
	ft := in.fieldType(ctx, fieldDict, 0)
	if ft == "" && parent != nil {
		ft = in.fieldType(ctx, parent, 0)
	}

	switch ft {
	case "Tx":
		return FieldKindText
	case "Btn":
		flags := in.flags(ctx, fieldDict, parent)
		switch {
		case flags&flagRadio != 0:
			return FieldKindRadioGroup
		case flags&flagPushButton != 0:
			return FieldKindUnknown
		default:
			return FieldKindCheckbox
		}
	case "Ch":
		return FieldKindChoice
	case "Sig":
		return FieldKindSignature
	default:
		return FieldKindUnknown
	}
}

// fieldType resolves FT, following Parent links for inherited values
func (in *Inspector) fieldType(ctx *model.Context, fieldDict types.Dict, depth int) string {
	if depth > maxFieldDepth {
		return ""
	}

	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return in.fieldType(ctx, parentDict, depth+1)
			}
		}
		return ""
	}

	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return ""
	}
	return string(ftName)
}

// objectID returns the object number of an indirect field reference
func objectID(obj types.Object) string {
	if ir, ok := obj.(types.IndirectRef); ok {
		return strconv.Itoa(int(ir.ObjectNumber))
	}
	if ir, ok := obj.(*types.IndirectRef); ok && ir != nil {
		return strconv.Itoa(int(ir.ObjectNumber))
	}
	return ""
}
