// Package pdftest builds small, well-formed PDF documents for tests.
//
// The documents use a single Helvetica font and an optional AcroForm whose
// fields are all placed on the first page.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Field types as written to the FT entry
const (
	FieldText      = "Tx"
	FieldButton    = "Btn"
	FieldChoice    = "Ch"
	FieldSignature = "Sig"
)

// Field flag bits
const (
	FlagReadOnly   = 1 << 0
	FlagRadio      = 1 << 15
	FlagPushButton = 1 << 16
)

// Field describes one AcroForm field. A field with Kids is written as a
// non-terminal node; kids without a Name are written as plain widgets.
type Field struct {
	Name    string
	Type    string
	Flags   int
	Value   string
	Options []string
	Kids    []Field
}

// Options controls the generated document
type Options struct {
	Pages  int
	Fields []Field
}

type object struct {
	num  int
	body string
}

type builder struct {
	objects []*object
	widgets []int
	page1   int
	next    int
}

func (b *builder) reserve() *object {
	b.next++
	o := &object{num: b.next}
	b.objects = append(b.objects, o)
	return o
}

// Build returns the bytes of a PDF document described by opts
func Build(opts Options) []byte {
	if opts.Pages < 1 {
		opts.Pages = 1
	}

	b := &builder{}
	catalog := b.reserve()
	pages := b.reserve()
	font := b.reserve()
	font.body = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	pageObjs := make([]*object, opts.Pages)
	contentObjs := make([]*object, opts.Pages)
	for i := range pageObjs {
		pageObjs[i] = b.reserve()
		contentObjs[i] = b.reserve()
	}
	b.page1 = pageObjs[0].num

	var fieldRefs []string
	for i, f := range opts.Fields {
		num := b.addField(f, 0, i)
		fieldRefs = append(fieldRefs, ref(num))
	}

	catalogBody := fmt.Sprintf("<< /Type /Catalog /Pages %s", ref(pages.num))
	if len(opts.Fields) > 0 {
		acroForm := b.reserve()
		acroForm.body = fmt.Sprintf(
			"<< /Fields [%s] /DR << /Font << /Helv %s >> >> /DA (/Helv 0 Tf 0 g) >>",
			strings.Join(fieldRefs, " "), ref(font.num))
		catalogBody += " /AcroForm " + ref(acroForm.num)
	}
	catalog.body = catalogBody + " >>"

	kids := make([]string, len(pageObjs))
	for i, p := range pageObjs {
		kids[i] = ref(p.num)

		stream := fmt.Sprintf("BT /Helv 12 Tf 72 720 Td (Page %d) Tj ET", i+1)
		contentObjs[i].body = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)

		annots := ""
		if i == 0 && len(b.widgets) > 0 {
			refs := make([]string, len(b.widgets))
			for j, w := range b.widgets {
				refs[j] = ref(w)
			}
			annots = fmt.Sprintf(" /Annots [%s]", strings.Join(refs, " "))
		}
		p.body = fmt.Sprintf(
			"<< /Type /Page /Parent %s /MediaBox [0 0 612 792] /Resources << /Font << /Helv %s >> >> /Contents %s%s >>",
			ref(pages.num), ref(font.num), ref(contentObjs[i].num), annots)
	}
	pages.body = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageObjs))

	return b.serialize(catalog.num)
}

// addField writes f and its kids, returning the object number of f
func (b *builder) addField(f Field, parent, index int) int {
	o := b.reserve()

	var sb strings.Builder
	sb.WriteString("<<")
	if f.Name != "" {
		fmt.Fprintf(&sb, " /T (%s)", f.Name)
	}
	if f.Type != "" {
		fmt.Fprintf(&sb, " /FT /%s", f.Type)
	}
	if f.Flags != 0 {
		fmt.Fprintf(&sb, " /Ff %d", f.Flags)
	}
	if parent != 0 {
		fmt.Fprintf(&sb, " /Parent %s", ref(parent))
	}
	if f.Value != "" {
		if f.Type == FieldButton {
			fmt.Fprintf(&sb, " /V /%s", f.Value)
		} else {
			fmt.Fprintf(&sb, " /V (%s)", f.Value)
		}
	}
	if len(f.Options) > 0 {
		opts := make([]string, len(f.Options))
		for i, opt := range f.Options {
			opts[i] = "(" + opt + ")"
		}
		fmt.Fprintf(&sb, " /Opt [%s]", strings.Join(opts, " "))
	}
	if f.Type == FieldText || f.Type == FieldChoice || (f.Type == "" && f.Name != "") {
		sb.WriteString(" /DA (/Helv 12 Tf 0 g)")
	}

	if len(f.Kids) > 0 {
		kidRefs := make([]string, len(f.Kids))
		for i, k := range f.Kids {
			kidRefs[i] = ref(b.addField(k, o.num, i))
		}
		fmt.Fprintf(&sb, " /Kids [%s]", strings.Join(kidRefs, " "))
	} else {
		y := 700 - 30*float64(len(b.widgets))
		fmt.Fprintf(&sb, " /Type /Annot /Subtype /Widget /F 4 /P %s /Rect [100 %.0f 300 %.0f]",
			ref(b.page1), y, y+20)
		b.widgets = append(b.widgets, o.num)
	}
	sb.WriteString(" >>")

	o.body = sb.String()
	return o.num
}

func (b *builder) serialize(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objects)+1)
	for _, o := range b.objects {
		offsets[o.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(b.objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %s >>\nstartxref\n%d\n%%%%EOF\n",
		len(b.objects)+1, ref(root), xref)

	return buf.Bytes()
}

func ref(num int) string {
	return fmt.Sprintf("%d 0 R", num)
}

// SampleForm returns a one-page form with one field of every supported kind
func SampleForm() []byte {
	return Build(Options{
		Pages: 1,
		Fields: []Field{
			{Name: "foo", Type: FieldText},
			{Name: "agree", Type: FieldButton},
			{Name: "color", Type: FieldChoice, Options: []string{"red", "green"}},
			{Name: "payment", Type: FieldButton, Flags: FlagRadio, Kids: []Field{{}, {}}},
			{Name: "signature", Type: FieldSignature},
			{Name: "submit", Type: FieldButton, Flags: FlagPushButton},
			{Name: "address", Kids: []Field{
				{Name: "city", Type: FieldText},
			}},
		},
	})
}

// Blank returns a document without an interactive form
func Blank(pages int) []byte {
	return Build(Options{Pages: pages})
}

// TextForm returns a document whose form holds one text field per name
func TextForm(pages int, names ...string) []byte {
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Type: FieldText}
	}
	return Build(Options{Pages: pages, Fields: fields})
}
