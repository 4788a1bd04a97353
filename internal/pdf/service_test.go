package pdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-form-service/internal/cleanup"
	pdferrors "github.com/a3tai/pdf-form-service/internal/pdf/errors"
	"github.com/a3tai/pdf-form-service/internal/pdf/forms"
	"github.com/a3tai/pdf-form-service/internal/pdf/pdftest"
	"github.com/a3tai/pdf-form-service/internal/pdf/stamp"
	"github.com/a3tai/pdf-form-service/internal/store"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	svc, err := NewService(store.NewMemoryStore(), nil, opts)
	require.NoError(t, err)
	return svc
}

func uploaded(t *testing.T, svc *Service, template []byte) *Service {
	t.Helper()
	require.NoError(t, svc.UploadTemplate(context.Background(), template))
	return svc
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	require.NoError(t, err)
	return n
}

func fieldValue(t *testing.T, data []byte, name string) string {
	t.Helper()
	fields, err := forms.NewInspector(false).Fields(data)
	require.NoError(t, err)
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("field %q not found", name)
	return ""
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "form", want: StrategyForm},
		{in: "stamp", want: StrategyStamp},
		{in: " STAMP ", want: StrategyStamp},
		{in: "", wantErr: true},
		{in: "overlay", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewService(t *testing.T) {
	svc := newTestService(t, Options{MaxFileSize: 1024})
	assert.Equal(t, int64(1024), svc.GetMaxFileSize())
	assert.Equal(t, StrategyForm, svc.DefaultStrategy())
	assert.Empty(t, svc.SourceDirectory())

	_, err := NewService(nil, nil, Options{})
	assert.Error(t, err, "store is required")

	_, err = NewService(store.NewMemoryStore(), nil, Options{Strategy: "overlay"})
	assert.Error(t, err, "unknown default strategy")

	_, err = NewService(store.NewMemoryStore(), nil, Options{OutputDirectory: t.TempDir()})
	assert.Error(t, err, "output directory without scheduler")

	_, err = NewService(store.NewMemoryStore(), nil, Options{Layout: stamp.Layout{Slots: []stamp.Slot{{Key: "a"}}}})
	assert.Error(t, err, "invalid layout")
}

func TestService_NotFoundBeforeUpload(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.DiscoverFields(ctx)
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeNotFound))
	assert.Equal(t, MsgTemplateNotFound, err.Error())

	_, err = svc.Fill(ctx, FillRequest{Body: map[string]any{"foo": "bar"}})
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeNotFound))

	_, err = svc.TemplateInfo(ctx)
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeNotFound))
}

func TestService_UploadTooLarge(t *testing.T) {
	svc := newTestService(t, Options{MaxFileSize: 8})

	err := svc.UploadTemplate(context.Background(), make([]byte, 9))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeInvalidInput))
}

func TestService_UploadAcceptsAnyBytes(t *testing.T) {
	svc := newTestService(t, Options{})
	require.NoError(t, svc.UploadTemplate(context.Background(), []byte("not a pdf")))

	_, err := svc.DiscoverFields(context.Background())
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeDocument))
}

func TestService_DiscoverFields(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.SampleForm())

	fields, err := svc.DiscoverFields(context.Background())
	require.NoError(t, err)

	got := forms.Descriptors(fields)
	assert.Contains(t, got, forms.Descriptor{Name: "foo", Type: forms.FieldKindText})
	assert.Contains(t, got, forms.Descriptor{Name: "address.city", Type: forms.FieldKindText})
	assert.Contains(t, got, forms.Descriptor{Name: "payment", Type: forms.FieldKindRadioGroup})
}

func TestService_ReuploadReplacesTemplate(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.TextForm(1, "first"))
	uploaded(t, svc, pdftest.TextForm(1, "second"))

	fields, err := svc.DiscoverFields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "second", fields[0].Name)
}

func TestService_FillForm(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.TextForm(2, "foo"))

	result, err := svc.Fill(context.Background(), FillRequest{Body: map[string]any{
		"foo":     "bar",
		"missing": "x",
	}})
	require.NoError(t, err)

	assert.Equal(t, StrategyForm, result.Strategy)
	assert.Equal(t, "bar", fieldValue(t, result.PDF, "foo"))
	assert.Equal(t, []string{"missing"}, result.Warnings.SkippedFields())
	assert.Equal(t, 2, pageCount(t, result.PDF))
	assert.Empty(t, result.OutputPath, "nothing persisted without an output directory")
	assert.Nil(t, result.Cleanup)
}

func TestService_FillSampleForm(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.SampleForm())

	result, err := svc.Fill(context.Background(), FillRequest{Body: map[string]any{"foo": "bar"}})
	require.NoError(t, err)

	assert.Equal(t, StrategyForm, result.Strategy)
	assert.Equal(t, "bar", fieldValue(t, result.PDF, "foo"))
	assert.Empty(t, result.Warnings.SkippedFields())
}

func TestService_FillWithMappings(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.TextForm(1, "foo"))

	result, err := svc.Fill(context.Background(), FillRequest{Body: map[string]any{
		"expense":              42.0,
		forms.FieldMappingsKey: map[string]any{"expense": "foo"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "42", fieldValue(t, result.PDF, "foo"))
}

func TestService_FillDoesNotModifyTemplate(t *testing.T) {
	template := pdftest.TextForm(1, "foo")
	svc := uploaded(t, newTestService(t, Options{}), template)

	_, err := svc.Fill(context.Background(), FillRequest{Body: map[string]any{"foo": "bar"}})
	require.NoError(t, err)

	stored, err := svc.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, template, stored)
}

func TestService_FillInvalidInput(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.TextForm(1, "foo"))
	ctx := context.Background()

	_, err := svc.Fill(ctx, FillRequest{Strategy: "overlay"})
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeInvalidInput))

	_, err = svc.Fill(ctx, FillRequest{Body: map[string]any{forms.FieldMappingsKey: "foo"}})
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeInvalidInput))
}

func TestService_FillStamp(t *testing.T) {
	layout := stamp.Layout{Slots: []stamp.Slot{{Key: "employeeName", Page: 1, X: 100, Y: 700}}}
	svc := uploaded(t, newTestService(t, Options{Layout: layout}), pdftest.Blank(1))

	result, err := svc.Fill(context.Background(), FillRequest{
		Body:     map[string]any{"employeeName": "Jane"},
		Strategy: "stamp",
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyStamp, result.Strategy)
	require.Len(t, result.Placements, 1)
	assert.Equal(t, "Jane", result.Placements[0].Text)
	assert.Equal(t, 1, pageCount(t, result.PDF))

	shown, err := pdftest.ShownText(result.PDF)
	require.NoError(t, err)
	assert.Contains(t, shown, "Jane")

	origins, err := pdftest.OverlayOrigins(result.PDF)
	require.NoError(t, err)
	require.Len(t, origins, 1)
	assert.InDelta(t, 100, origins[0].X, 0.01)
	assert.InDelta(t, 700, origins[0].Y, stamp.DefaultFontSize)
}

func TestService_DefaultStrategyStamp(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{Strategy: StrategyStamp}), pdftest.Blank(1))

	result, err := svc.Fill(context.Background(), FillRequest{Body: map[string]any{"employeeName": "Jane"}})
	require.NoError(t, err)
	assert.Equal(t, StrategyStamp, result.Strategy)
}

func TestService_FillCorruptTemplate(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), []byte("%PDF-1.7 garbage"))

	_, err := svc.Fill(context.Background(), FillRequest{Body: map[string]any{"foo": "bar"}})
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeDocument))
}

func TestService_PersistsAndCleansUpOutput(t *testing.T) {
	dir := t.TempDir()
	scheduler := cleanup.NewScheduler(dir, time.Minute, nil)
	defer scheduler.Close()

	svc, err := NewService(store.NewMemoryStore(), scheduler, Options{
		OutputDirectory: dir,
		OutputTTL:       20 * time.Millisecond,
	})
	require.NoError(t, err)
	uploaded(t, svc, pdftest.TextForm(1, "foo"))

	result, err := svc.Fill(context.Background(), FillRequest{Body: map[string]any{"foo": "bar"}})
	require.NoError(t, err)

	require.NotEmpty(t, result.OutputPath)
	assert.Equal(t, dir, filepath.Dir(result.OutputPath))
	require.NotNil(t, result.Cleanup)

	select {
	case <-result.Cleanup.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("output file was not cleaned up")
	}
	assert.NoError(t, result.Cleanup.Err())
	assert.NoFileExists(t, result.OutputPath)
}

func TestService_UploadTemplateFile(t *testing.T) {
	source := t.TempDir()
	template := pdftest.TextForm(1, "foo")
	require.NoError(t, os.WriteFile(filepath.Join(source, "form.pdf"), template, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(source, "notes.txt"), []byte("x"), 0o600))

	outside := filepath.Join(t.TempDir(), "outside.pdf")
	require.NoError(t, os.WriteFile(outside, template, 0o600))

	svc := newTestService(t, Options{SourceDirectory: source})
	assert.Equal(t, source, svc.SourceDirectory())
	ctx := context.Background()

	require.NoError(t, svc.UploadTemplateFile(ctx, "form.pdf"))
	fields, err := svc.DiscoverFields(ctx)
	require.NoError(t, err)
	assert.Len(t, fields, 1)

	for _, path := range []string{outside, "notes.txt", "missing.pdf", ""} {
		err := svc.UploadTemplateFile(ctx, path)
		assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeInvalidInput), path)
	}

	noSource := newTestService(t, Options{})
	assert.Error(t, noSource.UploadTemplateFile(ctx, "form.pdf"))
}

func TestService_TemplateInfo(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.TextForm(2, "foo", "bar"))

	info, err := svc.TemplateInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, info.Pages)
	assert.True(t, info.HasForm)
	assert.Equal(t, 2, info.FieldCount)
	assert.Positive(t, info.Size)
	assert.Contains(t, info.TextPreview, "Page 1")
}

func TestService_TemplateInfoWithoutForm(t *testing.T) {
	svc := uploaded(t, newTestService(t, Options{}), pdftest.Blank(1))

	info, err := svc.TemplateInfo(context.Background())
	require.NoError(t, err)
	assert.False(t, info.HasForm)
	assert.Zero(t, info.FieldCount)
	assert.Equal(t, 1, info.Pages)
}
