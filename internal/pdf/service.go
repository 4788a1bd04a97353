package pdf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/a3tai/pdf-form-service/internal/cleanup"
	pdferrors "github.com/a3tai/pdf-form-service/internal/pdf/errors"
	"github.com/a3tai/pdf-form-service/internal/pdf/forms"
	"github.com/a3tai/pdf-form-service/internal/pdf/security"
	"github.com/a3tai/pdf-form-service/internal/pdf/stamp"
	"github.com/a3tai/pdf-form-service/internal/store"
)

// MsgTemplateNotFound is reported whenever an operation needs a template
// before one has been uploaded
const MsgTemplateNotFound = "PDF template not found. Please upload a template first."

// ErrFileTooLarge is returned for documents above the configured size limit
var ErrFileTooLarge = errors.New("file too large")

// Options configures a Service
type Options struct {
	// MaxFileSize limits uploaded templates; zero disables the check
	MaxFileSize int64
	// Strategy is used when a fill request does not name one
	Strategy Strategy
	// Layout positions stamped values; the default layout when empty
	Layout stamp.Layout
	// SourceDirectory confines UploadTemplateFile; empty disables it
	SourceDirectory string
	// OutputDirectory receives persisted form-fill output; empty disables it
	OutputDirectory string
	// OutputTTL is how long persisted output is kept
	OutputTTL time.Duration
	Debug     bool
}

// Service orchestrates the template store and the fill strategies
type Service struct {
	store     store.Store
	scheduler *cleanup.Scheduler

	inspector     *forms.Inspector
	filler        *forms.Filler
	stamper       *stamp.Stamper
	reader        *Reader
	validator     *Validator
	pathValidator *security.PathValidator

	maxFileSize int64
	strategy    Strategy
	outputDir   string
	outputTTL   time.Duration
	debugMode   bool
}

// NewService creates a new PDF form service. scheduler may be nil when no
// output is persisted.
func NewService(templates store.Store, scheduler *cleanup.Scheduler, opts Options) (*Service, error) {
	if templates == nil {
		return nil, fmt.Errorf("template store cannot be nil")
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyForm
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	layout := opts.Layout
	if len(layout.Slots) == 0 {
		layout = stamp.DefaultLayout()
	}
	stamper, err := stamp.NewStamper(layout, opts.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create stamper: %w", err)
	}

	var pathValidator *security.PathValidator
	if opts.SourceDirectory != "" {
		pathValidator, err = security.NewPathValidator(opts.SourceDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to create path validator: %w", err)
		}
	}

	if opts.OutputDirectory != "" && scheduler == nil {
		return nil, fmt.Errorf("an output directory requires a cleanup scheduler")
	}

	inspector := forms.NewInspector(opts.Debug)
	return &Service{
		store:         templates,
		scheduler:     scheduler,
		inspector:     inspector,
		filler:        forms.NewFiller(inspector, opts.Debug),
		stamper:       stamper,
		reader:        NewReader(DefaultPreviewSize),
		validator:     NewValidator(opts.MaxFileSize),
		pathValidator: pathValidator,
		maxFileSize:   opts.MaxFileSize,
		strategy:      strategy,
		outputDir:     opts.OutputDirectory,
		outputTTL:     opts.OutputTTL,
		debugMode:     opts.Debug,
	}, nil
}

// GetMaxFileSize returns the maximum template size
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// DefaultStrategy returns the strategy used when a request names none
func (s *Service) DefaultStrategy() Strategy {
	return s.strategy
}

// SourceDirectory returns the directory UploadTemplateFile reads from
func (s *Service) SourceDirectory() string {
	if s.pathValidator == nil {
		return ""
	}
	return s.pathValidator.GetConfiguredDirectory()
}

// UploadTemplate stores data as the active template, replacing any previous
// one. The content is not checked to be a PDF.
func (s *Service) UploadTemplate(ctx context.Context, data []byte) error {
	if err := s.validator.ValidateSize(int64(len(data))); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err)
	}

	if err := s.store.Put(ctx, data); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeUnknown, fmt.Errorf("failed to store template: %w", err))
	}

	if s.debugMode {
		log.Printf("Stored template (%d bytes)", len(data))
	}
	return nil
}

// UploadTemplateFile stores the file at path, which must lie inside the
// source directory
func (s *Service) UploadTemplateFile(ctx context.Context, path string) error {
	if s.pathValidator == nil {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput, "no source directory configured")
	}

	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput,
			fmt.Errorf("security validation failed: %w", err))
	}

	if err := s.validator.ValidateFile(resolved); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, fmt.Errorf("failed to read %s: %w", path, err))
	}

	return s.UploadTemplate(ctx, data)
}

// DiscoverFields lists the form fields of the active template
func (s *Service) DiscoverFields(ctx context.Context) (fields []forms.Field, err error) {
	template, err := s.template(ctx)
	if err != nil {
		return nil, err
	}

	defer pdferrors.Recover(&err, "discover fields")
	fields, err = s.inspector.Fields(template)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocument, err)
	}
	return fields, nil
}

// Fill writes the request data into a copy of the active template using
// the requested or default strategy. The template itself is not modified.
func (s *Service) Fill(ctx context.Context, req FillRequest) (*FillResult, error) {
	strategy := s.strategy
	if req.Strategy != "" {
		parsed, err := ParseStrategy(req.Strategy)
		if err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err)
		}
		strategy = parsed
	}

	data, mappings, err := forms.SplitRequest(req.Body)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err)
	}

	template, err := s.template(ctx)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyStamp:
		return s.stampTemplate(template, data)
	default:
		return s.fillForm(ctx, template, data, mappings)
	}
}

func (s *Service) fillForm(ctx context.Context, template []byte, data map[string]any,
	mappings map[string]string,
) (_ *FillResult, err error) {
	defer pdferrors.Recover(&err, "fill form")

	assignments, warnings := forms.ResolveAssignments(data, mappings)
	for _, w := range warnings.Warnings {
		log.Printf("Warning: %v", w)
	}

	filled, err := s.filler.Fill(template, assignments, warnings)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocument, err)
	}

	result := &FillResult{
		PDF:      filled.PDF,
		Strategy: StrategyForm,
		Filled:   filled.Filled,
		Warnings: filled.Warnings,
	}

	if err := s.persist(ctx, result); err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeUnknown, err)
	}

	if s.debugMode {
		log.Printf("Form fill: %d field(s) filled. %s", len(result.Filled), result.Warnings.Summary())
	}
	return result, nil
}

func (s *Service) stampTemplate(template []byte, data map[string]any) (_ *FillResult, err error) {
	defer pdferrors.Recover(&err, "stamp template")

	stamped, err := s.stamper.Stamp(template, data)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocument, err)
	}

	if s.debugMode {
		log.Printf("Stamp: %d line(s) placed", len(stamped.Placements))
	}

	return &FillResult{
		PDF:        stamped.PDF,
		Strategy:   StrategyStamp,
		Placements: stamped.Placements,
		Warnings:   stamped.Warnings,
	}, nil
}

// persist writes the output to a transient file and schedules its removal
func (s *Service) persist(ctx context.Context, result *FillResult) error {
	if s.outputDir == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.outputDir, store.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.outputDir, cleanup.NewOutputName())
	if err := os.WriteFile(path, result.PDF, 0o640); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	result.OutputPath = path
	result.Cleanup = s.scheduler.Schedule(path, s.outputTTL)
	return nil
}

// TemplateInfo summarizes the active template
func (s *Service) TemplateInfo(ctx context.Context) (_ *TemplateInfo, err error) {
	template, err := s.template(ctx)
	if err != nil {
		return nil, err
	}

	defer pdferrors.Recover(&err, "inspect template")

	fields, err := s.inspector.Fields(template)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocument, err)
	}

	info := &TemplateInfo{
		Size:       int64(len(template)),
		HasForm:    len(fields) > 0,
		FieldCount: len(fields),
	}

	pages, text, err := s.reader.Preview(template)
	if err != nil {
		// The text parser is stricter than pdfcpu; fall back to its page count
		if s.debugMode {
			log.Printf("Text preview unavailable: %v", err)
		}
		pages, err = s.inspector.PageCount(template)
		if err != nil {
			return nil, pdferrors.WrapError(pdferrors.ErrorTypeDocument, err)
		}
	}
	info.Pages = pages
	info.TextPreview = text

	return info, nil
}

// template loads the active template
func (s *Service) template(ctx context.Context) ([]byte, error) {
	data, err := s.store.Get(ctx)
	if errors.Is(err, store.ErrTemplateNotFound) {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeNotFound, MsgTemplateNotFound)
	}
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeUnknown, fmt.Errorf("failed to load template: %w", err))
	}
	return data, nil
}
