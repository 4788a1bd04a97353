// Package api exposes the PDF form service over HTTP.
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/a3tai/pdf-form-service/internal/pdf"
	pdferrors "github.com/a3tai/pdf-form-service/internal/pdf/errors"
	"github.com/a3tai/pdf-form-service/internal/pdf/forms"
)

const (
	// TemplateFormField is the multipart part carrying an uploaded template
	TemplateFormField = "pdfTemplate"
	// fallbackFormField is accepted when TemplateFormField is absent
	fallbackFormField = "file"

	// StrategyQuery overrides the fill strategy of a single request
	StrategyQuery = "strategy"

	HeaderSkippedFields = "X-Skipped-Fields"
	HeaderFillStrategy  = "X-Fill-Strategy"

	// multipartOverhead allows for part headers and boundaries on top of the file
	multipartOverhead = 1 << 20

	msgUploaded   = "Template uploaded successfully"
	msgNoTemplate = "No PDF template uploaded"
)

// Handler serves the template and fill endpoints
type Handler struct {
	service *pdf.Service
	logger  *zap.Logger
}

// NewHandler creates a handler backed by service. A nil logger discards output.
func NewHandler(service *pdf.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// NewRouter returns an engine with CORS open to every origin and all routes
// registered. Request logging is enabled in debug mode only.
func NewRouter(h *Handler, debug bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if debug {
		router.Use(gin.Logger())
	}
	router.Use(cors.Default())

	router.GET("/healthz", h.Health)
	h.RegisterRoutes(router.Group("/api"))
	return router
}

// RegisterRoutes adds the template and fill endpoints to rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload-template", h.UploadTemplate)
	rg.GET("/discover-fields", h.DiscoverFields)
	rg.POST("/fill-pdf", h.FillPDF)
	rg.GET("/template", h.TemplateInfo)
}

// Health reports that the server is up
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UploadTemplate stores the uploaded file as the active template
func (h *Handler) UploadTemplate(c *gin.Context) {
	if limit := h.service.GetMaxFileSize(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	file, err := templateFile(c)
	if err != nil {
		if isBodyTooLarge(err) {
			c.String(http.StatusRequestEntityTooLarge, "Template exceeds the maximum file size")
			return
		}
		c.String(http.StatusBadRequest, msgNoTemplate)
		return
	}

	f, err := file.Open()
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("Error reading upload: %v", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("Error reading upload: %v", err))
		return
	}

	if err := h.service.UploadTemplate(c.Request.Context(), data); err != nil {
		if errors.Is(err, pdf.ErrFileTooLarge) {
			c.String(http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		h.logger.Error("Failed to store template", zap.Error(err), zap.Int("size", len(data)))
		c.String(statusFor(err), fmt.Sprintf("Error uploading template: %v", err))
		return
	}

	h.logger.Info("Template uploaded", zap.String("filename", file.Filename), zap.Int("size", len(data)))
	c.String(http.StatusOK, msgUploaded)
}

// DiscoverFields lists the fields of the active template as [{name, type}]
func (h *Handler) DiscoverFields(c *gin.Context) {
	fields, err := h.service.DiscoverFields(c.Request.Context())
	if err != nil {
		h.fail(c, "Error discovering fields", err)
		return
	}

	c.JSON(http.StatusOK, forms.Descriptors(fields))
}

// FillPDF fills a copy of the active template with the JSON body and
// returns it as application/pdf
func (h *Handler) FillPDF(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.String(http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	result, err := h.service.Fill(c.Request.Context(), pdf.FillRequest{
		Body:     body,
		Strategy: c.Query(StrategyQuery),
	})
	if err != nil {
		h.fail(c, "Error filling PDF", err)
		return
	}

	skipped := result.Warnings.SkippedFields()
	if len(skipped) > 0 {
		c.Header(HeaderSkippedFields, strconv.Itoa(len(skipped)))
		h.logger.Warn("Fields skipped while filling",
			zap.Strings("fields", skipped),
			zap.String("summary", result.Warnings.Summary()))
	}
	c.Header(HeaderFillStrategy, string(result.Strategy))

	name := "filled.pdf"
	if result.OutputPath != "" {
		name = filepath.Base(result.OutputPath)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

// TemplateInfo summarizes the active template
func (h *Handler) TemplateInfo(c *gin.Context) {
	info, err := h.service.TemplateInfo(c.Request.Context())
	if err != nil {
		h.fail(c, "Error reading template", err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// fail writes err as plain text. Not-found and invalid-input errors are sent
// as is; anything else is a server error prefixed with action.
func (h *Handler) fail(c *gin.Context, action string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound, http.StatusBadRequest:
		c.String(status, err.Error())
	default:
		h.logger.Error(action, zap.Error(err), zap.String("type", pdferrors.TypeOf(err).String()))
		c.String(status, fmt.Sprintf("%s: %v", action, err))
	}
}

// statusFor maps an error type to its HTTP status
func statusFor(err error) int {
	switch pdferrors.TypeOf(err) {
	case pdferrors.ErrorTypeInvalidInput:
		return http.StatusBadRequest
	case pdferrors.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// templateFile returns the uploaded template part, trying the fallback name
func templateFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile(TemplateFormField)
	if err == nil {
		return file, nil
	}
	if isBodyTooLarge(err) {
		return nil, err
	}
	if fallback, fallbackErr := c.FormFile(fallbackFormField); fallbackErr == nil {
		return fallback, nil
	}
	return nil, err
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
