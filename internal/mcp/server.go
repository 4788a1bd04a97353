package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/pdf-form-service/internal/config"
	"github.com/a3tai/pdf-form-service/internal/pdf"
	"github.com/a3tai/pdf-form-service/internal/pdf/forms"
)

// filledURI identifies the filled document in tool results
const filledURI = "pdf://filled"

// Server exposes the PDF form service as MCP tools
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	uploadTemplateTool := mcp.NewTool(
		"upload_template",
		mcp.WithDescription("Make a PDF from the source directory the active template, replacing any previous one"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the PDF, absolute or relative to the source directory"),
		),
	)
	s.mcpServer.AddTool(uploadTemplateTool, s.handleUploadTemplate)

	discoverFieldsTool := mcp.NewTool(
		"discover_fields",
		mcp.WithDescription("List the fillable form fields of the active template with their types"),
	)
	s.mcpServer.AddTool(discoverFieldsTool, s.handleDiscoverFields)

	fillPDFTool := mcp.NewTool(
		"fill_pdf",
		mcp.WithDescription("Fill a copy of the active template and return it as a base64 PDF resource"),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Values keyed by PDF field name, or by logical key when fieldMappings is given"),
		),
		mcp.WithObject("fieldMappings",
			mcp.Description("Optional map from logical key to PDF field name"),
		),
		mcp.WithString("strategy",
			mcp.Description("'form' to fill form fields or 'stamp' to draw at fixed positions (server default if empty)"),
		),
	)
	s.mcpServer.AddTool(fillPDFTool, s.handleFillPDF)

	templateInfoTool := mcp.NewTool(
		"template_info",
		mcp.WithDescription("Describe the active template: size, pages, form fields and a text preview"),
	)
	s.mcpServer.AddTool(templateInfoTool, s.handleTemplateInfo)
}

func (s *Server) handleUploadTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.pdfService.UploadTemplateFile(ctx, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Template uploaded successfully from %s", path)), nil
}

func (s *Server) handleDiscoverFields(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields, err := s.pdfService.DiscoverFields(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatFields(fields)), nil
}

func (s *Server) handleFillPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	data, ok := args["data"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("data must be an object"), nil
	}

	body := make(map[string]any, len(data)+1)
	for k, v := range data {
		body[k] = v
	}
	if mappings, present := args[forms.FieldMappingsKey]; present && mappings != nil {
		body[forms.FieldMappingsKey] = mappings
	}

	result, err := s.pdfService.Fill(ctx, pdf.FillRequest{
		Body:     body,
		Strategy: request.GetString("strategy", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultResource(s.formatFillResult(result), mcp.BlobResourceContents{
		URI:      filledURI,
		MIMEType: "application/pdf",
		Blob:     base64.StdEncoding.EncodeToString(result.PDF),
	}), nil
}

func (s *Server) handleTemplateInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.pdfService.TemplateInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatTemplateInfo(info)), nil
}

func (s *Server) formatFields(fields []forms.Field) string {
	if len(fields) == 0 {
		return "The template has no fillable form fields"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Form fields (%d):\n", len(fields))
	for i, f := range fields {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, f.Name, f.Kind)
		if f.ReadOnly {
			b.WriteString(" [read-only]")
		}
		if f.Value != "" {
			fmt.Fprintf(&b, " = %q", f.Value)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Server) formatFillResult(result *pdf.FillResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Filled PDF (%d bytes) using the %s strategy\n", len(result.PDF), result.Strategy)

	switch result.Strategy {
	case pdf.StrategyStamp:
		fmt.Fprintf(&b, "Lines stamped: %d\n", len(result.Placements))
	default:
		fmt.Fprintf(&b, "Fields filled: %d\n", len(result.Filled))
	}

	if len(result.Warnings.Warnings) > 0 {
		fmt.Fprintf(&b, "%s\n", result.Warnings.Summary())
	}
	for _, w := range result.Warnings.Warnings {
		fmt.Fprintf(&b, "Skipped %s: %s\n", w.Field, w.Message)
	}

	if result.OutputPath != "" {
		fmt.Fprintf(&b, "Output file: %s\n", result.OutputPath)
	}
	return b.String()
}

func (s *Server) formatTemplateInfo(info *pdf.TemplateInfo) string {
	text := fmt.Sprintf("Size: %d bytes\n", info.Size)
	text += fmt.Sprintf("Pages: %d\n", info.Pages)
	text += fmt.Sprintf("Has Form: %t\n", info.HasForm)
	text += fmt.Sprintf("Form Fields: %d\n", info.FieldCount)
	if info.TextPreview != "" {
		text += "\nText Preview:\n" + info.TextPreview + "\n"
	}
	return text
}

// Run serves the tools over stdin and stdout until ctx is canceled or
// the input is closed
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve runs the MCP protocol over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF form MCP server in stdio mode")
		log.Printf("Source directory: %s", s.pdfService.SourceDirectory())
	}

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.Default())

	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
