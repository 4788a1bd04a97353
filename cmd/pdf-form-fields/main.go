package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/a3tai/pdf-form-service/internal/pdf/forms"
)

// fieldReport is the JSON output of a run
type fieldReport struct {
	FilePath   string        `json:"file_path"`
	Pages      int           `json:"pages"`
	FieldCount int           `json:"field_count"`
	Fields     []forms.Field `json:"fields"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("pdf-form-fields", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	format := flags.String("format", "text", "Output format: text, json")
	verbose := flags.Bool("verbose", false, "Log every field as it is found")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "List the interactive form fields of a PDF template")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "USAGE:")
		fmt.Fprintln(stderr, "  pdf-form-fields [OPTIONS] <pdf_file>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "OPTIONS:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	if flags.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: PDF file path required\n\n")
		flags.Usage()
		return 2
	}

	report, err := inspect(flags.Arg(0), *verbose)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := output(stdout, report, *format); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func inspect(path string, verbose bool) (*fieldReport, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	inspector := forms.NewInspector(verbose)
	fields, err := inspector.Fields(data)
	if err != nil {
		return nil, err
	}
	pages, err := inspector.PageCount(data)
	if err != nil {
		return nil, err
	}

	return &fieldReport{
		FilePath:   absPath,
		Pages:      pages,
		FieldCount: len(fields),
		Fields:     fields,
	}, nil
}

func output(w io.Writer, report *fieldReport, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "text":
		return outputText(w, report)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func outputText(w io.Writer, report *fieldReport) error {
	if report.FieldCount == 0 {
		_, err := fmt.Fprintf(w, "No form fields found in %s (%d page(s))\n", report.FilePath, report.Pages)
		return err
	}

	fmt.Fprintf(w, "%d form field(s) in %s (%d page(s))\n\n", report.FieldCount, report.FilePath, report.Pages)
	for i, field := range report.Fields {
		fmt.Fprintf(w, "[%d] %s\n", i+1, field.Name)
		fmt.Fprintf(w, "    Type: %s\n", field.Kind)
		if field.Value != "" {
			fmt.Fprintf(w, "    Value: %s\n", field.Value)
		}
		if field.ReadOnly {
			fmt.Fprintln(w, "    Properties: [ReadOnly]")
		}
	}
	return nil
}
