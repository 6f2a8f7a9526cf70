package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// OutputFormat represents the supported output formats for CLI commands.
type OutputFormat string

const (
	// OutputFormatTable formats output as a rounded, colored table
	OutputFormatTable OutputFormat = "table"
	// OutputFormatPlain formats output as kubectl-style columns
	OutputFormatPlain OutputFormat = "plain"
	// OutputFormatJSON formats output as indented JSON
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML formats output as YAML converted from JSON
	OutputFormatYAML OutputFormat = "yaml"
)

// ValidOutputFormats contains all valid output format values.
var ValidOutputFormats = []OutputFormat{
	OutputFormatTable,
	OutputFormatPlain,
	OutputFormatJSON,
	OutputFormatYAML,
}

// ValidateOutputFormat validates that the given format string is a supported output format.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatPlain, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (valid: table, plain, json, yaml)", format)
	}
}

// Printer writes command results to Out in Format.
type Printer struct {
	Format    OutputFormat
	Out       io.Writer
	NoHeaders bool
}

// NewPrinter validates format and returns a printer writing to out.
func NewPrinter(format string, noHeaders bool, out io.Writer) (*Printer, error) {
	if err := ValidateOutputFormat(format); err != nil {
		return nil, err
	}
	return &Printer{Format: OutputFormat(format), Out: out, NoHeaders: noHeaders}, nil
}

// Structured reports whether the printer emits json or yaml.
func (p *Printer) Structured() bool {
	return p.Format == OutputFormatJSON || p.Format == OutputFormatYAML
}

// writeStructured marshals v as JSON, converting to YAML when asked. YAML
// goes through JSON so both formats share field names.
func (p *Printer) writeStructured(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if p.Format == OutputFormatYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to convert to YAML: %w", err)
		}
		_, err = p.Out.Write(data)
		return err
	}
	_, err = fmt.Fprintln(p.Out, string(data))
	return err
}
