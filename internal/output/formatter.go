package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter is an interface for output formatting
type Formatter interface {
	// Write outputs the data to the writer
	Write(w io.Writer, data interface{}) error
}

// ParseFormat parses a format string. Unknown values are an error so a typo
// in -o never silently falls back to a table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// NewFormatter creates a new formatter for the given format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// NewTableFormatterWithLabels creates a table formatter with specified fields and custom labels
func NewTableFormatterWithLabels(fields []string, labels map[string]string) Formatter {
	return &TableFormatter{Fields: fields, FieldLabels: labels}
}
