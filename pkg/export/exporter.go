// Package export dumps submissions as JSON, CSV or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/submission"
	"gopkg.in/yaml.v3"
)

// Format represents the export format type
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// CSVHeader is the first row of a CSV export.
var CSVHeader = []string{"_id", "name", "email", "phone", "message", "createdAt"}

// ParseFormat parses a format name, case-insensitively. "yml" is accepted
// for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (expected json, csv or yaml)", s)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot tell the format of %s without an extension", path)
	}
	return ParseFormat(ext)
}

// Exporter writes submissions in one of the supported formats.
type Exporter struct {
	converter func(string) string
}

// NewExporter creates a new exporter with optional converter function
// applied to every non-empty text field.
func NewExporter(converter func(string) string) *Exporter {
	return &Exporter{converter: converter}
}

// convertSubmissions applies the converter to the text fields of subs.
func (e *Exporter) convertSubmissions(subs []submission.Submission) []submission.Submission {
	if e.converter == nil {
		return subs
	}

	convert := func(s string) string {
		// Only convert non-empty strings
		if strings.TrimSpace(s) == "" {
			return s
		}
		return e.converter(s)
	}

	converted := make([]submission.Submission, len(subs))
	for i, sub := range subs {
		sub.Name = convert(sub.Name)
		sub.Email = convert(sub.Email)
		sub.Phone = convert(sub.Phone)
		sub.Message = convert(sub.Message)
		converted[i] = sub
	}
	return converted
}

// Write encodes subs to w in format, keeping their order.
func (e *Exporter) Write(w io.Writer, format Format, subs []submission.Submission) error {
	subs = e.convertSubmissions(subs)
	if subs == nil {
		subs = []submission.Submission{}
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, subs)
	case FormatCSV:
		return writeCSV(w, subs)
	case FormatYAML:
		return writeYAML(w, subs)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportToFile writes subs to outputPath in format.
func (e *Exporter) ExportToFile(outputPath string, format Format, subs []submission.Submission) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := e.Write(file, format, subs); err != nil {
		file.Close()
		os.Remove(outputPath)
		return err
	}
	return file.Close()
}

func writeJSON(w io.Writer, subs []submission.Submission) error {
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, subs []submission.Submission) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, sub := range subs {
		row := []string{
			sub.ID,
			sub.Name,
			sub.Email,
			sub.Phone,
			sub.Message,
			sub.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, subs []submission.Submission) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(subs); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
