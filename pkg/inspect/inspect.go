// Package inspect reads back generated PDF receipts: structure and
// metadata through pdfcpu, plain text through ledongthuc/pdf.
package inspect

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Report describes a PDF file.
type Report struct {
	Path      string `json:"path" yaml:"path"`
	Size      int64  `json:"size" yaml:"size"`
	Version   string `json:"version" yaml:"version"`
	Pages     int    `json:"pages" yaml:"pages"`
	Encrypted bool   `json:"encrypted" yaml:"encrypted"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Creator   string `json:"creator,omitempty" yaml:"creator,omitempty"`
	Producer  string `json:"producer,omitempty" yaml:"producer,omitempty"`
	// ValidationError is set when relaxed validation rejected the file.
	ValidationError string `json:"validationError,omitempty" yaml:"validationError,omitempty"`
	// Text is the extracted plain text. Arabic comes out in the shaped,
	// visual order it was drawn in.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
	// TextError is set when the text could not be extracted.
	TextError string `json:"textError,omitempty" yaml:"textError,omitempty"`
}

// Valid reports whether the file passed validation.
func (r *Report) Valid() bool {
	return r.ValidationError == ""
}

// File inspects the PDF at path.
func File(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}

	report, err := readStructure(file)
	if err != nil {
		return nil, err
	}
	report.Path = path
	report.Size = info.Size()

	if !report.Encrypted {
		text, err := extractText(path)
		if err != nil {
			report.TextError = err.Error()
		}
		report.Text = text
	}
	return report, nil
}

// Bytes inspects an in-memory PDF. Text is not extracted.
func Bytes(data []byte) (*Report, error) {
	report, err := readStructure(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	report.Size = int64(len(data))
	return report, nil
}

func readStructure(rs io.ReadSeeker) (*Report, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	report := &Report{
		Pages:     ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}
	if ctx.HeaderVersion != nil {
		report.Version = ctx.HeaderVersion.String()
	}

	// Validation fills in the document info fields.
	if err := api.ValidateContext(ctx); err != nil {
		report.ValidationError = err.Error()
	}
	report.Title = ctx.Title
	report.Creator = ctx.Creator
	report.Producer = ctx.Producer

	return report, nil
}

func extractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
