// Package receipt lays out the PDF receipt of a form submission. Arabic
// text is shaped with package rtl before it reaches the canvas, so the
// canvas only ever draws left-to-right glyph runs.
package receipt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/rtl"
	"github.com/atomicdeploy/form-receipts/pkg/submission"
)

// ErrInvalidSubmission is returned for a submission without an id.
var ErrInvalidSubmission = errors.New("invalid submission data received")

// Receipt labels.
const (
	Title        = "المعلومات الشخصية للمستخدم"
	LabelID      = ": رقم التسجيل"
	LabelName    = ": الإسم و اللقب"
	LabelEmail   = ": البريد الإلكتروني"
	LabelPhone   = ": رقم الهاتف"
	LabelMessage = "الرسالة:"
	LabelDate    = ": تاريخ التسجيل"
)

const (
	pageWidth    = 210.0
	headerHeight = 35.0
	leftMargin   = 20.0
	messageWidth = 170.0
	contentTop   = 50.0
)

// Options tune a Generator.
type Options struct {
	// Locale of the date line, see FormatDate.
	Locale string
	// Location the creation time is shown in. Nil means UTC.
	Location *time.Location
	// ShowID adds the submission id under the header.
	ShowID bool
}

// Generator produces receipts. It holds no drawing state and is safe for
// concurrent use.
type Generator struct {
	opts Options
}

// NewGenerator creates a Generator.
func NewGenerator(opts Options) *Generator {
	if opts.Locale == "" {
		opts.Locale = DefaultLocale
	}
	return &Generator{opts: opts}
}

// Filename is the file name a receipt for id is saved under.
func Filename(id string) string {
	return fmt.Sprintf("form-submission-%s.pdf", id)
}

// Draw lays out the receipt of sub on c.
func (g *Generator) Draw(c Canvas, sub submission.Submission) error {
	if sub.ID == "" {
		return ErrInvalidSubmission
	}

	c.FillRect(HeaderBlue, 0, 0, pageWidth, headerHeight)
	c.Text(Style{Font: FontArabic, Bold: true, Size: 24, Color: White},
		pageWidth/2, 22, rtl.Prepare(Title, rtl.RightToLeft), AlignCenter)

	y := contentTop
	footnote := Style{Font: FontArabic, Bold: true, Size: 10, Color: Grey}

	if g.opts.ShowID {
		c.Text(footnote, RightMargin, y, rtl.Prepare(LabelID, rtl.RightToLeft)+" "+sub.ID, AlignRight)
		y += 15
	}

	separator(c, y)
	y += 15

	r := NewRenderer(c)
	y += r.Field(LabelName, sub.Name, leftMargin, y)
	y += 5
	y += r.Field(LabelEmail, sub.Email, leftMargin, y)
	y += 5
	y += r.Field(LabelPhone, sub.Phone, leftMargin, y)
	y += 15

	if sub.Message != "" {
		c.Text(r.style(FontArabic, true), RightMargin, y, rtl.Prepare(LabelMessage, rtl.RightToLeft), AlignRight)
		y += 8
		y += r.Multiline(sub.Message, leftMargin, y, messageWidth)
		y += 10
	}

	separator(c, y)
	y += 10

	date := FormatDate(sub.CreatedAt, g.opts.Locale, g.opts.Location)
	c.Text(footnote, RightMargin, y,
		rtl.Prepare(LabelDate, rtl.RightToLeft)+" "+rtl.Prepare(date, rtl.RightToLeft), AlignRight)

	return nil
}

func separator(c Canvas, y float64) {
	c.Line(RuleGrey, 0.5, leftMargin, y, RightMargin, y)
}

// Render returns the receipt of sub as a PDF document.
func (g *Generator) Render(sub submission.Submission) ([]byte, error) {
	if sub.ID == "" {
		return nil, ErrInvalidSubmission
	}

	pc := newPDFCanvas(Filename(sub.ID))
	if err := g.Draw(pc, sub); err != nil {
		return nil, err
	}
	return pc.bytes()
}

// Write renders the receipt of sub to w. Nothing is written if rendering
// fails.
func (g *Generator) Write(w io.Writer, sub submission.Submission) error {
	data, err := g.Render(sub)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// Save writes the receipt of sub into dir and returns its path. The file
// appears complete or not at all.
func (g *Generator) Save(dir string, sub submission.Submission) (string, error) {
	if err := checkID(sub.ID); err != nil {
		return "", err
	}
	data, err := g.Render(sub)
	if err != nil {
		return "", err
	}
	return SaveFile(dir, sub.ID, data)
}

// SaveFile writes an already rendered receipt for submission id into dir
// and returns its path. The file appears complete or not at all.
func SaveFile(dir, id string, data []byte) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, Filename(id))
	tmp, err := os.CreateTemp(dir, ".receipt-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to save receipt: %w", err)
	}
	return path, nil
}

// checkID rejects ids that cannot name a receipt file.
func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return ErrInvalidSubmission
	}
	return nil
}
