package receipt

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Font families available on a canvas.
const (
	// FontArabic covers Arabic presentation forms as well as Latin.
	FontArabic = "dejavu"
	// FontLatin is the core PDF Helvetica font.
	FontLatin = "helvetica"
)

// Align is the horizontal anchor of a text draw.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

func (a Align) String() string {
	switch a {
	case AlignRight:
		return "right"
	case AlignCenter:
		return "center"
	default:
		return "left"
	}
}

// Color is an RGB color.
type Color struct {
	R, G, B int
}

// Receipt palette
var (
	Black      = Color{0, 0, 0}
	White      = Color{255, 255, 255}
	Grey       = Color{100, 100, 100}
	RuleGrey   = Color{200, 200, 200}
	HeaderBlue = Color{102, 126, 234}
)

// Style is the drawing context of a single text call.
type Style struct {
	Font  string
	Bold  bool
	Size  float64
	Color Color
}

// Canvas is the drawing surface a receipt is laid out on. All coordinates
// are millimetres from the top-left corner of the page; text y is the
// baseline.
type Canvas interface {
	Text(s Style, x, y float64, text string, align Align)
	Width(s Style, text string) float64
	FillRect(c Color, x, y, w, h float64)
	Line(c Color, width, x1, y1, x2, y2 float64)
}

//go:embed fonts/DejaVuSans.ttf
var dejaVuRegular []byte

//go:embed fonts/DejaVuSans-Bold.ttf
var dejaVuBold []byte

// pdfCanvas draws onto a single A4 gofpdf page.
type pdfCanvas struct {
	pdf   *gofpdf.Fpdf
	latin func(string) string
}

// Creator is recorded in the metadata of every receipt.
const Creator = "form-receipts"

func newPDFCanvas(title string) *pdfCanvas {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator(Creator, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddUTF8FontFromBytes(FontArabic, "", dejaVuRegular)
	pdf.AddUTF8FontFromBytes(FontArabic, "B", dejaVuBold)
	pdf.AddPage()

	return &pdfCanvas{
		pdf:   pdf,
		latin: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// use selects the font of s and returns text encoded for it.
func (c *pdfCanvas) use(s Style, text string) string {
	style := ""
	if s.Bold {
		style = "B"
	}
	c.pdf.SetFont(s.Font, style, s.Size)
	if s.Font == FontLatin {
		return c.latin(text)
	}
	return text
}

func (c *pdfCanvas) Text(s Style, x, y float64, text string, align Align) {
	text = c.use(s, text)
	switch align {
	case AlignRight:
		x -= c.pdf.GetStringWidth(text)
	case AlignCenter:
		x -= c.pdf.GetStringWidth(text) / 2
	}
	c.pdf.SetTextColor(s.Color.R, s.Color.G, s.Color.B)
	c.pdf.Text(x, y, text)
}

func (c *pdfCanvas) Width(s Style, text string) float64 {
	return c.pdf.GetStringWidth(c.use(s, text))
}

func (c *pdfCanvas) FillRect(col Color, x, y, w, h float64) {
	c.pdf.SetFillColor(col.R, col.G, col.B)
	c.pdf.Rect(x, y, w, h, "F")
}

func (c *pdfCanvas) Line(col Color, width, x1, y1, x2, y2 float64) {
	c.pdf.SetDrawColor(col.R, col.G, col.B)
	c.pdf.SetLineWidth(width)
	c.pdf.Line(x1, y1, x2, y2)
}

// bytes serializes the document. Any error recorded while drawing is
// returned instead.
func (c *pdfCanvas) bytes() ([]byte, error) {
	if err := c.pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to draw receipt: %w", err)
	}
	var buf bytes.Buffer
	if err := c.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PDF: %w", err)
	}
	return buf.Bytes(), nil
}
