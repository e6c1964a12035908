package receipt

import (
	"github.com/atomicdeploy/form-receipts/pkg/rtl"
)

// Layout constants shared by the renderers, in millimetres.
const (
	RightMargin = 190.0
	LineHeight  = 7.0

	valueIndent   = 40.0
	valueDrop     = 8.0
	stackedHeight = 20.0
	inlineHeight  = 12.0
	fieldSize     = 12.0
)

// Renderer draws labelled fields and paragraphs on a canvas.
type Renderer struct {
	c     Canvas
	color Color
}

// NewRenderer returns a renderer drawing black text on c.
func NewRenderer(c Canvas) *Renderer {
	return &Renderer{c: c, color: Black}
}

func (r *Renderer) style(font string, bold bool) Style {
	return Style{Font: font, Bold: bold, Size: fieldSize, Color: r.color}
}

// Field draws label and value starting at row y and returns the vertical
// space used.
//
// An Arabic label is right-aligned at the right margin, any other label is
// drawn at x. A purely Arabic value always goes under the label, right
// aligned. Other values follow the label: under it when the label is
// Arabic, otherwise on the same row at x+40.
func (r *Renderer) Field(label, value string, x, y float64) float64 {
	if value == "" {
		value = rtl.Placeholder
	}

	labelRTL := rtl.ContainsRTL(label)
	if labelRTL {
		r.c.Text(r.style(FontArabic, true), RightMargin, y, rtl.Prepare(label, rtl.RightToLeft), AlignRight)
	} else {
		r.c.Text(r.style(FontLatin, true), x, y, label, AlignLeft)
	}

	var (
		text  string
		style Style
	)
	switch rtl.Classify(value) {
	case rtl.PureRTL:
		r.c.Text(r.style(FontArabic, false), RightMargin, y+valueDrop, rtl.Prepare(value, rtl.RightToLeft), AlignRight)
		return stackedHeight
	case rtl.Mixed:
		text, style = rtl.Prepare(value, rtl.Auto), r.style(FontArabic, false)
	default:
		text, style = value, r.style(FontLatin, false)
	}

	if labelRTL {
		r.c.Text(style, RightMargin, y+valueDrop, text, AlignRight)
		return stackedHeight
	}
	r.c.Text(style, x+valueIndent, y, text, AlignLeft)
	return inlineHeight
}
