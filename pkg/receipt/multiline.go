package receipt

import (
	"strings"
	"unicode/utf8"

	"github.com/atomicdeploy/form-receipts/pkg/rtl"
)

// Multiline word-wraps text to maxWidth and draws one line every
// LineHeight, starting at row y. Purely Arabic paragraphs are right-aligned
// at the right margin, everything else starts at x. It returns the height
// of the drawn lines.
func (r *Renderer) Multiline(text string, x, y, maxWidth float64) float64 {
	if text == "" {
		text = rtl.Placeholder
	}

	var (
		lines []string
		style Style
		xPos  = x
		align = AlignLeft
	)
	switch rtl.Classify(text) {
	case rtl.PureRTL:
		style = r.style(FontArabic, false)
		lines = rtl.PrepareLines(text, rtl.RightToLeft, r.wrapper(style, maxWidth))
		xPos, align = RightMargin, AlignRight
	case rtl.Mixed:
		style = r.style(FontArabic, false)
		lines = rtl.PrepareLines(text, rtl.Auto, r.wrapper(style, maxWidth))
	default:
		style = r.style(FontLatin, false)
		lines = Wrap(r.c, style, text, maxWidth)
	}

	for i, line := range lines {
		r.c.Text(style, xPos, y+float64(i)*LineHeight, line, align)
	}
	return float64(len(lines)) * LineHeight
}

func (r *Renderer) wrapper(s Style, maxWidth float64) func(string) []string {
	return func(text string) []string {
		return Wrap(r.c, s, text, maxWidth)
	}
}

// Wrap splits text into lines no wider than maxWidth as measured on c.
// Words are kept whole unless a single word is wider than maxWidth, and
// explicit newlines always start a new line.
func Wrap(c Canvas, s Style, text string, maxWidth float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if c.Width(s, candidate) <= maxWidth {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			line = word
			for utf8.RuneCountInString(line) > 1 && c.Width(s, line) > maxWidth {
				head, tail := breakWord(c, s, line, maxWidth)
				lines = append(lines, head)
				line = tail
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// breakWord cuts the longest prefix of word that fits maxWidth. At least one
// rune is always taken.
func breakWord(c Canvas, s Style, word string, maxWidth float64) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && c.Width(s, string(runes[:n+1])) <= maxWidth {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}
