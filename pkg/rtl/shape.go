// Package rtl classifies Arabic/Latin text and shapes Arabic text for
// renderers that can only draw pre-shaped, left-to-right glyph runs.
package rtl

import (
	"errors"
	"fmt"
	"log"
	"unicode/utf8"
)

// Placeholder replaces missing text.
const Placeholder = "N/A"

// ErrMalformed is returned by Shape for text that is not valid UTF-8.
var ErrMalformed = errors.New("rtl: text is not valid UTF-8")

// Shape joins Arabic letters into their contextual presentation forms and
// reorders the result into visual order for a paragraph of direction dir.
// On failure the original text is returned together with the error.
func Shape(text string, dir Direction) (shaped string, err error) {
	if !utf8.ValidString(text) {
		return text, ErrMalformed
	}

	defer func() {
		if r := recover(); r != nil {
			shaped = text
			err = fmt.Errorf("rtl: shaping %q: %v", text, r)
		}
	}()

	shaped, err = visual(join(text), dir)
	if err != nil {
		return text, fmt.Errorf("rtl: reordering %q: %w", text, err)
	}
	return shaped, nil
}

// Prepare returns text ready to be drawn. Empty text becomes Placeholder,
// text without Arabic characters is returned as is, and anything else is
// shaped with base direction dir. Shaping errors are logged and the
// unshaped text is returned.
func Prepare(text string, dir Direction) string {
	if text == "" {
		return Placeholder
	}
	if !ContainsRTL(text) {
		return text
	}

	shaped, err := Shape(text, dir)
	if err != nil {
		log.Printf("⚠️  Arabic shaping failed: %v", err)
		return text
	}
	return shaped
}

// PrepareLines wraps text with wrap and prepares every resulting line.
// Letters are joined before wrapping so line widths match the drawn glyphs,
// and each line is reordered on its own so lines keep their reading order.
func PrepareLines(text string, dir Direction, wrap func(string) []string) []string {
	if text == "" {
		text = Placeholder
	}
	if !ContainsRTL(text) {
		return wrap(text)
	}

	lines, err := shapeLines(text, dir, wrap)
	if err != nil {
		log.Printf("⚠️  Arabic shaping failed: %v", err)
		return wrap(text)
	}
	return lines
}

func shapeLines(text string, dir Direction, wrap func(string) []string) (lines []string, err error) {
	if !utf8.ValidString(text) {
		return nil, ErrMalformed
	}

	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("rtl: shaping %q: %v", text, r)
		}
	}()

	if dir == Auto {
		// resolve once so every line shares the paragraph direction
		dir = LeftToRight
		if isRightToLeft(text, Auto) {
			dir = RightToLeft
		}
	}

	wrapped := wrap(join(text))
	lines = make([]string, len(wrapped))
	for i, line := range wrapped {
		if lines[i], err = visual(line, dir); err != nil {
			return nil, fmt.Errorf("rtl: reordering %q: %w", line, err)
		}
	}
	return lines, nil
}
