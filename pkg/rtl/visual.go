package rtl

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/bidi"
)

// Direction is the base direction of a paragraph handed to the shaper.
type Direction int

const (
	// Auto takes the direction of the first strong character.
	Auto Direction = iota
	// RightToLeft forces a right-to-left paragraph.
	RightToLeft
	// LeftToRight forces a left-to-right paragraph.
	LeftToRight
)

func (d Direction) String() string {
	switch d {
	case RightToLeft:
		return "rtl"
	case LeftToRight:
		return "ltr"
	default:
		return "auto"
	}
}

// lrm pins a paragraph to left-to-right; bidi.DefaultDirection only
// forces right-to-left.
const lrm = "\u200e"

// mirrorPairs swaps the mirrored characters bidi.ReverseString leaves alone.
var mirrorPairs = strings.NewReplacer("<", ">", ">", "<", "«", "»", "»", "«")

func classOf(r rune) bidi.Class {
	p, _ := bidi.LookupRune(r)
	return p.Class()
}

// isRightToLeft resolves the paragraph direction of text. Auto takes the
// first strong character and defaults to left-to-right.
func isRightToLeft(text string, dir Direction) bool {
	switch dir {
	case RightToLeft:
		return true
	case LeftToRight:
		return false
	}
	for _, r := range text {
		switch classOf(r) {
		case bidi.L:
			return false
		case bidi.R, bidi.AL:
			return true
		}
	}
	return false
}

// visual converts a logical-order string into the order its glyphs must be
// drawn by a left-to-right renderer. Paragraph separators are kept in place
// and every paragraph shares the direction resolved for the whole text.
func visual(text string, dir Direction) (string, error) {
	if text == "" {
		return text, nil
	}
	rtl := isRightToLeft(text, dir)

	var b strings.Builder
	for text != "" {
		end, next := len(text), len(text)
		for i, r := range text {
			if classOf(r) == bidi.B {
				end, next = i, i+utf8.RuneLen(r)
				break
			}
		}

		line, err := reorder(text[:end], rtl)
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		b.WriteString(text[end:next])
		text = text[next:]
	}
	return b.String(), nil
}

// reorder lays out a single paragraph.
func reorder(text string, rtl bool) (string, error) {
	if text == "" {
		return "", nil
	}

	var p bidi.Paragraph
	var err error
	if rtl {
		_, err = p.SetString(text, bidi.DefaultDirection(bidi.RightToLeft))
	} else {
		_, err = p.SetString(lrm + text)
	}
	if err != nil {
		return "", err
	}
	order, err := p.Order()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if rtl {
		for i := order.NumRuns() - 1; i >= 0; i-- {
			run := order.Run(i)
			b.WriteString(drawRun(&run))
		}
		return b.String(), nil
	}

	// block collects a right-to-left stretch, numbers included, in logical order
	var block []string
	flush := func() {
		for i := len(block) - 1; i >= 0; i-- {
			b.WriteString(block[i])
		}
		block = block[:0]
	}
	for i := 0; i < order.NumRuns(); i++ {
		run := order.Run(i)
		if run.Direction() == bidi.RightToLeft {
			block = append(block, drawRun(&run))
			continue
		}
		s := run.String()
		if len(block) > 0 {
			// numbers after right-to-left text are embedded in it
			if n := numberPrefix(s); n > 0 {
				block = append(block, s[:n])
				s = s[n:]
			}
			if s == "" {
				continue
			}
		}
		flush()
		b.WriteString(s)
	}
	flush()
	return strings.TrimPrefix(b.String(), lrm), nil
}

func drawRun(run *bidi.Run) string {
	if run.Direction() != bidi.RightToLeft {
		return run.String()
	}
	return mirrorPairs.Replace(bidi.ReverseString(run.String()))
}

// numberPrefix returns the byte length of the number s starts with.
func numberPrefix(s string) int {
	end := 0
	for i, r := range s {
		switch classOf(r) {
		case bidi.EN, bidi.AN:
			end = i + utf8.RuneLen(r)
		case bidi.CS, bidi.ES, bidi.ET, bidi.NSM:
		default:
			return end
		}
	}
	return end
}
