package rtl

import (
	"strings"
	"unicode"
)

// Script is the classification of a string by the scripts it contains.
// It is computed once per string and handed to the layout code so the
// same text is never classified twice.
type Script int

const (
	// PureLatin text carries no Arabic characters at all.
	PureLatin Script = iota
	// Mixed text carries Arabic characters next to other letters or digits.
	Mixed
	// PureRTL text is made only of Arabic characters, ignoring whitespace
	// and the punctuation listed in ignoredPunctuation.
	PureRTL
)

func (s Script) String() string {
	switch s {
	case PureRTL:
		return "pure-rtl"
	case Mixed:
		return "mixed"
	default:
		return "pure-latin"
	}
}

// ContainsRTL reports whether the classified text has any Arabic characters.
func (s Script) ContainsRTL() bool {
	return s != PureLatin
}

// IsPureRTL reports whether the classified text is Arabic only.
func (s Script) IsPureRTL() bool {
	return s == PureRTL
}

// ignoredPunctuation is skipped by IsPureRTL together with whitespace:
// comma, semicolon, question mark (Latin and Arabic forms), tatweel,
// period, exclamation mark, colon and parentheses.
const ignoredPunctuation = ",;?،؛؟ـ.!:()"

// isArabic returns true if the rune is in the Arabic block
func isArabic(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

// ContainsRTL reports whether text has at least one character of the
// Arabic block (U+0600 to U+06FF). The empty string yields false.
func ContainsRTL(text string) bool {
	for _, r := range text {
		if isArabic(r) {
			return true
		}
	}
	return false
}

// IsPureRTL reports whether text, once whitespace and ignoredPunctuation are
// removed, is non-empty and made only of Arabic block characters.
func IsPureRTL(text string) bool {
	seen := false
	for _, r := range text {
		if unicode.IsSpace(r) || strings.ContainsRune(ignoredPunctuation, r) {
			continue
		}
		if !isArabic(r) {
			return false
		}
		seen = true
	}
	return seen
}

// Classify returns the Script of text.
func Classify(text string) Script {
	switch {
	case IsPureRTL(text):
		return PureRTL
	case ContainsRTL(text):
		return Mixed
	default:
		return PureLatin
	}
}
