package rtl

// forms holds the presentation forms of a joining letter. A zero entry
// means the letter has no such form (right-joining letters have no
// initial or medial form).
type forms struct {
	isolated, final, initial, medial rune
}

func (f forms) dual() bool {
	return f.initial != 0 && f.medial != 0
}

const (
	lam     = 'ل'
	tatweel = 'ـ'
)

var letterForms = map[rune]forms{
	'ء': {0xFE80, 0, 0, 0},
	'آ': {0xFE81, 0xFE82, 0, 0},
	'أ': {0xFE83, 0xFE84, 0, 0},
	'ؤ': {0xFE85, 0xFE86, 0, 0},
	'إ': {0xFE87, 0xFE88, 0, 0},
	'ئ': {0xFE89, 0xFE8A, 0xFE8B, 0xFE8C},
	'ا': {0xFE8D, 0xFE8E, 0, 0},
	'ب': {0xFE8F, 0xFE90, 0xFE91, 0xFE92},
	'ة': {0xFE93, 0xFE94, 0, 0},
	'ت': {0xFE95, 0xFE96, 0xFE97, 0xFE98},
	'ث': {0xFE99, 0xFE9A, 0xFE9B, 0xFE9C},
	'ج': {0xFE9D, 0xFE9E, 0xFE9F, 0xFEA0},
	'ح': {0xFEA1, 0xFEA2, 0xFEA3, 0xFEA4},
	'خ': {0xFEA5, 0xFEA6, 0xFEA7, 0xFEA8},
	'د': {0xFEA9, 0xFEAA, 0, 0},
	'ذ': {0xFEAB, 0xFEAC, 0, 0},
	'ر': {0xFEAD, 0xFEAE, 0, 0},
	'ز': {0xFEAF, 0xFEB0, 0, 0},
	'س': {0xFEB1, 0xFEB2, 0xFEB3, 0xFEB4},
	'ش': {0xFEB5, 0xFEB6, 0xFEB7, 0xFEB8},
	'ص': {0xFEB9, 0xFEBA, 0xFEBB, 0xFEBC},
	'ض': {0xFEBD, 0xFEBE, 0xFEBF, 0xFEC0},
	'ط': {0xFEC1, 0xFEC2, 0xFEC3, 0xFEC4},
	'ظ': {0xFEC5, 0xFEC6, 0xFEC7, 0xFEC8},
	'ع': {0xFEC9, 0xFECA, 0xFECB, 0xFECC},
	'غ': {0xFECD, 0xFECE, 0xFECF, 0xFED0},
	tatweel: {tatweel, tatweel, tatweel, tatweel},
	'ف': {0xFED1, 0xFED2, 0xFED3, 0xFED4},
	'ق': {0xFED5, 0xFED6, 0xFED7, 0xFED8},
	'ك': {0xFED9, 0xFEDA, 0xFEDB, 0xFEDC},
	lam: {0xFEDD, 0xFEDE, 0xFEDF, 0xFEE0},
	'م': {0xFEE1, 0xFEE2, 0xFEE3, 0xFEE4},
	'ن': {0xFEE5, 0xFEE6, 0xFEE7, 0xFEE8},
	'ه': {0xFEE9, 0xFEEA, 0xFEEB, 0xFEEC},
	'و': {0xFEED, 0xFEEE, 0, 0},
	'ى': {0xFEEF, 0xFEF0, 0, 0},
	'ي': {0xFEF1, 0xFEF2, 0xFEF3, 0xFEF4},
	// Persian letters (Presentation Forms-A)
	'پ': {0xFB56, 0xFB57, 0xFB58, 0xFB59},
	'چ': {0xFB7A, 0xFB7B, 0xFB7C, 0xFB7D},
	'ژ': {0xFB8A, 0xFB8B, 0, 0},
	'ک': {0xFB8E, 0xFB8F, 0xFB90, 0xFB91},
	'گ': {0xFB92, 0xFB93, 0xFB94, 0xFB95},
	'ی': {0xFBFC, 0xFBFD, 0xFBFE, 0xFBFF},
}

// lamAlef maps the alef variants to the isolated lam-alef ligature. The
// final form is the next code point.
var lamAlef = map[rune]rune{
	'آ': 0xFEF5,
	'أ': 0xFEF7,
	'إ': 0xFEF9,
	'ا': 0xFEFB,
}

// isTransparent reports whether r is a combining mark that does not break
// the joining of its neighbours (harakat, superscript alef).
func isTransparent(r rune) bool {
	return (r >= 0x064B && r <= 0x065F) || r == 0x0670 || (r >= 0x06D6 && r <= 0x06ED)
}

// neighbour returns the index of the closest non-transparent rune from i
// walking by step, or -1.
func neighbour(runes []rune, i, step int) int {
	for j := i + step; j >= 0 && j < len(runes); j += step {
		if !isTransparent(runes[j]) {
			return j
		}
	}
	return -1
}

// joinsForward reports whether the rune at i connects to the letter that
// follows it in logical order.
func joinsForward(runes []rune, i int) bool {
	if i < 0 {
		return false
	}
	f, ok := letterForms[runes[i]]
	return ok && f.dual()
}

// joinsBackward reports whether the rune at i connects to the letter that
// precedes it in logical order.
func joinsBackward(runes []rune, i int) bool {
	if i < 0 {
		return false
	}
	f, ok := letterForms[runes[i]]
	return ok && f.final != 0
}

// join replaces Arabic letters with their contextual presentation forms.
// The text stays in logical order.
func join(text string) string {
	runes := []rune(text)
	out := make([]rune, 0, len(runes))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		f, ok := letterForms[r]
		if !ok {
			out = append(out, r)
			continue
		}

		prev := neighbour(runes, i, -1)
		next := neighbour(runes, i, 1)
		fromPrev := joinsForward(runes, prev)

		if r == lam && next >= 0 {
			if lig, ok := lamAlef[runes[next]]; ok {
				if fromPrev {
					lig++
				}
				out = append(out, lig)
				// keep marks that sat between lam and alef
				out = append(out, runes[i+1:next]...)
				i = next
				continue
			}
		}

		toNext := f.dual() && joinsBackward(runes, next)

		var form rune
		switch {
		case fromPrev && toNext:
			form = f.medial
		case fromPrev:
			form = f.final
		case toNext:
			form = f.initial
		default:
			form = f.isolated
		}
		if form == 0 {
			form = f.isolated
		}
		out = append(out, form)
	}

	return string(out)
}
