package receipt

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// DefaultLocale is the locale receipts are dated in.
const DefaultLocale = "ar-DZ"

type dateFormat struct {
	months [12]string
	layout func(day int, month string, year int, clock string) string
}

var (
	maghrebMonths = [12]string{
		"جانفي", "فيفري", "مارس", "أفريل", "ماي", "جوان",
		"جويلية", "أوت", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
	}
	mashriqMonths = [12]string{
		"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
		"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
	}
	frenchMonths = [12]string{
		"janvier", "février", "mars", "avril", "mai", "juin",
		"juillet", "août", "septembre", "octobre", "novembre", "décembre",
	}
)

func arabicLayout(day int, month string, year int, clock string) string {
	return fmt.Sprintf("%d %s %d، %s", day, month, year, clock)
}

// supported and formats are parallel; the first entry is the fallback.
var (
	supported = []language.Tag{
		language.MustParse("ar-DZ"),
		language.Arabic,
		language.French,
		language.English,
	}
	formats = []dateFormat{
		{months: maghrebMonths, layout: arabicLayout},
		{months: mashriqMonths, layout: arabicLayout},
		{months: frenchMonths, layout: func(day int, month string, year int, clock string) string {
			return fmt.Sprintf("%d %s %d à %s", day, month, year, clock)
		}},
		{layout: func(day int, month string, year int, clock string) string {
			return fmt.Sprintf("%s %d, %d at %s", month, day, year, clock)
		}},
	}
	matcher = language.NewMatcher(supported)
)

// FormatDate renders t as day, long month name, year and 24-hour time in
// the closest supported locale. A nil loc means UTC.
func FormatDate(t time.Time, locale string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	f := formats[matchLocale(locale)]
	month := t.Month().String()
	if f.months[0] != "" {
		month = f.months[t.Month()-1]
	}
	return f.layout(t.Day(), month, t.Year(), t.Format("15:04"))
}

func matchLocale(locale string) int {
	if locale == "" {
		return 0
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return 0
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return 0
	}
	return idx
}
