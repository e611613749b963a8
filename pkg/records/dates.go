package records

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// parseDate accepts the date spellings found in record fields: ISO dates,
// "Jan 2, 2006", "2006/01/02", unix seconds and the like.
func parseDate(s string) (time.Time, bool) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"es":    monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"nl":    monday.LocaleNlNL,
	"pt":    monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"ru":    monday.LocaleRuRU,
	"ja":    monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
}

func mondayLocale(locale string) monday.Locale {
	locale = strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
	if l, ok := mondayLocales[locale]; ok {
		return l
	}
	if base, _, found := strings.Cut(locale, "_"); found {
		if l, ok := mondayLocales[base]; ok {
			return l
		}
	}
	return monday.LocaleEnUS
}

// dateLayouts maps style names to Go layouts.
var dateLayouts = map[string]string{
	"short":  "02/01/2006",
	"medium": "2 Jan 2006",
	"long":   "2 January 2006",
	"full":   "Monday, 2 January 2006",
	"iso":    "2006-01-02",
}

// formatDate renders t in a named style or a Go layout, with month and day
// names in locale.
func formatDate(t time.Time, style, locale string) string {
	layout := style
	if l, ok := dateLayouts[strings.ToLower(style)]; ok {
		layout = l
	}
	return monday.Format(t, layout, mondayLocale(locale))
}

// formatNumber groups digits the way locale does.
func formatNumber(f float64, locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprint(number.Decimal(f))
}
