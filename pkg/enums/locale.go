package enums

import "strings"

// Locale selects labels and number formatting for rendered documents.
type Locale string

const (
	LocaleGreek   Locale = "el"
	LocaleEnglish Locale = "en"

	DefaultLocale = LocaleGreek
)

func (l Locale) IsValid() bool {
	return l == LocaleGreek || l == LocaleEnglish
}

// ParseLocale accepts tags such as "en-US" and falls back to the default locale.
func ParseLocale(value string) Locale {
	v := strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexAny(v, "-_"); i > 0 {
		v = v[:i]
	}
	if l := Locale(v); l.IsValid() {
		return l
	}
	return DefaultLocale
}
