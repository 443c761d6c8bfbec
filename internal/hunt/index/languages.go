package index

import "strings"

type Language string

const (
	LangDE Language = "de"
	LangEN Language = "en"
	LangES Language = "es"
	LangFR Language = "fr"
	LangIT Language = "it"
	LangPT Language = "pt"
)

// Languages is the ordered set of supported display languages.
// NameRecord storage is laid out in this order; extend the set by appending here.
var Languages = []Language{LangDE, LangEN, LangES, LangFR, LangIT, LangPT}

const DefaultLanguage = LangEN

var langSlots = func() map[Language]int {
	m := make(map[Language]int, len(Languages))
	for i, l := range Languages {
		m[l] = i
	}
	return m
}()

func languageSlot(l Language) (int, bool) {
	i, ok := langSlots[l]
	return i, ok
}

// ParseLanguage normalizes a language code and reports whether it is supported.
func ParseLanguage(code string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(code)))
	_, ok := langSlots[l]
	return l, ok
}

func LanguageCodes() []string {
	out := make([]string, 0, len(Languages))
	for _, l := range Languages {
		out = append(out, string(l))
	}
	return out
}
