package product

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameChars bounds the display length of a product name.
const MaxNameChars = 50

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// htmlEntityReplacer un-escapes the entities the provider is known to leak
// into product names.
var htmlEntityReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

// translation maps an English food keyword to its canonical localized name.
// Checked by substring match in order, so more specific keywords must come
// before their generic prefixes ("chicken breast" before "chicken",
// "eggplant" before "egg").
type translation struct {
	keyword string
	name    string
}

var translations = []translation{
	{"chicken breast", "Куриная грудка"},
	{"chicken fillet", "Куриное филе"},
	{"chicken", "Курица"},
	{"ground beef", "Говяжий фарш"},
	{"beef", "Говядина"},
	{"pork", "Свинина"},
	{"turkey", "Индейка"},
	{"salmon", "Лосось"},
	{"tuna", "Тунец"},
	{"cottage cheese", "Творог"},
	{"cheese", "Сыр"},
	{"eggplant", "Баклажан"},
	{"egg", "Яйцо"},
	{"oatmeal", "Овсянка"},
	{"oat", "Овсянка"},
	{"buckwheat", "Гречка"},
	{"rice", "Рис"},
	{"pasta", "Макароны"},
	{"bread", "Хлеб"},
	{"potato", "Картофель"},
	{"banana", "Банан"},
	{"apple", "Яблоко"},
	{"yoghurt", "Йогурт"},
	{"yogurt", "Йогурт"},
	{"milk", "Молоко"},
}

// NormalizeKey normalizes a string for use as a cache or comparison key:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
// 3. Collapse internal whitespace to single spaces
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// CleanName turns a raw provider product name into a canonical display name.
// Returns "" for input that cleans down to nothing; the caller discards such
// candidates.
//
// Names that already contain Cyrillic are assumed localized and only get
// their first letter capitalized. Otherwise a keyword translation table maps
// known English food terms to canonical localized names, falling back to the
// cleaned original.
func CleanName(raw string) string {
	s := htmlEntityReplacer.Replace(raw)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = truncateRunes(s, MaxNameChars)
	if s == "" {
		return ""
	}

	if containsCyrillic(s) {
		return capitalizeFirst(s)
	}

	lower := strings.ToLower(s)
	for _, tr := range translations {
		if strings.Contains(lower, tr.keyword) {
			return tr.name
		}
	}

	return capitalizeFirst(s)
}

// containsCyrillic reports whether s has at least one Cyrillic rune.
func containsCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// capitalizeFirst upper-cases the first letter, leaving the rest untouched.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return s
	}
	return string(upper) + s[size:]
}

// truncateRunes cuts s to at most n runes without splitting multi-byte
// characters, then trims any trailing space left by the cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
