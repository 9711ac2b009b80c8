package ingest

import (
	"strings"

	"vahan/internal/core"
)

// categorySynonyms maps the spellings seen in portal exports to the
// canonical wheeler codes.
var categorySynonyms = map[string]string{
	"TWO WHEELER":   core.CategoryTwoWheeler,
	"2 WHEELER":     core.CategoryTwoWheeler,
	"THREE WHEELER": core.CategoryThreeWheeler,
	"3 WHEELER":     core.CategoryThreeWheeler,
	"FOUR WHEELER":  core.CategoryFourWheeler,
	"4 WHEELER":     core.CategoryFourWheeler,
}

// manufacturerAliases maps shorthand or legacy names to the canonical
// manufacturer name used across the dashboard.
var manufacturerAliases = map[string]string{
	"Hero":                  "Hero MotoCorp",
	"Bajaj":                 "Bajaj Auto",
	"Tata":                  "Tata Motors",
	"Mahindra":              "Mahindra & Mahindra",
	"Mahindra And Mahindra": "Mahindra & Mahindra",
}

// NormalizeHeader canonicalizes a column header: trimmed, lower case,
// spaces collapsed to underscores.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(strings.Join(strings.Fields(s), " "), " ", "_")
}

// NormalizeCategory upper-cases a category and resolves wheeler synonyms.
func NormalizeCategory(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if canonical, ok := categorySynonyms[s]; ok {
		return canonical
	}
	return s
}

// NormalizeManufacturer title-cases a manufacturer and resolves aliases.
func NormalizeManufacturer(s string) string {
	s = titleCase(strings.TrimSpace(s))
	if canonical, ok := manufacturerAliases[s]; ok {
		return canonical
	}
	return s
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// scrubNumeric strips everything but digits and the decimal point, so
// counts like "1,234" or "12 456" survive coercion.
func scrubNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
