package extract

import (
	"strings"
	"unicode"

	"github.com/hurttlocker/docfill/internal/patterns"
)

// placeholderConfidence is assigned to variables declared by an explicit
// placeholder in the text.
const placeholderConfidence = 1.0

// ExtractDirect harvests variables from text without any external call:
// placeholders first, then the first match of every field pattern.
func ExtractDirect(text string) *VariableSet {
	set := NewVariableSet()
	if strings.TrimSpace(text) == "" {
		return set
	}
	harvestPlaceholders(set, text)

	for _, fp := range patterns.FieldPatterns() {
		value, ok := firstMatch(fp, text)
		if !ok {
			continue
		}
		v := newVariable(fp.Key, value, fp.Confidence, SourcePattern)
		if v.Type == patterns.TypeText && fp.Type != patterns.TypeText {
			v.Type = fp.Type
		}
		set.Put(v)
	}
	return set
}

func harvestPlaceholders(set *VariableSet, text string) {
	for _, p := range patterns.FindPlaceholders(text) {
		if _, exists := set.Get(p.Name); exists {
			continue
		}
		set.Put(newVariable(p.Name, "", placeholderConfidence, SourcePlaceholder))
	}
}

// firstMatch returns the cleaned first non-empty capture group of the first
// match of fp in text.
func firstMatch(fp patterns.FieldPattern, text string) (string, bool) {
	m := fp.Regex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	raw := m[0]
	for _, g := range m[1:] {
		if g != "" {
			raw = g
			break
		}
	}
	value := cleanValue(raw)
	return value, value != ""
}

// cleanValue trims leading and trailing non-word runes and collapses internal
// whitespace runs to a single space. A trailing currency sign and the leading
// "+" of an international number are kept.
func cleanValue(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return !isWordRune(r) && r != '€'
	})
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !isWordRune(r) && r != '+'
	})
	if rest := strings.TrimLeft(s, "+"); rest == "" || !unicode.IsDigit([]rune(rest)[0]) {
		s = strings.TrimLeftFunc(rest, func(r rune) bool { return !isWordRune(r) })
	} else {
		s = "+" + rest
	}
	s = strings.TrimLeft(s, "€")
	return strings.Join(strings.Fields(s), " ")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
