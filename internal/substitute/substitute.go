// Package substitute fills template placeholders with values while keeping
// the rest of the text byte-for-byte intact.
package substitute

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hurttlocker/docfill/internal/extract"
	"github.com/hurttlocker/docfill/internal/patterns"
)

// MinFallbackLength is the rune count a sample value must exceed before the
// fallback pass will replace it literally. Shorter values misfire too often.
const MinFallbackLength = 3

// Result is the outcome of one substitution.
type Result struct {
	Text         string   `json:"text"`
	Unresolved   []string `json:"unresolved"`
	Replacements int      `json:"replacements"`
	UsedFallback bool     `json:"used_fallback"`
}

// Engine performs substitutions. It holds no per-call state.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger.Named("substitute")}
}

// Substitute replaces every placeholder of every supported syntax whose name
// matches a key of values, exactly first and then under lower, upper and
// title case variants of the key. Nil values become empty strings.
//
// When no placeholder matched but values are non-empty, a fallback pass
// replaces literal occurrences of the values themselves.
func (e *Engine) Substitute(template string, values map[string]any) Result {
	return e.Fill(template, values, nil)
}

// Fill is Substitute with explicit samples for the fallback pass: when no
// placeholder matched, each sample found literally in the template is
// replaced by the value of the same variable. A nil samples map uses the
// values themselves.
func (e *Engine) Fill(template string, values map[string]any, samples map[string]string) Result {
	strs := Stringify(values)

	text, n := replacePlaceholders(template, strs)
	res := Result{Text: text, Replacements: n}

	if text == template && hasNonEmpty(strs) {
		if samples == nil {
			samples = strs
		}
		if out, m := replaceSamples(template, strs, samples); m > 0 {
			res.Text = out
			res.Replacements += m
			res.UsedFallback = true
		}
	}

	res.Unresolved = Unresolved(res.Text)
	if len(res.Unresolved) > 0 {
		e.logger.Warn("unresolved placeholders after substitution",
			zap.Strings("placeholders", res.Unresolved),
			zap.Int("replacements", res.Replacements))
	}
	return res
}

// FillTyped is Fill after formatting each value by the type of its variable.
// Values without a matching variable are used as given, and an empty vars
// map leaves every value untouched.
func (e *Engine) FillTyped(template string, values map[string]any, samples map[string]string, vars map[string]extract.VariableDescriptor) Result {
	if len(vars) > 0 {
		values = FormatValues(values, vars)
	}
	return e.Fill(template, values, samples)
}

// FormatValues applies Format to every value whose name matches a variable,
// case-insensitively. The result holds strings only.
func FormatValues(values map[string]any, vars map[string]extract.VariableDescriptor) map[string]any {
	byKey := make(map[string]extract.VariableDescriptor, len(vars))
	for k, v := range vars {
		byKey[strings.ToLower(k)] = v
	}
	formatted := make(map[string]any, len(values))
	for name, raw := range values {
		s := stringify(raw)
		if v, ok := byKey[strings.ToLower(name)]; ok {
			s = Format(v.Type, s)
		}
		formatted[name] = s
	}
	return formatted
}

func replacePlaceholders(text string, values map[string]string) (string, int) {
	total := 0
	for _, name := range sortedKeys(values) {
		value := values[name]
		for _, variant := range nameVariants(name) {
			for _, d := range patterns.Delimiters() {
				token := d.Wrap(variant)
				if n := strings.Count(text, token); n > 0 {
					text = strings.ReplaceAll(text, token, value)
					total += n
				}
			}
		}
	}
	return text, total
}

// nameVariants returns name followed by its lower, upper, title and
// sentence case forms, without duplicates. Sentence case only differs from
// title case for names with inner spaces.
func nameVariants(name string) []string {
	return lo.Uniq([]string{
		name,
		strings.ToLower(name),
		strings.ToUpper(name),
		titleCase(name),
		sentenceCase(name),
	})
}

func sentenceCase(s string) string {
	s = strings.ToLower(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func titleCase(s string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Title(language.French).String(strings.ToLower(s))
}

// replaceSamples swaps every sample longer than MinFallbackLength for a
// marker, longest first, then swaps the markers for the new values.
func replaceSamples(template string, values, samples map[string]string) (string, int) {
	type pair struct {
		name, sample, marker string
	}
	var pairs []pair
	for name, sample := range samples {
		if _, ok := lookup(values, name); !ok || utf8.RuneCountInString(sample) <= MinFallbackLength {
			continue
		}
		pairs = append(pairs, pair{name: name, sample: sample})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i].sample) != len(pairs[j].sample) {
			return len(pairs[i].sample) > len(pairs[j].sample)
		}
		return pairs[i].name < pairs[j].name
	})

	text := template
	total := 0
	for i := range pairs {
		pairs[i].marker = fmt.Sprintf("\x00docfill:%d\x00", i)
		if n := strings.Count(text, pairs[i].sample); n > 0 {
			text = strings.ReplaceAll(text, pairs[i].sample, pairs[i].marker)
			total += n
		}
	}
	for _, p := range pairs {
		value, _ := lookup(values, p.name)
		text = strings.ReplaceAll(text, p.marker, value)
	}
	return text, total
}

// lookup finds name in values, exactly first and then case-insensitively.
func lookup(values map[string]string, name string) (string, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func hasNonEmpty(values map[string]string) bool {
	return lo.SomeBy(lo.Values(values), func(v string) bool { return v != "" })
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// Stringify converts a value map to strings: nil becomes "", numbers use
// their shortest form, times are rendered dd/mm/yyyy.
func Stringify(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format("02/01/2006")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Unresolved returns the distinct placeholder tokens left in text, in order
// of first appearance.
func Unresolved(text string) []string {
	tokens := lo.Map(patterns.FindPlaceholders(text), func(p patterns.Placeholder, _ int) string {
		return p.Token
	})
	return lo.Uniq(tokens)
}

// Placeholders lists every placeholder occurrence in text using the same
// delimiter table as substitution.
func Placeholders(text string) []patterns.Placeholder {
	return patterns.FindPlaceholders(text)
}
