package patterns

import (
	"regexp"
	"strings"
)

// Delimiter is one placeholder bracketing convention, e.g. {{x}}. Spaced
// syntaxes accept names with inner spaces, e.g. {Nom du client}.
type Delimiter struct {
	Open   string
	Close  string
	Spaced bool
}

// Wrap builds the exact placeholder string for name.
func (d Delimiter) Wrap(name string) string {
	return d.Open + name + d.Close
}

// delimiters is ordered most-specific first. Literal replacement walks this
// list in order, so {{x}} must be consumed before {x} and ${x} before {x},
// otherwise the shorter form would leave stray brackets behind.
//
// Single [ ], < >, $ and % stay unspaced: prose uses them around ordinary
// words ("[voir annexe]", "50 % de remise et 20 %").
var delimiters = []Delimiter{
	{Open: "{{", Close: "}}", Spaced: true},
	{Open: "${", Close: "}", Spaced: true},
	{Open: "[[", Close: "]]", Spaced: true},
	{Open: "<<", Close: ">>", Spaced: true},
	{Open: "«", Close: "»", Spaced: true},
	{Open: "{", Close: "}", Spaced: true},
	{Open: "[", Close: "]"},
	{Open: "<", Close: ">"},
	{Open: "$", Close: "$"},
	{Open: "%", Close: "%"},
}

// Delimiters returns the supported placeholder syntaxes, most specific first.
func Delimiters() []Delimiter {
	out := make([]Delimiter, len(delimiters))
	copy(out, delimiters)
	return out
}

// NamePattern matches a variable identifier. Names start with a letter or
// underscore and never contain whitespace.
const NamePattern = `[\p{L}_][\p{L}\p{N}_.\-]*`

// SpacedNamePattern is NamePattern plus words joined by single spaces, as
// accepted inside spaced delimiters. Leading, trailing and doubled spaces
// never match.
const SpacedNamePattern = NamePattern + `(?: [\p{L}\p{N}_.\-]+)*`

// placeholderRE is one alternation built from delimiters. Go's regexp picks
// the first matching alternative at the leftmost position, which keeps
// "{{x}}" from being reported as "{x}".
var placeholderRE = buildPlaceholderRE()

func buildPlaceholderRE() *regexp.Regexp {
	alts := make([]string, 0, len(delimiters))
	for _, d := range delimiters {
		name := NamePattern
		if d.Spaced {
			name = SpacedNamePattern
		}
		alts = append(alts, regexp.QuoteMeta(d.Open)+"("+name+")"+regexp.QuoteMeta(d.Close))
	}
	return regexp.MustCompile(strings.Join(alts, "|"))
}

// Placeholder is one placeholder occurrence found in a text.
type Placeholder struct {
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	Delimiter Delimiter `json:"-"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
}

// FindPlaceholders scans text for placeholder-shaped tokens across every
// supported syntax, in order of appearance.
func FindPlaceholders(text string) []Placeholder {
	matches := placeholderRE.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		// m[0:2] is the whole match; group i lives at m[2+2i : 4+2i].
		for i, d := range delimiters {
			s, e := m[2+2*i], m[3+2*i]
			if s < 0 {
				continue
			}
			out = append(out, Placeholder{
				Token:     text[m[0]:m[1]],
				Name:      text[s:e],
				Delimiter: d,
				Start:     m[0],
				End:       m[1],
			})
			break
		}
	}
	return out
}

// HasPlaceholders reports whether text contains at least one placeholder.
func HasPlaceholders(text string) bool {
	return placeholderRE.MatchString(text)
}
