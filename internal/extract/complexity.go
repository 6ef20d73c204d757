package extract

import (
	"strings"
	"time"
	"unicode"
)

// Complexity gates analysis depth. It never blocks analysis.
type Complexity int

const (
	Simple Complexity = iota
	Medium
	Complex
)

func (c Complexity) String() string {
	switch c {
	case Simple:
		return "simple"
	case Medium:
		return "medium"
	default:
		return "complex"
	}
}

// ComplexityReport exposes the measurements behind an estimate.
type ComplexityReport struct {
	Level            Complexity
	Score            int
	Length           int
	SeparatorDensity float64 // |, ; and tab per character
	NumericDensity   float64 // share of tokens containing a digit
	SpecialDensity   float64 // share of non-alphanumeric, non-space runes
	DistinctWords    int
}

// Profile is the analysis budget selected for a complexity level.
type Profile struct {
	Timeout     time.Duration // per LLM call
	MaxSections int
}

// MaxCallTimeout caps every LLM call regardless of configuration.
const MaxCallTimeout = 10 * time.Second

var profiles = map[Complexity]Profile{
	Simple:  {Timeout: 4 * time.Second, MaxSections: 2},
	Medium:  {Timeout: 7 * time.Second, MaxSections: 2},
	Complex: {Timeout: MaxCallTimeout, MaxSections: 1},
}

// ProfileFor returns the budget for c.
func ProfileFor(c Complexity) Profile {
	return profiles[c]
}

// Thresholds. Each exceeded threshold adds to the score; the level is read
// off the total.
const (
	lengthMedium  = 1000
	lengthLarge   = 3000
	lengthHuge    = 10000
	separatorHigh = 0.02
	numericHigh   = 0.25
	specialHigh   = 0.08
	wordsMedium   = 300
	wordsHigh     = 800

	simpleMaxScore = 2
	mediumMaxScore = 5
)

// EstimateComplexity scores text and returns the full report.
func EstimateComplexity(text string) ComplexityReport {
	r := ComplexityReport{Length: len(text)}
	if text == "" {
		return r
	}

	runes := 0
	separators := 0
	special := 0
	for _, c := range text {
		runes++
		switch {
		case c == '|' || c == ';' || c == '\t':
			separators++
			special++
		case unicode.IsLetter(c) || unicode.IsDigit(c) || unicode.IsSpace(c):
		default:
			special++
		}
	}
	r.SeparatorDensity = float64(separators) / float64(runes)
	r.SpecialDensity = float64(special) / float64(runes)

	tokens := strings.Fields(text)
	numeric := 0
	distinct := make(map[string]struct{})
	for _, tok := range tokens {
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			numeric++
		}
		w := strings.ToLower(strings.TrimFunc(tok, func(c rune) bool { return !unicode.IsLetter(c) }))
		if w != "" {
			distinct[w] = struct{}{}
		}
	}
	if len(tokens) > 0 {
		r.NumericDensity = float64(numeric) / float64(len(tokens))
	}
	r.DistinctWords = len(distinct)

	score := 0
	switch {
	case r.Length > lengthHuge:
		score += 3
	case r.Length > lengthLarge:
		score += 2
	case r.Length > lengthMedium:
		score++
	}
	if r.SeparatorDensity > separatorHigh {
		score += 2
	}
	if r.NumericDensity > numericHigh {
		score++
	}
	if r.SpecialDensity > specialHigh {
		score++
	}
	switch {
	case r.DistinctWords > wordsHigh:
		score += 2
	case r.DistinctWords > wordsMedium:
		score++
	}
	r.Score = score

	switch {
	case score <= simpleMaxScore:
		r.Level = Simple
	case score <= mediumMaxScore:
		r.Level = Medium
	default:
		r.Level = Complex
	}
	return r
}

// Estimate returns only the complexity level of text.
func Estimate(text string) Complexity {
	return EstimateComplexity(text).Level
}
