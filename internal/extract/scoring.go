package extract

import (
	"regexp"
	"strings"

	"github.com/hurttlocker/docfill/internal/patterns"
)

// scoredPattern is one candidate rule of the scoring extractor. Rules for the
// same key are listed most specific first.
type scoredPattern struct {
	key        string
	regex      *regexp.Regexp
	base       float64
	keywords   []string // raise confidence when found just before the match
	wellFormed func(value string) bool
}

// contextWindow is how many bytes before a match are searched for keywords.
const contextWindow = 60

const (
	keywordBonus    = 0.15
	wellFormedBonus = 0.1
	stopwordPenalty = 0.2
)

var (
	nameKeywords   = []string{"client", "entre", "soussign", "destinataire", "signataire", "nom", "locataire", "salari"}
	amountKeywords = []string{"total", "montant", "prix", "somme", "payer", "régler", "net", "ttc"}
)

// nameStopwords are capitalized words that open sentences or headings and are
// never part of a person's name.
var nameStopwords = map[string]bool{
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"article": true, "contrat": true, "facture": true, "date": true, "objet": true,
	"madame": true, "monsieur": true, "total": true, "montant": true, "page": true,
	"annexe": true, "section": true, "chapitre": true, "partie": true, "fait": true,
}

var scoredPatterns = []scoredPattern{
	{
		key:        "nom",
		regex:      regexp.MustCompile(`\b(?:M\.|Mme\.?|Mlle\.?|Monsieur|Madame|Ma[iî]tre)[ \t]+(\p{Lu}[\p{L}'\-]+(?:[ \t]+\p{Lu}[\p{L}'\-]+){0,3})`),
		base:       0.9,
		keywords:   nameKeywords,
		wellFormed: isMultiWordName,
	},
	{
		key:        "nom",
		regex:      regexp.MustCompile(`(?i:nom(?:\s+complet)?|client|destinataire)\s*:\s*(\p{Lu}[\p{L}'\-]+(?:[ \t]+\p{Lu}[\p{L}'\-]+){0,3})`),
		base:       0.7,
		keywords:   nameKeywords,
		wellFormed: isMultiWordName,
	},
	{
		key:        "nom",
		regex:      regexp.MustCompile(`\b(\p{Lu}[\p{Ll}'\-]+[ \t]+\p{Lu}[\p{L}'\-]+)\b`),
		base:       0.4,
		keywords:   nameKeywords,
		wellFormed: isMultiWordName,
	},
	{
		key:        "montant",
		regex:      regexp.MustCompile(`(?i:total|montant|prix|somme)[^\n\d]{0,30}(\d{1,3}(?:[ .\x{00A0}\x{202F}]\d{3})*(?:,\d{1,2})?)[ \x{00A0}]?(?:€|(?i:eur(?:os?)?\b))`),
		base:       0.9,
		keywords:   amountKeywords,
		wellFormed: hasCents,
	},
	{
		key:        "montant",
		regex:      regexp.MustCompile(`\b(\d{1,3}(?:[ .\x{00A0}\x{202F}]\d{3})*(?:,\d{1,2})?)[ \x{00A0}]?€`),
		base:       0.75,
		keywords:   amountKeywords,
		wellFormed: hasCents,
	},
	{
		key:        "montant",
		regex:      regexp.MustCompile(`\b(\d+(?:[.,]\d{2}))\b`),
		base:       0.4,
		keywords:   amountKeywords,
		wellFormed: hasCents,
	},
}

var centsRE = regexp.MustCompile(`,\d{2}$`)

func hasCents(v string) bool {
	return centsRE.MatchString(v)
}

func isMultiWordName(v string) bool {
	return len(strings.Fields(v)) >= 2
}

// Candidate is one scored match, kept for diagnostics.
type Candidate struct {
	Key        string
	Value      string
	Confidence float64
	Offset     int
}

// ScoreCandidates runs every scoring rule and returns the adjusted candidates
// in rule order. Each rule contributes its first match only.
func ScoreCandidates(text string) []Candidate {
	var out []Candidate
	for _, sp := range scoredPatterns {
		loc := sp.regex.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		start, end := loc[0], loc[1]
		if len(loc) >= 4 && loc[2] >= 0 {
			start, end = loc[2], loc[3]
		}
		value := cleanValue(text[start:end])
		if value == "" {
			continue
		}
		out = append(out, Candidate{
			Key:        sp.key,
			Value:      value,
			Confidence: adjust(sp, text, loc[0], value),
			Offset:     loc[0],
		})
	}
	return out
}

func adjust(sp scoredPattern, text string, matchStart int, value string) float64 {
	score := sp.base

	from := matchStart - contextWindow
	if from < 0 {
		from = 0
	}
	before := strings.ToLower(text[from:matchStart])
	for _, kw := range sp.keywords {
		if strings.Contains(before, kw) {
			score += keywordBonus
			break
		}
	}

	if sp.wellFormed != nil && sp.wellFormed(value) {
		score += wellFormedBonus
	}

	if sp.key == "nom" {
		first := strings.ToLower(strings.Fields(value)[0])
		if nameStopwords[first] {
			score -= stopwordPenalty
		}
	}
	return clamp01(score)
}

// ExtractWithScoring is the higher-precision variant of ExtractDirect. It
// starts from the direct extraction and lets scored candidates replace
// direct matches whose confidence they meet or beat.
func ExtractWithScoring(text string) *VariableSet {
	set := ExtractDirect(text)
	for _, c := range ScoreCandidates(text) {
		v := newVariable(c.Key, c.Value, c.Confidence, SourceScoring)
		if c.Key == "montant" {
			v.Type = patterns.TypeAmount
		}
		if existing, ok := set.Get(c.Key); ok && existing.Source == SourcePlaceholder {
			continue
		}
		set.Put(v)
	}
	return set
}
