package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hurttlocker/docfill/internal/llm"
	"github.com/hurttlocker/docfill/internal/patterns"
)

const (
	// MaxSectionChars bounds the section text placed in a prompt.
	MaxSectionChars = 1000
	// DefaultRetryDelay is the fixed pause before the single retry.
	DefaultRetryDelay = time.Second
	// DefaultMaxRetries is the number of retries after the first call.
	DefaultMaxRetries = 1

	llmConfidence = 0.6
	maxKeyLength  = 40
)

// DefaultLLMOptions are the completion options used for section analysis.
var DefaultLLMOptions = llm.CompletionOpts{
	Temperature: 0.1,
	NumPredict:  300,
	TopP:        0.9,
	Stop:        []string{"\n\n\n"},
}

const promptTemplate = `Analyse le texte suivant et identifie les informations variables qu'il contient (noms, dates, montants, adresses, références, coordonnées).

Réponds uniquement avec une ligne par variable, au format :
NOM_VARIABLE: valeur

N'utilise pas de JSON. N'ajoute aucune explication.

Texte :
"""
%s
"""
`

// BuildPrompt returns the line-oriented extraction prompt for section,
// truncated to MaxSectionChars runes.
func BuildPrompt(section string) string {
	return fmt.Sprintf(promptTemplate, truncateRunes(strings.TrimSpace(section), MaxSectionChars))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// KeyValue is one parsed response line.
type KeyValue struct {
	Key   string
	Value string
}

var (
	listPrefixRE = regexp.MustCompile(`^(?:[-*•>]+|\d+[.)])\s*`)
	keyRE        = regexp.MustCompile(`^` + patterns.NamePattern + `$`)
)

// junkValues are answers models give for fields they could not find.
var junkValues = map[string]bool{
	"-": true, "n/a": true, "na": true, "none": true, "null": true, "aucun": true,
	"aucune": true, "inconnu": true, "inconnue": true, "non spécifié": true,
	"non specifie": true, "non précisé": true, "non renseigné": true, "?": true,
}

// ParseKeyValueResponse parses one "KEY: value" pair per line, splitting on
// the first colon. Keys are lower-cased with spaces folded to underscores.
// Lines without both a usable key and a value are dropped.
func ParseKeyValueResponse(resp string) []KeyValue {
	var out []KeyValue
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		k := cleanKey(line[:idx])
		v := cleanResponseValue(line[idx+1:])
		if k == "" || v == "" || junkValues[strings.ToLower(v)] {
			continue
		}
		out = append(out, KeyValue{Key: k, Value: v})
	}
	return out
}

func cleanKey(raw string) string {
	k := strings.TrimSpace(raw)
	k = listPrefixRE.ReplaceAllString(k, "")
	k = strings.Trim(k, "*`\"' ")
	k = strings.ToLower(strings.Join(strings.Fields(k), "_"))
	k = strings.ReplaceAll(k, "-", "_")
	if len(k) > maxKeyLength || !keyRE.MatchString(k) {
		return ""
	}
	return k
}

func cleanResponseValue(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.Trim(v, "*`\"'«» ")
	v = strings.TrimSuffix(v, ",")
	return strings.Join(strings.Fields(v), " ")
}

// SectionAnalyzer asks an LLM provider for the variables of one section and
// degrades to ExtractDirect whenever the provider fails or answers nothing.
type SectionAnalyzer struct {
	provider   llm.Provider
	opts       llm.CompletionOpts
	timeout    time.Duration
	retryDelay time.Duration
	maxRetries int
	logger     *zap.Logger
}

// NewSectionAnalyzer creates an analyzer. A nil provider is allowed: every
// call then goes straight to the deterministic fallback.
func NewSectionAnalyzer(provider llm.Provider, opts llm.CompletionOpts, timeout time.Duration, logger *zap.Logger) *SectionAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 || timeout > MaxCallTimeout {
		timeout = MaxCallTimeout
	}
	return &SectionAnalyzer{
		provider:   provider,
		opts:       opts,
		timeout:    timeout,
		retryDelay: DefaultRetryDelay,
		maxRetries: DefaultMaxRetries,
		logger:     logger,
	}
}

// SectionAnalysis is the outcome of one AnalyzeSection call.
type SectionAnalysis struct {
	Vars     *VariableSet
	Calls    int
	Fallback bool
	Err      error // last provider error, diagnostic only
}

// AnalyzeSection extracts variables from section. Provider errors are
// absorbed here and never returned.
func (a *SectionAnalyzer) AnalyzeSection(ctx context.Context, section string, level Complexity) SectionAnalysis {
	out := SectionAnalysis{}
	if a.provider != nil {
		resp, calls, err := a.complete(ctx, BuildPrompt(section), a.callTimeout(level))
		out.Calls = calls
		out.Err = err
		if err == nil {
			set := NewVariableSet()
			for _, kv := range ParseKeyValueResponse(resp) {
				set.Put(newVariable(kv.Key, kv.Value, llmConfidence, SourceLLM))
			}
			if set.Len() > 0 {
				out.Vars = set
				return out
			}
			a.logger.Warn("llm returned no variables, using direct extraction",
				zap.String("provider", a.provider.Name()))
		} else {
			a.logger.Warn("llm call failed, using direct extraction",
				zap.String("provider", a.provider.Name()),
				zap.Int("calls", calls),
				zap.Error(err))
		}
	}
	out.Vars = ExtractDirect(section)
	out.Fallback = true
	return out
}

func (a *SectionAnalyzer) callTimeout(level Complexity) time.Duration {
	t := ProfileFor(level).Timeout
	if t <= 0 || t > a.timeout {
		t = a.timeout
	}
	return t
}

// complete runs the provider with a per-attempt timeout and at most
// maxRetries retries after a fixed delay. Only errors are retried; an empty
// answer is returned as is.
func (a *SectionAnalyzer) complete(ctx context.Context, prompt string, timeout time.Duration) (string, int, error) {
	var lastErr error
	calls := 0
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		calls++
		resp, err := a.attempt(ctx, prompt, timeout)
		if err == nil {
			return resp, calls, nil
		}
		lastErr = err

		if attempt == a.maxRetries {
			break
		}

		delay := a.retryDelay
		var httpErr *llm.HTTPError
		if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 && httpErr.RetryAfter < delay {
			delay = httpErr.RetryAfter
		}
		select {
		case <-ctx.Done():
			return "", calls, ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", calls, fmt.Errorf("llm section analysis failed after %d attempts: %w", calls, lastErr)
}

func (a *SectionAnalyzer) attempt(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.provider.Complete(callCtx, prompt, a.opts)
}
