package extract

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

const (
	// DirectShortCircuit is how many directly extracted variables end the
	// analysis without section work.
	DirectShortCircuit = 4
	// minMergedVariables triggers the final regex pass over the document head.
	minMergedVariables = 3
	// regexHeadChars bounds that final pass.
	regexHeadChars = 5000
)

var errNoVariables = errors.New("no variables found")

// Document is the shared, lazily computed view of one analysis input.
// Strategies read it and record diagnostics into Meta.
type Document struct {
	Text string
	Meta Meta

	report   *ComplexityReport
	sections []string
	direct   *VariableSet
}

func newDocument(text string) *Document {
	return &Document{Text: text, Meta: Meta{DocumentSize: len(text)}}
}

// Complexity returns the cached complexity report.
func (d *Document) Complexity() ComplexityReport {
	if d.report == nil {
		r := EstimateComplexity(d.Text)
		d.report = &r
		d.Meta.Complexity = r.Level.String()
	}
	return *d.report
}

// Sections returns the cached section split.
func (d *Document) Sections() []string {
	if d.sections == nil {
		d.sections = SplitSections(d.Text)
		d.Meta.SectionCount = len(d.sections)
	}
	return d.sections
}

// Direct returns the cached direct extraction of the full text.
func (d *Document) Direct() *VariableSet {
	if d.direct == nil {
		d.direct = ExtractDirect(d.Text)
	}
	return d.direct
}

// Strategy is one step of the fallback chain. A strategy succeeds when it
// returns a nil error and at least one variable.
type Strategy struct {
	Method Method
	Run    func(ctx context.Context, doc *Document) (AnalysisResult, error)
}

// runStrategies returns the result of the first successful strategy, or the
// minimal result when every strategy fails. Panics count as failures.
func runStrategies(ctx context.Context, doc *Document, strategies []Strategy, logger *zap.Logger) AnalysisResult {
	for _, s := range strategies {
		res, err := runOne(ctx, doc, s)
		if err == nil && len(res.Variables) == 0 {
			err = errNoVariables
		}
		if err != nil {
			doc.Meta.Attempts = append(doc.Meta.Attempts, Attempt{Method: s.Method, Reason: err.Error()})
			logger.Debug("strategy failed", zap.String("method", string(s.Method)), zap.Error(err))
			continue
		}
		doc.Meta.Attempts = append(doc.Meta.Attempts, Attempt{Method: res.ExtractionMethod, OK: true})
		return res
	}
	logger.Warn("all strategies failed, returning minimal result", zap.Int("attempts", len(strategies)))
	res := MinimalResult()
	doc.Meta.Attempts = append(doc.Meta.Attempts, Attempt{Method: MethodMinimal, OK: true})
	return res
}

func runOne(ctx context.Context, doc *Document, s Strategy) (res AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s strategy: %v\n%s", s.Method, r, debug.Stack())
		}
	}()
	if s.Run == nil {
		return AnalysisResult{}, fmt.Errorf("%s strategy has no run function", s.Method)
	}
	return s.Run(ctx, doc)
}

// DirectRegexStrategy succeeds when direct extraction over the full text
// finds at least threshold variables.
func DirectRegexStrategy(threshold int) Strategy {
	return Strategy{
		Method: MethodDirectRegex,
		Run: func(_ context.Context, doc *Document) (AnalysisResult, error) {
			set := doc.Direct()
			if set.Len() < threshold {
				return AnalysisResult{}, fmt.Errorf("direct extraction found %d variables, need %d", set.Len(), threshold)
			}
			return newResult(set.Clone(), MethodDirectRegex), nil
		},
	}
}

// SectionsStrategy analyzes at most the profile's section budget: the first
// section, then the third (or second) while variables are still short. Each
// section tries direct extraction before the LLM.
func SectionsStrategy(sa *SectionAnalyzer) Strategy {
	return Strategy{
		Method: MethodSections,
		Run: func(ctx context.Context, doc *Document) (AnalysisResult, error) {
			level := doc.Complexity().Level
			budget := ProfileFor(level).MaxSections
			sections := doc.Sections()

			merged := NewVariableSet()
			for i, idx := range selectSections(len(sections), budget) {
				if i > 0 && merged.Len() >= minMergedVariables {
					break
				}
				sec := sections[idx]
				vars := ExtractDirect(sec)
				if vars.Len() == 0 && sa != nil {
					out := sa.AnalyzeSection(ctx, sec, level)
					doc.Meta.LLMCalls += out.Calls
					vars = out.Vars
				}
				doc.Meta.SectionsAnalyzed++
				merged.MergeFirstWins(vars)
			}

			method := MethodSections
			if merged.Len() < minMergedVariables {
				if merged.Len() == 0 {
					method = MethodFallbackToRegex
				}
				merged.MergeFirstWins(ExtractDirect(head(doc.Text, regexHeadChars)))
			}
			if merged.Len() == 0 {
				return AnalysisResult{}, errNoVariables
			}
			return newResult(merged, method), nil
		},
	}
}

// selectSections returns the section indices to analyze: the first, then the
// third when present or else the second, capped at budget.
func selectSections(n, budget int) []int {
	if n == 0 || budget <= 0 {
		return nil
	}
	picks := []int{0}
	switch {
	case n > 2:
		picks = append(picks, 2)
	case n == 2:
		picks = append(picks, 1)
	}
	if len(picks) > budget {
		picks = picks[:budget]
	}
	return picks
}

// head returns at most n bytes of s, cut on a rune boundary.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && n < len(s) && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}

// PatternsStrategy runs the confidence-scored extractor on the full text.
func PatternsStrategy() Strategy {
	return Strategy{
		Method: MethodPatterns,
		Run: func(_ context.Context, doc *Document) (AnalysisResult, error) {
			set := ExtractWithScoring(doc.Text)
			if set.Len() == 0 {
				return AnalysisResult{}, errNoVariables
			}
			return newResult(set, MethodPatterns), nil
		},
	}
}

// DefaultStrategy offers the generic variable set every document can use.
func DefaultStrategy() Strategy {
	return Strategy{
		Method: MethodDefault,
		Run: func(context.Context, *Document) (AnalysisResult, error) {
			return DefaultResult(), nil
		},
	}
}

var defaultVariables = []struct{ name, description string }{
	{"nom", "Nom complet"},
	{"date", "Date"},
	{"montant", "Montant"},
	{"reference", "Référence"},
}

// DefaultResult is the fixed fallback set: nom, date, montant, reference.
func DefaultResult() AnalysisResult {
	set := NewVariableSet()
	for _, d := range defaultVariables {
		v := newVariable(d.name, "", 0, SourceDefault)
		v.Description = d.description
		set.Put(v)
	}
	return newResult(set, MethodDefault)
}

// MinimalResult is the last resort: one free-text field for the whole
// document content.
func MinimalResult() AnalysisResult {
	set := NewVariableSet()
	v := newVariable("contenu_document", "", 0, SourceDefault)
	set.Put(v)
	return newResult(set, MethodMinimal)
}
