// Package extract detects template variables in document text.
//
// Detection is layered, cheapest first:
//   - placeholders already present in the text ({nom}, [[date]], ...)
//   - direct regex extraction of common data shapes (email, phone, date, amount)
//   - section-by-section analysis through an optional LLM provider
//   - confidence-scored extraction, then fixed default variable sets
//
// The Analyzer runs these as an ordered list of strategies and always returns
// a result with at least one variable. LLM failures are never surfaced to the
// caller; they degrade to the deterministic extractor.
package extract

import (
	"sort"
	"strings"

	"github.com/hurttlocker/docfill/internal/patterns"
)

// Source records which heuristic produced a variable.
type Source string

const (
	SourcePlaceholder Source = "placeholder"
	SourcePattern     Source = "pattern"
	SourceScoring     Source = "scoring"
	SourceLLM         Source = "llm"
	SourceDefault     Source = "default"
	SourceClient      Source = "client"
)

// VariableDescriptor is one detected or declared template variable.
type VariableDescriptor struct {
	Name         string           `json:"name"`
	Type         patterns.VarType `json:"type"`
	Description  string           `json:"description"`
	CurrentValue string           `json:"current_value,omitempty"`
	Required     bool             `json:"required"`
	Confidence   float64          `json:"confidence,omitempty"`
	AutoDetected bool             `json:"auto_detected"`
	Source       Source           `json:"source,omitempty"`
}

// newVariable fills in type and description for a raw (name, value) pair.
// This is the single place where loosely-shaped input becomes a descriptor.
func newVariable(name, value string, confidence float64, src Source) VariableDescriptor {
	return VariableDescriptor{
		Name:         name,
		Type:         patterns.GuessType(name, value),
		Description:  patterns.Describe(name),
		CurrentValue: value,
		Required:     true,
		Confidence:   clamp01(confidence),
		Source:       src,
	}
}

// VariableSet is an insertion-ordered collection of variables keyed by
// lower-cased name. Display names keep the case of the first insertion.
type VariableSet struct {
	order []string
	vars  map[string]VariableDescriptor
}

// NewVariableSet returns an empty set.
func NewVariableSet() *VariableSet {
	return &VariableSet{vars: make(map[string]VariableDescriptor)}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Put inserts v. On a name collision the later candidate wins unless its
// confidence is lower than the one already held. It reports whether v was
// stored.
func (s *VariableSet) Put(v VariableDescriptor) bool {
	k := key(v.Name)
	if k == "" {
		return false
	}
	old, exists := s.vars[k]
	if !exists {
		s.order = append(s.order, k)
		s.vars[k] = v
		return true
	}
	if v.Confidence < old.Confidence {
		return false
	}
	s.vars[k] = v
	return true
}

// AddIfAbsent stores v only when no variable with the same name exists.
func (s *VariableSet) AddIfAbsent(v VariableDescriptor) bool {
	k := key(v.Name)
	if k == "" {
		return false
	}
	if _, exists := s.vars[k]; exists {
		return false
	}
	s.order = append(s.order, k)
	s.vars[k] = v
	return true
}

// MergeFirstWins adds every variable of other whose name is not already
// present. Variables found earlier are never overwritten.
func (s *VariableSet) MergeFirstWins(other *VariableSet) int {
	if other == nil {
		return 0
	}
	added := 0
	for _, k := range other.order {
		if s.AddIfAbsent(other.vars[k]) {
			added++
		}
	}
	return added
}

// Get looks a variable up case-insensitively.
func (s *VariableSet) Get(name string) (VariableDescriptor, bool) {
	v, ok := s.vars[key(name)]
	return v, ok
}

func (s *VariableSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Names returns the lower-cased keys in insertion order.
func (s *VariableSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// List returns the variables in insertion order.
func (s *VariableSet) List() []VariableDescriptor {
	out := make([]VariableDescriptor, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.vars[k])
	}
	return out
}

// Clone returns an independent copy.
func (s *VariableSet) Clone() *VariableSet {
	c := NewVariableSet()
	c.order = append(c.order, s.order...)
	for k, v := range s.vars {
		c.vars[k] = v
	}
	return c
}

// Method tags which strategy produced an AnalysisResult. Diagnostic only.
type Method string

const (
	MethodDirectRegex     Method = "direct_regex"
	MethodSections        Method = "sections"
	MethodFallbackToRegex Method = "fallback_to_regex"
	MethodPatterns        Method = "patterns"
	MethodDefault         Method = "default"
	MethodMinimal         Method = "minimal"
)

// Attempt records one strategy run.
type Attempt struct {
	Method Method `json:"method"`
	Reason string `json:"reason,omitempty"`
	OK     bool   `json:"ok"`
}

// Meta is diagnostic information about one analysis.
type Meta struct {
	ProcessingMS     int64     `json:"processing_ms"`
	DocumentSize     int       `json:"document_size"`
	SectionCount     int       `json:"section_count"`
	SectionsAnalyzed int       `json:"sections_analyzed"`
	Complexity       string    `json:"complexity,omitempty"`
	LLMCalls         int       `json:"llm_calls"`
	Attempts         []Attempt `json:"attempts,omitempty"`
	Cached           bool      `json:"cached"`
}

// AnalysisResult is the output of one document analysis. Variables is keyed
// by lower-cased name; Order lists those keys in detection order.
type AnalysisResult struct {
	Variables        map[string]VariableDescriptor `json:"variables"`
	Order            []string                      `json:"order"`
	ExtractionMethod Method                        `json:"extraction_method"`
	Meta             Meta                          `json:"meta"`
	Error            string                        `json:"error,omitempty"`
}

// newResult snapshots a VariableSet into a result.
func newResult(set *VariableSet, method Method) AnalysisResult {
	r := AnalysisResult{
		Variables:        make(map[string]VariableDescriptor, set.Len()),
		Order:            set.Names(),
		ExtractionMethod: method,
	}
	for _, k := range set.order {
		r.Variables[k] = set.vars[k]
	}
	return r
}

// List returns the variables in detection order. Variables missing from
// Order (hand-built results) follow in name order.
func (r AnalysisResult) List() []VariableDescriptor {
	out := make([]VariableDescriptor, 0, len(r.Variables))
	seen := make(map[string]bool, len(r.Order))
	for _, k := range r.Order {
		if v, ok := r.Variables[k]; ok && !seen[k] {
			out = append(out, v)
			seen[k] = true
		}
	}
	var rest []string
	for k := range r.Variables {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, r.Variables[k])
	}
	return out
}

// Samples maps each variable name to its detected value, skipping empties.
func (r AnalysisResult) Samples() map[string]string {
	out := make(map[string]string)
	for k, v := range r.Variables {
		if v.CurrentValue != "" {
			out[k] = v.CurrentValue
		}
	}
	return out
}

// Clone returns a deep copy so cached results cannot be mutated by callers.
func (r AnalysisResult) Clone() AnalysisResult {
	c := r
	c.Variables = make(map[string]VariableDescriptor, len(r.Variables))
	for k, v := range r.Variables {
		c.Variables[k] = v
	}
	c.Order = append([]string(nil), r.Order...)
	c.Meta.Attempts = append([]Attempt(nil), r.Meta.Attempts...)
	return c
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
