package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/docfill/internal/llm"
)

// Cache stores analysis results by content key. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(key string) (AnalysisResult, bool)
	Put(key string, result AnalysisResult)
}

// Analyzer is the document analysis entry point. It is safe for concurrent
// use: each AnalyzeDocument call allocates its own working state.
type Analyzer struct {
	provider   llm.Provider
	llmOpts    llm.CompletionOpts
	timeout    time.Duration
	retryDelay time.Duration
	cache      Cache
	logger     *zap.Logger
	strategies []Strategy
	sections   *SectionAnalyzer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithProvider sets the LLM used for section analysis. Without one, sections
// are analyzed by direct extraction only.
func WithProvider(p llm.Provider) Option {
	return func(a *Analyzer) { a.provider = p }
}

// WithLLMOptions overrides DefaultLLMOptions.
func WithLLMOptions(opts llm.CompletionOpts) Option {
	return func(a *Analyzer) { a.llmOpts = opts }
}

// WithTimeout sets the per-call LLM timeout. Values above MaxCallTimeout are
// capped.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// WithRetryDelay sets the pause before the LLM retry.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Analyzer) { a.retryDelay = d }
}

// WithCache enables result caching keyed by content hash.
func WithCache(c Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithLogger sets the logger. The analyzer logs under the "extract" name.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l.Named("extract")
		}
	}
}

// WithStrategies replaces the default fallback chain.
func WithStrategies(s ...Strategy) Option {
	return func(a *Analyzer) { a.strategies = s }
}

// NewAnalyzer creates an Analyzer with the default strategy chain:
// direct_regex, sections, patterns, default.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		llmOpts:    DefaultLLMOptions,
		timeout:    MaxCallTimeout,
		retryDelay: DefaultRetryDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.sections = NewSectionAnalyzer(a.provider, a.llmOpts, a.timeout, a.logger)
	if a.retryDelay >= 0 {
		a.sections.retryDelay = a.retryDelay
	}
	if a.strategies == nil {
		a.strategies = a.DefaultStrategies()
	}
	return a
}

// DefaultStrategies returns the standard fallback chain bound to a's
// section analyzer.
func (a *Analyzer) DefaultStrategies() []Strategy {
	return []Strategy{
		DirectRegexStrategy(DirectShortCircuit),
		SectionsStrategy(a.sections),
		PatternsStrategy(),
		DefaultStrategy(),
	}
}

// Strategies returns the configured chain, in order.
func (a *Analyzer) Strategies() []Strategy {
	out := make([]Strategy, len(a.strategies))
	copy(out, a.strategies)
	return out
}

// AnalyzeDocument detects the variables of content. It never fails: the
// result always holds at least one variable.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, content string) (result AnalysisResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analysis panicked, returning default variables", zap.Any("panic", r))
			result = DefaultResult()
			result.Meta.DocumentSize = len(content)
		}
		result.Meta.ProcessingMS = time.Since(start).Milliseconds()
	}()

	key := ContentKey(content)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			res := cached.Clone()
			res.Meta.Cached = true
			return res
		}
	}

	doc := newDocument(content)
	result = runStrategies(ctx, doc, a.strategies, a.logger)
	result.Meta = doc.Meta

	if len(result.Variables) == 0 {
		result = MinimalResult()
		result.Meta = doc.Meta
	}

	a.logger.Debug("document analyzed",
		zap.String("method", string(result.ExtractionMethod)),
		zap.Int("variables", len(result.Variables)),
		zap.Int("size", len(content)),
		zap.Int("llm_calls", result.Meta.LLMCalls))

	if a.cache != nil && cacheable(result.ExtractionMethod) {
		a.cache.Put(key, result.Clone())
	}
	return result
}

// cacheable excludes the fixed fallback sets so a transient failure is not
// remembered.
func cacheable(m Method) bool {
	return m != MethodDefault && m != MethodMinimal
}

// ContentKey is the cache key for content.
func ContentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
