// Package llm provides the text-completion adapter used by docfill's
// section analysis. The service is treated as best-effort: callers are
// expected to fall back to deterministic extraction on any error.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns a human-readable provider name (e.g., "ollama/mistral").
	Name() string
}

// CompletionOpts configures a single completion request. Zero values mean
// "let the server decide".
type CompletionOpts struct {
	Model            string   // Override model for this request (empty = provider default)
	Temperature      float64  // 0.0-2.0
	NumPredict       int      // Max tokens to generate (0 = server default)
	TopP             float64  // nucleus sampling
	FrequencyPenalty float64  // repetition penalty
	Stop             []string // stop sequences
}

// Config holds provider configuration.
type Config struct {
	Provider string        // "ollama" (empty = ollama)
	Model    string        // e.g. "mistral", "llama3"
	URL      string        // full completion URL, e.g. http://localhost:11434/api/generate
	Timeout  time.Duration // HTTP client timeout; requests are also bounded by ctx
}

// Defaults for a local Ollama server.
const (
	DefaultProvider = "ollama"
	DefaultModel    = "mistral"
	DefaultURL      = "http://localhost:11434/api/generate"
	DefaultTimeout  = 10 * time.Second
)

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", DefaultProvider:
		return NewOllamaProvider(cfg.URL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: ollama)", cfg.Provider)
	}
}

// ParseLLMFlag parses a --llm flag value into a Config.
// Format: "provider/model", e.g. "ollama/mistral" or "ollama/llama3:8b".
func ParseLLMFlag(flag string) (Config, error) {
	if flag == "" {
		return Config{Provider: DefaultProvider, Model: DefaultModel}, nil
	}

	parts := strings.SplitN(flag, "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return Config{}, fmt.Errorf("invalid --llm format %q: expected provider/model (e.g., ollama/mistral)", flag)
	}

	provider := strings.ToLower(parts[0])
	switch provider {
	case DefaultProvider:
		return Config{Provider: provider, Model: parts[1]}, nil
	default:
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: ollama)", provider)
	}
}
