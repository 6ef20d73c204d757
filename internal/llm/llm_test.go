package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseLLMFlag(t *testing.T) {
	tests := []struct {
		flag      string
		wantProv  string
		wantModel string
		wantErr   bool
	}{
		{"", "ollama", "mistral", false},
		{"ollama/mistral", "ollama", "mistral", false},
		{"ollama/llama3:8b", "ollama", "llama3:8b", false},
		{"OLLAMA/gemma2", "ollama", "gemma2", false},
		{"ollama/", "", "", true},
		{"ollama", "", "", true},
		{"openai/gpt-4o", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cfg, err := ParseLLMFlag(tt.flag)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.flag)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Provider != tt.wantProv || cfg.Model != tt.wantModel {
				t.Errorf("got %s/%s, want %s/%s", cfg.Provider, cfg.Model, tt.wantProv, tt.wantModel)
			}
		})
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "bedrock"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	p, err := NewProvider(Config{})
	if err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if p.Name() != "ollama/mistral" {
		t.Errorf("unexpected default name %q", p.Name())
	}
}

func TestOllamaProvider_Complete(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"mistral","response":"  nom: Jean Dupont\n","done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "mistral", time.Second)
	out, err := p.Complete(context.Background(), "Analyse ce texte", CompletionOpts{
		Temperature: 0.1,
		NumPredict:  300,
		TopP:        0.9,
		Stop:        []string{"\n\n\n"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "nom: Jean Dupont" {
		t.Errorf("unexpected response %q", out)
	}
	if got.Stream {
		t.Error("request must disable streaming")
	}
	if got.Model != "mistral" || got.Prompt != "Analyse ce texte" {
		t.Errorf("unexpected request body: %+v", got)
	}
	if got.Options.NumPredict != 300 || got.Options.Temperature != 0.1 {
		t.Errorf("options not forwarded: %+v", got.Options)
	}
}

func TestOllamaProvider_ModelOverride(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		model = req.Model
		w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "mistral", time.Second)
	if _, err := p.Complete(context.Background(), "x", CompletionOpts{Model: "llama3"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if model != "llama3" {
		t.Errorf("expected override model llama3, got %q", model)
	}
}

func TestOllamaProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("model loading"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "mistral", time.Second)
	_, err := p.Complete(context.Background(), "x", CompletionOpts{})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unexpected status %d", httpErr.StatusCode)
	}
	if httpErr.RetryAfter != 3*time.Second {
		t.Errorf("unexpected retry-after %v", httpErr.RetryAfter)
	}
	if httpErr.Message != "model loading" {
		t.Errorf("unexpected message %q", httpErr.Message)
	}
}

func TestOllamaProvider_BodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "nope", time.Second)
	if _, err := p.Complete(context.Background(), "x", CompletionOpts{}); err == nil {
		t.Fatal("expected error from error body")
	}
}

func TestOllamaProvider_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "mistral", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := p.Complete(ctx, "x", CompletionOpts{}); err == nil {
		t.Fatal("expected deadline error")
	}
	if time.Since(start) > time.Second {
		t.Error("request outlived its context")
	}
}
