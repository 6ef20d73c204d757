package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/docfill/internal/cache"
	"github.com/hurttlocker/docfill/internal/extract"
	"github.com/hurttlocker/docfill/internal/llm"
	"github.com/hurttlocker/docfill/internal/store"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type countingProvider struct{ calls atomic.Int32 }

func (p *countingProvider) Complete(context.Context, string, llm.CompletionOpts) (string, error) {
	p.calls.Add(1)
	return "", errors.New("offline")
}

func (p *countingProvider) Name() string { return "test/offline" }

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusReady, StatusAnalyzing))
	assert.True(t, CanTransition(StatusAnalyzing, StatusError))
	assert.True(t, CanTransition(StatusCreating, StatusReady))
	assert.False(t, CanTransition(StatusReady, StatusCreating))
	assert.False(t, CanTransition(StatusError, StatusCreating))
	assert.EqualError(t, &TransitionError{From: StatusReady, To: StatusCreating}, "invalid status transition ready -> creating")
}

func TestAnalyzeThenCreate_Placeholders(t *testing.T) {
	st := newStore(t)
	w := New(Deps{Store: st})
	path := writeFile(t, "modele.txt", "Madame {nom},\nLe {date}, montant : {montant}.\nContact : {email}")

	sess := w.Analyze(context.Background(), path)
	require.Equal(t, StatusAnalyzed, sess.Status, "error: %s", sess.Err)
	assert.Equal(t, extract.MethodDirectRegex, sess.Result.ExtractionMethod)
	assert.NotEmpty(t, sess.ID)

	res, err := w.Create(context.Background(), sess.ID, map[string]any{
		"nom":     "Curie",
		"date":    "2025-03-22",
		"montant": "1250.5",
		"email":   "Marie@Example.FR",
	})
	require.NoError(t, err)
	assert.Equal(t, "Madame Curie,\nLe 22/03/2025, montant : 1 250,50.\nContact : marie@example.fr", res.Text)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, StatusReady, sess.Status)

	events, err := st.SessionEvents(context.Background(), sess.ID)
	require.NoError(t, err)
	var got []string
	for _, e := range events {
		got = append(got, e.To)
	}
	assert.Equal(t, []string{"analyzing", "analyzed", "creating", "ready"}, got)

	records, err := st.ListAnalyses(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sess.ID, records[0].SessionID)
	assert.Equal(t, 4, records[0].VariableCount)

	var decoded extract.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(records[0].Result), &decoded))
	assert.Len(t, decoded.Variables, 4)
}

func TestAnalyze_HTMLTagsAreNotVariables(t *testing.T) {
	w := New(Deps{})
	path := writeFile(t, "lettre.html", "<html><head><title>Lettre</title></head><body>"+
		"<p>Madame <nom>,</p><p>Email : {email}</p><p>Le {date} à {ville}</p></body></html>")

	sess := w.Analyze(context.Background(), path)
	require.Equal(t, StatusAnalyzed, sess.Status, "error: %s", sess.Err)
	assert.Equal(t, extract.MethodDirectRegex, sess.Result.ExtractionMethod)
	assert.Equal(t, []string{"nom", "email", "date", "ville"}, sess.Result.Order)

	res, err := w.Create(context.Background(), sess.ID, map[string]any{
		"nom":   "Curie",
		"email": "marie@example.fr",
		"date":  "2025-03-22",
		"ville": "Paris",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, "Lettre\nMadame Curie,\nEmail : marie@example.fr\nLe 22/03/2025 à Paris\n", res.Text)
}

func TestCreate_ReplacesDetectedSamples(t *testing.T) {
	w := New(Deps{})
	path := writeFile(t, "facture.txt", "Client : contact@acme.fr\nFacture du 12/05/2025\n")

	sess := w.Analyze(context.Background(), path)
	require.Equal(t, StatusAnalyzed, sess.Status)

	res, err := w.Create(context.Background(), sess.ID, map[string]any{
		"email": "compta@exemple.fr",
		"date":  "2025-06-01",
	})
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Contains(t, res.Text, "compta@exemple.fr")
	assert.Contains(t, res.Text, "01/06/2025")
}

func TestCreate_ConcurrentCallsOnlyOneWins(t *testing.T) {
	w := New(Deps{})
	path := writeFile(t, "modele.txt", "Nom: {nom}\nPrénom: {prenom}\nEmail: {email}\nDate: {date}")
	sess := w.Analyze(context.Background(), path)
	require.Equal(t, StatusAnalyzed, sess.Status)

	const callers = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Create(context.Background(), sess.ID, map[string]any{"nom": "Curie"})
			var te *TransitionError
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.As(err, &te):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(callers-1), rejected.Load())
	got, ok := w.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, StatusReady, got.Status)
}

func TestAnalyze_EvictsOldestSettledSession(t *testing.T) {
	w := New(Deps{MaxSessions: 2})
	first := w.Analyze(context.Background(), writeFile(t, "a.txt", "Madame {nom}"))
	second := w.Analyze(context.Background(), writeFile(t, "b.txt", "Le {date}"))
	third := w.Analyze(context.Background(), writeFile(t, "c.txt", "Ville : {ville}"))

	assert.Len(t, w.Sessions(), 2)
	_, ok := w.Get(first.ID)
	assert.False(t, ok)
	for _, s := range []*Session{second, third} {
		_, ok := w.Get(s.ID)
		assert.True(t, ok)
	}

	_, err := w.Create(context.Background(), first.ID, map[string]any{"nom": "Curie"})
	assert.EqualError(t, err, fmt.Sprintf("unknown session %q", first.ID))
}

func TestAnalyze_InputErrorIsStructured(t *testing.T) {
	w := New(Deps{})
	sess := w.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent.docx"))

	assert.Equal(t, StatusError, sess.Status)
	assert.NotEmpty(t, sess.Result.Error)
	assert.Empty(t, sess.Result.Variables)

	_, err := w.Create(context.Background(), sess.ID, map[string]any{"nom": "x"})
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusError, te.From)
}

func TestReanalyze(t *testing.T) {
	w := New(Deps{})
	path := filepath.Join(t.TempDir(), "plus-tard.txt")

	sess := w.Analyze(context.Background(), path)
	require.Equal(t, StatusError, sess.Status)

	require.NoError(t, os.WriteFile(path, []byte("Bonjour {prenom} {nom}, {date} {ville}"), 0o600))
	again, err := w.Reanalyze(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzed, again.Status)
	assert.Empty(t, again.Err)

	_, err = w.Reanalyze(context.Background(), "nope")
	assert.Error(t, err)
}

func TestAnalyzeFiles(t *testing.T) {
	p := &countingProvider{}
	w := New(Deps{Analyzer: extract.NewAnalyzer(extract.WithProvider(p), extract.WithRetryDelay(0))})

	paths := []string{
		writeFile(t, "a.txt", "{nom} {prenom} {date} {email}"),
		filepath.Join(t.TempDir(), "missing.txt"),
		writeFile(t, "c.md", "# Titre\n\nContact : jean@exemple.fr"),
	}
	sessions, err := w.AnalyzeFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	for i, s := range sessions {
		require.NotNil(t, s, "session %d", i)
		assert.Equal(t, paths[i], s.Path)
	}
	assert.Equal(t, StatusAnalyzed, sessions[0].Status)
	assert.Equal(t, StatusError, sessions[1].Status)
	assert.Equal(t, StatusAnalyzed, sessions[2].Status)
	assert.NotEmpty(t, sessions[2].Result.Variables)
	assert.Len(t, w.Sessions(), 3)
}

func TestCacheStatsSink(t *testing.T) {
	st := newStore(t)
	c := cache.NewAnalysisCache(cache.Options{StatsEvery: 2, Sink: CacheStatsSink(st, nil)})
	c.Put("k", extract.DefaultResult())
	c.Get("k")

	latest, err := st.LatestCacheStats(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(1), latest.Hits)
	assert.Equal(t, int64(1), latest.Puts)
}
