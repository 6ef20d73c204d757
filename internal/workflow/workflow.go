// Package workflow drives the document-creation flow: convert a file to
// text, analyze it, then fill it with user values.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/docfill/internal/cache"
	"github.com/hurttlocker/docfill/internal/convert"
	"github.com/hurttlocker/docfill/internal/extract"
	"github.com/hurttlocker/docfill/internal/store"
	"github.com/hurttlocker/docfill/internal/substitute"
)

const (
	// DefaultBatchLimit bounds concurrent analyses in AnalyzeFiles.
	DefaultBatchLimit = 4
	// DefaultMaxSessions bounds the sessions kept in memory.
	DefaultMaxSessions = 1000
)

// Session is one document going through the workflow. A session is owned by
// the Workflow that created it; read it, do not mutate it.
type Session struct {
	ID        string                 `json:"id"`
	Path      string                 `json:"path"`
	Status    Status                 `json:"status"`
	Text      string                 `json:"-"`
	Result    extract.AnalysisResult `json:"result"`
	Err       string                 `json:"error,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Deps are the collaborators of a Workflow. Store and Logger are optional.
// MaxSessions defaults to DefaultMaxSessions.
type Deps struct {
	Converter   *convert.Converter
	Analyzer    *extract.Analyzer
	Engine      *substitute.Engine
	Store       store.Store
	Logger      *zap.Logger
	MaxSessions int
}

// Workflow keeps sessions in memory and records history in the store.
type Workflow struct {
	conv     *convert.Converter
	analyzer *extract.Analyzer
	engine   *substitute.Engine
	store    store.Store
	logger   *zap.Logger

	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
}

// New creates a Workflow. Missing collaborators get defaults.
func New(d Deps) *Workflow {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workflow{
		conv:     d.Converter,
		analyzer: d.Analyzer,
		engine:   d.Engine,
		store:    d.Store,
		logger:   logger.Named("workflow"),
		sessions: make(map[string]*Session),

		maxSessions: d.MaxSessions,
	}
	if w.maxSessions <= 0 {
		w.maxSessions = DefaultMaxSessions
	}
	if w.conv == nil {
		w.conv = convert.NewConverter(logger)
	}
	if w.analyzer == nil {
		w.analyzer = extract.NewAnalyzer(extract.WithLogger(logger))
	}
	if w.engine == nil {
		w.engine = substitute.NewEngine(logger)
	}
	return w
}

// Analyze converts and analyzes the file at path. Input problems (missing,
// empty, oversized or unsupported files) do not return an error: the session
// ends in StatusError with the message in Result.Error.
func (w *Workflow) Analyze(ctx context.Context, path string) *Session {
	sess := &Session{ID: uuid.NewString(), Path: path, Status: StatusReady, UpdatedAt: time.Now().UTC()}
	w.mu.Lock()
	w.evictLocked()
	w.sessions[sess.ID] = sess
	w.mu.Unlock()

	w.analyze(ctx, sess)
	return sess
}

// evictLocked drops settled sessions, least recently updated first, until
// there is room for one more. Sessions being analyzed or filled are kept,
// so the map may briefly exceed the cap under heavy concurrency.
func (w *Workflow) evictLocked() {
	excess := len(w.sessions) - w.maxSessions + 1
	if excess <= 0 {
		return
	}
	settled := make([]*Session, 0, len(w.sessions))
	for _, s := range w.sessions {
		if s.Status != StatusAnalyzing && s.Status != StatusCreating {
			settled = append(settled, s)
		}
	}
	sort.Slice(settled, func(i, j int) bool { return settled[i].UpdatedAt.Before(settled[j].UpdatedAt) })
	for _, s := range settled[:min(excess, len(settled))] {
		delete(w.sessions, s.ID)
		w.logger.Debug("session evicted", zap.String("session", s.ID), zap.String("status", string(s.Status)))
	}
}

// Reanalyze runs the analysis again for an existing session.
func (w *Workflow) Reanalyze(ctx context.Context, id string) (*Session, error) {
	sess, ok := w.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	if err := w.tryTransition(ctx, sess, StatusAnalyzing, ""); err != nil {
		return sess, err
	}
	w.convertAndAnalyze(ctx, sess)
	return sess, nil
}

func (w *Workflow) analyze(ctx context.Context, sess *Session) {
	w.transition(ctx, sess, StatusAnalyzing, "")
	w.convertAndAnalyze(ctx, sess)
}

func (w *Workflow) convertAndAnalyze(ctx context.Context, sess *Session) {

	doc, err := w.conv.ToText(ctx, sess.Path)
	if err != nil {
		msg := err.Error()
		var ie *convert.InputError
		if errors.As(err, &ie) {
			msg = ie.Message
		}
		sess.Result = extract.AnalysisResult{Error: msg}
		sess.Err = err.Error()
		w.transition(ctx, sess, StatusError, msg)
		w.logger.Warn("document rejected", zap.String("path", sess.Path), zap.Error(err))
		return
	}

	sess.Text = doc.Text
	sess.Result = w.analyzer.AnalyzeDocument(ctx, doc.Text)
	sess.Err = ""
	w.transition(ctx, sess, StatusAnalyzed, string(sess.Result.ExtractionMethod))
	w.record(ctx, sess)
}

// Create fills the analyzed document with values. Values are formatted by
// variable type; when the document has no placeholders, the values detected
// during analysis are replaced literally. Only one Create runs per session
// at a time; a concurrent call gets a *TransitionError.
func (w *Workflow) Create(ctx context.Context, id string, values map[string]any) (substitute.Result, error) {
	sess, ok := w.Get(id)
	if !ok {
		return substitute.Result{}, fmt.Errorf("unknown session %q", id)
	}
	if err := w.tryTransition(ctx, sess, StatusCreating, ""); err != nil {
		return substitute.Result{}, err
	}

	res := w.engine.FillTyped(sess.Text, values, sess.Result.Samples(), sess.Result.Variables)

	w.transition(ctx, sess, StatusReady, fmt.Sprintf("%d replacements", res.Replacements))
	return res, nil
}

// AnalyzeFiles analyzes paths concurrently, at most limit at a time. The
// sessions are returned in the order of paths.
func (w *Workflow) AnalyzeFiles(ctx context.Context, paths []string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	out := make([]*Session, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = w.Analyze(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Get returns the session with the given id.
func (w *Workflow) Get(id string) (*Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[id]
	return s, ok
}

// Sessions returns every session, oldest update first.
func (w *Workflow) Sessions() []*Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Session, 0, len(w.sessions))
	for _, s := range w.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out
}

// transition moves sess to the next status. Disallowed moves are programming
// errors and panic.
func (w *Workflow) transition(ctx context.Context, sess *Session, to Status, msg string) {
	if err := w.tryTransition(ctx, sess, to, msg); err != nil {
		panic(err)
	}
}

// tryTransition checks and applies the move to sess under one lock, so two
// callers racing for the same move cannot both win.
func (w *Workflow) tryTransition(ctx context.Context, sess *Session, to Status, msg string) error {
	w.mu.Lock()
	from := sess.Status
	if !CanTransition(from, to) {
		w.mu.Unlock()
		return &TransitionError{From: from, To: to}
	}
	sess.Status = to
	sess.UpdatedAt = time.Now().UTC()
	w.mu.Unlock()

	w.logger.Debug("session status changed",
		zap.String("session", sess.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if w.store == nil {
		return nil
	}
	ev := &store.SessionEvent{SessionID: sess.ID, From: string(from), To: string(to), Message: msg}
	if err := w.store.LogEvent(ctx, ev); err != nil {
		w.logger.Warn("recording session event failed", zap.Error(err))
	}
	return nil
}

func (w *Workflow) record(ctx context.Context, sess *Session) {
	if w.store == nil {
		return
	}
	payload, err := json.Marshal(sess.Result)
	if err != nil {
		w.logger.Warn("encoding analysis failed", zap.Error(err))
		return
	}
	rec := &store.AnalysisRecord{
		SessionID:     sess.ID,
		SourcePath:    sess.Path,
		ContentHash:   extract.ContentKey(sess.Text),
		Method:        string(sess.Result.ExtractionMethod),
		Complexity:    sess.Result.Meta.Complexity,
		VariableCount: len(sess.Result.Variables),
		ProcessingMS:  sess.Result.Meta.ProcessingMS,
		Result:        string(payload),
		Error:         sess.Result.Error,
	}
	if _, err := w.store.SaveAnalysis(ctx, rec); err != nil {
		w.logger.Warn("recording analysis failed", zap.Error(err))
	}
}

// CacheStatsSink persists analysis cache snapshots to st.
func CacheStatsSink(st store.Store, logger *zap.Logger) cache.StatsSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(s cache.Stats) {
		cs := &store.CacheStats{Hits: s.Hits, Misses: s.Misses, Puts: s.Puts, Evictions: s.Evictions, Size: s.Size}
		if err := st.SaveCacheStats(context.Background(), cs); err != nil {
			logger.Warn("saving cache stats failed", zap.Error(err))
			return
		}
		logger.Debug("cache stats saved", zap.Int64("hits", s.Hits), zap.Int64("misses", s.Misses))
	}
}
