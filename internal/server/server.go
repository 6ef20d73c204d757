// Package server exposes analysis and substitution over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hurttlocker/docfill/internal/convert"
	"github.com/hurttlocker/docfill/internal/extract"
	"github.com/hurttlocker/docfill/internal/patterns"
	"github.com/hurttlocker/docfill/internal/store"
	"github.com/hurttlocker/docfill/internal/substitute"
)

// Deps are the services behind the HTTP API. Store is optional.
type Deps struct {
	Analyzer *extract.Analyzer
	Engine   *substitute.Engine
	Store    store.Store
	Logger   *zap.Logger
	Version  string
}

// Server holds the HTTP handlers.
type Server struct {
	analyzer *extract.Analyzer
	engine   *substitute.Engine
	store    store.Store
	logger   *zap.Logger
	version  string
}

// New creates a Server. Missing analyzer or engine get defaults.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		analyzer: d.Analyzer,
		engine:   d.Engine,
		store:    d.Store,
		logger:   logger.Named("http"),
		version:  d.Version,
	}
	if s.analyzer == nil {
		s.analyzer = extract.NewAnalyzer(extract.WithLogger(logger))
	}
	if s.engine == nil {
		s.engine = substitute.NewEngine(logger)
	}
	return s
}

// Router builds the gin engine with middleware and routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID(), s.accessLog(), s.recovery(), limitBody(convert.DefaultMaxSize))

	r.GET("/healthz", s.health)

	api := r.Group("/api/v1")
	api.POST("/analyze", s.analyze)
	api.POST("/substitute", s.substitute)
	api.POST("/placeholders", s.placeholders)
	api.GET("/history", s.history)
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": s.version})
}

type analyzeRequest struct {
	Content string            `json:"content"`
	Client  map[string]string `json:"client,omitempty"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "validation_error", "corps de requête invalide")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.fail(c, http.StatusBadRequest, "validation_error", "le contenu est vide")
		return
	}

	res := s.analyzer.AnalyzeDocument(c.Request.Context(), req.Content)
	if len(req.Client) > 0 {
		res = extract.Prefill(res, req.Client)
	}
	c.JSON(http.StatusOK, res)
}

type substituteRequest struct {
	Template  string                                `json:"template"`
	Values    map[string]any                        `json:"values"`
	Samples   map[string]string                     `json:"samples,omitempty"`
	Variables map[string]extract.VariableDescriptor `json:"variables,omitempty"`
}

func (s *Server) substitute(c *gin.Context) {
	var req substituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "validation_error", "corps de requête invalide")
		return
	}
	if req.Template == "" {
		s.fail(c, http.StatusBadRequest, "validation_error", "le modèle est vide")
		return
	}

	c.JSON(http.StatusOK, s.engine.FillTyped(req.Template, req.Values, req.Samples, req.Variables))
}

type placeholdersRequest struct {
	Template string `json:"template"`
}

type placeholdersResponse struct {
	Placeholders []patterns.Placeholder `json:"placeholders"`
	Names        []string               `json:"names"`
}

func (s *Server) placeholders(c *gin.Context) {
	var req placeholdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "validation_error", "corps de requête invalide")
		return
	}
	found := substitute.Placeholders(req.Template)
	resp := placeholdersResponse{Placeholders: found, Names: []string{}}
	if resp.Placeholders == nil {
		resp.Placeholders = []patterns.Placeholder{}
	}
	seen := map[string]bool{}
	for _, p := range found {
		if k := strings.ToLower(p.Name); !seen[k] {
			seen[k] = true
			resp.Names = append(resp.Names, p.Name)
		}
	}
	c.JSON(http.StatusOK, resp)
}

type historyItem struct {
	ID            int64     `json:"id"`
	SourcePath    string    `json:"source_path,omitempty"`
	Method        string    `json:"method"`
	Complexity    string    `json:"complexity,omitempty"`
	VariableCount int       `json:"variable_count"`
	ProcessingMS  int64     `json:"processing_ms"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) history(c *gin.Context) {
	if s.store == nil {
		s.fail(c, http.StatusServiceUnavailable, "history_unavailable", "aucun historique configuré")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultListLimit)))
	if err != nil || limit <= 0 {
		s.fail(c, http.StatusBadRequest, "validation_error", "limit invalide")
		return
	}

	records, err := s.store.ListAnalyses(c.Request.Context(), store.ListOpts{Limit: limit, Method: c.Query("method")})
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	items := make([]historyItem, 0, len(records))
	for _, r := range records {
		items = append(items, historyItem{
			ID:            r.ID,
			SourcePath:    r.SourcePath,
			Method:        r.Method,
			Complexity:    r.Complexity,
			VariableCount: r.VariableCount,
			ProcessingMS:  r.ProcessingMS,
			Error:         r.Error,
			CreatedAt:     r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"analyses": items})
}
