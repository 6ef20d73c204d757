// Package mcp provides a Model Context Protocol server for docfill.
//
// It exposes analysis, substitution and placeholder listing as MCP tools, and
// the analysis history and store statistics as MCP resources when a store is
// configured. The server is served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hurttlocker/docfill/internal/extract"
	"github.com/hurttlocker/docfill/internal/store"
	"github.com/hurttlocker/docfill/internal/substitute"
	"github.com/hurttlocker/docfill/internal/workflow"
)

// maxHistory caps the history tool's limit.
const maxHistory = 200

// ServerConfig holds configuration for the MCP server. Only Version is
// required; missing services get defaults and Store enables history.
type ServerConfig struct {
	Workflow *workflow.Workflow
	Analyzer *extract.Analyzer
	Engine   *substitute.Engine
	Store    store.Store
	Logger   *zap.Logger
	Version  string
}

// NewServer creates a configured MCP server with all docfill tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = extract.NewAnalyzer(extract.WithLogger(logger))
	}
	if cfg.Engine == nil {
		cfg.Engine = substitute.NewEngine(logger)
	}
	if cfg.Workflow == nil {
		cfg.Workflow = workflow.New(workflow.Deps{Analyzer: cfg.Analyzer, Engine: cfg.Engine, Store: cfg.Store, Logger: logger})
	}

	s := server.NewMCPServer(
		"docfill",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerAnalyzeTool(s, cfg.Analyzer)
	registerAnalyzeFileTool(s, cfg.Workflow)
	registerCreateTool(s, cfg.Workflow)
	registerSubstituteTool(s, cfg.Engine)
	registerPlaceholdersTool(s)

	if cfg.Store != nil {
		registerHistoryTool(s, cfg.Store)
		registerStatsResource(s, cfg.Store)
		registerRecentResource(s, cfg.Store)
	}
	return s
}

// --- Tools ---

func registerAnalyzeTool(s *server.MCPServer, a *extract.Analyzer) {
	tool := mcp.NewTool("docfill_analyze",
		mcp.WithDescription("Detect the template variables of a document's text. Returns each variable with its type, description and current value, in document order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Document text to analyze"),
		),
		mcp.WithObject("client",
			mcp.Description("Known client fields (name -> value) used to prefill matching variables"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError("content is required"), nil
		}
		if strings.TrimSpace(content) == "" {
			return mcp.NewToolResultError("content cannot be empty"), nil
		}
		var client map[string]string
		if err := bindArg(req, "client", &client); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid client: %v", err)), nil
		}

		res := a.AnalyzeDocument(ctx, content)
		if len(client) > 0 {
			res = extract.Prefill(res, client)
		}
		return jsonResult(res)
	})
}

func registerAnalyzeFileTool(s *server.MCPServer, w *workflow.Workflow) {
	tool := mcp.NewTool("docfill_analyze_file",
		mcp.WithDescription("Convert a local document (txt, md, rtf, docx, pdf) to text and analyze it. Returns a session whose id can be passed to docfill_create."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the document on the server's filesystem"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil || strings.TrimSpace(path) == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		sess := w.Analyze(ctx, path)
		if sess.Status == workflow.StatusError {
			return mcp.NewToolResultError(sess.Result.Error), nil
		}
		return jsonResult(sess)
	})
}

func registerCreateTool(s *server.MCPServer, w *workflow.Workflow) {
	tool := mcp.NewTool("docfill_create",
		mcp.WithDescription("Fill an analyzed document with values. Values are formatted by variable type (dates, amounts, phone numbers)."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id returned by docfill_analyze_file"),
		),
		mcp.WithObject("values",
			mcp.Required(),
			mcp.Description("Variable values (name -> value)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		var values map[string]any
		if err := bindArg(req, "values", &values); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid values: %v", err)), nil
		}
		res, err := w.Create(ctx, id, values)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("create error: %v", err)), nil
		}
		return jsonResult(res)
	})
}

func registerSubstituteTool(s *server.MCPServer, e *substitute.Engine) {
	tool := mcp.NewTool("docfill_substitute",
		mcp.WithDescription("Replace placeholders such as {nom}, {{date}} or [ville] in a template. When the template has no placeholders, sample values are replaced literally."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Template text"),
		),
		mcp.WithObject("values",
			mcp.Required(),
			mcp.Description("Variable values (name -> value)"),
		),
		mcp.WithObject("samples",
			mcp.Description("Sample text per variable to replace when the template has no placeholders"),
		),
		mcp.WithObject("variables",
			mcp.Description("Variable descriptors from docfill_analyze, used to format values by type"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		template, err := req.RequireString("template")
		if err != nil || template == "" {
			return mcp.NewToolResultError("template is required"), nil
		}
		var (
			values  map[string]any
			samples map[string]string
			vars    map[string]extract.VariableDescriptor
		)
		for key, dst := range map[string]any{"values": &values, "samples": &samples, "variables": &vars} {
			if err := bindArg(req, key, dst); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid %s: %v", key, err)), nil
			}
		}
		return jsonResult(e.FillTyped(template, values, samples, vars))
	})
}

func registerPlaceholdersTool(s *server.MCPServer) {
	tool := mcp.NewTool("docfill_placeholders",
		mcp.WithDescription("List the placeholders of a template in order of appearance."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Template text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		template, err := req.RequireString("template")
		if err != nil {
			return mcp.NewToolResultError("template is required"), nil
		}
		type placeholder struct {
			Token string `json:"token"`
			Name  string `json:"name"`
			Start int    `json:"start"`
		}
		found := substitute.Placeholders(template)
		out := make([]placeholder, 0, len(found))
		for _, p := range found {
			out = append(out, placeholder{Token: p.Token, Name: p.Name, Start: p.Start})
		}
		return jsonResult(map[string]any{"placeholders": out, "count": len(out)})
	})
}

func registerHistoryTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("docfill_history",
		mcp.WithDescription("List recent document analyses, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of analyses (default: 50, max: 200)"),
		),
		mcp.WithString("method",
			mcp.Description("Only analyses produced by this extraction method"),
			mcp.Enum("direct_regex", "sections", "fallback_to_regex", "patterns", "default", "minimal"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts := store.ListOpts{Limit: store.DefaultListLimit}
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit := int(limitVal)
			if limit > maxHistory {
				limit = maxHistory
			}
			if limit > 0 {
				opts.Limit = limit
			}
		}
		if method, err := req.RequireString("method"); err == nil {
			opts.Method = method
		}

		records, err := st.ListAnalyses(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history error: %v", err)), nil
		}
		return jsonResult(summarize(records))
	})
}

// --- Resources ---

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"docfill://stats",
		"Store Statistics",
		mcp.WithResourceDescription("Analysis and event counts, database size and the latest analysis cache counters."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}
		cacheStats, err := st.LatestCacheStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting cache stats: %w", err)
		}
		payload := map[string]any{
			"analyses":    stats.AnalysisCount,
			"events":      stats.EventCount,
			"db_size":     stats.DBSizeBytes,
			"cache_stats": cacheStats,
		}
		return jsonContents(req.Params.URI, payload)
	})
}

func registerRecentResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"docfill://recent",
		"Recent Analyses",
		mcp.WithResourceDescription("The 20 most recent document analyses."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := st.ListAnalyses(ctx, store.ListOpts{Limit: 20})
		if err != nil {
			return nil, fmt.Errorf("listing recent analyses: %w", err)
		}
		return jsonContents(req.Params.URI, summarize(records))
	})
}

// --- Helpers ---

type analysisSummary struct {
	ID            int64  `json:"id"`
	Source        string `json:"source,omitempty"`
	Method        string `json:"method"`
	Complexity    string `json:"complexity,omitempty"`
	VariableCount int    `json:"variable_count"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func summarize(records []*store.AnalysisRecord) []analysisSummary {
	out := make([]analysisSummary, 0, len(records))
	for _, r := range records {
		out = append(out, analysisSummary{
			ID:            r.ID,
			Source:        r.SourcePath,
			Method:        r.Method,
			Complexity:    r.Complexity,
			VariableCount: r.VariableCount,
			Error:         r.Error,
			CreatedAt:     r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}

// bindArg decodes an optional object argument into dst. A missing argument
// leaves dst untouched.
func bindArg(req mcp.CallToolRequest, key string, dst any) error {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
