package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/docfill/internal/extract"
	docmcp "github.com/hurttlocker/docfill/internal/mcp"
	httpserver "github.com/hurttlocker/docfill/internal/server"
	"github.com/hurttlocker/docfill/internal/store"
	"github.com/hurttlocker/docfill/internal/substitute"
	"github.com/hurttlocker/docfill/internal/workflow"
)

func newRootCmd() *cobra.Command {
	f := &globalFlags{}
	var a *app

	root := &cobra.Command{
		Use:           "docfill",
		Short:         "Detect and fill the variable parts of documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default ~/.docfill/config.json)")
	pf.StringVar(&f.apiURL, "api-url", "", "completion endpoint of the local LLM server")
	pf.StringVar(&f.model, "model", "", "LLM model name")
	pf.StringVar(&f.llm, "llm", "", "provider/model, e.g. ollama/mistral")
	pf.StringVar(&f.dbPath, "db", "", "history database path")
	pf.StringVar(&f.logFile, "log-file", "", "JSON log file, rotated by size")
	pf.StringVar(&f.logLevel, "log-level", "warn", "debug, info, warn or error")
	pf.DurationVar(&f.timeout, "timeout", 0, "per-call LLM timeout, at most 10s")
	pf.BoolVar(&f.noStore, "no-store", false, "do not record history")
	pf.IntVar(&f.cacheSize, "cache-size", 0, "analysis cache capacity (default 100)")

	// withApp opens the shared services around a command's run.
	withApp := func(c *cobra.Command) *cobra.Command {
		run := c.RunE
		c.RunE = func(cmd *cobra.Command, args []string) error {
			var err error
			if a, err = newApp(f, cmd.ErrOrStderr()); err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, args)
		}
		return c
	}
	get := func() *app { return a }

	root.AddCommand(
		withApp(newAnalyzeCmd(get)),
		withApp(newFillCmd(get)),
		withApp(newPlaceholdersCmd(get)),
		withApp(newHistoryCmd(get)),
		withApp(newStatsCmd(get)),
		withApp(newServeCmd(get)),
		withApp(newMCPCmd(get)),
		newConfigCmd(f),
		newVersionCmd(),
	)
	return root
}

func newAnalyzeCmd(getApp func() *app) *cobra.Command {
	var clientPath string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Detect the variables of one or more documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			var client map[string]string
			if clientPath != "" {
				if err := readValues(clientPath, &client); err != nil {
					return err
				}
			}

			sessions, err := a.workflow.AnalyzeFiles(cmd.Context(), args, concurrency)
			if err != nil {
				return err
			}
			failed := 0
			for _, s := range sessions {
				if s.Status == workflow.StatusError {
					failed++
					continue
				}
				if len(client) > 0 {
					s.Result = extract.Prefill(s.Result, client)
				}
			}

			var out any = sessions
			if len(sessions) == 1 {
				out = sessions[0]
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents could not be analyzed", failed, len(sessions))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientPath, "client", "", "JSON or YAML file of known client fields used to prefill variables")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", workflow.DefaultBatchLimit, "documents analyzed at once")
	return cmd
}

func newFillCmd(getApp func() *app) *cobra.Command {
	var valuesPath, outPath string

	cmd := &cobra.Command{
		Use:   "fill <template>",
		Short: "Analyze a template and fill it with values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			var values map[string]any
			if err := readValues(valuesPath, &values); err != nil {
				return err
			}

			sess := a.workflow.Analyze(cmd.Context(), args[0])
			if sess.Status == workflow.StatusError {
				return errors.New(sess.Result.Error)
			}
			res, err := a.workflow.Create(cmd.Context(), sess.ID, values)
			if err != nil {
				return err
			}
			if len(res.Unresolved) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "unresolved: %s\n", strings.Join(res.Unresolved, ", "))
			}

			if outPath == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), res.Text)
				return err
			}
			if err := os.WriteFile(outPath, []byte(res.Text), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d replacements written to %s\n", res.Replacements, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&valuesPath, "values", "", "JSON or YAML file of variable values")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

func newPlaceholdersCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "placeholders <file>",
		Short: "List the placeholders of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := getApp().converter.ToText(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range substitute.Placeholders(doc.Text) {
				fmt.Fprintf(w, "%d\t%s\t%s\n", p.Start, p.Token, p.Name)
			}
			return nil
		},
	}
}

func newHistoryCmd(getApp func() *app) *cobra.Command {
	var limit, offset int
	var method string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			if a.store == nil {
				return errors.New("history is disabled (--no-store)")
			}
			records, err := a.store.ListAnalyses(cmd.Context(), store.ListOpts{Limit: limit, Offset: offset, Method: method})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tMETHOD\tVARS\tMS\tSOURCE")
			for _, r := range records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Method, r.VariableCount, r.ProcessingMS, r.SourcePath)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "maximum number of analyses")
	cmd.Flags().IntVar(&offset, "offset", 0, "analyses to skip")
	cmd.Flags().StringVar(&method, "method", "", "only this extraction method")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newStatsCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show history and cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			if a.store == nil {
				return errors.New("statistics are disabled (--no-store)")
			}
			st, err := a.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			cs, err := a.store.LatestCacheStats(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "analyses:   %d\n", st.AnalysisCount)
			fmt.Fprintf(w, "events:     %d\n", st.EventCount)
			fmt.Fprintf(w, "db size:    %d bytes\n", st.DBSizeBytes)
			if cs != nil {
				fmt.Fprintf(w, "cache:      %d hits, %d misses, %d evictions (%s)\n",
					cs.Hits, cs.Misses, cs.Evictions, cs.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newServeCmd(getApp func() *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			srv := httpserver.New(httpserver.Deps{
				Analyzer: a.analyzer,
				Engine:   a.engine,
				Store:    a.store,
				Logger:   a.logger,
				Version:  version,
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8765", "listen address")
	return cmd
}

func newMCPCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			s := docmcp.NewServer(docmcp.ServerConfig{
				Workflow: a.workflow,
				Analyzer: a.analyzer,
				Engine:   a.engine,
				Store:    a.store,
				Logger:   a.logger,
				Version:  version,
			})
			return server.ServeStdio(s)
		},
	}
}

func newConfigCmd(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration and where each value comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), resolveFlags(f))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docfill %s\n", version)
		},
	}
}

// readValues decodes a JSON or YAML mapping file into dst.
func readValues(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
