package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/docfill/internal/cache"
	"github.com/hurttlocker/docfill/internal/config"
	"github.com/hurttlocker/docfill/internal/convert"
	"github.com/hurttlocker/docfill/internal/extract"
	"github.com/hurttlocker/docfill/internal/llm"
	"github.com/hurttlocker/docfill/internal/logging"
	"github.com/hurttlocker/docfill/internal/store"
	"github.com/hurttlocker/docfill/internal/substitute"
	"github.com/hurttlocker/docfill/internal/workflow"
)

type globalFlags struct {
	configPath string
	apiURL     string
	model      string
	llm        string
	dbPath     string
	logFile    string
	logLevel   string
	timeout    time.Duration
	noStore    bool
	cacheSize  int
}

// app holds the services shared by the subcommands.
type app struct {
	cfg       config.ResolvedConfig
	logger    *zap.Logger
	store     store.Store
	cache     *cache.AnalysisCache
	converter *convert.Converter
	analyzer  *extract.Analyzer
	engine    *substitute.Engine
	workflow  *workflow.Workflow
}

func resolveFlags(f *globalFlags) config.ResolvedConfig {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath: f.configPath,
		CLIAPIURL:  f.apiURL,
		CLIModel:   f.model,
		CLIDBPath:  f.dbPath,
		CLILogFile: f.logFile,
		CLITimeout: f.timeout,
	})
}

func newApp(f *globalFlags, stderr io.Writer) (*app, error) {
	cfg := resolveFlags(f)

	logger := logging.New(logging.Options{File: cfg.LogFile.Value, Level: f.logLevel, Console: stderr})
	if cfg.FileError != "" {
		logger.Warn("config file ignored", zap.String("path", cfg.ConfigPath), zap.String("error", cfg.FileError))
	}

	llmCfg := cfg.LLMConfig()
	if strings.TrimSpace(f.llm) != "" {
		parsed, err := llm.ParseLLMFlag(f.llm)
		if err != nil {
			return nil, err
		}
		llmCfg.Provider, llmCfg.Model = parsed.Provider, parsed.Model
	}
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if !f.noStore {
		st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store = st
	}

	cacheOpts := cache.Options{Capacity: f.cacheSize}
	if a.store != nil {
		cacheOpts.Sink = workflow.CacheStatsSink(a.store, logger.Named("cache"))
	}
	a.cache = cache.NewAnalysisCache(cacheOpts)

	a.converter = convert.NewConverter(logger)
	a.analyzer = extract.NewAnalyzer(
		extract.WithProvider(provider),
		extract.WithLLMOptions(cfg.CompletionOpts(extract.DefaultLLMOptions)),
		extract.WithTimeout(cfg.TimeoutDuration()),
		extract.WithCache(a.cache),
		extract.WithLogger(logger),
	)
	a.engine = substitute.NewEngine(logger)
	a.workflow = workflow.New(workflow.Deps{
		Converter: a.converter,
		Analyzer:  a.analyzer,
		Engine:    a.engine,
		Store:     a.store,
		Logger:    logger,
	})

	logger.Debug("configuration resolved",
		zap.String("api_url", cfg.APIURL.Value),
		zap.String("model", llmCfg.Model),
		zap.String("db", cfg.DBPath.Value),
		zap.Duration("timeout", cfg.TimeoutDuration()))
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
