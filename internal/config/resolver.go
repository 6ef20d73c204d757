// Package config resolves docfill settings from CLI flags, environment
// variables, a config file and built-in defaults, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/docfill/internal/llm"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Environment variables read by ResolveConfig.
const (
	EnvConfig  = "DOCFILL_CONFIG"
	EnvAPIURL  = "DOCFILL_API_URL"
	EnvModel   = "DOCFILL_MODEL"
	EnvDB      = "DOCFILL_DB"
	EnvLogFile = "DOCFILL_LOG_FILE"
)

// MaxTimeout bounds every completion call regardless of configuration.
const MaxTimeout = 10 * time.Second

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath string
	CLIAPIURL  string
	CLIModel   string
	CLIDBPath  string
	CLILogFile string
	// CLITimeout overrides the file timeout when positive.
	CLITimeout time.Duration
}

// ResolvedConfig is the effective configuration. Completion options that the
// file leaves unset stay at their zero value and are filled in by the caller.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`
	// FileError is set when the config file existed but could not be used.
	// Resolution still succeeds with defaults.
	FileError string `json:"file_error,omitempty"`

	APIURL  ResolvedValue `json:"api_url"`
	Model   ResolvedValue `json:"model"`
	DBPath  ResolvedValue `json:"db_path"`
	LogFile ResolvedValue `json:"log_file"`
	Timeout ResolvedValue `json:"timeout"`

	Options FileOptions `json:"options"`
}

// FileOptions mirrors the "options" object of the config file.
type FileOptions struct {
	Temperature      *float64 `yaml:"temperature" json:"temperature,omitempty"`
	NumPredict       *int     `yaml:"numPredict" json:"numPredict,omitempty"`
	TopP             *float64 `yaml:"topP" json:"topP,omitempty"`
	FrequencyPenalty *float64 `yaml:"frequencyPenalty" json:"frequencyPenalty,omitempty"`
	Stop             []string `yaml:"stop" json:"stop,omitempty"`
	// Timeout is in milliseconds.
	Timeout *int `yaml:"timeout" json:"timeout,omitempty"`
}

// fileConfig is the on-disk shape. JSON is a subset of YAML, so one parser
// reads both spellings.
type fileConfig struct {
	APIURL  string      `yaml:"apiUrl"`
	Model   string      `yaml:"model"`
	DBPath  string      `yaml:"dbPath"`
	LogFile string      `yaml:"logFile"`
	Options FileOptions `yaml:"options"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".docfill", "config.json")
}

func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".docfill", "docfill.db")
}

// ResolveConfig never fails on a missing or malformed config file: the
// problem is recorded in FileError and defaults apply.
func ResolveConfig(opts ResolveOptions) ResolvedConfig {
	path := firstNonEmpty(opts.ConfigPath, os.Getenv(EnvConfig))
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath()
	}
	path = expandUserPath(strings.TrimSpace(path))

	out := ResolvedConfig{
		ConfigPath: path,
		APIURL:     ResolvedValue{Value: llm.DefaultURL, Source: SourceDefault, From: "built-in default"},
		Model:      ResolvedValue{Value: llm.DefaultModel, Source: SourceDefault, From: "built-in default"},
		DBPath:     ResolvedValue{Value: DefaultDBPath(), Source: SourceDefault, From: "built-in default"},
		Timeout:    ResolvedValue{Value: MaxTimeout.String(), Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		out.FileError = err.Error()
	}
	if cfg != nil {
		apply(&out.APIURL, cfg.APIURL, SourceConfig, path)
		apply(&out.Model, cfg.Model, SourceConfig, path)
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.LogFile, cfg.LogFile, SourceConfig, path)
		if cfg.Options.Timeout != nil {
			d := clampTimeout(time.Duration(*cfg.Options.Timeout) * time.Millisecond)
			out.Timeout = ResolvedValue{Value: d.String(), Source: SourceConfig, From: path}
		}
		out.Options = cfg.Options
	}

	applyEnv(&out.APIURL, EnvAPIURL)
	applyEnv(&out.Model, EnvModel)
	applyEnv(&out.DBPath, EnvDB)
	applyEnv(&out.LogFile, EnvLogFile)

	apply(&out.APIURL, opts.CLIAPIURL, SourceCLI, "--api-url")
	apply(&out.Model, opts.CLIModel, SourceCLI, "--model")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.LogFile, opts.CLILogFile, SourceCLI, "--log-file")
	if opts.CLITimeout > 0 {
		out.Timeout = ResolvedValue{Value: clampTimeout(opts.CLITimeout).String(), Source: SourceCLI, From: "--timeout"}
	}

	out.DBPath.Value = expandUserPath(out.DBPath.Value)
	out.LogFile.Value = expandUserPath(out.LogFile.Value)
	return out
}

// TimeoutDuration returns the per-call timeout, clamped to (0, MaxTimeout].
func (r ResolvedConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.Timeout.Value)
	if err != nil {
		return MaxTimeout
	}
	return clampTimeout(d)
}

// LLMConfig builds the provider configuration.
func (r ResolvedConfig) LLMConfig() llm.Config {
	return llm.Config{
		Provider: llm.DefaultProvider,
		Model:    r.Model.Value,
		URL:      r.APIURL.Value,
		Timeout:  r.TimeoutDuration(),
	}
}

// CompletionOpts overlays the file options onto base.
func (r ResolvedConfig) CompletionOpts(base llm.CompletionOpts) llm.CompletionOpts {
	o := r.Options
	if o.Temperature != nil {
		base.Temperature = *o.Temperature
	}
	if o.NumPredict != nil {
		base.NumPredict = *o.NumPredict
	}
	if o.TopP != nil {
		base.TopP = *o.TopP
	}
	if o.FrequencyPenalty != nil {
		base.FrequencyPenalty = *o.FrequencyPenalty
	}
	if len(o.Stop) > 0 {
		base.Stop = append([]string(nil), o.Stop...)
	}
	return base
}

func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
