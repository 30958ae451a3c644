// Package config loads engine settings from an optional YAML file, then
// applies GOCONTEXT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDBPath keeps the project index in memory
const DefaultDBPath = ":memory:"

// Config holds every tunable of the engine
type Config struct {
	// DBPath is the SQLite file for the project index
	DBPath string `json:"db_path" yaml:"db_path"`

	// Workspace is indexed on startup when set
	Workspace string `json:"workspace" yaml:"workspace"`

	// StdlibPath replaces the embedded stdlib index
	StdlibPath string `json:"stdlib_path" yaml:"stdlib_path"`

	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Indexer   IndexerConfig   `json:"indexer" yaml:"indexer"`
	Watcher   WatcherConfig   `json:"watcher" yaml:"watcher"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// SchedulerConfig controls debounce delays and run limits
type SchedulerConfig struct {
	Debounce        time.Duration `json:"debounce" yaml:"debounce"`
	FastDebounce    time.Duration `json:"fast_debounce" yaml:"fast_debounce"`
	AnalysisTimeout time.Duration `json:"analysis_timeout" yaml:"analysis_timeout"`
}

// CacheConfig sizes the artifact tables
type CacheConfig struct {
	ParseEntries       int           `json:"parse_entries" yaml:"parse_entries"`
	SymbolTableEntries int           `json:"symbol_table_entries" yaml:"symbol_table_entries"`
	AnalysisEntries    int           `json:"analysis_entries" yaml:"analysis_entries"`
	MaxAge             time.Duration `json:"max_age" yaml:"max_age"`
}

// IndexerConfig controls workspace passes
type IndexerConfig struct {
	Workers       int  `json:"workers" yaml:"workers"`
	IncludeTests  bool `json:"include_tests" yaml:"include_tests"`
	IncludeVendor bool `json:"include_vendor" yaml:"include_vendor"`
}

// WatcherConfig controls file watching
type WatcherConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// LogConfig controls commonlog output
type LogConfig struct {
	// Verbosity follows commonlog: 0 notices, 1 info, 2 debug, negative is quieter
	Verbosity int    `json:"verbosity" yaml:"verbosity"`
	File      string `json:"file" yaml:"file"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DBPath: DefaultDBPath,
		Scheduler: SchedulerConfig{
			Debounce:     500 * time.Millisecond,
			FastDebounce: 100 * time.Millisecond,
		},
		Cache: CacheConfig{
			ParseEntries:       256,
			SymbolTableEntries: 256,
			AnalysisEntries:    128,
		},
		Indexer: IndexerConfig{
			IncludeTests: true,
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Verbosity: 1,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from GOCONTEXT_* variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
		return nil
	}

	str("GOCONTEXT_DB_PATH", &c.DBPath)
	str("GOCONTEXT_WORKSPACE", &c.Workspace)
	str("GOCONTEXT_STDLIB_PATH", &c.StdlibPath)
	str("GOCONTEXT_LOG_FILE", &c.Log.File)

	return errors.Join(
		dur("GOCONTEXT_DEBOUNCE", &c.Scheduler.Debounce),
		dur("GOCONTEXT_FAST_DEBOUNCE", &c.Scheduler.FastDebounce),
		dur("GOCONTEXT_ANALYSIS_TIMEOUT", &c.Scheduler.AnalysisTimeout),
		dur("GOCONTEXT_CACHE_MAX_AGE", &c.Cache.MaxAge),
		num("GOCONTEXT_CACHE_ENTRIES", &c.Cache.AnalysisEntries),
		num("GOCONTEXT_WORKERS", &c.Indexer.Workers),
		num("GOCONTEXT_LOG_VERBOSITY", &c.Log.Verbosity),
		flag("GOCONTEXT_WATCH", &c.Watcher.Enabled),
	)
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must not be empty"))
	}
	if c.Scheduler.Debounce < 0 || c.Scheduler.FastDebounce < 0 || c.Scheduler.AnalysisTimeout < 0 {
		errs = append(errs, errors.New("scheduler durations must not be negative"))
	}
	if c.Cache.ParseEntries < 0 || c.Cache.SymbolTableEntries < 0 || c.Cache.AnalysisEntries < 0 {
		errs = append(errs, errors.New("cache sizes must not be negative"))
	}
	if c.Cache.MaxAge < 0 {
		errs = append(errs, errors.New("cache max_age must not be negative"))
	}
	if c.Indexer.Workers < 0 {
		errs = append(errs, errors.New("indexer workers must not be negative"))
	}
	if c.Watcher.Debounce < 0 {
		errs = append(errs, errors.New("watcher debounce must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
