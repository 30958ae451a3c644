package artifact

import (
	"fmt"
	"time"

	"github.com/dshills/gocontext-analysis/internal/analysis"
)

// Default table sizes
const (
	DefaultParseEntries       = 256
	DefaultSymbolTableEntries = 256
	DefaultAnalysisEntries    = 128
)

// Options configures a Cache. Zero sizes use the defaults.
type Options struct {
	ParseEntries       int
	SymbolTableEntries int
	AnalysisEntries    int
	MaxAge             time.Duration
}

// Stats reports table sizes and counters
type Stats struct {
	ParseEntries       int   `json:"parse_entries"`
	SymbolTableEntries int   `json:"symbol_table_entries"`
	AnalysisEntries    int   `json:"analysis_entries"`
	Hits               int64 `json:"hits"`
	Misses             int64 `json:"misses"`
	Evictions          int64 `json:"evictions"`
}

// Cache groups the parse, symbol-table, and full-analysis tables
type Cache struct {
	parses   *Table[*analysis.ParseResult]
	symbols  *Table[*analysis.SymbolTable]
	analyses *Table[*analysis.Bundle]
}

// New creates a cache with the given options
func New(opts Options) (*Cache, error) {
	parses, err := NewTable[*analysis.ParseResult]("parse", orDefault(opts.ParseEntries, DefaultParseEntries), opts.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	symbols, err := NewTable[*analysis.SymbolTable]("symbols", orDefault(opts.SymbolTableEntries, DefaultSymbolTableEntries), opts.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("symbol table: %w", err)
	}
	analyses, err := NewTable[*analysis.Bundle]("analysis", orDefault(opts.AnalysisEntries, DefaultAnalysisEntries), opts.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("analysis table: %w", err)
	}
	return &Cache{parses: parses, symbols: symbols, analyses: analyses}, nil
}

// Parses returns the parse-result table
func (c *Cache) Parses() *Table[*analysis.ParseResult] { return c.parses }

// Symbols returns the symbol-table table
func (c *Cache) Symbols() *Table[*analysis.SymbolTable] { return c.symbols }

// Analyses returns the full-analysis table
func (c *Cache) Analyses() *Table[*analysis.Bundle] { return c.analyses }

// Invalidate drops key from every table
func (c *Cache) Invalidate(key string) {
	c.parses.Invalidate(key)
	c.symbols.Invalidate(key)
	c.analyses.Invalidate(key)
}

// InvalidateAll empties every table
func (c *Cache) InvalidateAll() {
	c.parses.InvalidateAll()
	c.symbols.InvalidateAll()
	c.analyses.InvalidateAll()
}

// Prune drops expired entries from every table
func (c *Cache) Prune() int {
	return c.parses.Prune() + c.symbols.Prune() + c.analyses.Prune()
}

// Stats returns entry counts and aggregate hit/miss/eviction counters
func (c *Cache) Stats() Stats {
	return Stats{
		ParseEntries:       c.parses.Len(),
		SymbolTableEntries: c.symbols.Len(),
		AnalysisEntries:    c.analyses.Len(),
		Hits:               c.parses.hits.Load() + c.symbols.hits.Load() + c.analyses.hits.Load(),
		Misses:             c.parses.misses.Load() + c.symbols.misses.Load() + c.analyses.misses.Load(),
		Evictions:          c.parses.evictions.Load() + c.symbols.evictions.Load() + c.analyses.evictions.Load(),
	}
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
