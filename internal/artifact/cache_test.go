package artifact

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-analysis/internal/analysis"
)

func TestTableGetPut(t *testing.T) {
	tbl, err := NewTable[string]("test", 4, 0)
	require.NoError(t, err)

	tbl.Put("a.go", "package a", "tree-a")

	got, ok := tbl.Get("a.go", "package a")
	assert.True(t, ok)
	assert.Equal(t, "tree-a", got)

	_, ok = tbl.Get("a.go", "package b")
	assert.False(t, ok, "different content must miss")

	_, ok = tbl.Get("b.go", "package a")
	assert.False(t, ok, "different key must miss")
}

func TestTableIdenticalContentAcrossVersions(t *testing.T) {
	tbl, err := NewTable[int]("test", 4, 0)
	require.NoError(t, err)

	tbl.Put("u", "x := 1", 1)
	tbl.Put("u", "x := 12", 2)
	_, ok := tbl.Get("u", "x := 1")
	assert.False(t, ok, "overwritten entry is gone")

	tbl.Put("u", "x := 1", 3)
	got, ok := tbl.Get("u", "x := 1")
	assert.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestTableEvictsOldestWrite(t *testing.T) {
	tbl, err := NewTable[string]("test", 3, 0)
	require.NoError(t, err)

	tbl.Put("a", "1", "A")
	tbl.Put("b", "2", "B")
	tbl.Put("c", "3", "C")

	// reads must not protect an entry from eviction
	_, ok := tbl.Get("a", "1")
	require.True(t, ok)

	tbl.Put("d", "4", "D")
	assert.Equal(t, 3, tbl.Len())

	_, ok = tbl.Get("a", "1")
	assert.False(t, ok, "oldest write evicted")
	for _, k := range []struct{ key, content string }{{"b", "2"}, {"c", "3"}, {"d", "4"}} {
		_, ok := tbl.Get(k.key, k.content)
		assert.True(t, ok, k.key)
	}

	// rewriting refreshes the timestamp
	tbl.Put("b", "2", "B2")
	tbl.Put("e", "5", "E")
	_, ok = tbl.Get("c", "3")
	assert.False(t, ok, "c is now the oldest write")
	_, ok = tbl.Get("b", "2")
	assert.True(t, ok)
}

func TestTableOverwriteDoesNotEvict(t *testing.T) {
	tbl, err := NewTable[string]("test", 2, 0)
	require.NoError(t, err)

	tbl.Put("a", "1", "A")
	tbl.Put("b", "2", "B")
	tbl.Put("a", "1", "A2")

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, int64(0), tbl.evictions.Load())
}

func TestTableMaxAge(t *testing.T) {
	tbl, err := NewTable[string]("test", 4, time.Minute)
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tbl.now = func() time.Time { return now }

	tbl.Put("old", "x", "X")
	now = now.Add(30 * time.Second)
	tbl.Put("new", "y", "Y")

	now = now.Add(45 * time.Second)
	_, ok := tbl.Get("old", "x")
	assert.False(t, ok, "expired entry is a miss")
	_, ok = tbl.Get("new", "y")
	assert.True(t, ok)

	assert.Equal(t, 1, tbl.Prune())
	assert.Equal(t, 1, tbl.Len())
}

func TestTableInvalidate(t *testing.T) {
	tbl, err := NewTable[string]("test", 4, 0)
	require.NoError(t, err)

	tbl.Put("a", "1", "A")
	tbl.Put("b", "2", "B")

	tbl.Invalidate("a")
	_, ok := tbl.Get("a", "1")
	assert.False(t, ok)
	assert.Equal(t, 1, tbl.Len())

	tbl.InvalidateAll()
	assert.Equal(t, 0, tbl.Len())
}

func TestCacheStats(t *testing.T) {
	c, err := New(Options{ParseEntries: 2, SymbolTableEntries: 2, AnalysisEntries: 1})
	require.NoError(t, err)

	c.Parses().Put("a", "x", &analysis.ParseResult{})
	c.Parses().Put("b", "y", &analysis.ParseResult{})
	c.Parses().Put("c", "z", &analysis.ParseResult{})
	c.Symbols().Put("a", "x", analysis.NewSymbolTable("a.go", "a", nil, nil))
	c.Analyses().Put("a", "x", &analysis.Bundle{})

	_, _ = c.Parses().Get("c", "z")
	_, _ = c.Parses().Get("a", "x")

	st := c.Stats()
	assert.Equal(t, 2, st.ParseEntries)
	assert.Equal(t, 1, st.SymbolTableEntries)
	assert.Equal(t, 1, st.AnalysisEntries)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Evictions)

	c.Invalidate("a")
	st = c.Stats()
	assert.Equal(t, 0, st.SymbolTableEntries)
	assert.Equal(t, 0, st.AnalysisEntries)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Stats().ParseEntries)
}

func TestCacheDefaults(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)

	for i := 0; i < DefaultAnalysisEntries+10; i++ {
		c.Analyses().Put(fmt.Sprintf("k%d", i), "same", &analysis.Bundle{})
	}
	assert.Equal(t, DefaultAnalysisEntries, c.Stats().AnalysisEntries)
}

func TestTableConcurrentUse(t *testing.T) {
	tbl, err := NewTable[int]("test", 16, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				content := fmt.Sprintf("c%d", i)
				tbl.Put(key, content, i)
				if v, ok := tbl.Get(key, content); ok {
					assert.GreaterOrEqual(t, v, 0)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, tbl.Len(), 16)
}
