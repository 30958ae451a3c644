package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/artifact"
	"github.com/dshills/gocontext-analysis/internal/storage"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

func setupIndex(t *testing.T) (*Index, storage.Storage) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ix, err := Open(context.Background(), store, "/src", nil)
	require.NoError(t, err)
	return ix, store
}

func fragment(filePath, pkg, content string, names ...string) *analysis.FileIndex {
	symbols := make([]types.Symbol, 0, len(names))
	for i, name := range names {
		symbols = append(symbols, types.Symbol{
			Name:      name,
			Kind:      types.KindFunction,
			Package:   pkg,
			Scope:     types.ScopeExported,
			Range:     types.NewRange(i, 0, i, 20),
			NameRange: types.NewRange(i, 5, i, 5+len(name)),
		})
	}
	st := analysis.NewSymbolTable(filePath, pkg, symbols, []types.Import{{Path: "fmt"}})
	return analysis.NewFileIndex(st, artifact.Hash(content))
}

func TestOpen_ReusesProject(t *testing.T) {
	ix, store := setupIndex(t)
	assert.NotNil(t, ix.Stdlib())
	assert.Equal(t, "/src", ix.RootPath())

	again, err := Open(context.Background(), store, "/src", nil)
	require.NoError(t, err)
	assert.Equal(t, ix.ProjectID(), again.ProjectID())
}

func TestUpdateFile_LookupSymbol(t *testing.T) {
	ix, _ := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/a.go", "p", "a", "Helper")))
	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/b.go", "p", "b", "Other")))

	found, err := ix.LookupSymbol(ctx, "/src", "p", "Helper", "/src/b.go")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = ix.LookupSymbol(ctx, "/src", "p", "Helper", "/src/a.go")
	require.NoError(t, err)
	assert.False(t, found, "a file never resolves names through its own fragment")

	found, err = ix.LookupSymbol(ctx, "/other", "p", "Helper", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateFile_ReplacesFragment(t *testing.T) {
	ix, _ := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/a.go", "p", "v1", "Old")))
	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/a.go", "p", "v2", "New")))

	found, err := ix.LookupSymbol(ctx, "/src", "p", "Old", "")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = ix.LookupSymbol(ctx, "/src", "p", "New", "")
	require.NoError(t, err)
	assert.True(t, found)

	status, err := ix.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 1, status.SymbolsCount)
	assert.Equal(t, 1, status.ImportsCount)
}

func TestUpdateFile_SkipsUnchangedHash(t *testing.T) {
	ix, store := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/a.go", "p", "same", "Helper")))
	before, err := store.GetFile(ctx, ix.ProjectID(), "/src/a.go")
	require.NoError(t, err)

	// Same content hash: the differing symbol list is never written
	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/a.go", "p", "same", "Different")))
	after, err := store.GetFile(ctx, ix.ProjectID(), "/src/a.go")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	found, err := ix.LookupSymbol(ctx, "/src", "p", "Different", "")
	require.NoError(t, err)
	assert.False(t, found)

	hash, ok, err := ix.FileHash(ctx, "/src/a.go")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, artifact.Hash("same"), hash)
}

func TestUpdateFile_Nil(t *testing.T) {
	ix, _ := setupIndex(t)
	assert.NoError(t, ix.UpdateFile(context.Background(), nil))
}

func TestRemoveFile(t *testing.T) {
	ix, _ := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/a.go", "p", "a", "Helper")))
	require.NoError(t, ix.RemoveFile(ctx, "/src/a.go"))
	require.NoError(t, ix.RemoveFile(ctx, "/src/never.go"))

	found, err := ix.LookupSymbol(ctx, "/src", "p", "Helper", "")
	require.NoError(t, err)
	assert.False(t, found)

	_, ok, err := ix.FileHash(ctx, "/src/a.go")
	require.NoError(t, err)
	assert.False(t, ok)

	files, err := ix.Files(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSearchSymbols(t *testing.T) {
	ix, _ := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.UpdateFile(ctx, fragment("/src/a.go", "p", "a", "ParseConfig", "Render")))

	hits, err := ix.SearchSymbols(ctx, "Parse", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ParseConfig", hits[0].Symbol.Name)
	assert.Equal(t, "/src/a.go", hits[0].FilePath)
	assert.Equal(t, types.NewRange(0, 5, 0, 16), hits[0].Symbol.NameRange)
}

func TestMarkIndexed(t *testing.T) {
	ix, store := setupIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.MarkIndexed(ctx, "example.com/p", "1.25", 3))

	project, err := store.GetProject(ctx, "/src")
	require.NoError(t, err)
	assert.Equal(t, "example.com/p", project.ModuleName)
	assert.Equal(t, 3, project.TotalFiles)
	assert.False(t, project.LastIndexedAt.IsZero())
}
