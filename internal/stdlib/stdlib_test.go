package stdlib

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	idx, err := Default()
	require.NoError(t, err)
	require.NotNil(t, idx)

	assert.Equal(t, "go1.25", idx.Version())
	assert.True(t, idx.IsStdlib("fmt"))
	assert.True(t, idx.IsStdlib("net/http"))
	assert.False(t, idx.IsStdlib("github.com/stretchr/testify"))

	name, ok := idx.PackageName("math/rand/v2")
	assert.True(t, ok)
	assert.Equal(t, "rand", name)
}

func TestHasExport(t *testing.T) {
	idx, err := Default()
	require.NoError(t, err)

	exists, known := idx.HasExport("errors", "New")
	assert.True(t, known)
	assert.True(t, exists)

	exists, known = idx.HasExport("errors", "Wrap")
	assert.True(t, known)
	assert.False(t, exists)

	// fmt has no export list in the embedded index
	_, known = idx.HasExport("fmt", "Println")
	assert.False(t, known)
}

func TestLoad(t *testing.T) {
	data := `
version: test
packages:
  - path: example/pkg
    name: pkg
    exports: [A, B]
`
	idx, err := Load(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, []string{"example/pkg"}, idx.Paths())

	_, err = Parse([]byte("packages:\n  - name: nopath\n"))
	assert.Error(t, err)
}

func TestImportName(t *testing.T) {
	idx, err := Default()
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"fmt", "fmt"},
		{"path/filepath", "filepath"},
		{"gopkg.in/yaml.v3", "yaml"},
		{"github.com/hashicorp/golang-lru/v2", "golang_lru"},
		{"github.com/mattn/go-sqlite3", "sqlite3"},
		{"github.com/google/uuid", "uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.ImportName(tt.path))
		})
	}
}
