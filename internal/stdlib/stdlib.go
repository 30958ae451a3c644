// Package stdlib holds the precomputed standard-library index consulted by
// semantic analysis. The index is data loaded at startup; nothing here
// inspects the Go toolchain.
package stdlib

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed stdlib.yaml
var embedded []byte

// Package describes one standard-library package in the index file
type Package struct {
	Path    string   `yaml:"path"`
	Name    string   `yaml:"name,omitempty"`
	Exports []string `yaml:"exports,omitempty"`
}

type indexFile struct {
	Version  string    `yaml:"version"`
	Packages []Package `yaml:"packages"`
}

type entry struct {
	name     string
	exports  map[string]struct{}
	complete bool
}

// Index answers questions about standard-library packages. It is immutable
// after loading and safe for concurrent use.
type Index struct {
	version  string
	packages map[string]*entry
}

var (
	defaultOnce  sync.Once
	defaultIndex *Index
	defaultErr   error
)

// Default returns the index embedded in the binary
func Default() (*Index, error) {
	defaultOnce.Do(func() {
		defaultIndex, defaultErr = Parse(embedded)
	})
	return defaultIndex, defaultErr
}

// LoadFile reads an index from a YAML file on disk
func LoadFile(filePath string) (*Index, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open stdlib index: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load reads an index from YAML
func Load(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdlib index: %w", err)
	}
	return Parse(data)
}

// Parse decodes an index from YAML bytes
func Parse(data []byte) (*Index, error) {
	var file indexFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode stdlib index: %w", err)
	}

	idx := &Index{
		version:  file.Version,
		packages: make(map[string]*entry, len(file.Packages)),
	}
	for _, pkg := range file.Packages {
		if pkg.Path == "" {
			return nil, fmt.Errorf("stdlib index: package entry without path")
		}
		e := &entry{
			name:     pkg.Name,
			complete: len(pkg.Exports) > 0,
		}
		if e.name == "" {
			e.name = path.Base(pkg.Path)
		}
		if e.complete {
			e.exports = make(map[string]struct{}, len(pkg.Exports))
			for _, name := range pkg.Exports {
				e.exports[name] = struct{}{}
			}
		}
		idx.packages[pkg.Path] = e
	}
	return idx, nil
}

// Version returns the toolchain version the index was generated for
func (i *Index) Version() string {
	return i.version
}

// Len returns the number of indexed packages
func (i *Index) Len() int {
	return len(i.packages)
}

// IsStdlib reports whether importPath is a known standard-library package
func (i *Index) IsStdlib(importPath string) bool {
	_, ok := i.packages[importPath]
	return ok
}

// PackageName returns the declared package name for a stdlib import path
func (i *Index) PackageName(importPath string) (string, bool) {
	e, ok := i.packages[importPath]
	if !ok {
		return "", false
	}
	return e.name, true
}

// HasExport reports whether pkg exports name. known is false when the
// index does not carry a complete export list for the package, in which
// case exists must not be trusted.
func (i *Index) HasExport(importPath, name string) (exists, known bool) {
	e, ok := i.packages[importPath]
	if !ok || !e.complete {
		return false, false
	}
	_, exists = e.exports[name]
	return exists, true
}

// Paths returns all indexed import paths in sorted order
func (i *Index) Paths() []string {
	paths := make([]string, 0, len(i.packages))
	for p := range i.packages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ImportName guesses the package name for importPath. Stdlib paths use the
// index; other paths use the last element with a major-version suffix
// (/v2, .v3) and a go- prefix stripped.
func (i *Index) ImportName(importPath string) string {
	if name, ok := i.PackageName(importPath); ok {
		return name
	}
	return guessName(importPath)
}

func guessName(importPath string) string {
	parts := strings.Split(importPath, "/")
	name := parts[len(parts)-1]
	if len(parts) > 1 && isMajorVersion(name) {
		name = parts[len(parts)-2]
	}
	if dot := strings.LastIndex(name, "."); dot > 0 && isMajorVersion(name[dot+1:]) {
		name = name[:dot]
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
