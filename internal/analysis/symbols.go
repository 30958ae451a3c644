package analysis

import (
	"path"

	"github.com/dshills/gocontext-analysis/pkg/types"
)

// SymbolTable holds the declarations of a single file
type SymbolTable struct {
	FilePath    string
	PackageName string
	Symbols     []types.Symbol
	Imports     []types.Import

	byKey map[string][]int
}

// NewSymbolTable creates a table and indexes its symbols by key
func NewSymbolTable(filePath, packageName string, symbols []types.Symbol, imports []types.Import) *SymbolTable {
	st := &SymbolTable{
		FilePath:    filePath,
		PackageName: packageName,
		Symbols:     symbols,
		Imports:     imports,
		byKey:       make(map[string][]int, len(symbols)),
	}
	for i := range symbols {
		key := symbols[i].Key()
		st.byKey[key] = append(st.byKey[key], i)
	}
	return st
}

// Lookup returns all symbols declared with key (name, or Receiver.Name)
func (st *SymbolTable) Lookup(key string) []types.Symbol {
	idxs := st.byKey[key]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]types.Symbol, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, st.Symbols[i])
	}
	return out
}

// Declares reports whether the file declares a package-level name
func (st *SymbolTable) Declares(name string) bool {
	for _, i := range st.byKey[name] {
		if st.Symbols[i].IsPackageLevel() {
			return true
		}
	}
	return false
}

// Duplicates returns, for every key declared more than once at package
// level (or more than once per receiver), all the colliding symbols after
// the first.
func (st *SymbolTable) Duplicates() []types.Symbol {
	var dups []types.Symbol
	for i := range st.Symbols {
		sym := st.Symbols[i]
		if sym.Name == "_" || (sym.Name == "init" && sym.Kind == types.KindFunction) {
			continue
		}
		idxs := st.byKey[sym.Key()]
		if len(idxs) > 1 && idxs[0] != i {
			dups = append(dups, sym)
		}
	}
	return dups
}

// FileIndex is a per-file fragment merged into the project index
type FileIndex struct {
	FilePath    string
	Dir         string
	PackageName string
	ContentHash [32]byte
	Symbols     []types.Symbol
	Imports     []types.Import
}

// NewFileIndex derives an index fragment from a symbol table
func NewFileIndex(st *SymbolTable, contentHash [32]byte) *FileIndex {
	symbols := make([]types.Symbol, len(st.Symbols))
	copy(symbols, st.Symbols)
	imports := make([]types.Import, len(st.Imports))
	copy(imports, st.Imports)
	return &FileIndex{
		FilePath:    st.FilePath,
		Dir:         path.Dir(st.FilePath),
		PackageName: st.PackageName,
		ContentHash: contentHash,
		Symbols:     symbols,
		Imports:     imports,
	}
}
