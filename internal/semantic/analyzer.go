// Package semantic is the default semantic analyzer for Go files. It
// works on a single parse tree plus the project and standard-library
// indexes; it does not type-check.
//
// Reported codes:
//   - unresolved-reference: an identifier not declared in the file, the
//     universe scope, the imports, or another file of the same package
//   - unused-import
//   - duplicate-declaration
//   - unknown-member: a selector on a standard-library package whose
//     export list is known and does not contain the name
//
// Import names of non-standard packages are guessed from their path, so
// unaliased non-standard imports are never reported as unused and
// selectors that might refer to them are never reported as unresolved.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/types"
	"path"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/parser"
	"github.com/dshills/gocontext-analysis/internal/stdlib"
	gctypes "github.com/dshills/gocontext-analysis/pkg/types"
)

// Source is the diagnostic source name for semantic diagnostics
const Source = "gocontext"

// ErrUnsupportedTree is returned for trees not produced by parser.Parser
var ErrUnsupportedTree = errors.New("semantic: unsupported parse tree")

var log = commonlog.GetLogger("gocontext.semantic")

// Analyzer checks one file
type Analyzer struct {
	actx *analysis.Context
}

// New creates an analyzer bound to actx
func New(actx *analysis.Context) *Analyzer {
	return &Analyzer{actx: actx}
}

// Factory adapts New to analysis.AnalyzerFactory
func Factory(actx *analysis.Context) analysis.Analyzer {
	return New(actx)
}

type importInfo struct {
	imp     gctypes.Import
	name    string
	stdlib  bool
	certain bool // name is known, not guessed
	used    bool
}

type checker struct {
	ctx     context.Context
	actx    *analysis.Context
	tree    *parser.GoTree
	std     *stdlib.Index
	imports map[string]*importInfo

	dotImport       bool
	guessedImports  bool
	unresolved      map[*ast.Ident]bool
	compositeKeys   map[*ast.Ident]bool
	selectorTargets map[*ast.Ident]bool
}

// Analyze reports diagnostics into the analysis context
func (a *Analyzer) Analyze(ctx context.Context) error {
	tree, ok := a.actx.Tree.(*parser.GoTree)
	if !ok || tree == nil || tree.File == nil {
		return fmt.Errorf("%s: %w (%T)", a.actx.FilePath, ErrUnsupportedTree, a.actx.Tree)
	}
	if a.actx.Symbols == nil {
		return fmt.Errorf("%s: missing symbol table", a.actx.FilePath)
	}

	std := a.actx.Stdlib
	if std == nil {
		var err error
		if std, err = stdlib.Default(); err != nil {
			return fmt.Errorf("load stdlib index: %w", err)
		}
	}

	c := &checker{
		ctx:             ctx,
		actx:            a.actx,
		tree:            tree,
		std:             std,
		imports:         make(map[string]*importInfo),
		unresolved:      make(map[*ast.Ident]bool, len(tree.File.Unresolved)),
		compositeKeys:   make(map[*ast.Ident]bool),
		selectorTargets: make(map[*ast.Ident]bool),
	}

	c.collectImports()
	c.checkDuplicates()
	c.scanTree()
	if err := c.checkUnresolved(); err != nil {
		return err
	}
	c.checkUnusedImports()
	return nil
}

func (c *checker) collectImports() {
	for _, imp := range c.actx.Symbols.Imports {
		switch imp.Alias {
		case "_":
			continue
		case ".":
			c.dotImport = true
			continue
		}

		info := &importInfo{
			imp:     imp,
			stdlib:  c.std.IsStdlib(imp.Path),
			certain: imp.Alias != "",
		}
		if imp.Alias != "" {
			info.name = imp.Alias
		} else {
			info.name = c.std.ImportName(imp.Path)
			info.certain = info.stdlib
		}
		if !info.certain {
			c.guessedImports = true
		}
		c.imports[info.name] = info
	}
}

func (c *checker) checkDuplicates() {
	for _, sym := range c.actx.Symbols.Duplicates() {
		c.actx.Report(gctypes.Diagnostic{
			Range:    sym.NameRange,
			Severity: gctypes.SeverityError,
			Code:     gctypes.CodeDuplicateDeclaration,
			Source:   Source,
			Message:  fmt.Sprintf("%s redeclared in this block", sym.Key()),
		})
	}
}

// scanTree records unresolved identifiers, composite literal keys, and
// selectors on imported packages
func (c *checker) scanTree() {
	for _, id := range c.tree.File.Unresolved {
		c.unresolved[id] = true
	}

	ast.Inspect(c.tree.File, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.CompositeLit:
			for _, elt := range n.Elts {
				if kv, ok := elt.(*ast.KeyValueExpr); ok {
					if id, ok := kv.Key.(*ast.Ident); ok {
						c.compositeKeys[id] = true
					}
				}
			}
		case *ast.SelectorExpr:
			id, ok := n.X.(*ast.Ident)
			if !ok || !c.unresolved[id] {
				return true
			}
			c.selectorTargets[id] = true
			if info, ok := c.imports[id.Name]; ok {
				info.used = true
				c.checkMember(info, n.Sel)
			}
		}
		return true
	})
}

func (c *checker) checkMember(info *importInfo, sel *ast.Ident) {
	if !info.stdlib {
		return
	}
	exists, known := c.std.HasExport(info.imp.Path, sel.Name)
	if known && !exists {
		c.actx.Report(gctypes.Diagnostic{
			Range:    c.tree.NodeRange(sel),
			Severity: gctypes.SeverityError,
			Code:     gctypes.CodeUnknownMember,
			Source:   Source,
			Message:  fmt.Sprintf("undefined: %s.%s", info.name, sel.Name),
		})
		return
	}
	c.actx.AddReference(info.imp.Path + "." + sel.Name)
}

func (c *checker) checkUnresolved() error {
	dir, pkg := path.Dir(c.actx.FilePath), c.actx.Symbols.PackageName

	// query each name once, report every occurrence
	declared := make(map[string]bool)
	for _, id := range c.tree.File.Unresolved {
		if c.resolvedLocally(id) {
			continue
		}
		if err := c.ctx.Err(); err != nil {
			return err
		}
		ok, seen := declared[id.Name]
		if !seen {
			ok = c.declaredInPackage(dir, pkg, id.Name)
			declared[id.Name] = ok
		}
		if ok {
			continue
		}
		c.actx.Report(gctypes.Diagnostic{
			Range:    c.tree.NodeRange(id),
			Severity: gctypes.SeverityError,
			Code:     gctypes.CodeUnresolvedReference,
			Source:   Source,
			Message:  "undefined: " + id.Name,
		})
	}
	return nil
}

// resolvedLocally reports whether id needs no project lookup
func (c *checker) resolvedLocally(id *ast.Ident) bool {
	switch {
	case id.Name == "_":
		return true
	case c.dotImport:
		return true
	case c.compositeKeys[id]:
		return true
	case types.Universe.Lookup(id.Name) != nil:
		return true
	case c.actx.Symbols.Declares(id.Name):
		return true
	}
	if info, ok := c.imports[id.Name]; ok {
		info.used = true
		return true
	}
	// might be a guessed-wrong import name
	return c.guessedImports && c.selectorTargets[id]
}

func (c *checker) declaredInPackage(dir, pkg, name string) bool {
	if c.actx.Index == nil {
		return false
	}
	found, err := c.actx.Index.LookupSymbol(c.ctx, dir, pkg, name, c.actx.FilePath)
	if err != nil {
		log.Warningf("project index lookup for %s failed: %s", name, err)
		// treat as declared rather than report a false error
		return true
	}
	if found {
		c.actx.AddReference(pkg + "." + name)
	}
	return found
}

func (c *checker) checkUnusedImports() {
	unused := make([]*importInfo, 0)
	for _, info := range c.imports {
		if !info.used && info.certain {
			unused = append(unused, info)
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		return unused[i].imp.Range.Start.Before(unused[j].imp.Range.Start)
	})

	for _, info := range unused {
		msg := fmt.Sprintf("%q imported and not used", info.imp.Path)
		if info.imp.Alias != "" {
			msg = fmt.Sprintf("%q imported as %s and not used", info.imp.Path, info.imp.Alias)
		}
		c.actx.Report(gctypes.Diagnostic{
			Range:    info.imp.Range,
			Severity: gctypes.SeverityWarning,
			Code:     gctypes.CodeUnusedImport,
			Source:   Source,
			Message:  msg,
		})
	}
}
