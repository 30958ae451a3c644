// Package symbols builds per-file symbol tables from Go parse trees.
package symbols

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/internal/parser"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// ErrUnsupportedTree is returned for trees not produced by parser.Parser
var ErrUnsupportedTree = errors.New("unsupported parse tree")

// Builder extracts package-level declarations, methods, struct fields,
// and imports from a *parser.GoTree
type Builder struct{}

// New creates a symbol builder
func New() *Builder {
	return &Builder{}
}

// Build builds the symbol table for one file
func (b *Builder) Build(tree analysis.Tree, filePath string) (*analysis.SymbolTable, error) {
	gt, ok := tree.(*parser.GoTree)
	if !ok || gt == nil || gt.File == nil {
		return nil, fmt.Errorf("%s: %w (%T)", filePath, ErrUnsupportedTree, tree)
	}

	packageName := ""
	if gt.File.Name != nil {
		packageName = gt.File.Name.Name
	}

	e := &symbolExtractor{
		tree:        gt,
		packageName: packageName,
		symbols:     make([]types.Symbol, 0),
	}
	for _, decl := range gt.File.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			e.extractFunction(d)
		case *ast.GenDecl:
			e.extractGenDecl(d)
		}
	}

	return analysis.NewSymbolTable(filePath, packageName, e.symbols, e.extractImports(gt.File)), nil
}

// symbolExtractor collects symbols from top-level declarations
type symbolExtractor struct {
	tree        *parser.GoTree
	packageName string
	symbols     []types.Symbol
}

// extractImports extracts import statements from the AST
func (e *symbolExtractor) extractImports(file *ast.File) []types.Import {
	imports := make([]types.Import, 0, len(file.Imports))

	for _, imp := range file.Imports {
		if imp.Path == nil {
			continue
		}
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			path = strings.Trim(imp.Path.Value, "\"`")
		}
		importSpec := types.Import{
			Path:  path,
			Range: e.tree.NodeRange(imp),
		}

		// Check for alias
		if imp.Name != nil {
			importSpec.Alias = imp.Name.Name
		}

		imports = append(imports, importSpec)
	}

	return imports
}

// extractFunction extracts function and method declarations
func (e *symbolExtractor) extractFunction(funcDecl *ast.FuncDecl) {
	if funcDecl.Name == nil {
		return
	}
	sym := types.Symbol{
		Name:       funcDecl.Name.Name,
		Package:    e.packageName,
		DocComment: extractDocComment(funcDecl.Doc),
		Scope:      types.ScopeOf(funcDecl.Name.Name),
		Range:      e.tree.NodeRange(funcDecl),
		NameRange:  e.tree.NodeRange(funcDecl.Name),
	}

	// Determine if this is a method or function
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sym.Kind = types.KindMethod
		sym.Receiver = receiverTypeName(funcDecl.Recv.List[0].Type)
	} else {
		sym.Kind = types.KindFunction
	}

	sym.Signature = functionSignature(funcDecl)
	e.symbols = append(e.symbols, sym)
}

// extractGenDecl extracts type, const, and var declarations
func (e *symbolExtractor) extractGenDecl(genDecl *ast.GenDecl) {
	for _, spec := range genDecl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			doc := s.Doc
			if doc == nil {
				doc = genDecl.Doc
			}
			e.extractTypeSpec(s, doc)
		case *ast.ValueSpec:
			doc := s.Doc
			if doc == nil {
				doc = genDecl.Doc
			}
			e.extractValueSpec(s, doc, genDecl.Tok)
		}
	}
}

// extractTypeSpec extracts struct, interface, and other type declarations
func (e *symbolExtractor) extractTypeSpec(typeSpec *ast.TypeSpec, doc *ast.CommentGroup) {
	name := typeSpec.Name.Name
	sym := types.Symbol{
		Name:       name,
		Package:    e.packageName,
		DocComment: extractDocComment(doc),
		Scope:      types.ScopeOf(name),
		Range:      e.tree.NodeRange(typeSpec),
		NameRange:  e.tree.NodeRange(typeSpec.Name),
	}

	switch t := typeSpec.Type.(type) {
	case *ast.StructType:
		sym.Kind = types.KindStruct
		sym.Signature = fmt.Sprintf("type %s struct { ... } // %d fields", name, t.Fields.NumFields())
	case *ast.InterfaceType:
		sym.Kind = types.KindInterface
		sym.Signature = fmt.Sprintf("type %s interface { ... } // %d methods", name, t.Methods.NumFields())
	default:
		sym.Kind = types.KindType
		if typeSpec.Assign.IsValid() {
			sym.Signature = fmt.Sprintf("type %s = %s", name, exprToString(typeSpec.Type))
		} else {
			sym.Signature = fmt.Sprintf("type %s %s", name, exprToString(typeSpec.Type))
		}
	}

	e.symbols = append(e.symbols, sym)

	if structType, ok := typeSpec.Type.(*ast.StructType); ok {
		e.extractStructFields(name, structType)
	}
}

// extractStructFields extracts field symbols from a struct. Embedded
// fields are named after their type.
func (e *symbolExtractor) extractStructFields(structName string, structType *ast.StructType) {
	if structType.Fields == nil {
		return
	}

	for _, field := range structType.Fields.List {
		names := field.Names
		if len(names) == 0 {
			if ident := embeddedName(field.Type); ident != nil {
				names = []*ast.Ident{ident}
			}
		}
		for _, name := range names {
			e.symbols = append(e.symbols, types.Symbol{
				Name:      name.Name,
				Kind:      types.KindField,
				Package:   e.packageName,
				Receiver:  structName,
				Scope:     types.ScopeOf(name.Name),
				Range:     e.tree.NodeRange(field),
				NameRange: e.tree.NodeRange(name),
				Signature: fmt.Sprintf("%s %s", name.Name, exprToString(field.Type)),
			})
		}
	}
}

// extractValueSpec extracts const and var declarations
func (e *symbolExtractor) extractValueSpec(valueSpec *ast.ValueSpec, doc *ast.CommentGroup, tok token.Token) {
	kind := types.KindVar
	if tok == token.CONST {
		kind = types.KindConst
	}

	for _, name := range valueSpec.Names {
		sym := types.Symbol{
			Name:       name.Name,
			Kind:       kind,
			Package:    e.packageName,
			DocComment: extractDocComment(doc),
			Scope:      types.ScopeOf(name.Name),
			Range:      e.tree.NodeRange(valueSpec),
			NameRange:  e.tree.NodeRange(name),
		}

		switch {
		case valueSpec.Type != nil:
			sym.Signature = fmt.Sprintf("%s %s", name.Name, exprToString(valueSpec.Type))
		case len(valueSpec.Values) > 0:
			sym.Signature = fmt.Sprintf("%s = ...", name.Name)
		default:
			sym.Signature = name.Name
		}

		e.symbols = append(e.symbols, sym)
	}
}

// receiverTypeName extracts the receiver type name from a method,
// including generic receivers like *List[T]
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	case *ast.ParenExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func embeddedName(expr ast.Expr) *ast.Ident {
	switch t := expr.(type) {
	case *ast.Ident:
		return t
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	}
	return nil
}

// functionSignature builds a function signature string
func functionSignature(funcDecl *ast.FuncDecl) string {
	var sig strings.Builder

	sig.WriteString("func ")

	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprToString(funcDecl.Recv.List[0].Type))
		sig.WriteString(") ")
	}

	sig.WriteString(funcDecl.Name.Name)

	sig.WriteString("(")
	if funcDecl.Type.Params != nil {
		sig.WriteString(fieldListToString(funcDecl.Type.Params))
	}
	sig.WriteString(")")

	if funcDecl.Type.Results != nil {
		results := fieldListToString(funcDecl.Type.Results)
		if results != "" {
			if funcDecl.Type.Results.NumFields() > 1 || len(funcDecl.Type.Results.List[0].Names) > 0 {
				sig.WriteString(" (")
				sig.WriteString(results)
				sig.WriteString(")")
			} else {
				sig.WriteString(" ")
				sig.WriteString(results)
			}
		}
	}

	return sig.String()
}

// fieldListToString converts a field list to a string representation
func fieldListToString(fieldList *ast.FieldList) string {
	if fieldList == nil || len(fieldList.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fieldList.List {
		typeStr := exprToString(field.Type)
		if len(field.Names) > 0 {
			for _, name := range field.Names {
				parts = append(parts, fmt.Sprintf("%s %s", name.Name, typeStr))
			}
		} else {
			parts = append(parts, typeStr)
		}
	}

	return strings.Join(parts, ", ")
}

// exprToString converts a type expression to a short string
func exprToString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprToString(t.X)
	case *ast.ArrayType:
		if t.Len != nil {
			return "[...]" + exprToString(t.Elt)
		}
		return "[]" + exprToString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprToString(t.Key), exprToString(t.Value))
	case *ast.ChanType:
		return "chan " + exprToString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.StructType:
		return "struct{...}"
	case *ast.SelectorExpr:
		return exprToString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprToString(t.Elt)
	case *ast.IndexExpr:
		return exprToString(t.X) + "[" + exprToString(t.Index) + "]"
	case *ast.IndexListExpr:
		args := make([]string, 0, len(t.Indices))
		for _, idx := range t.Indices {
			args = append(args, exprToString(idx))
		}
		return exprToString(t.X) + "[" + strings.Join(args, ", ") + "]"
	default:
		return "..."
	}
}

// extractDocComment extracts documentation from a comment group
func extractDocComment(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
