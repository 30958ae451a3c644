package parser

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"

	"github.com/dshills/gocontext-analysis/internal/analysis"
	"github.com/dshills/gocontext-analysis/pkg/types"
)

// Source is the diagnostic source name for syntax errors
const Source = "go/parser"

// Parser handles AST-based parsing of Go source files. It keeps no state
// between calls and is safe for concurrent use.
type Parser struct {
	mode parser.Mode
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{
		mode: parser.ParseComments | parser.AllErrors,
	}
}

// Parse parses text as the Go file filePath
func (p *Parser) Parse(ctx context.Context, filePath, text string) (*analysis.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	// ParseFile always returns a non-nil file, partial if there were errors
	file, err := parser.ParseFile(fset, filePath, text, p.mode)
	tree := &GoTree{Fset: fset, File: file, Text: text}

	result := &analysis.ParseResult{Tree: tree}
	if err != nil {
		var list scanner.ErrorList
		if !errors.As(err, &list) {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		list.RemoveMultiples()
		result.SyntaxErrors = make([]types.Diagnostic, 0, len(list))
		for _, e := range list {
			result.SyntaxErrors = append(result.SyntaxErrors, tree.syntaxDiagnostic(e))
		}
	}

	return result, nil
}

// ParseFile reads and parses a file from disk
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*analysis.ParseResult, string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)
	result, err := p.Parse(ctx, filePath, text)
	if err != nil {
		return nil, "", err
	}
	return result, text, nil
}

func (t *GoTree) syntaxDiagnostic(e *scanner.Error) types.Diagnostic {
	start := t.offsetPosition(e.Pos)
	endOffset := lineEnd(t.Text, min(e.Pos.Offset, len(t.Text)))
	end := types.PositionAt(t.Text, endOffset)
	if end.Before(start) {
		end = start
	}
	return types.Diagnostic{
		Range:    types.Range{Start: start, End: end},
		Severity: types.SeverityError,
		Code:     types.CodeSyntaxError,
		Source:   Source,
		Message:  e.Msg,
	}
}
