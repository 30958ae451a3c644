package parser

import (
	"go/ast"
	"go/token"

	"github.com/dshills/gocontext-analysis/pkg/types"
)

// GoTree is the parse tree produced by Parser
type GoTree struct {
	Fset *token.FileSet
	File *ast.File
	Text string
}

// Position converts a token position to a zero-based line and UTF-16
// character
func (t *GoTree) Position(pos token.Pos) types.Position {
	if !pos.IsValid() {
		return types.Position{}
	}
	return t.offsetPosition(t.Fset.Position(pos))
}

// Range converts a token span to a document range
func (t *GoTree) Range(pos, end token.Pos) types.Range {
	start := t.Position(pos)
	if !end.IsValid() {
		return types.Range{Start: start, End: start}
	}
	return types.Range{Start: start, End: t.Position(end)}
}

// NodeRange returns the range covered by an AST node
func (t *GoTree) NodeRange(n ast.Node) types.Range {
	return t.Range(n.Pos(), n.End())
}

func (t *GoTree) offsetPosition(p token.Position) types.Position {
	offset := p.Offset
	if offset > len(t.Text) {
		offset = len(t.Text)
	}
	lineStart := offset - (p.Column - 1)
	if lineStart < 0 {
		lineStart = 0
	}
	return types.Position{
		Line:      p.Line - 1,
		Character: types.UTF16Len(t.Text[lineStart:offset]),
	}
}

// lineEnd returns the byte offset of the end of the line containing
// offset, excluding any line terminator
func lineEnd(text string, offset int) int {
	for i := offset; i < len(text); i++ {
		switch text[i] {
		case '\n':
			return i
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				return i
			}
		}
	}
	return len(text)
}
