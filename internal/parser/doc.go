// Package parser turns Go source text into syntax trees for the analysis
// engine.
//
// It wraps the standard library parser (go/parser, go/ast, go/token) and
// reports every syntax error as a diagnostic whose range runs from the
// error position to the end of that line. Positions are converted from
// go/token byte columns to zero-based lines and UTF-16 characters.
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.Parse(ctx, "/path/to/file.go", text)
//	if err != nil {
//	    return err
//	}
//	tree := result.Tree.(*parser.GoTree)
//
// # Error Handling
//
// Syntax errors are not Go errors. Parse returns a partial tree plus the
// syntax diagnostics so that symbols and semantic checks still run on the
// parts of the file that parsed:
//
//	if result.HasErrors() {
//	    for _, d := range result.SyntaxErrors {
//	        fmt.Println(d.Range, d.Message)
//	    }
//	}
//
// Only context cancellation and unreadable files produce an error.
package parser
