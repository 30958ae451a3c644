// Package types provides the value types shared by the analysis engine and
// its collaborators.
//
// # Positions
//
// Position and Range locate text in a document. Lines are zero-based and
// characters count UTF-16 code units, the editor-protocol convention:
//
//	rng := types.NewRange(3, 8, 3, 15)
//	rng.Contains(types.Position{Line: 3, Character: 10}) // true
//
// Ranges are half-open. Overlaps treats an empty range as touching its
// neighbours, which is what cascade suppression relies on.
//
// # Diagnostics
//
// Diagnostic carries a range, a severity (values match the editor
// protocol), a machine-readable code and a message. Parsers report
// CodeSyntaxError; the default semantic analyzer reports
// CodeUnresolvedReference, CodeUnusedImport, CodeDuplicateDeclaration and
// CodeUnknownMember.
//
// # Symbols
//
// Symbol describes one declaration extracted from a parse tree: its kind,
// package, signature, doc comment and the ranges of the declaration and
// its identifier. Methods and fields carry their owning type in Receiver.
package types
