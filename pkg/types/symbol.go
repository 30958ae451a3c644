package types

import (
	"errors"
	"go/token"
)

// SymbolKind represents the type of Go language symbol
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
	KindField     SymbolKind = "field"
)

// SymbolScope represents the visibility scope of a symbol
type SymbolScope string

const (
	ScopeExported   SymbolScope = "exported"
	ScopeUnexported SymbolScope = "unexported"
)

// Symbol represents a declaration extracted from a parse tree
type Symbol struct {
	// Identification
	Name    string
	Kind    SymbolKind
	Package string

	// Content
	Signature  string // Function signature or type definition
	DocComment string

	// Scope
	Scope    SymbolScope
	Receiver string // For methods and fields: owning type name

	// Location
	Range     Range // Whole declaration
	NameRange Range // Just the identifier
}

// Key identifies the symbol within its package. Methods and fields are
// qualified by their owning type so that T.String and U.String differ.
func (s *Symbol) Key() string {
	if s.Receiver != "" {
		return s.Receiver + "." + s.Name
	}
	return s.Name
}

// IsPackageLevel reports whether the symbol lives in package scope
// (visible to other files of the same package by bare name).
func (s *Symbol) IsPackageLevel() bool {
	return s.Kind != KindMethod && s.Kind != KindField
}

// ValidateKind checks if the symbol kind is valid
func (s *Symbol) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindMethod, KindStruct, KindInterface, KindType, KindConst, KindVar, KindField:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// ValidateScope checks if the symbol scope is valid
func (s *Symbol) ValidateScope() error {
	switch s.Scope {
	case ScopeExported, ScopeUnexported:
		return nil
	default:
		return errors.New("invalid symbol scope")
	}
}

// IsExported returns true if the symbol is exported (visible outside package)
func (s *Symbol) IsExported() bool {
	return s.Scope == ScopeExported && token.IsExported(s.Name)
}

// Validate performs comprehensive validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}

	if err := s.ValidateKind(); err != nil {
		return err
	}

	if err := s.ValidateScope(); err != nil {
		return err
	}

	if s.Package == "" {
		return errors.New("package name is required")
	}

	// Methods must have a receiver
	if s.Kind == KindMethod && s.Receiver == "" {
		return errors.New("methods must have a receiver type")
	}

	if s.Range.End.Before(s.Range.Start) {
		return ErrInvalidRange
	}

	return nil
}

// ScopeOf returns the scope implied by a Go identifier
func ScopeOf(name string) SymbolScope {
	if token.IsExported(name) {
		return ScopeExported
	}
	return ScopeUnexported
}
