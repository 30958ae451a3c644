package types

// Import represents an import statement in a Go file
type Import struct {
	Path  string // Import path (e.g., "github.com/pkg/errors")
	Alias string // Import alias if present (e.g., ".")
	Range Range  // Span of the import spec
}

// LocalName returns the identifier the import is referenced by in the file,
// given the package name the import path resolves to.
func (i *Import) LocalName(packageName string) string {
	if i.Alias != "" {
		return i.Alias
	}
	return packageName
}
