package storage

import (
	"context"
	"time"

	"github.com/dshills/gocontext-analysis/pkg/types"
)

// Storage defines the interface for persisting and querying the project index
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Symbol operations
	UpsertSymbol(ctx context.Context, symbol *Symbol) error
	ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error)
	DeleteSymbolsByFile(ctx context.Context, fileID int64) error
	SearchSymbols(ctx context.Context, projectID int64, query string, limit int) ([]*SymbolResult, error)
	HasPackageSymbol(ctx context.Context, projectID int64, dir, pkg, name, excludePath string) (bool, error)

	// Import operations
	UpsertImport(ctx context.Context, imp *Import) error
	ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error)
	DeleteImportsByFile(ctx context.Context, fileID int64) error

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents an indexed workspace
type Project struct {
	ID            int64
	RootPath      string
	ModuleName    string
	GoVersion     string
	TotalFiles    int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked Go source file
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Absolute, slash-separated
	Dir           string
	PackageName   string
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ParseError    *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Symbol represents a declaration stored in the index
type Symbol struct {
	ID          int64
	FileID      int64
	Name        string
	Kind        string
	PackageName string
	Signature   string
	DocComment  string
	Scope       string
	Receiver    string
	StartLine   int
	StartCol    int
	EndLine     int
	EndCol      int
	NameLine    int
	NameCol     int
	CreatedAt   time.Time
}

// SymbolResult is a search hit with the file it was declared in
type SymbolResult struct {
	Symbol   *Symbol
	FilePath string
	Rank     float64
}

// Import represents an import statement in a Go file
type Import struct {
	ID         int64
	FileID     int64
	ImportPath string
	Alias      string
	CreatedAt  time.Time
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project       *Project
	FilesCount    int
	SymbolsCount  int
	ImportsCount  int
	IndexSizeMB   float64
	LastIndexedAt time.Time
	Health        HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}

// ToTypesSymbol converts storage Symbol to types.Symbol
func (s *Symbol) ToTypesSymbol() types.Symbol {
	nameEnd := s.NameCol + types.UTF16Len(s.Name)
	return types.Symbol{
		Name:       s.Name,
		Kind:       types.SymbolKind(s.Kind),
		Package:    s.PackageName,
		Signature:  s.Signature,
		DocComment: s.DocComment,
		Scope:      types.SymbolScope(s.Scope),
		Receiver:   s.Receiver,
		Range:      types.NewRange(s.StartLine, s.StartCol, s.EndLine, s.EndCol),
		NameRange:  types.NewRange(s.NameLine, s.NameCol, s.NameLine, nameEnd),
	}
}

// FromTypesSymbol converts types.Symbol to storage Symbol
func FromTypesSymbol(s types.Symbol, fileID int64) *Symbol {
	return &Symbol{
		FileID:      fileID,
		Name:        s.Name,
		Kind:        string(s.Kind),
		PackageName: s.Package,
		Signature:   s.Signature,
		DocComment:  s.DocComment,
		Scope:       string(s.Scope),
		Receiver:    s.Receiver,
		StartLine:   s.Range.Start.Line,
		StartCol:    s.Range.Start.Character,
		EndLine:     s.Range.End.Line,
		EndCol:      s.Range.End.Character,
		NameLine:    s.NameRange.Start.Line,
		NameCol:     s.NameRange.Start.Character,
	}
}
