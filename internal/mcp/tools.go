package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.lsp.dev/protocol"

	"github.com/dshills/gocontext-analysis/internal/document"
	"github.com/dshills/gocontext-analysis/internal/engine"
	"github.com/dshills/gocontext-analysis/internal/indexer"
	"github.com/dshills/gocontext-analysis/internal/lspconv"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotOpen    = -32001 // Document is not open
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEngineClosed       = -32003 // Engine has shut down
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleOpenDocument handles the open_document tool invocation
func (s *Server) handleOpenDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	uri, err := documentURI(args)
	if err != nil {
		return nil, err
	}

	text, ok := args["text"].(string)
	if !ok {
		data, err := os.ReadFile(document.PathFromURI(uri))
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "text omitted and file not readable", map[string]interface{}{
				"param":  "text",
				"reason": err.Error(),
			})
		}
		text = string(data)
	}
	version := int32(getIntDefault(args, "version", 1))

	if err := s.engine.Open(uri, text, version); err != nil {
		return nil, engineError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"uri":     uri,
		"version": version,
		"opened":  true,
	})), nil
}

// handleChangeDocument handles the change_document tool invocation
func (s *Server) handleChangeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	uri, err := documentURI(args)
	if err != nil {
		return nil, err
	}

	if _, ok := args["version"]; !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "version parameter is required", map[string]interface{}{
			"param":  "version",
			"reason": "missing",
		})
	}
	version := int32(getIntDefault(args, "version", 0))

	switch raw, hasChanges := args["changes"]; {
	case hasChanges:
		changes, err := decodeChanges(raw)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid changes", map[string]interface{}{
				"param":  "changes",
				"reason": err.Error(),
			})
		}
		err = s.engine.Change(uri, version, changes)
		if err != nil {
			return nil, engineError(err)
		}
	default:
		text, ok := args["text"].(string)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "either text or changes is required", map[string]interface{}{
				"param":  "text",
				"reason": "missing",
			})
		}
		if err := s.engine.Update(uri, text, version); err != nil {
			return nil, engineError(err)
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"uri":       uri,
		"version":   version,
		"scheduled": true,
	})), nil
}

// handleCloseDocument handles the close_document tool invocation
func (s *Server) handleCloseDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	uri, err := documentURI(args)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"uri":    uri,
		"closed": s.engine.Close(uri),
	})), nil
}

// handleSaveDocument handles the save_document tool invocation
func (s *Server) handleSaveDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	uri, err := documentURI(args)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Save(uri); err != nil {
		return nil, engineError(err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"uri":       uri,
		"scheduled": true,
	})), nil
}

// handleGetDiagnostics handles the get_diagnostics tool invocation
func (s *Server) handleGetDiagnostics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	uri, err := documentURI(args)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Diagnostics(ctx, uri)
	if err != nil {
		return nil, engineError(err)
	}
	if result == nil {
		return nil, newMCPError(ErrorCodeDocumentNotOpen, "document is not open", map[string]interface{}{
			"uri": uri,
		})
	}

	response := map[string]interface{}{
		"uri":         result.URI,
		"version":     result.Version,
		"fresh":       result.Bundle != nil,
		"diagnostics": lspconv.ToProtocolDiagnostics(result.Diagnostics),
	}
	if result.Bundle != nil {
		response["duration_ms"] = result.Bundle.Duration.Milliseconds()
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEngineStatus handles the engine_status tool invocation
func (s *Server) handleEngineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"workspace": s.engine.RootPath(),
		"documents": stats.Documents,
		"cache":     stats.Cache,
		"pending":   stats.Pending,
		"indexing":  stats.Indexing,
	}
	if status := stats.Index; status != nil {
		index := map[string]interface{}{
			"files_count":   status.FilesCount,
			"symbols_count": status.SymbolsCount,
			"imports_count": status.ImportsCount,
			"index_size_mb": fmt.Sprintf("%.2f", status.IndexSizeMB),
			"health": map[string]interface{}{
				"database_accessible": status.Health.DatabaseAccessible,
				"fts_indexes_built":   status.Health.FTSIndexesBuilt,
			},
		}
		if p := status.Project; p != nil {
			index["module_name"] = p.ModuleName
			index["go_version"] = p.GoVersion
			if !p.LastIndexedAt.IsZero() {
				index["last_indexed_at"] = p.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00")
			}
		}
		response["index"] = index
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 20)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	hits, err := s.engine.SearchSymbols(ctx, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		entry := map[string]interface{}{
			"name":      hit.Symbol.Name,
			"kind":      string(hit.Symbol.Kind),
			"package":   hit.Symbol.Package,
			"file":      hit.FilePath,
			"uri":       document.URIFromPath(hit.FilePath),
			"range":     lspconv.ToProtocolRange(hit.Symbol.NameRange),
			"signature": hit.Symbol.Signature,
			"rank":      hit.Rank,
		}
		if hit.Symbol.Receiver != "" {
			entry["receiver"] = hit.Symbol.Receiver
		}
		results = append(results, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})), nil
}

// handleIndexWorkspace handles the index_workspace tool invocation
func (s *Server) handleIndexWorkspace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	forceReindex := getBoolDefault(args, "force_reindex", false)

	stats, err := s.engine.IndexWorkspace(ctx, forceReindex)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, engineError(err)
	}

	response := map[string]interface{}{
		"indexed":           true,
		"workspace":         s.engine.RootPath(),
		"files_indexed":     stats.FilesIndexed,
		"files_skipped":     stats.FilesSkipped,
		"files_failed":      stats.FilesFailed,
		"files_removed":     stats.FilesRemoved,
		"symbols_extracted": stats.SymbolsExtracted,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// engineError maps engine errors to MCP errors
func engineError(err error) error {
	switch {
	case errors.Is(err, document.ErrDocumentNotFound):
		return newMCPError(ErrorCodeDocumentNotOpen, "document is not open", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, engine.ErrClosed):
		return newMCPError(ErrorCodeEngineClosed, "engine is shut down", nil)
	default:
		return newMCPError(ErrorCodeInternalError, "operation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// documentURI reads the uri argument, falling back to an absolute path
func documentURI(args map[string]interface{}) (string, error) {
	if uri, ok := args["uri"].(string); ok && uri != "" {
		return uri, nil
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "uri or path parameter is required", map[string]interface{}{
			"param":  "uri",
			"reason": "missing or empty",
		})
	}
	if !filepath.IsAbs(path) {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": ErrPathNotAbsolute.Error(),
		})
	}
	return document.URIFromPath(path), nil
}

// changeParam is one entry of the changes argument
type changeParam struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

// decodeChanges converts the loosely typed changes argument
func decodeChanges(raw interface{}) ([]document.Change, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var params []changeParam
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}

	changes := make([]document.Change, 0, len(params))
	for _, p := range params {
		c := document.Change{Text: p.Text}
		if p.Range != nil {
			rng := lspconv.FromProtocolRange(*p.Range)
			c.Range = &rng
		}
		changes = append(changes, c)
	}
	return changes, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// ErrPathNotAbsolute is reported for relative path arguments
var ErrPathNotAbsolute = errors.New("path must be absolute")
