package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// documentProperties are shared by the tools that address one document
func documentProperties() map[string]interface{} {
	return map[string]interface{}{
		"uri": map[string]interface{}{
			"type":        "string",
			"description": "Document URI (file:///...). Either uri or path is required",
		},
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute file path, converted to a file:// URI",
		},
	}
}

func rangeSchema() map[string]interface{} {
	position := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"line":      map[string]interface{}{"type": "integer", "minimum": 0},
			"character": map[string]interface{}{"type": "integer", "minimum": 0, "description": "UTF-16 code units"},
		},
		"required": []string{"line", "character"},
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"start": position,
			"end":   position,
		},
		"required": []string{"start", "end"},
	}
}

// openDocumentTool returns the tool definition for open_document
func openDocumentTool() mcp.Tool {
	props := documentProperties()
	props["text"] = map[string]interface{}{
		"type":        "string",
		"description": "Document contents. Read from disk when omitted",
	}
	props["version"] = map[string]interface{}{
		"type":        "integer",
		"description": "Document version",
		"default":     1,
	}
	return mcp.Tool{
		Name:        "open_document",
		Description: "Open a Go document and analyze it immediately",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
		},
	}
}

// changeDocumentTool returns the tool definition for change_document
func changeDocumentTool() mcp.Tool {
	props := documentProperties()
	props["version"] = map[string]interface{}{
		"type":        "integer",
		"description": "New document version",
	}
	props["text"] = map[string]interface{}{
		"type":        "string",
		"description": "Full replacement text. Ignored when changes is set",
	}
	props["changes"] = map[string]interface{}{
		"type":        "array",
		"description": "Ordered edits. A change without a range replaces the whole text",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"range": rangeSchema(),
				"text":  map[string]interface{}{"type": "string"},
			},
			"required": []string{"text"},
		},
	}
	return mcp.Tool{
		Name:        "change_document",
		Description: "Apply edits to an open document; analysis runs after a short debounce",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"version"},
		},
	}
}

// closeDocumentTool returns the tool definition for close_document
func closeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "close_document",
		Description: "Close a document and cancel its pending analysis",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: documentProperties(),
		},
	}
}

// saveDocumentTool returns the tool definition for save_document
func saveDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_document",
		Description: "Mark a document saved and analyze it immediately",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: documentProperties(),
		},
	}
}

// getDiagnosticsTool returns the tool definition for get_diagnostics
func getDiagnosticsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_diagnostics",
		Description: "Return up-to-date diagnostics for an open document",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: documentProperties(),
		},
	}
}

// engineStatusTool returns the tool definition for engine_status
func engineStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "engine_status",
		Description: "Report open documents, cache usage, pending analyses and index statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_symbols",
		Description: "Full-text search over symbol names, signatures and doc comments in the project index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search keywords",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexWorkspaceTool returns the tool definition for index_workspace
func indexWorkspaceTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_workspace",
		Description: "Index every Go file in the workspace so cross-file references resolve",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-index all files ignoring file hashes (full rebuild)",
					"default":     false,
				},
			},
		},
	}
}
