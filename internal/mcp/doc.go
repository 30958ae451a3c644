// Package mcp implements the Model Context Protocol (MCP) server for the
// analysis engine.
//
// The server exposes the editor lifecycle and the project index as tools:
//   - open_document: Open a document and analyze it immediately
//   - change_document: Apply edits; analysis follows after a debounce
//   - close_document: Close a document and cancel its analysis
//   - save_document: Analyze a document immediately
//   - get_diagnostics: Fetch up-to-date diagnostics for a document
//   - engine_status: Documents, cache, scheduler and index statistics
//   - search_symbols: Full-text symbol search over the project index
//   - index_workspace: Index every Go file under the workspace root
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Diagnostics produced by background analysis are pushed to every client
// as "notifications/diagnostics" with the editor-protocol
// PublishDiagnostics shape:
//
//	{
//	  "method": "notifications/diagnostics",
//	  "params": {
//	    "uri": "file:///src/p/main.go",
//	    "version": 3,
//	    "diagnostics": [
//	      {
//	        "range": {"start": {"line": 3, "character": 8}, "end": {"line": 3, "character": 15}},
//	        "severity": 1,
//	        "code": "unresolved-reference",
//	        "source": "semantic",
//	        "message": "undefined: missing"
//	      }
//	    ]
//	  }
//	}
//
// # Tool: change_document
//
// Edits use zero-based lines and UTF-16 characters. A change without a
// range replaces the whole text; changes apply in order:
//
//	{
//	  "name": "change_document",
//	  "arguments": {
//	    "path": "/src/p/main.go",
//	    "version": 4,
//	    "changes": [
//	      {"range": {"start": {"line": 3, "character": 8}, "end": {"line": 3, "character": 15}}, "text": "42"}
//	    ]
//	  }
//	}
//
// # Error Codes
//
//	-32602  Invalid params
//	-32603  Internal error
//	-32001  Document not open
//	-32002  Indexing already in progress
//	-32003  Engine shut down
//	-32004  Empty query
//
// Logging goes to stderr or the configured log file; stdout is reserved
// for the protocol.
package mcp
