package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/tliron/commonlog"

	"github.com/dshills/gocontext-analysis/internal/engine"
	"github.com/dshills/gocontext-analysis/internal/lspconv"
	"github.com/dshills/gocontext-analysis/internal/scheduler"
)

const (
	// ServerName is the MCP server name
	ServerName = "gocontext-analysis"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// DiagnosticsNotification is the method used to push diagnostics updates
	DiagnosticsNotification = "notifications/diagnostics"
)

var log = commonlog.GetLogger("gocontext.mcp")

// Server exposes an analysis engine as MCP tools
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine

	stopPush func()
}

// NewServer creates a new MCP server instance around eng
func NewServer(eng *engine.Engine) (*Server, error) {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:    mcpServer,
		engine: eng,
	}

	// Register tools
	s.registerTools()

	s.stopPush = eng.OnDiagnostics(s.pushDiagnostics)
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.stopPush()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(openDocumentTool(), s.handleOpenDocument)
	s.mcp.AddTool(changeDocumentTool(), s.handleChangeDocument)
	s.mcp.AddTool(closeDocumentTool(), s.handleCloseDocument)
	s.mcp.AddTool(saveDocumentTool(), s.handleSaveDocument)
	s.mcp.AddTool(getDiagnosticsTool(), s.handleGetDiagnostics)
	s.mcp.AddTool(engineStatusTool(), s.handleEngineStatus)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(indexWorkspaceTool(), s.handleIndexWorkspace)
}

// pushDiagnostics forwards an update to every connected client
func (s *Server) pushDiagnostics(update scheduler.DiagnosticsUpdate) {
	params := lspconv.PublishDiagnostics(update)
	s.mcp.SendNotificationToAllClients(DiagnosticsNotification, map[string]any{
		"uri":         params.URI,
		"version":     params.Version,
		"diagnostics": params.Diagnostics,
	})
	log.Debugf("pushed %d diagnostics for %s@%d", len(params.Diagnostics), update.URI, update.Version)
}
