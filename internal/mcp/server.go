package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/npbot/npbot/internal/answer"
	"github.com/npbot/npbot/internal/refresh"
	"github.com/npbot/npbot/internal/store"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies. Scheduler is optional; without it
// refresh_status reports store counts only.
type Config struct {
	Store     *store.ChunkedStore
	Answerer  *answer.Answerer
	Scheduler *refresh.Scheduler
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "npbot",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_fund",
		Description: "Ask a question about Nippon India Mutual Fund schemes. Returns a concise answer grounded in scraped official data, citing one official source URL.",
	}, makeAskHandler(cfg.Answerer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_scheme",
		Description: "Retrieve the stored record for one scheme by scheme code, including NAV, category, validation status, and source attribution.",
	}, makeGetSchemeHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_schemes",
		Description: "List all schemes currently in the store with their codes and names.",
	}, makeListHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_status",
		Description: "Report corpus size, validation counts, and the timing and outcome of the most recent fast and full refresh runs.",
	}, makeStatusHandler(cfg.Store, cfg.Scheduler))

	return &Server{server: server}
}

// Run starts the server on stdio transport and blocks until the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance for transport
// handlers that need to wrap it.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
