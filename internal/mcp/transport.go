package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. Fine for a plain tool server
	// with no server-to-client requests.
	Stateless bool
}

// NewHTTPHandler exposes the MCP server over Streamable HTTP. The handler
// mounts on any mux path, conventionally "/mcp".
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	sdkOpts := &mcp.StreamableHTTPOptions{
		Stateless: opts.Stateless,
	}

	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.MCPServer()
	}, sdkOpts)
}
