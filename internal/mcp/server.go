// Package mcp is the thin Model Context Protocol transport over the command
// facade. Tools map one-to-one to registered commands; all logic lives in
// the core.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
	"github.com/maverikod/vvz-code-analyzis-sub010/pkg/version"
)

// Server bridges MCP clients to the facade command registry.
type Server struct {
	mcp      *mcp.Server
	registry *facade.Registry
	logger   *slog.Logger
}

// toolDescriptions document each command for MCP clients.
var toolDescriptions = map[string]string{
	"analyze":              "Analyze a Python project tree: structural entities, quality issues, full-text content and AST snapshots.",
	"list_cst_blocks":      "List replaceable logical blocks (classes, functions, methods) of a Python file with stable block ids.",
	"query_cst":            "Query a Python file's CST with a CSS-like selector; returns matches with stable span-based node ids.",
	"compose_cst_module":   "Apply replace/insert/create operations to a Python module with formatting preservation and import normalization.",
	"search_find_classes":  "Find classes by name pattern.",
	"search_class_methods": "List methods, optionally restricted to one class.",
	"search_find_usages":   "Find usage sites of a function or method name.",
	"search_fulltext":      "Full-text search over indexed code content.",
	"search_semantic":      "Semantic search over docstring/comment chunks via the vector index.",
	"rebuild_faiss":        "Rebuild the vector index from the store with dense id reassignment.",
	"revectorize":          "Re-chunk and re-embed files.",
}

// ToolInput is the generic parameter envelope: command parameters are passed
// through verbatim as a JSON object.
type ToolInput struct {
	Params map[string]any `json:"params,omitempty" jsonschema:"command parameters as a JSON object"`
}

// ToolOutput wraps either a result or a typed error payload.
type ToolOutput struct {
	Result any                  `json:"result,omitempty"`
	Error  *facade.ErrorPayload `json:"error,omitempty"`
}

// NewServer creates the MCP server and registers one tool per command.
func NewServer(registry *facade.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "code-analysis",
			Version: version.Version,
		}, nil),
		registry: registry,
		logger:   logger,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	for _, name := range s.registry.Names() {
		name := name
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        name,
			Description: toolDescriptions[name],
		}, func(ctx context.Context, req *mcp.CallToolRequest, input ToolInput) (*mcp.CallToolResult, ToolOutput, error) {
			var raw json.RawMessage
			if input.Params != nil {
				data, err := json.Marshal(input.Params)
				if err != nil {
					return nil, ToolOutput{}, err
				}
				raw = data
			}
			result, errPayload := s.registry.Execute(ctx, name, raw)
			if errPayload != nil {
				s.logger.Warn("tool_failed",
					slog.String("tool", name), slog.String("code", errPayload.Code))
				return nil, ToolOutput{Error: errPayload}, nil
			}
			return nil, ToolOutput{Result: result}, nil
		})
	}
	s.logger.Info("mcp_tools_registered", slog.Int("count", len(s.registry.Names())))
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
