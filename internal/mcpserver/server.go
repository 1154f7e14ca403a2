// Package mcpserver exposes the workflow tool vocabulary over the Model
// Context Protocol, so external MCP hosts (editors, agent frameworks) can
// drive the same dispatcher the voice session uses.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/topology-ai/topology/internal/tools"
)

// serverVersion is reported in the MCP initialize handshake.
const serverVersion = "1.0.0"

// Server wraps an MCP server whose tools all route into a single
// [tools.Dispatcher].
type Server struct {
	dispatcher *tools.Dispatcher
	srv        *mcpsdk.Server
}

// New builds an MCP server exposing the full tool vocabulary of dispatcher.
func New(dispatcher *tools.Dispatcher) (*Server, error) {
	srv := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: "topology", Version: serverVersion},
		nil,
	)

	s := &Server{dispatcher: dispatcher, srv: srv}
	for _, def := range tools.Definitions() {
		schema, err := toSchema(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: schema for %q: %w", def.Name, err)
		}
		srv.AddTool(&mcpsdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, s.handler(def.Name))
	}
	return s, nil
}

// Run serves the MCP protocol over stdio until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp server listening on stdio")
	if err := s.srv.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpserver: run: %w", err)
	}
	return nil
}

// handler adapts one named tool to the dispatcher. Execution failures are
// reported as in-band tool errors rather than protocol errors, so the host
// model sees them and can correct itself.
func (s *Server) handler(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := "{}"
		if len(req.Params.Arguments) > 0 {
			args = string(req.Params.Arguments)
		}

		result, err := s.dispatcher.Execute(ctx, name, args)
		if err != nil {
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result}},
		}, nil
	}
}

// toSchema converts a tool definition's parameter map into a JSON schema.
func toSchema(params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &schema, nil
}
