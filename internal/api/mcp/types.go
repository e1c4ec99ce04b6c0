// Package mcp implements a Model Context Protocol (MCP) server for one
// disambiguation session. It exposes JSON-RPC 2.0 tools for ingesting parser
// output, resolving drafts, answering ambiguities and reading the session.
package mcp

import (
	"github.com/scrypster/disambig/internal/engine"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/pkg/types"
)

// IngestArgs contains arguments for the ingest_parse tool.
type IngestArgs struct {
	Parsed types.ParsedPattern `json:"parsed"`          // Parser output (required)
	Query  string              `json:"query,omitempty"` // Replaces the session query when set
}

// IngestResult contains the result of merging a parse into the session.
type IngestResult struct {
	Session          string   `json:"session"`
	DraftedClasses   []string `json:"drafted_classes"`
	DraftedIntents   []string `json:"drafted_intents"`
	DraftedArguments []string `json:"drafted_arguments"`
	Kept             []string `json:"kept"`
	TargetErrors     []string `json:"target_errors,omitempty"`
}

// ResolveArgs contains arguments for the resolve_pending tool.
type ResolveArgs struct{}

// ResolveResult wraps the report of one resolution pass.
type ResolveResult struct {
	Session string               `json:"session"`
	Report  engine.ResolveReport `json:"report"`
}

// SolveArgs contains arguments for the solve_ambiguity tool.
type SolveArgs struct {
	Kind       string `json:"kind"`       // class, intent or argument (required)
	Identifier string `json:"identifier"` // Ambiguous entity (required)
	GraphPath  string `json:"graph_path"` // Path of the chosen option (required)
}

// SolveResult contains where the solved entity ended up.
type SolveResult struct {
	Kind       types.Kind `json:"kind"`
	Identifier string     `json:"identifier"`
	Tier       types.Tier `json:"tier"`
	GraphPath  string     `json:"graph_path"`
}

func newSolveResult(out pattern.Outcome) SolveResult {
	return SolveResult{
		Kind:       out.Kind,
		Identifier: out.Identifier,
		Tier:       out.Tier,
		GraphPath:  out.GraphPath,
	}
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      interface{}   `json:"id"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via tools/list.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
