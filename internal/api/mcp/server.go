package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/engine"
	"github.com/scrypster/disambig/internal/logging"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/pkg/types"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// errInvalidParams marks handler errors caused by the caller's arguments.
var errInvalidParams = errors.New("invalid params")

// sessionEngine is the subset of engine.Engine used by the MCP server.
type sessionEngine interface {
	SessionID() string
	SetQuery(ctx context.Context, query string) error
	Ingest(ctx context.Context, parsed types.ParsedPattern) (pattern.IngestReport, error)
	ResolvePending(ctx context.Context) (engine.ResolveReport, error)
	Solve(ctx context.Context, kind types.Kind, id, chosenPath string) (pattern.Outcome, error)
	Snapshot(ctx context.Context) (types.SerializedPattern, error)
	History(ctx context.Context) (types.SerializedHistory, error)
	Persist(ctx context.Context) error
}

type handlerFunc func(ctx context.Context, params interface{}) (interface{}, error)

// Server implements the Model Context Protocol for one session engine.
type Server struct {
	engine  sessionEngine
	logger  *zap.Logger
	version string

	// persist saves a snapshot after every tool that changes the session.
	persist bool

	handlers map[string]handlerFunc
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the logger. Logs must never go to stdout while the stdio
// transport is serving.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by initialize.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithPersist makes the server persist the session after ingest, resolve and
// solve so other processes see the change.
func WithPersist(persist bool) ServerOption {
	return func(s *Server) {
		s.persist = persist
	}
}

// NewServer creates an MCP server for eng.
func NewServer(eng sessionEngine, opts ...ServerOption) *Server {
	s := &Server{
		engine:  eng,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).Named("mcp")
	s.handlers = map[string]handlerFunc{
		"ingest_parse":    s.handleIngest,
		"resolve_pending": s.handleResolve,
		"solve_ambiguity": s.handleSolve,
		"get_session":     s.handleGetSession,
		"get_history":     s.handleGetHistory,
	}
	return s
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// It returns nil for notifications, which get no response.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}
	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case "initialize":
		result = s.initializeResult()
	case "initialized", "notifications/initialized":
		if req.ID == nil {
			return nil, nil // notifications get no response
		}
		result = map[string]interface{}{}
	case "tools/list":
		result = MCPToolsListResult{Tools: buildToolsList()}
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		// Tools are also reachable as native JSON-RPC methods.
		h, ok := s.handlers[req.Method]
		if !ok {
			return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
		}
		result, err = h(ctx, req.Params)
	}

	if err != nil {
		code := ErrCodeServerError
		if errors.Is(err, errInvalidParams) {
			code = ErrCodeInvalidParams
		}
		return s.errorResponse(req.ID, code, err.Error(), nil)
	}
	return s.successResponse(req.ID, result)
}

func (s *Server) initializeResult() MCPInitializeResult {
	return MCPInitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    MCPServerCapabilities{Tools: &MCPToolsCapability{}},
		ServerInfo:      MCPServerInfo{Name: "disambig", Version: s.version},
	}
}

// handleToolsCall dispatches a tools/call request and wraps the result in
// the MCP content envelope. Tool failures are reported in-band with isError.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	h, ok := s.handlers[p.Name]
	if !ok {
		return toolError(fmt.Sprintf("unknown tool: %s", p.Name)), nil
	}

	result, err := h(ctx, p.Arguments)
	if err != nil {
		s.logger.Debug("tool call failed", zap.String("tool", p.Name), zap.Error(err))
		return toolError(err.Error()), nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

func toolError(msg string) *MCPToolCallResult {
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: msg}},
		IsError: true,
	}
}

func (s *Server) handleIngest(ctx context.Context, params interface{}) (interface{}, error) {
	var args IngestArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}

	if args.Query != "" {
		if err := s.engine.SetQuery(ctx, args.Query); err != nil {
			return nil, err
		}
	}
	report, err := s.engine.Ingest(ctx, args.Parsed)
	if err != nil {
		return nil, err
	}
	if err := s.afterMutation(ctx); err != nil {
		return nil, err
	}

	res := IngestResult{
		Session:          s.engine.SessionID(),
		DraftedClasses:   nonNil(report.DraftedClasses),
		DraftedIntents:   nonNil(report.DraftedIntents),
		DraftedArguments: nonNil(report.DraftedArguments),
		Kept:             nonNil(report.Kept),
	}
	for _, terr := range report.TargetErrors {
		res.TargetErrors = append(res.TargetErrors, terr.Error())
	}
	return res, nil
}

func (s *Server) handleResolve(ctx context.Context, params interface{}) (interface{}, error) {
	report, err := s.engine.ResolvePending(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.afterMutation(ctx); err != nil {
		return nil, err
	}
	return ResolveResult{Session: s.engine.SessionID(), Report: report}, nil
}

func (s *Server) handleSolve(ctx context.Context, params interface{}) (interface{}, error) {
	var args SolveArgs
	if err := unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	if args.Identifier == "" || args.GraphPath == "" {
		return nil, fmt.Errorf("%w: identifier and graph_path are required", errInvalidParams)
	}
	kind, err := types.ParseKind(args.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	out, err := s.engine.Solve(ctx, kind, args.Identifier, args.GraphPath)
	if err != nil {
		return nil, err
	}
	if err := s.afterMutation(ctx); err != nil {
		return nil, err
	}
	return newSolveResult(out), nil
}

func (s *Server) handleGetSession(ctx context.Context, params interface{}) (interface{}, error) {
	return s.engine.Snapshot(ctx)
}

func (s *Server) handleGetHistory(ctx context.Context, params interface{}) (interface{}, error) {
	return s.engine.History(ctx)
}

func (s *Server) afterMutation(ctx context.Context) error {
	if !s.persist {
		return nil
	}
	if err := s.engine.Persist(ctx); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// buildToolsList returns the MCP tool definitions.
func buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name:        "ingest_parse",
			Description: "Merge a parse result (classes, intents with their arguments) into the session. Drafts are rebuilt; ambiguous and resolved entities are kept.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"parsed"},
				"properties": map[string]interface{}{
					"parsed": map[string]interface{}{"type": "object", "description": "Parser output with classes and intents"},
					"query":  map[string]interface{}{"type": "string", "description": "Natural-language query the parse came from"},
				},
			},
		},
		{
			Name:        "resolve_pending",
			Description: "Search and rerank every finished draft. Drafts with one clear candidate are resolved, drafts with several become ambiguous.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "solve_ambiguity",
			Description: "Answer an ambiguity by choosing one of its options by graph path.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"kind", "identifier", "graph_path"},
				"properties": map[string]interface{}{
					"kind":       map[string]interface{}{"type": "string", "enum": []string{"class", "intent", "argument"}},
					"identifier": map[string]interface{}{"type": "string", "description": "Identifier of the ambiguous entity"},
					"graph_path": map[string]interface{}{"type": "string", "description": "Graph path of the chosen option"},
				},
			},
		},
		{
			Name:        "get_session",
			Description: "Return the serialized session: summaries plus drafts, ambiguities and resolved entities per kind.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "get_history",
			Description: "Return the history of resolved classes and intents.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// unmarshalParams decodes JSON-RPC parameters into a typed struct.
func unmarshalParams(params interface{}, dest interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{JSONRPC: "2.0", Result: result, ID: id})
}

func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
		ID:      id,
	})
}
