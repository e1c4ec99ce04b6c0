package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/disambig/internal/api/mcp"
	"github.com/scrypster/disambig/internal/engine"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/pkg/types"
)

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	query    string
	parsed   []types.ParsedPattern
	solved   []string
	persists int

	ingestReport pattern.IngestReport
	resolve      engine.ResolveReport
	solveErr     error
	persistErr   error
}

func (f *fakeEngine) SessionID() string { return "s1" }

func (f *fakeEngine) SetQuery(ctx context.Context, query string) error {
	f.query = query
	return nil
}

func (f *fakeEngine) Ingest(ctx context.Context, parsed types.ParsedPattern) (pattern.IngestReport, error) {
	f.parsed = append(f.parsed, parsed)
	return f.ingestReport, nil
}

func (f *fakeEngine) ResolvePending(ctx context.Context) (engine.ResolveReport, error) {
	return f.resolve, nil
}

func (f *fakeEngine) Solve(ctx context.Context, kind types.Kind, id, chosenPath string) (pattern.Outcome, error) {
	if f.solveErr != nil {
		return pattern.Outcome{Kind: kind, Identifier: id}, f.solveErr
	}
	f.solved = append(f.solved, fmt.Sprintf("%s/%s=%s", kind, id, chosenPath))
	return pattern.Outcome{Kind: kind, Identifier: id, Tier: types.TierResolved, GraphPath: chosenPath}, nil
}

func (f *fakeEngine) Snapshot(ctx context.Context) (types.SerializedPattern, error) {
	return types.SerializedPattern{Query: f.query}, nil
}

func (f *fakeEngine) History(ctx context.Context) (types.SerializedHistory, error) {
	return types.SerializedHistory{
		Classes: []types.ClassFixed{{Class: types.Class{Identifier: "Invoice", Name: "Invoice"}, GraphPath: "model/invoice"}},
	}, nil
}

func (f *fakeEngine) Persist(ctx context.Context) error {
	f.persists++
	return f.persistErr
}

type rpcResponse struct {
	Result json.RawMessage   `json:"result"`
	Error  *mcp.JSONRPCError `json:"error"`
	ID     interface{}       `json:"id"`
}

func call(t *testing.T, srv *mcp.Server, req string) rpcResponse {
	t.Helper()
	raw, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)
	require.NotNil(t, raw)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// toolCall invokes a tool through tools/call and decodes its text content.
func toolCall(t *testing.T, srv *mcp.Server, name string, args interface{}) (mcp.MCPToolCallResult, string) {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	require.NoError(t, err)
	resp := call(t, srv, fmt.Sprintf(`{"jsonrpc":"2.0","method":"tools/call","params":%s,"id":7}`, params))
	require.Nil(t, resp.Error)

	var res mcp.MCPToolCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &res))
	require.Len(t, res.Content, 1)
	return res, res.Content[0].Text
}

func TestInitialize(t *testing.T) {
	srv := mcp.NewServer(&fakeEngine{}, mcp.WithVersion("1.2.3"))

	resp := call(t, srv, `{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"0"}},"id":1}`)
	require.Nil(t, resp.Error)

	var res mcp.MCPInitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &res))
	assert.Equal(t, mcp.ProtocolVersion, res.ProtocolVersion)
	assert.Equal(t, "disambig", res.ServerInfo.Name)
	assert.Equal(t, "1.2.3", res.ServerInfo.Version)
	assert.NotNil(t, res.Capabilities.Tools)
	assert.EqualValues(t, 1, resp.ID)
}

func TestInitializedNotificationHasNoResponse(t *testing.T) {
	srv := mcp.NewServer(&fakeEngine{})

	raw, err := srv.HandleRequest(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestToolsList(t *testing.T) {
	srv := mcp.NewServer(&fakeEngine{})

	resp := call(t, srv, `{"jsonrpc":"2.0","method":"tools/list","id":2}`)
	require.Nil(t, resp.Error)

	var res mcp.MCPToolsListResult
	require.NoError(t, json.Unmarshal(resp.Result, &res))
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema["type"])
	}
	assert.Equal(t, []string{"ingest_parse", "resolve_pending", "solve_ambiguity", "get_session", "get_history"}, names)
}

func TestProtocolErrors(t *testing.T) {
	srv := mcp.NewServer(&fakeEngine{})

	tests := []struct {
		name string
		req  string
		code int
	}{
		{"parse error", `{not json`, mcp.ErrCodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","method":"tools/list","id":1}`, mcp.ErrCodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"store_memory","id":1}`, mcp.ErrCodeMethodNotFound},
		{"bad kind", `{"jsonrpc":"2.0","method":"solve_ambiguity","params":{"kind":"widget","identifier":"x","graph_path":"p"},"id":1}`, mcp.ErrCodeInvalidParams},
		{"missing path", `{"jsonrpc":"2.0","method":"solve_ambiguity","params":{"kind":"class","identifier":"x"},"id":1}`, mcp.ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, srv, tt.req)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestIngestTool(t *testing.T) {
	eng := &fakeEngine{
		ingestReport: pattern.IngestReport{
			DraftedClasses: []string{"Invoice"},
			DraftedIntents: []string{"GetOverdue"},
			TargetErrors:   []error{fmt.Errorf("%w: intent %q", pattern.ErrTargetNotFound, "GetOverdue")},
		},
	}
	srv := mcp.NewServer(eng, mcp.WithPersist(true))

	res, text := toolCall(t, srv, "ingest_parse", map[string]interface{}{
		"query": "overdue invoices",
		"parsed": map[string]interface{}{
			"classes": []interface{}{map[string]interface{}{"identifier": "Invoice", "name": "Invoice", "relevant": true}},
		},
	})
	assert.False(t, res.IsError)

	var out mcp.IngestResult
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "s1", out.Session)
	assert.Equal(t, []string{"Invoice"}, out.DraftedClasses)
	assert.Equal(t, []string{}, out.DraftedArguments)
	require.Len(t, out.TargetErrors, 1)
	assert.Contains(t, out.TargetErrors[0], "GetOverdue")

	assert.Equal(t, "overdue invoices", eng.query)
	require.Len(t, eng.parsed, 1)
	assert.Equal(t, "Invoice", eng.parsed[0].Classes[0].Identifier)
	assert.Equal(t, 1, eng.persists)
}

func TestResolveTool(t *testing.T) {
	eng := &fakeEngine{resolve: engine.ResolveReport{
		Resolved:  []engine.Ref{{Kind: types.KindClass, Identifier: "Invoice"}},
		Ambiguous: []engine.Ref{{Kind: types.KindClass, Identifier: "Bill"}},
	}}
	srv := mcp.NewServer(eng)

	_, text := toolCall(t, srv, "resolve_pending", nil)
	var out mcp.ResolveResult
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, eng.resolve.Resolved, out.Report.Resolved)
	assert.Equal(t, eng.resolve.Ambiguous, out.Report.Ambiguous)
	assert.Zero(t, eng.persists, "persist is off by default")
}

func TestSolveTool(t *testing.T) {
	eng := &fakeEngine{}
	srv := mcp.NewServer(eng, mcp.WithPersist(true))

	_, text := toolCall(t, srv, "solve_ambiguity", map[string]interface{}{
		"kind": "class", "identifier": "Bill", "graph_path": "finance/bill",
	})
	var out mcp.SolveResult
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, mcp.SolveResult{Kind: types.KindClass, Identifier: "Bill", Tier: types.TierResolved, GraphPath: "finance/bill"}, out)
	assert.Equal(t, []string{"class/Bill=finance/bill"}, eng.solved)
	assert.Equal(t, 1, eng.persists)
}

func TestSolveTool_ErrorIsReportedInBand(t *testing.T) {
	eng := &fakeEngine{solveErr: fmt.Errorf("%w: class %q", pattern.ErrUnknownAmbiguity, "Bill")}
	srv := mcp.NewServer(eng, mcp.WithPersist(true))

	res, text := toolCall(t, srv, "solve_ambiguity", map[string]interface{}{
		"kind": "class", "identifier": "Bill", "graph_path": "finance/bill",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "unknown ambiguity")
	assert.Zero(t, eng.persists)
}

func TestPersistFailureFailsTheCall(t *testing.T) {
	eng := &fakeEngine{persistErr: errors.New("disk full")}
	srv := mcp.NewServer(eng, mcp.WithPersist(true))

	resp := call(t, srv, `{"jsonrpc":"2.0","method":"resolve_pending","id":3}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.ErrCodeServerError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "disk full")
}

func TestUnknownTool(t *testing.T) {
	srv := mcp.NewServer(&fakeEngine{})

	res, text := toolCall(t, srv, "recall_memory", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "unknown tool: recall_memory", text)
}

func TestReadTools(t *testing.T) {
	srv := mcp.NewServer(&fakeEngine{query: "overdue invoices"})

	_, text := toolCall(t, srv, "get_session", nil)
	var doc types.SerializedPattern
	require.NoError(t, json.Unmarshal([]byte(text), &doc))
	assert.Equal(t, "overdue invoices", doc.Query)

	_, text = toolCall(t, srv, "get_history", nil)
	var hist types.SerializedHistory
	require.NoError(t, json.Unmarshal([]byte(text), &hist))
	require.Len(t, hist.Classes, 1)
	assert.Equal(t, "model/invoice", hist.Classes[0].GraphPath)
}
