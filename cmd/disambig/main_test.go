package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/disambig/internal/engine"
	"github.com/scrypster/disambig/internal/notify"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/internal/storage"
	"github.com/scrypster/disambig/internal/storage/sqlite"
	"github.com/scrypster/disambig/pkg/types"
)

// setupEnv points the CLI at a temporary sqlite database and the test catalog.
func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISAMBIG_DATA_PATH", t.TempDir())
	t.Setenv("DISAMBIG_STORAGE_ENGINE", "sqlite")
	t.Setenv("DISAMBIG_CATALOG_PATH", "testdata/catalog.yaml")
	t.Setenv("DISAMBIG_LLM_PROVIDER", "none")
	t.Setenv("DISAMBIG_LOG_LEVEL", "error")
	t.Setenv("DISAMBIG_REQUESTS_PER_SECOND", "1000")
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	out, err := runErr(t, args...)
	require.NoError(t, err)
	return out
}

func runErr(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.Bytes(), err
}

func TestSessionFlow(t *testing.T) {
	setupEnv(t)

	var ingested ingestResult
	require.NoError(t, json.Unmarshal(run(t, "ingest", "--query", "overdue invoices", "testdata/overdue.json"), &ingested))
	assert.Equal(t, "default", ingested.Session)
	assert.Equal(t, []string{"Invoice", "Bill"}, ingested.DraftedClasses)
	assert.Equal(t, []string{"GetOverdue"}, ingested.DraftedIntents)
	assert.Empty(t, ingested.TargetErrors)

	var report engine.ResolveReport
	require.NoError(t, json.Unmarshal(run(t, "resolve"), &report))
	assert.Equal(t, []engine.Ref{
		{Kind: types.KindClass, Identifier: "Invoice"},
		{Kind: types.KindIntent, Identifier: "GetOverdue"},
		{Kind: types.KindArgument, Identifier: "days"},
	}, report.Resolved)
	assert.Equal(t, []engine.Ref{{Kind: types.KindClass, Identifier: "Bill"}}, report.Ambiguous)

	var out pattern.Outcome
	require.NoError(t, json.Unmarshal(run(t, "solve", "class", "Bill", "finance/bill"), &out))
	assert.Equal(t, types.TierResolved, out.Tier)

	var doc types.SerializedPattern
	require.NoError(t, json.Unmarshal(run(t, "show"), &doc))
	assert.Equal(t, "overdue invoices", doc.Query)
	assert.Equal(t, "finance/bill", doc.ClassFixed["Bill"].GraphPath)
	assert.Equal(t, "model/invoice/get_overdue/days", doc.ArgumentFixed["days"].GraphPath)
	assert.Empty(t, doc.ClassAmbiguities)

	var hist types.SerializedHistory
	require.NoError(t, json.Unmarshal(run(t, "history"), &hist))
	assert.Len(t, hist.Classes, 2)
	assert.Len(t, hist.Intents, 1)

	var sessions storage.PaginatedResult[storage.SnapshotInfo]
	require.NoError(t, json.Unmarshal(run(t, "sessions"), &sessions))
	require.Len(t, sessions.Items, 1)
	assert.Equal(t, "default", sessions.Items[0].ID)
}

func TestSessionsAreIsolated(t *testing.T) {
	setupEnv(t)

	run(t, "--session", "a", "ingest", "testdata/overdue.json")

	var doc types.SerializedPattern
	require.NoError(t, json.Unmarshal(run(t, "--session", "b", "show"), &doc))
	assert.Empty(t, doc.ClassDrafts)

	require.NoError(t, json.Unmarshal(run(t, "--session", "a", "show"), &doc))
	assert.Len(t, doc.ClassDrafts, 2)
}

func TestSolve_Errors(t *testing.T) {
	setupEnv(t)

	_, err := runErr(t, "solve", "widget", "X", "a/b")
	assert.ErrorIs(t, err, types.ErrUnknownKind)

	_, err = runErr(t, "solve", "class", "Nope", "a/b")
	assert.ErrorIs(t, err, pattern.ErrUnknownAmbiguity)
}

func TestIngest_MissingFile(t *testing.T) {
	setupEnv(t)

	_, err := runErr(t, "ingest", "testdata/does-not-exist.json")
	assert.Error(t, err)
}

func TestBackup(t *testing.T) {
	setupEnv(t)
	run(t, "ingest", "testdata/overdue.json")

	dest := filepath.Join(t.TempDir(), "copy.db")
	out := run(t, "backup", dest)
	assert.Contains(t, string(out), dest)
	require.NoError(t, sqlite.VerifyBackup(context.Background(), dest))
}

func TestWatch(t *testing.T) {
	setupEnv(t)
	run(t, "ingest", "testdata/overdue.json")
	run(t, "resolve")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"watch"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	tiers := map[string]types.Tier{}
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var e notify.Event
		require.NoError(t, dec.Decode(&e))
		assert.Equal(t, "default", e.Session)
		tiers[e.Identifier] = e.Tier
	}
	assert.Equal(t, map[string]types.Tier{
		"Invoice":    types.TierResolved,
		"GetOverdue": types.TierResolved,
		"days":       types.TierResolved,
		"Bill":       types.TierAmbiguous,
	}, tiers)

	entries, err := os.ReadDir(filepath.Join(os.Getenv("DISAMBIG_DATA_PATH"), "events"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestServe(t *testing.T) {
	setupEnv(t)
	parsed, err := os.ReadFile("testdata/overdue.json")
	require.NoError(t, err)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","method":"initialize","id":1}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"ingest_parse","arguments":{"parsed":` + strings.ReplaceAll(string(parsed), "\n", "") + `}},"id":2}`,
		`{"jsonrpc":"2.0","method":"resolve_pending","id":3}`,
		`{"jsonrpc":"2.0","method":"solve_ambiguity","params":{"kind":"class","identifier":"Bill","graph_path":"finance/bill"},"id":4}`,
	}, "\n") + "\n"

	var buf bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"serve", "--session", "mcp"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.NotContains(t, line, `"error"`)
	}

	// serve persisted the session, so a later command sees the answer.
	var doc types.SerializedPattern
	require.NoError(t, json.Unmarshal(run(t, "show", "--session", "mcp"), &doc))
	assert.Equal(t, "finance/bill", doc.ClassFixed["Bill"].GraphPath)
	assert.Empty(t, doc.ClassAmbiguities)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "disambig test\n", string(run(t, "version")))
}
