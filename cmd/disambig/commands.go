package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/disambig/internal/api/mcp"
	"github.com/scrypster/disambig/internal/logging"
	"github.com/scrypster/disambig/internal/notify"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/internal/storage"
	"github.com/scrypster/disambig/internal/storage/sqlite"
	"github.com/scrypster/disambig/pkg/types"
)

// NewRootCommand builds the disambig command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "disambig",
		Short: "Resolve parsed queries against a knowledge graph, one session at a time",
		Long: `disambig keeps an incremental disambiguation session. Parser output is
ingested as drafts, drafts are resolved against the graph catalog, and
entities with several plausible graph nodes wait for an answer via solve.

Sessions and the history of resolved entities are persisted in the
configured store, so each command picks up where the last one stopped.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default: environment variables only)")
	rootCmd.PersistentFlags().String("session", "default", "Session id")

	ingestCmd := &cobra.Command{
		Use:   "ingest <parsed.json>",
		Short: "Merge a parse result into the session",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	ingestCmd.Flags().String("query", "", "Set the natural-language query of the session")

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Search and rerank every finished draft",
		Args:  cobra.NoArgs,
		RunE:  runResolve,
	}

	solveCmd := &cobra.Command{
		Use:   "solve <class|intent|argument> <identifier> <graph-path>",
		Short: "Answer an ambiguity with one of its options",
		Args:  cobra.ExactArgs(3),
		RunE:  runSolve,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the serialized session",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the history of resolved classes and intents",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List persisted sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessions,
	}
	sessionsCmd.Flags().Int("page", 1, "Page number")
	sessionsCmd.Flags().Int("limit", 20, "Sessions per page")

	backupCmd := &cobra.Command{
		Use:   "backup <dest.db>",
		Short: "Write a verified copy of the sqlite database",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackup,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream promotion events written by other disambig processes",
		Long: `watch prints one JSON line per promotion event until interrupted.
Events are consumed: two watchers on the same data path split the stream.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
	watchCmd.Flags().Bool("all", false, "Print events of every session, not only --session")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over MCP (JSON-RPC 2.0 on stdin/stdout)",
		Long: `serve keeps one session engine open and answers MCP requests read line
by line from stdin. The session is persisted after every change, so the other
commands see the same state. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, version)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "disambig %s\n", version)
		},
	}

	rootCmd.AddCommand(ingestCmd, resolveCmd, solveCmd, showCmd, historyCmd, sessionsCmd, backupCmd, watchCmd, serveCmd, versionCmd)
	return rootCmd
}

// withApp opens the session named by the persistent flags, runs fn and
// closes it again. The session is persisted when persist is set and fn
// succeeded.
func withApp(cmd *cobra.Command, persist bool, fn func(a *app) error) (err error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read --config flag: %w", err)
	}
	sessionID, err := cmd.Flags().GetString("session")
	if err != nil {
		return fmt.Errorf("failed to read --session flag: %w", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, configPath, sessionID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(ctx, persist && err == nil); err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

// ingestResult is the printable form of pattern.IngestReport.
type ingestResult struct {
	Session          string   `json:"session"`
	DraftedClasses   []string `json:"drafted_classes"`
	DraftedIntents   []string `json:"drafted_intents"`
	DraftedArguments []string `json:"drafted_arguments"`
	Kept             []string `json:"kept"`
	TargetErrors     []string `json:"target_errors,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read parse result: %w", err)
	}
	var parsed types.ParsedPattern
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to decode parse result: %w", err)
	}
	query, err := cmd.Flags().GetString("query")
	if err != nil {
		return fmt.Errorf("failed to read --query flag: %w", err)
	}

	return withApp(cmd, true, func(a *app) error {
		ctx := cmd.Context()
		if query != "" {
			if err := a.engine.SetQuery(ctx, query); err != nil {
				return err
			}
		}
		report, err := a.engine.Ingest(ctx, parsed)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), newIngestResult(a.engine.SessionID(), report))
	})
}

func newIngestResult(session string, r pattern.IngestReport) ingestResult {
	out := ingestResult{
		Session:          session,
		DraftedClasses:   nonNil(r.DraftedClasses),
		DraftedIntents:   nonNil(r.DraftedIntents),
		DraftedArguments: nonNil(r.DraftedArguments),
		Kept:             nonNil(r.Kept),
	}
	for _, err := range r.TargetErrors {
		out.TargetErrors = append(out.TargetErrors, err.Error())
	}
	return out
}

func runResolve(cmd *cobra.Command, args []string) error {
	return withApp(cmd, true, func(a *app) error {
		report, err := a.engine.ResolvePending(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	})
}

func runSolve(cmd *cobra.Command, args []string) error {
	kind, err := types.ParseKind(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, true, func(a *app) error {
		out, err := a.engine.Solve(cmd.Context(), kind, args[1], args[2])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(a *app) error {
		doc, err := a.engine.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), doc)
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(a *app) error {
		doc, err := a.engine.History(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), doc)
	})
}

func runSessions(cmd *cobra.Command, args []string) error {
	page, err := cmd.Flags().GetInt("page")
	if err != nil {
		return fmt.Errorf("failed to read --page flag: %w", err)
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to read --limit flag: %w", err)
	}
	return withApp(cmd, false, func(a *app) error {
		res, err := a.store.ListSnapshots(cmd.Context(), storage.ListOptions{Page: page, Limit: limit})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}

func runBackup(cmd *cobra.Command, args []string) error {
	return withApp(cmd, false, func(a *app) error {
		store, ok := a.store.(*sqlite.Store)
		if !ok {
			return fmt.Errorf("backup requires the sqlite storage engine, got %s", a.cfg.Storage.Engine)
		}
		if err := store.Backup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", args[0])
		return nil
	})
}

func runServe(cmd *cobra.Command, version string) error {
	return withApp(cmd, true, func(a *app) error {
		srv := mcp.NewServer(a.engine,
			mcp.WithLogger(a.logger),
			mcp.WithVersion(version),
			mcp.WithPersist(true))
		a.logger.Info("serving MCP on stdio", zap.String("session", a.engine.SessionID()))
		err := mcp.NewStdioTransport(srv, cmd.InOrStdin(), cmd.OutOrStdout()).Serve(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read --config flag: %w", err)
	}
	sessionID, err := cmd.Flags().GetString("session")
	if err != nil {
		return fmt.Errorf("failed to read --session flag: %w", err)
	}
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return fmt.Errorf("failed to read --all flag: %w", err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var mu sync.Mutex
	enc := json.NewEncoder(cmd.OutOrStdout())
	watcher := notify.NewEventWatcher(cfg.Storage.DataPath, logger, func(e notify.Event) {
		if !all && e.Session != sessionID {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(e); err != nil {
			logger.Warn("failed to print event", zap.Error(err))
		}
	})
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch events: %w", err)
	}
	defer watcher.Stop()

	<-cmd.Context().Done()
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
