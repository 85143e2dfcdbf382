package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/codeseeker/codeseeker/internal/config"
	embed "github.com/codeseeker/codeseeker/internal/embedding"
	"github.com/codeseeker/codeseeker/internal/exclusions"
	"github.com/codeseeker/codeseeker/internal/graphquery"
	index "github.com/codeseeker/codeseeker/internal/indexer"
	"github.com/codeseeker/codeseeker/internal/logging"
	"github.com/codeseeker/codeseeker/internal/mcpserver"
	"github.com/codeseeker/codeseeker/internal/scanner"
	"github.com/codeseeker/codeseeker/internal/search"
	"github.com/codeseeker/codeseeker/internal/store"
	"github.com/codeseeker/codeseeker/internal/telemetry"
	"github.com/codeseeker/codeseeker/internal/ui"
	"github.com/codeseeker/codeseeker/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		port      int
		session   string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Start CodeSeeker as an MCP server, exposing hybrid search and code
intelligence tools over the Model Context Protocol.

Use this to connect CodeSeeker to an AI coding assistant such as Claude Code
or Cursor. The default stdio transport expects the assistant to own both
ends of the pipe; nothing is written to stdout except JSON-RPC frames.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				debugMode = true
			}
			return runServe(cmd.Context(), transport, port, session)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve over: stdio")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (ignored for stdio)")
	cmd.Flags().StringVar(&session, "session", "", "Tag emitted in every log line, for distinguishing concurrent servers in one log file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to ~/.codeseeker/logs/")

	return cmd
}

// runServe builds the full MCP server dependency graph and serves it over
// the given transport. Every dependency is optional from the server's point
// of view (see Server.Set*) except the search engine and metadata store,
// which callers must have an index for already.
func runServe(ctx context.Context, transport string, port int, session string) error {
	// MCP protocol requires stdout to carry ONLY JSON-RPC frames. All status
	// and error output during startup goes to the log file instead.
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		if session != "" {
			logger = logger.With(slog.String("session", session))
		}
		slog.SetDefault(logger)
		defer cleanup()
	}

	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			slog.Warn("stdin_check_failed", slog.String("error", err.Error()))
		}
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	dataDir := filepath.Join(root, ".codeseeker")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	metadataPath := filepath.Join(dataDir, "metadata.db")
	if _, statErr := os.Stat(metadataPath); os.IsNotExist(statErr) {
		slog.Warn("serve_no_index", slog.String("root", root))
	}

	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		_ = metadata.Close()
		return fmt.Errorf("failed to open BM25 index: %w", err)
	}

	embedCtx, embedCancel := context.WithTimeout(ctx, 15*time.Second)
	embedder, err := embed.NewEmbedder(embedCtx, cfg.Embeddings.Dimensions)
	embedCancel()
	if err != nil {
		slog.Warn("embedder_init_failed_falling_back_to_static", slog.String("error", err.Error()))
		embedder = embed.NewLocalEmbedder(cfg.Embeddings.Dimensions)
	}

	vectorCfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vector, err := store.NewHNSWStore(vectorCfg)
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		_ = embedder.Close()
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			slog.Warn("vector_load_failed", slog.String("error", loadErr.Error()))
		}
	}

	engineConfig := search.DefaultConfig()
	if cfg.Search.MaxResults > 0 {
		engineConfig.DefaultLimit = cfg.Search.MaxResults
	}
	if cfg.Search.BM25Weight > 0 || cfg.Search.SemanticWeight > 0 {
		engineConfig.DefaultWeights = search.Weights{
			BM25:     cfg.Search.BM25Weight,
			Semantic: cfg.Search.SemanticWeight,
		}
	}
	var metrics *telemetry.QueryMetrics
	if metricsStore, metricsErr := telemetry.NewSQLiteMetricsStore(metadata.DB()); metricsErr == nil {
		metrics = telemetry.NewQueryMetrics(metricsStore)
		defer func() { _ = metrics.Close() }()
	} else {
		slog.Warn("metrics_store_unavailable", slog.String("error", metricsErr.Error()))
	}

	engineOpts := []search.EngineOption{search.WithMultiQuerySearch(search.NewPatternDecomposer())}
	if metrics != nil {
		engineOpts = append(engineOpts, search.WithMetrics(metrics))
	}
	engine := search.New(bm25, vector, embedder, metadata, engineConfig, engineOpts...)

	srv, err := mcpserver.NewServer(engine, metadata, embedder, cfg, root)
	if err != nil {
		_ = metadata.Close()
		_ = bm25.Close()
		_ = vector.Close()
		_ = embedder.Close()
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	projectID := index.ProjectIDForPath(root)
	srv.SetProjectID(projectID)
	srv.SetExclusions(exclusions.NewPolicy(dataDir))
	srv.SetStandards(store.NewStandardsStore(dataDir))
	if metrics != nil {
		srv.SetMetrics(metrics)
	}

	graphPath := filepath.Join(dataDir, "graph.db")
	if graph, graphErr := store.NewSQLiteGraphStore(graphPath); graphErr == nil {
		srv.SetGraphEngine(graphquery.NewEngine(graph))
	} else {
		slog.Warn("graph_store_unavailable", slog.String("error", graphErr.Error()))
	}

	uiCfg := ui.NewConfig(io.Discard, ui.WithForcePlain(true), ui.WithProjectDir(root))
	renderer := ui.NewRenderer(uiCfg)

	runner, err := index.NewRunner(index.RunnerDependencies{
		Renderer: renderer,
		Config:   cfg,
		Metadata: metadata,
		BM25:     bm25,
		Vector:   vector,
		Embedder: embedder,
	})
	if err != nil {
		slog.Warn("indexer_unavailable", slog.String("error", err.Error()))
	} else {
		defer func() { _ = runner.Close() }()
		srv.SetIndexer(runner)
	}

	// BUG-035 (carried over): the file watcher can take seconds to warm up on
	// slow filesystems, but the MCP handshake has to complete in well under
	// that. Start the watcher/coordinator in the background so serving begins
	// immediately; notify_file_changes and a live watcher both funnel into
	// the same Coordinator once it's ready.
	coordinatorReady := make(chan *index.Coordinator, 1)
	go func() {
		coordinatorReady <- startBackgroundWatcher(ctx, root, dataDir, projectID, engine, metadata, cfg)
	}()
	go func() {
		select {
		case coord := <-coordinatorReady:
			if coord != nil {
				srv.SetChangeNotifier(coord)
			}
		case <-ctx.Done():
		}
	}()

	defer func() { _ = metadata.Close() }()
	defer func() { _ = bm25.Close() }()
	defer func() { _ = vector.Close() }()
	defer func() { _ = embedder.Close() }()

	return srv.Serve(ctx, transport, fmt.Sprintf(":%d", port))
}

// startBackgroundWatcher builds the incremental-index Coordinator and, when
// the filesystem watcher starts in time, wires it to a live HybridWatcher.
// Slow watcher startup only delays automatic reindexing, never the MCP
// handshake itself.
func startBackgroundWatcher(ctx context.Context, root, dataDir, projectID string, engine *search.Engine, metadata store.MetadataStore, cfg *config.Config) *index.Coordinator {
	scn, err := scanner.New()
	if err != nil {
		slog.Warn("scanner_unavailable", slog.String("error", err.Error()))
		scn = nil
	}

	coord := index.NewCoordinator(index.CoordinatorConfig{
		ProjectID:       projectID,
		RootPath:        root,
		DataDir:         dataDir,
		Engine:          engine,
		Metadata:        metadata,
		Scanner:         scn,
		ExcludePatterns: cfg.Paths.Exclude,
	})

	startupTimeout := 2 * time.Second
	if v := os.Getenv("CODESEEKER_WATCHER_STARTUP_TIMEOUT"); v != "" {
		if d, parseErr := time.ParseDuration(v); parseErr == nil {
			startupTimeout = d
		}
	}

	opts := watcher.Options{EventBufferSize: 1000}.WithDefaults()
	hw, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		slog.Warn("watcher_init_failed", slog.String("error", err.Error()))
		return coord
	}

	startCtx, startCancel := context.WithTimeout(ctx, startupTimeout)
	defer startCancel()
	startErr := make(chan error, 1)
	go func() { startErr <- hw.Start(ctx, root) }()

	select {
	case err := <-startErr:
		if err != nil {
			slog.Warn("watcher_start_failed", slog.String("error", err.Error()))
			return coord
		}
	case <-startCtx.Done():
		slog.Warn("watcher_start_timed_out", slog.Duration("timeout", startupTimeout))
	}

	go func() {
		for events := range hw.Events() {
			if err := coord.HandleEvents(ctx, events); err != nil {
				slog.Error("coordinator_handle_events_failed", slog.String("error", err.Error()))
			}
		}
	}()

	return coord
}

// verifyStdinForMCP checks that stdin is a pipe, not an interactive
// terminal. A client that launches codeseeker directly in a terminal is
// almost always a misconfiguration, not a valid MCP connection.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe: codeseeker serve expects to be launched by an MCP client over stdin/stdout")
	}
	return nil
}
