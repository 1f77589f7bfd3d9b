package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/nodusapp/sage/internal/api"
	"github.com/nodusapp/sage/internal/chunker"
	"github.com/nodusapp/sage/internal/config"
	"github.com/nodusapp/sage/internal/gamification"
	"github.com/nodusapp/sage/internal/gemini"
	"github.com/nodusapp/sage/internal/ingest"
	"github.com/nodusapp/sage/internal/mcp"
	"github.com/nodusapp/sage/internal/recommend"
	"github.com/nodusapp/sage/internal/retrieval"
	"github.com/nodusapp/sage/internal/sandbox"
	"github.com/nodusapp/sage/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sage server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpMode, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpMode)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also expose notebook and wallet tools over MCP stdio")
}

// storeLoader adapts durable chunk storage to the retriever.
type storeLoader struct {
	store *storage.Store
}

func (l *storeLoader) LoadChunks(ctx context.Context, sourceID string) ([]retrieval.Candidate, error) {
	chunks, err := l.store.ChunksBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	out := make([]retrieval.Candidate, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, retrieval.Candidate{
			SourceID:  c.SourceID,
			Text:      c.Text,
			Embedding: c.Embedding,
		})
	}
	return out, nil
}

func runServer(mcpMode bool) error {
	fmt.Fprintf(os.Stderr, "sage version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.GenModel, cfg.Gemini.EmbedModel, cfg.Gemini.Timeout)
	if err != nil {
		return fmt.Errorf("connecting to model backend: %w", err)
	}
	defer model.Close()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	loader := &storeLoader{store: store}
	retriever := retrieval.NewRetriever(model, loader, cfg.Retrieval.TopK)
	pipeline := ingest.NewPipeline(store, model, chunker.Options{
		Size:    cfg.Ingest.ChunkSize,
		Overlap: cfg.Ingest.ChunkOverlap,
	}, cfg.Ingest.EmbedConcurrency, logger)
	tracker := gamification.NewTracker(store, logger)

	handler := api.NewHandler(api.Deps{
		Store:          store,
		Generator:      model,
		Retriever:      retriever,
		Ingestor:       pipeline,
		Videos:         ingest.NewYouTubeFetcher(nil),
		Executor:       sandbox.NewClient(cfg.Piston.BaseURL, cfg.Piston.Timeout),
		Tracker:        tracker,
		Recommender:    recommend.New(store, 5),
		Token:          cfg.Server.APIToken,
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
		Logger:         logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if mcpMode {
		mcpSrv := mcp.NewServer(mcp.Deps{
			Store:     store,
			Retriever: retriever,
			UserID:    "default",
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "sage listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sage system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Chat model", "%s", cfg.Gemini.GenModel)
	printStatus("Embed model", "%s", cfg.Gemini.EmbedModel)
	printStatus("Sandbox", "%s", cfg.Piston.BaseURL)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
