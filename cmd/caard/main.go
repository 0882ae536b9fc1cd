// Package main boots the caard chat service and wires application dependencies.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/caardbot/caard/internal/chat"
	"github.com/caardbot/caard/internal/config"
	"github.com/caardbot/caard/internal/history"
	"github.com/caardbot/caard/internal/llm"
	"github.com/caardbot/caard/internal/prompt"
	"github.com/caardbot/caard/internal/repository"
	"github.com/caardbot/caard/internal/retrieval"
	"github.com/caardbot/caard/internal/server"
	"github.com/caardbot/caard/internal/tool"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	slog.Info("configuration loaded", "chat_model", cfg.ChatModel, "embedding_model", cfg.EmbeddingModel, "listen_addr", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	embedder, err := llm.NewGenAIEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel, cfg.EmbedRetries)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	backend, err := llm.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel)
	if err != nil {
		log.Fatalf("failed to create chat client: %v", err)
	}

	promptBuilder, err := prompt.NewBuilder(cfg.Timezone)
	if err != nil {
		log.Fatalf("failed to load timezone %q: %v", cfg.Timezone, err)
	}

	queryEmbedder := llm.NewQueryEmbedder(embedder)
	retriever := retrieval.NewRetriever(queryEmbedder, store.Knowledge, cfg.KnowledgeThreshold)
	dispatcher := tool.NewDispatcher(store.Turns, store.Images, store.Knowledge, queryEmbedder, cfg.ImageThreshold)
	registry := tool.NewRegistry(store.Tools)
	historyManager := history.NewManager(store.Turns, backend,
		cfg.CompactionMinTurns, cfg.RecentTurns, cfg.SummaryMaxTokens, cfg.SummaryTemperature)

	orchestrator := chat.NewOrchestrator(
		backend,
		store.Characters,
		store.Admins,
		registry,
		dispatcher,
		retriever,
		historyManager,
		promptBuilder,
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.NewServer(orchestrator, store.Turns).SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err.Error())
		}
	}

	slog.Info("server shutdown complete")
}
