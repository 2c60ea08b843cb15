package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/driroane/llamachat/internal/config"
	"github.com/driroane/llamachat/internal/handler"
	chatService "github.com/driroane/llamachat/internal/service/chat"
	"github.com/driroane/llamachat/internal/service/inference"
	"github.com/driroane/llamachat/internal/service/prompt"
	"github.com/driroane/llamachat/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	log.Printf("using inference backend at %s", cfg.Backend.BaseURL)
	log.Printf("token limits - context window: %d, system reserve: %d, response reserve: %d, min tokens: %d, max tokens: %d",
		cfg.Context.MaxContextWindow, cfg.Context.SystemReserve, cfg.Context.ResponseReserve,
		cfg.Context.MinTokens, cfg.Context.MaxTokens)

	registry := session.NewRegistry(cfg.Session.IdleTTL)
	go registry.RunSweeper(ctx, cfg.Session.SweepInterval)

	client := inference.New(inference.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Retries: cfg.Backend.Retries,
		Backoff: cfg.Backend.Backoff,
	})

	assembler := prompt.NewAssembler(cfg.Context.SystemPrompt, prompt.Limits{
		MaxContextWindow: cfg.Context.MaxContextWindow,
		SystemReserve:    cfg.Context.SystemReserve,
		ResponseReserve:  cfg.Context.ResponseReserve,
		MinTokens:        cfg.Context.MinTokens,
		MaxTokens:        cfg.Context.MaxTokens,
	}, cfg.Backend.Temperature, cfg.Backend.TopP)

	chatSvc := chatService.NewService(registry, assembler, client)
	router := handler.NewRouter(chatSvc, client)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("llamachat backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
