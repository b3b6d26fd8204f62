package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/volcengine/veadk-go/apps"
	"github.com/volcengine/veadk-go/apps/a2a_app"
	"google.golang.org/adk/agent"

	"github.com/jm-kang/examgen/internal/a2a"
	"github.com/jm-kang/examgen/internal/config"
	"github.com/jm-kang/examgen/internal/exam"
	"github.com/jm-kang/examgen/internal/gemini"
	"github.com/jm-kang/examgen/internal/server"
	"github.com/jm-kang/examgen/internal/stats"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting examgen",
		"listen", cfg.ListenAddr,
		"model", cfg.GeminiModel,
		"max_concurrent", cfg.MaxConcurrent,
		"a2a_enabled", cfg.A2AEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counters := stats.NewCounters()
	client := gemini.NewClient(gemini.Config{
		BaseURL: cfg.GeminiBaseURL,
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.RequestTimeout,
		Retry: gemini.RetryPolicy{
			Wait:        cfg.RetryWait,
			MaxAttempts: 2,
		},
		MaxConcurrent: int64(cfg.MaxConcurrent),
		Params: gemini.GenerationParams{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}, counters)
	svc := exam.NewService(client, cfg.PaceInterval, counters)

	srv := server.New(cfg, svc, counters)
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	// Optionally expose the generator as an A2A agent.
	a2aErr := make(chan error, 1)
	if cfg.A2AEnabled {
		examAgent, err := a2a.New(a2a.AgentConfig{
			Name:        cfg.AgentName,
			Description: cfg.AgentDesc,
			Service:     svc,
		})
		if err != nil {
			slog.Error("failed to create A2A agent", "error", err)
			os.Exit(1)
		}

		slog.Info("starting A2A server", "port", cfg.A2APort, "agent_name", cfg.AgentName)

		app := a2a_app.NewAgentkitA2AServerApp(
			apps.DefaultApiConfig().SetPort(cfg.A2APort),
		)
		go func() {
			if err := app.Run(ctx, &apps.RunConfig{
				AgentLoader: agent.NewSingleLoader(examAgent),
			}); err != nil {
				a2aErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	case err := <-srvErr:
		slog.Error("http server error", "error", err)
		os.Exit(1)
	case err := <-a2aErr:
		slog.Error("A2A server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
