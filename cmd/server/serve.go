package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chgenberg/frejfund-site/internal/analysis"
	"github.com/chgenberg/frejfund-site/internal/api"
	"github.com/chgenberg/frejfund-site/internal/config"
	"github.com/chgenberg/frejfund-site/internal/convlog"
	"github.com/chgenberg/frejfund-site/internal/events"
	"github.com/chgenberg/frejfund-site/internal/generation"
	"github.com/chgenberg/frejfund-site/internal/health"
	"github.com/chgenberg/frejfund-site/internal/identity"
	"github.com/chgenberg/frejfund-site/internal/llm"
	"github.com/chgenberg/frejfund-site/internal/middleware"
	"github.com/chgenberg/frejfund-site/internal/persistence"
	"github.com/chgenberg/frejfund-site/internal/places"
	"github.com/chgenberg/frejfund-site/internal/report"
	"github.com/chgenberg/frejfund-site/internal/session"
	"github.com/chgenberg/frejfund-site/internal/store"
	"github.com/chgenberg/frejfund-site/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type backends struct {
	text   llm.TextGenerator
	images llm.ImageGenerator
	places *places.Client
}

// newBackends builds the generation clients. Missing credentials disable the
// feature with a warning; they never stop the server.
func newBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backends, error) {
	var b backends

	oa, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:       cfg.OpenAI.APIKey,
		Model:        cfg.OpenAI.Model,
		BaseURL:      cfg.OpenAI.BaseURL,
		TextTimeout:  cfg.TextTimeout,
		ImageTimeout: cfg.ImageTimeout,
	}, logger)
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		slog.Warn("OPENAI_API_KEY not set, logo generation disabled")
	case err != nil:
		return b, err
	default:
		b.images = oa
	}

	switch cfg.TextProvider {
	case config.ProviderGemini:
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: cfg.TextTimeout,
		}, logger)
		switch {
		case errors.Is(err, llm.ErrMissingCredential):
			slog.Warn("GEMINI_API_KEY not set, text generation disabled")
		case err != nil:
			return b, err
		default:
			b.text = g
		}
	default:
		if oa != nil {
			b.text = oa
		} else {
			slog.Warn("OPENAI_API_KEY not set, text generation disabled")
		}
	}

	b.places, err = places.New(places.Config{APIKey: cfg.PlacesKey, Timeout: cfg.PlacesTimeout}, logger)
	if err != nil {
		return b, err
	}
	return b, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "text_provider", cfg.TextProvider)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		return err
	}
	slog.Info("Database connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBackends(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize generation backends", "error", err)
		return err
	}

	convLogger, err := convlog.New(convlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		return err
	}
	defer func() { _ = convLogger.Close() }()

	hub := events.NewHub(cfg.FrontendURL, cfg.IsDevelopment(), logger)
	sessions := session.NewRegistry()

	gen := generation.New(generation.Options{
		Text:      b.text,
		Images:    b.images,
		Places:    b.places,
		Catalog:   analysis.Default(),
		Recorder:  repo,
		Publisher: hub,
		Exchanges: convLogger,
		Logger:    logger,
	})

	reportTmp, err := os.MkdirTemp("", "affarsplan-report-*")
	if err != nil {
		return fmt.Errorf("create report temp dir: %w", err)
	}
	defer os.RemoveAll(reportTmp)

	handler := api.NewHandler(api.Deps{
		Repo:      repo,
		Sessions:  sessions,
		Generator: gen,
		Saves:     persistence.New(cfg.DataDir, logger),
		Reports: report.New(report.Options{
			OutputDir: cfg.ReportDir,
			TempDir:   reportTmp,
			Logger:    logger,
		}),
		Events:     hub,
		SessionTTL: int64(cfg.SessionTTL.Seconds()),
	})
	healthHandler := api.NewHealthHandler(repo, gen)

	if cfg.GRPCHealthAddr != "" {
		hs := health.New(map[string]bool{
			health.ServiceText:   gen.TextAvailable(),
			health.ServiceImages: gen.ImagesAvailable(),
			health.ServicePlaces: gen.PlacesAvailable(),
		}, logger)
		go func() {
			if err := hs.ListenAndServe(ctx, cfg.GRPCHealthAddr); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	healthHandler.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		handler.RegisterRoutes(r)
		r.Get("/ws/events", hub.ServeHTTP)
	})

	r.Handle("/*", web.SPAHandler())

	// SSE manifest streams need WriteTimeout 0.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	session.StartTTLWorker(ctx, repo, sessions, cfg.SessionTTL, hub.CloseUser)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("Server failed", "error", err)
		return err
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
