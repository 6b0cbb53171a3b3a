package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"intake-backend/config"
	"intake-backend/handlers"
	"intake-backend/logging"
	"intake-backend/provider"
	"intake-backend/repository"
	"intake-backend/service"
	"intake-backend/storage"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "intake-server",
		Short: "Patient intake document extraction API",
	}

	var envFile string
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd(&envFile))
	rootCmd.AddCommand(schemaCmd(&envFile))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*envFile)
			if err != nil {
				return err
			}
			return runServer(cfg, logger)
		},
	}
}

func schemaCmd(envFile *string) *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the form and document tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*envFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if drop {
				if !cfg.IsDev() {
					return errors.New("--drop is only allowed with ENV=development")
				}
				if err := repository.DropSchema(ctx, pool); err != nil {
					return err
				}
				logger.Warn().Msg("dropped existing tables")
			}
			if err := repository.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			logger.Info().Int("statements", len(repository.Schema)).Msg("schema is up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop existing tables first (development only)")
	return cmd
}

// setup loads and validates configuration and builds the root logger.
func setup(envFile string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty || cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return nil, logger, err
	}
	return cfg, logger, nil
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Storage
	fileStorage, err := storage.NewStorage(ctx, cfg.Storage())
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	logger.Info().Str("type", cfg.StorageType).Msg("storage initialized")

	// Extraction provider
	extractor, err := provider.New(ctx, cfg.Provider(), logger)
	if err != nil {
		return fmt.Errorf("initialize extraction provider: %w", err)
	}
	defer provider.Close(extractor)
	logger.Info().Str("provider", extractor.Name()).Msg("extraction provider initialized")

	// Repositories
	formRepo := repository.NewFormRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)

	// Services
	analysisService := service.NewAnalysisService(
		service.AnalysisWithFormStore(formRepo),
		service.AnalysisWithDocumentStore(documentRepo),
		service.AnalysisWithExtractor(extractor),
		service.AnalysisWithLogger(logger.With().Str("component", "analysis").Logger()),
	)
	completionService := service.NewCompletionService(
		service.CompletionWithFormStore(formRepo),
		service.CompletionWithDocumentStore(documentRepo),
		service.CompletionWithAnalyzer(analysisService),
		service.CompletionWithBatchCacheTTL(cfg.BatchCacheTTL),
		service.CompletionWithLogger(logger.With().Str("component", "completion").Logger()),
	)
	formService := service.NewFormService(
		service.FormWithStore(formRepo),
		service.FormWithLogger(logger.With().Str("component", "forms").Logger()),
	)
	reviewService := service.NewReviewService(
		service.ReviewWithFormStore(formRepo),
		service.ReviewWithLogger(logger.With().Str("component", "review").Logger()),
	)

	// Handlers
	defaultPatient := cfg.DefaultPatient()
	routes := handlers.Router{
		Health:     handlers.Health(pool),
		Analysis:   handlers.NewAnalysisHandler(analysisService, defaultPatient),
		Completion: handlers.NewCompletionHandler(completionService, defaultPatient),
		Forms:      handlers.NewFormHandler(formService, reviewService),
		Documents: handlers.NewDocumentHandler(documentRepo, fileStorage,
			handlers.DocumentWithDefaultPatient(defaultPatient),
			handlers.DocumentWithMaxUploadBytes(cfg.MaxUploadBytes),
			handlers.DocumentWithLogger(logger.With().Str("component", "documents").Logger()),
		),
	}

	// Setup Gin router
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestID())
	r.Use(logging.RequestLogger(logger))
	r.Use(handlers.Cors())
	routes.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
