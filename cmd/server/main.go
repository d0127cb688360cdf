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

	"github.com/Brownie44l1/digit-api/internal/classifier"
	"github.com/Brownie44l1/digit-api/internal/config"
	"github.com/Brownie44l1/digit-api/internal/handlers"
	"github.com/Brownie44l1/digit-api/internal/model"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// run owns the engine for the lifetime of the server and releases it on
// every return path.
func run(cfg *config.Config, log zerolog.Logger) error {
	engine, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	engine = model.Locked(engine)
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error().Err(err).Msg("release engine")
		}
	}()

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(log), handlers.CORS())

	handler := handlers.NewHandler(classifier.New(engine, log), cfg.MaxUploadBytes)
	handler.Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openEngine(cfg *config.Config, log zerolog.Logger) (model.Engine, error) {
	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	switch {
	case err == nil:
	case cfg.Remote() && errors.Is(err, os.ErrNotExist):
		metadata = model.DefaultMetadata()
	default:
		return nil, err
	}
	if err := classifier.CheckMetadata(metadata); err != nil {
		return nil, err
	}

	if cfg.Remote() {
		remote, err := model.NewRemoteEngine(cfg.InferenceURL, &http.Client{Timeout: cfg.InferenceTimeout}, metadata)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.InferenceTimeout)
		defer cancel()
		if err := remote.CheckHealth(ctx); err != nil {
			log.Warn().Err(err).Str("url", cfg.InferenceURL).Msg("ML service not available")
		}

		log.Info().Str("url", cfg.InferenceURL).Msg("using remote inference")
		return remote, nil
	}

	log.Info().Str("model", cfg.ModelPath).Msg("loading model")
	onnx, err := model.NewONNXEngine(cfg.ModelPath, cfg.LibraryPath, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model: %w", err)
	}

	log.Info().
		Str("output_kind", string(metadata.OutputKind)).
		Int("input_size", metadata.InputSize()).
		Int("output_size", metadata.OutputSize()).
		Msg("model loaded")
	return onnx, nil
}
