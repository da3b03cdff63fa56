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

	"github.com/kdimtricp/cineman/internal/api"
	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
	"github.com/kdimtricp/cineman/internal/catalog"
	"github.com/kdimtricp/cineman/internal/chat"
	"github.com/kdimtricp/cineman/internal/config"
	"github.com/kdimtricp/cineman/internal/database"
	"github.com/kdimtricp/cineman/internal/enrich"
	"github.com/kdimtricp/cineman/internal/llm"
	"github.com/kdimtricp/cineman/internal/logging"
	"github.com/kdimtricp/cineman/internal/ratelimit"
	"github.com/kdimtricp/cineman/internal/session"
	"github.com/kdimtricp/cineman/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	movieCache := cache.New(cfg.Cache.MaxSize, cfg.Cache.Enabled)
	httpClient := apiclient.New(apiclient.Options{
		Timeout:           cfg.HTTPClient.Timeout,
		MaxRetries:        cfg.HTTPClient.MaxRetries,
		BackoffBase:       cfg.HTTPClient.BackoffBase,
		RequestsPerSecond: cfg.HTTPClient.RequestsPerSecond,
	}, logger)

	ttl := catalog.TTLPolicy{
		Success:  cfg.Cache.SuccessTTL,
		NotFound: cfg.Cache.NotFoundTTL,
		Error:    cfg.Cache.ErrorTTL,
	}
	tmdb := catalog.NewTMDBClient(catalog.TMDBConfig{
		APIKey:  cfg.TMDB.APIKey,
		BaseURL: cfg.TMDB.BaseURL,
		TTL:     ttl,
	}, httpClient, movieCache, logger)
	omdb := catalog.NewOMDBClient(catalog.OMDBConfig{
		APIKey:  cfg.OMDB.APIKey,
		BaseURL: cfg.OMDB.BaseURL,
		TTL:     ttl,
	}, httpClient, movieCache, logger)
	watchmode := catalog.NewWatchmodeClient(catalog.WatchmodeConfig{
		APIKey:       cfg.Watchmode.APIKey,
		BaseURL:      cfg.Watchmode.BaseURL,
		Enabled:      cfg.Watchmode.Enabled,
		MonthlyLimit: cfg.Watchmode.MonthlyLimit,
		TTL:          ttl,
	}, httpClient, movieCache, logger)

	validator := validation.New(tmdb, omdb, nil, validation.Config{
		SimilarityThreshold: cfg.Validation.SimilarityThreshold,
		WeakThreshold:       cfg.Validation.WeakSimilarityFloor,
		DropThreshold:       cfg.Validation.DropThreshold,
		SingleSourcePenalty: cfg.Validation.SingleSourcePenalty,
		MaxConcurrent:       cfg.Validation.MaxConcurrent,
		BatchTimeout:        cfg.Validation.BatchTimeout,
	}, logger)

	enricher := enrich.New(watchmode, logger)
	completer := llm.New(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
	}, logger)

	sessions := session.NewManager(session.Config{
		IdleTimeout:  cfg.Session.Timeout,
		HistoryLimit: cfg.Session.HistoryLimit,
	}, logger)
	limiter := ratelimit.NewDailyLimiter(db, "llm", cfg.RateLimit.DailyLimit, logger)

	chatService := chat.NewService(completer, validator, enricher, limiter, sessions, cfg.LLM.SystemPrompt, logger)

	app := &api.App{
		Chat:         chatService,
		TMDB:         tmdb,
		OMDB:         omdb,
		Cache:        movieCache,
		Interactions: database.NewInteractionRepository(db),
		Quota:        limiter,
		Providers: api.ProviderStatus{
			TMDB:      cfg.TMDB.APIKey != "",
			OMDB:      cfg.OMDB.APIKey != "",
			Watchmode: cfg.Watchmode.APIKey != "",
			LLM:       cfg.LLM.APIKey != "",
		},
		Logger: logger,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown did not finish cleanly")
	}
}
