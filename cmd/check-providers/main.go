// check-providers probes each configured external service with a cheap real
// request and reports which credentials work.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
	"github.com/kdimtricp/cineman/internal/catalog"
	"github.com/kdimtricp/cineman/internal/config"
	"github.com/kdimtricp/cineman/internal/llm"
	"github.com/kdimtricp/cineman/internal/logging"
)

const probeTitle = "The Matrix"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Nop()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("Checking provider credentials")
	fmt.Println("=============================")

	httpClient := apiclient.New(apiclient.Options{
		Timeout:    cfg.HTTPClient.Timeout,
		MaxRetries: 1,
	}, logger)
	probeCache := cache.New(10, false)

	failed := 0

	tmdb := catalog.NewTMDBClient(catalog.TMDBConfig{
		APIKey:  cfg.TMDB.APIKey,
		BaseURL: cfg.TMDB.BaseURL,
	}, httpClient, probeCache, logger)
	failed += report("TMDB", cfg.TMDB.APIKey, func() error {
		_, err := tmdb.Lookup(ctx, probeTitle, "1999")
		return err
	})

	omdb := catalog.NewOMDBClient(catalog.OMDBConfig{
		APIKey:  cfg.OMDB.APIKey,
		BaseURL: cfg.OMDB.BaseURL,
	}, httpClient, probeCache, logger)
	failed += report("OMDb", cfg.OMDB.APIKey, func() error {
		_, err := omdb.Lookup(ctx, probeTitle, "1999")
		return err
	})

	watchmode := catalog.NewWatchmodeClient(catalog.WatchmodeConfig{
		APIKey:  cfg.Watchmode.APIKey,
		BaseURL: cfg.Watchmode.BaseURL,
		Enabled: true,
	}, httpClient, probeCache, logger)
	failed += report("Watchmode", cfg.Watchmode.APIKey, func() error {
		_, err := watchmode.Sources(ctx, "603")
		return err
	})

	completer := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, logger)
	failed += report("LLM", cfg.LLM.APIKey, func() error {
		_, err := completer.Complete(ctx, "Reply with the single word: ok", nil, "ping")
		return err
	})

	fmt.Println()
	if failed > 0 {
		fmt.Printf("%d provider(s) not usable\n", failed)
		os.Exit(1)
	}
	fmt.Println("All configured providers are usable")
}

// report runs one probe and prints its outcome. Returns 1 on failure so the
// caller can count problems.
func report(name, apiKey string, probe func() error) int {
	if apiKey == "" {
		fmt.Printf("  - %-9s SKIP (no API key configured)\n", name)
		return 0
	}
	if err := probe(); err != nil {
		reason := "error"
		switch {
		case apiclient.IsAuth(err):
			reason = "invalid credentials"
		case apiclient.IsQuota(err):
			reason = "quota exceeded"
		case apiclient.IsTransient(err):
			reason = "unreachable"
		}
		fmt.Printf("  - %-9s FAIL (%s): %v\n", name, reason, err)
		return 1
	}
	fmt.Printf("  - %-9s OK\n", name)
	return 0
}
