package catalog

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
	"github.com/kdimtricp/cineman/internal/metrics"
)

const watchmodeSource = "watchmode"

// StreamingSource is one place a movie can be watched.
type StreamingSource struct {
	Name   string `json:"name"`
	Type   string `json:"type"` // sub, rent, buy, free
	WebURL string `json:"web_url,omitempty"`
	Format string `json:"format,omitempty"`
	Region string `json:"region,omitempty"`
}

// WatchmodeClient resolves streaming availability for a TMDB movie id.
// Watchmode's free tier is capped per month, so the client tracks its own
// usage and degrades to "no data" once the budget is spent.
type WatchmodeClient struct {
	apiKey       string
	baseURL      string
	enabled      bool
	monthlyLimit int
	http         *apiclient.Client
	cache        *cache.MovieCache
	ttl          TTLPolicy
	logger       zerolog.Logger
	now          func() time.Time

	mu         sync.Mutex
	usageCount int
	resetAt    time.Time
}

type WatchmodeConfig struct {
	APIKey       string
	BaseURL      string
	Enabled      bool
	MonthlyLimit int
	TTL          TTLPolicy
}

func NewWatchmodeClient(cfg WatchmodeConfig, httpClient *apiclient.Client, movieCache *cache.MovieCache, logger zerolog.Logger) *WatchmodeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.watchmode.com/v1"
	}
	if cfg.MonthlyLimit <= 0 {
		cfg.MonthlyLimit = 1000
	}

	return &WatchmodeClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		enabled:      cfg.Enabled,
		monthlyLimit: cfg.MonthlyLimit,
		http:         httpClient,
		cache:        movieCache,
		ttl:          cfg.TTL.withDefaults(),
		logger:       logger,
		now:          time.Now,
	}
}

type watchmodeSearchResponse struct {
	TitleResults []struct {
		ID int `json:"id"`
	} `json:"title_results"`
}

type watchmodeSourceEntry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	WebURL string `json:"web_url"`
	Format string `json:"format"`
	Region string `json:"region"`
}

// Sources returns the streaming platforms carrying the given TMDB movie.
// A missing key, disabled flag or spent budget yields an empty slice, not
// an error: streaming data is decorative.
func (c *WatchmodeClient) Sources(ctx context.Context, tmdbID string) ([]StreamingSource, error) {
	if !c.enabled || c.apiKey == "" || tmdbID == "" {
		return nil, nil
	}

	key := cache.Key(watchmodeSource, tmdbID, "")
	if v, ok := c.cache.Get(key); ok {
		if sources, ok := v.([]StreamingSource); ok {
			return sources, nil
		}
	}

	if !c.allow() {
		c.logger.Warn().Str("tmdb_id", tmdbID).Msg("watchmode monthly budget spent, skipping lookup")
		return nil, nil
	}

	sources, err := c.fetch(ctx, tmdbID)
	if err != nil {
		metrics.ExternalAPICalls.WithLabelValues(watchmodeSource, "error").Inc()
		// Cache the empty result briefly so a failing provider is not
		// re-queried for every chat turn.
		c.cache.Set(key, []StreamingSource{}, c.ttl.Error)
		return nil, err
	}

	metrics.ExternalAPICalls.WithLabelValues(watchmodeSource, "success").Inc()
	c.cache.Set(key, sources, c.ttl.Success)
	return sources, nil
}

func (c *WatchmodeClient) fetch(ctx context.Context, tmdbID string) ([]StreamingSource, error) {
	searchParams := url.Values{}
	searchParams.Set("apiKey", c.apiKey)
	searchParams.Set("search_field", "tmdb_movie_id")
	searchParams.Set("search_value", tmdbID)

	body, err := c.http.Get(ctx, c.baseURL+"/search/", searchParams, "Watchmode")
	c.increment()
	if err != nil {
		return nil, err
	}

	var search watchmodeSearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("decoding Watchmode search response: %w", err)
	}
	if len(search.TitleResults) == 0 {
		return []StreamingSource{}, nil
	}

	sourcesURL := fmt.Sprintf("%s/title/%d/sources/", c.baseURL, search.TitleResults[0].ID)
	sourcesParams := url.Values{}
	sourcesParams.Set("apiKey", c.apiKey)

	body, err = c.http.Get(ctx, sourcesURL, sourcesParams, "Watchmode")
	c.increment()
	if err != nil {
		return nil, err
	}

	var entries []watchmodeSourceEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding Watchmode sources response: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	sources := make([]StreamingSource, 0, len(entries))
	for _, e := range entries {
		dedupe := e.Name + ":" + e.Type
		if _, ok := seen[dedupe]; ok {
			continue
		}
		seen[dedupe] = struct{}{}
		sources = append(sources, StreamingSource{
			Name:   e.Name,
			Type:   e.Type,
			WebURL: e.WebURL,
			Format: e.Format,
			Region: e.Region,
		})
	}
	return sources, nil
}

func (c *WatchmodeClient) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.resetAt.IsZero() || !now.Before(c.resetAt) {
		c.usageCount = 0
		c.resetAt = firstOfNextMonth(now)
	}
	return c.usageCount < c.monthlyLimit
}

func (c *WatchmodeClient) increment() {
	c.mu.Lock()
	c.usageCount++
	c.mu.Unlock()
}

func firstOfNextMonth(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
