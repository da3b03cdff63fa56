package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
	"github.com/kdimtricp/cineman/internal/metrics"
)

const tmdbSource = "tmdb"

// TMDBClient is the primary catalog: canonical titles, TMDB ids, posters
// and vote data.
type TMDBClient struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	http         *apiclient.Client
	cache        *cache.MovieCache
	ttl          TTLPolicy
	breaker      *gobreaker.CircuitBreaker[Record]
	logger       zerolog.Logger
}

type TMDBConfig struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	TTL          TTLPolicy
}

func NewTMDBClient(cfg TMDBConfig, httpClient *apiclient.Client, movieCache *cache.MovieCache, logger zerolog.Logger) *TMDBClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = "https://image.tmdb.org/t/p/w500"
	}

	return &TMDBClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		imageBaseURL: cfg.ImageBaseURL,
		http:         httpClient,
		cache:        movieCache,
		ttl:          cfg.TTL.withDefaults(),
		breaker:      newProviderBreaker("tmdb", logger),
		logger:       logger,
	}
}

func (c *TMDBClient) Name() string { return tmdbSource }

type tmdbSearchResponse struct {
	Results []struct {
		ID          int     `json:"id"`
		Title       string  `json:"title"`
		ReleaseDate string  `json:"release_date"`
		Overview    string  `json:"overview"`
		PosterPath  string  `json:"poster_path"`
		VoteAverage float64 `json:"vote_average"`
		VoteCount   int     `json:"vote_count"`
	} `json:"results"`
}

// Lookup searches TMDB for title, taking the first result as the canonical
// match. The year, when given, narrows the search.
func (c *TMDBClient) Lookup(ctx context.Context, title, year string) (Record, error) {
	if err := validateInput(title, year); err != nil {
		return Record{}, err
	}
	if c.apiKey == "" {
		return Record{}, &apiclient.Error{Kind: apiclient.KindAuth, API: "TMDB", Message: "API key not configured"}
	}

	key := cache.Key(tmdbSource, title, year)
	if v, ok := c.cache.Get(key); ok {
		return replayCached(v, "TMDB")
	}

	rec, err := c.breaker.Execute(func() (Record, error) {
		return c.fetch(ctx, title, year)
	})
	if err != nil {
		err = wrapBreakerErr(err, "TMDB")
		c.cache.Set(key, cachedLookup{ErrKind: errKind(err), ErrMsg: err.Error()}, c.ttl.Error)
		metrics.ExternalAPICalls.WithLabelValues(tmdbSource, "error").Inc()
		return Record{}, err
	}

	if rec.Found {
		c.cache.Set(key, cachedLookup{Record: rec}, c.ttl.Success)
		metrics.ExternalAPICalls.WithLabelValues(tmdbSource, "success").Inc()
	} else {
		c.cache.Set(key, cachedLookup{Record: rec}, c.ttl.NotFound)
		metrics.ExternalAPICalls.WithLabelValues(tmdbSource, "not_found").Inc()
	}
	return rec, nil
}

func (c *TMDBClient) fetch(ctx context.Context, title, year string) (Record, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", title)
	params.Set("page", "1")
	if y := normalizeYear(year); y != "" {
		params.Set("primary_release_year", y)
	}

	body, err := c.http.Get(ctx, c.baseURL+"/search/movie", params, "TMDB")
	if err != nil {
		return Record{}, err
	}

	var resp tmdbSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Record{}, fmt.Errorf("decoding TMDB response: %w", err)
	}

	if len(resp.Results) == 0 {
		return Record{Found: false}, nil
	}

	first := resp.Results[0]
	rec := Record{
		Found: true,
		Title: first.Title,
		Year:  normalizeYear(first.ReleaseDate),
		ID:    strconv.Itoa(first.ID),
		Plot:  first.Overview,
		Ratings: Ratings{
			TMDBRating:    first.VoteAverage,
			TMDBVoteCount: first.VoteCount,
		},
	}
	if first.PosterPath != "" {
		rec.PosterURL = c.imageBaseURL + first.PosterPath
	}
	return rec, nil
}

// replayCached converts a cache hit back into the original lookup outcome.
func replayCached(v any, apiName string) (Record, error) {
	cached, ok := v.(cachedLookup)
	if !ok {
		return Record{}, fmt.Errorf("%s: unexpected cache payload type %T", apiName, v)
	}
	if cached.ErrKind != "" {
		return Record{}, &apiclient.Error{Kind: cached.ErrKind, API: apiName, Message: cached.ErrMsg}
	}
	return cached.Record, nil
}

func errKind(err error) apiclient.Kind {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return apiclient.KindUnknown
}

// wrapBreakerErr maps an open/saturated circuit breaker onto the transient
// taxonomy so callers treat it as a degraded provider, not a new failure
// mode.
func wrapBreakerErr(err error, apiName string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &apiclient.Error{Kind: apiclient.KindTransient, API: apiName, Message: "circuit breaker open", Err: err}
	}
	return err
}

func newProviderBreaker(name string, logger zerolog.Logger) *gobreaker.CircuitBreaker[Record] {
	return gobreaker.NewCircuitBreaker[Record](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Not-found and auth failures say nothing about provider
			// health; only transient trouble should trip the breaker.
			return err == nil || !apiclient.IsTransient(err)
		},
	})
}
