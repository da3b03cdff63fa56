package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
	"github.com/kdimtricp/cineman/internal/metrics"
)

const omdbSource = "omdb"

// OMDBClient is the secondary catalog: IMDb ratings, Rotten Tomatoes
// scores, director and plot.
type OMDBClient struct {
	apiKey  string
	baseURL string
	http    *apiclient.Client
	cache   *cache.MovieCache
	ttl     TTLPolicy
	breaker *gobreaker.CircuitBreaker[Record]
	logger  zerolog.Logger
}

type OMDBConfig struct {
	APIKey  string
	BaseURL string
	TTL     TTLPolicy
}

func NewOMDBClient(cfg OMDBConfig, httpClient *apiclient.Client, movieCache *cache.MovieCache, logger zerolog.Logger) *OMDBClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.omdbapi.com/"
	}

	return &OMDBClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    httpClient,
		cache:   movieCache,
		ttl:     cfg.TTL.withDefaults(),
		breaker: newProviderBreaker("omdb", logger),
		logger:  logger,
	}
}

func (c *OMDBClient) Name() string { return omdbSource }

type omdbResponse struct {
	Response   string `json:"Response"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Director   string `json:"Director"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	IMDBRating string `json:"imdbRating"`
	IMDBID     string `json:"imdbID"`
	Ratings    []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
	Error string `json:"Error"`
}

// Lookup queries OMDb by exact title. OMDb reports misses in the body
// ("Response": "False"), not via HTTP status.
func (c *OMDBClient) Lookup(ctx context.Context, title, year string) (Record, error) {
	if err := validateInput(title, year); err != nil {
		return Record{}, err
	}
	if c.apiKey == "" {
		return Record{}, &apiclient.Error{Kind: apiclient.KindAuth, API: "OMDb", Message: "API key not configured"}
	}

	key := cache.Key(omdbSource, title, year)
	if v, ok := c.cache.Get(key); ok {
		return replayCached(v, "OMDb")
	}

	rec, err := c.breaker.Execute(func() (Record, error) {
		return c.fetch(ctx, title, year)
	})
	if err != nil {
		err = wrapBreakerErr(err, "OMDb")
		c.cache.Set(key, cachedLookup{ErrKind: errKind(err), ErrMsg: err.Error()}, c.ttl.Error)
		metrics.ExternalAPICalls.WithLabelValues(omdbSource, "error").Inc()
		return Record{}, err
	}

	if rec.Found {
		c.cache.Set(key, cachedLookup{Record: rec}, c.ttl.Success)
		metrics.ExternalAPICalls.WithLabelValues(omdbSource, "success").Inc()
	} else {
		c.cache.Set(key, cachedLookup{Record: rec}, c.ttl.NotFound)
		metrics.ExternalAPICalls.WithLabelValues(omdbSource, "not_found").Inc()
	}
	return rec, nil
}

func (c *OMDBClient) fetch(ctx context.Context, title, year string) (Record, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("t", strings.TrimSpace(title))
	params.Set("plot", "short")
	params.Set("r", "json")
	if y := normalizeYear(year); y != "" {
		params.Set("y", y)
	}

	body, err := c.http.Get(ctx, c.baseURL, params, "OMDb")
	if err != nil {
		return Record{}, err
	}

	var resp omdbResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Record{}, fmt.Errorf("decoding OMDb response: %w", err)
	}

	if resp.Response != "True" {
		c.logger.Debug().Str("title", title).Str("reason", resp.Error).Msg("omdb lookup found nothing")
		return Record{Found: false}, nil
	}

	rec := Record{
		Found:    true,
		Title:    resp.Title,
		Year:     normalizeYear(resp.Year),
		ID:       resp.IMDBID,
		Director: cleanNA(resp.Director),
		Plot:     cleanNA(resp.Plot),
		Ratings: Ratings{
			IMDB: cleanNA(resp.IMDBRating),
		},
	}
	if resp.Poster != "" && resp.Poster != "N/A" {
		rec.PosterURL = resp.Poster
	}
	for _, r := range resp.Ratings {
		if strings.Contains(r.Source, "Rotten Tomatoes") {
			rec.Ratings.RTTomatometer = r.Value
			break
		}
	}
	return rec, nil
}

func cleanNA(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}
