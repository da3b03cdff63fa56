// Package catalog wraps the external movie metadata providers. Each client
// maps its provider-specific payload into the common Record shape right
// after the HTTP call, so nothing downstream ever sees raw provider JSON.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kdimtricp/cineman/internal/apiclient"
)

// Ratings aggregates the rating fields the providers can supply.
type Ratings struct {
	IMDB          string  `json:"imdb,omitempty"`
	RTTomatometer string  `json:"rt_tomatometer,omitempty"`
	RTAudience    string  `json:"rt_audience,omitempty"`
	TMDBRating    float64 `json:"tmdb_rating,omitempty"`
	TMDBVoteCount int     `json:"tmdb_vote_count,omitempty"`
}

// Record is the normalized result of one provider lookup. Found=false means
// the provider answered but had no matching title.
type Record struct {
	Found     bool    `json:"found"`
	Title     string  `json:"title,omitempty"`
	Year      string  `json:"year,omitempty"`
	ID        string  `json:"id,omitempty"`
	PosterURL string  `json:"poster_url,omitempty"`
	Director  string  `json:"director,omitempty"`
	Plot      string  `json:"plot,omitempty"`
	Ratings   Ratings `json:"ratings"`
}

// Client is a single provider lookup. Implementations consult the shared
// cache before the network and propagate apiclient failures unchanged.
type Client interface {
	Name() string
	Lookup(ctx context.Context, title, year string) (Record, error)
}

// TTLPolicy maps lookup outcomes to cache lifetimes. Errors are cached
// briefly so an unhealthy provider is not hammered, while recovery stays
// quick.
type TTLPolicy struct {
	Success  time.Duration
	NotFound time.Duration
	Error    time.Duration
}

func (p TTLPolicy) withDefaults() TTLPolicy {
	if p.Success <= 0 {
		p.Success = 24 * time.Hour
	}
	if p.NotFound <= 0 {
		p.NotFound = time.Hour
	}
	if p.Error <= 0 {
		p.Error = 5 * time.Minute
	}
	return p
}

// cachedLookup is the value stored in the response cache. A non-empty
// ErrKind replays the provider failure until the short error TTL expires.
type cachedLookup struct {
	Record  Record
	ErrKind apiclient.Kind
	ErrMsg  string
}

var yearDigitRe = regexp.MustCompile(`\d`)

func validateInput(title, year string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if year != "" && !yearDigitRe.MatchString(year) {
		return fmt.Errorf("year %q must contain at least one digit", year)
	}
	return nil
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// normalizeYear extracts the first plausible four-digit year from formats
// like "2010", "2010-2012" or "2010 (TV Movie)".
func normalizeYear(year string) string {
	if year == "" || year == "N/A" {
		return ""
	}
	return yearRe.FindString(year)
}
