// Package enrich merges validated recommendations with the full provider
// records into presentation-ready movies.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/cineman/internal/catalog"
	"github.com/kdimtricp/cineman/internal/validation"
)

// StreamingClient resolves where a movie can be watched. A nil client
// disables streaming enrichment.
type StreamingClient interface {
	Sources(ctx context.Context, tmdbID string) ([]catalog.StreamingSource, error)
}

// Movie is one fully enriched recommendation. RecommendationID identifies
// this suggestion for interaction tracking.
type Movie struct {
	RecommendationID string                    `json:"recommendation_id"`
	Title            string                    `json:"title"`
	Year             string                    `json:"year,omitempty"`
	Director         string                    `json:"director,omitempty"`
	Plot             string                    `json:"plot,omitempty"`
	PosterURL        string                    `json:"poster_url,omitempty"`
	TMDBID           string                    `json:"tmdb_id,omitempty"`
	IMDBID           string                    `json:"imdb_id,omitempty"`
	Ratings          catalog.Ratings           `json:"ratings"`
	Confidence       float64                   `json:"confidence"`
	Source           validation.Source         `json:"source"`
	Corrections      []validation.Correction   `json:"corrections,omitempty"`
	Streaming        []catalog.StreamingSource `json:"streaming,omitempty"`
}

// Enricher builds Movies from validation results.
type Enricher struct {
	streaming StreamingClient
	logger    zerolog.Logger
}

func New(streaming StreamingClient, logger zerolog.Logger) *Enricher {
	return &Enricher{streaming: streaming, logger: logger}
}

// Enrich merges each valid result's provider records and attaches streaming
// sources, fetched concurrently. Invalid and duplicate results are skipped.
// Streaming failures only cost the links, never the movie.
func (e *Enricher) Enrich(ctx context.Context, results []validation.Result) []Movie {
	movies := make([]Movie, 0, len(results))
	for _, r := range results {
		if !r.Valid {
			continue
		}
		movies = append(movies, merge(r))
	}

	if e.streaming != nil {
		g, ctx := errgroup.WithContext(ctx)
		for i := range movies {
			if movies[i].TMDBID == "" {
				continue
			}
			i := i
			g.Go(func() error {
				sources, err := e.streaming.Sources(ctx, movies[i].TMDBID)
				if err != nil {
					e.logger.Warn().Str("title", movies[i].Title).Err(err).Msg("streaming lookup failed")
					return nil
				}
				movies[i].Streaming = sources
				return nil
			})
		}
		g.Wait()
	}
	return movies
}

// merge combines the two provider records. The secondary catalog's exact
// records win for title, year, director and plot; the primary supplies the
// poster and numeric vote data.
func merge(r validation.Result) Movie {
	m := Movie{
		RecommendationID: uuid.NewString(),
		Title:            r.Title,
		Year:             r.Year,
		Confidence:       r.Confidence,
		Source:           r.Source,
		Corrections:      r.Corrections,
		TMDBID:           r.TMDB.ID,
		IMDBID:           r.OMDB.ID,
	}

	m.Director = firstNonEmpty(r.Director, r.OMDB.Director)
	m.Plot = firstNonEmpty(r.OMDB.Plot, r.TMDB.Plot)
	m.PosterURL = firstNonEmpty(r.TMDB.PosterURL, r.OMDB.PosterURL)

	m.Ratings = catalog.Ratings{
		IMDB:          r.OMDB.Ratings.IMDB,
		RTTomatometer: r.OMDB.Ratings.RTTomatometer,
		RTAudience:    r.OMDB.Ratings.RTAudience,
		TMDBRating:    r.TMDB.Ratings.TMDBRating,
		TMDBVoteCount: r.TMDB.Ratings.TMDBVoteCount,
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Notification renders the user-facing note about what validation changed.
// Returns "" when nothing was dropped or corrected.
func Notification(dropped []string, corrections []validation.Correction) string {
	var parts []string

	if len(dropped) > 0 {
		parts = append(parts, fmt.Sprintf(
			"Note: %d recommendation(s) (%s) were filtered out because they could not be verified in movie databases.",
			len(dropped), strings.Join(dropped, ", ")))
	}

	var titleFixes []string
	for _, c := range corrections {
		if c.Field == "title" {
			titleFixes = append(titleFixes, fmt.Sprintf("%q → %q", c.Old, c.New))
		}
	}
	if len(titleFixes) > 0 {
		parts = append(parts, fmt.Sprintf(
			"Some titles were automatically corrected to match official database records: %s.",
			strings.Join(titleFixes, ", ")))
	}

	return strings.Join(parts, " ")
}
