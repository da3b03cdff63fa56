// Package api exposes the HTTP surface: chat, movie lookups, interactions
// and operational endpoints.
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
	"github.com/kdimtricp/cineman/internal/catalog"
	"github.com/kdimtricp/cineman/internal/chat"
	"github.com/kdimtricp/cineman/internal/database"
	"github.com/kdimtricp/cineman/internal/ratelimit"
)

// ChatService is the conversation entry point.
type ChatService interface {
	Chat(ctx context.Context, req chat.Request) (chat.Response, error)
	ClearSession(id string) bool
}

// QuotaReporter exposes daily quota usage for the status endpoint.
type QuotaReporter interface {
	Stats(ctx context.Context) ratelimit.Stats
}

// ProviderStatus reports which external providers have credentials.
type ProviderStatus struct {
	TMDB      bool `json:"tmdb_configured"`
	OMDB      bool `json:"omdb_configured"`
	Watchmode bool `json:"watchmode_configured"`
	LLM       bool `json:"llm_configured"`
}

type App struct {
	Chat         ChatService
	TMDB         catalog.Client
	OMDB         catalog.Client
	Cache        *cache.MovieCache
	Interactions *database.InteractionRepository
	Quota        QuotaReporter
	Providers    ProviderStatus
	Logger       zerolog.Logger
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *App) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	resp, err := app.Chat.Chat(r.Context(), req)
	if err != nil {
		if errors.Is(err, chat.ErrRateLimited) {
			respondError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		app.Logger.Error().Err(err).Msg("chat turn failed")
		if apiclient.IsAuth(err) {
			respondError(w, http.StatusBadGateway, "assistant is misconfigured")
			return
		}
		respondError(w, http.StatusBadGateway, "assistant is unavailable, try again")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (app *App) ClearSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": app.Chat.ClearSession(req.SessionID)})
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"providers": app.Providers,
		"quota":     app.Quota.Stats(r.Context()),
		"cache":     app.Cache.Stats(),
	})
}

func (app *App) CacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, app.Cache.Stats())
}

// lookupParams pulls the title/year query parameters shared by the movie
// endpoints.
func lookupParams(r *http.Request) (title, year string, ok bool) {
	title = strings.TrimSpace(r.URL.Query().Get("title"))
	year = strings.TrimSpace(r.URL.Query().Get("year"))
	return title, year, title != ""
}

func (app *App) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case apiclient.IsAuth(err):
		respondError(w, http.StatusBadGateway, "provider credentials are not configured")
	case apiclient.IsQuota(err):
		respondError(w, http.StatusTooManyRequests, "provider quota exceeded")
	default:
		respondError(w, http.StatusBadGateway, "provider lookup failed")
	}
}

func (app *App) PosterHandler(w http.ResponseWriter, r *http.Request) {
	title, year, ok := lookupParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	rec, err := app.TMDB.Lookup(r.Context(), title, year)
	if err != nil {
		app.writeLookupError(w, err)
		return
	}
	if !rec.Found || rec.PosterURL == "" {
		respondError(w, http.StatusNotFound, "no poster found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"title":      rec.Title,
		"year":       rec.Year,
		"poster_url": rec.PosterURL,
	})
}

func (app *App) FactsHandler(w http.ResponseWriter, r *http.Request) {
	title, year, ok := lookupParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	rec, err := app.OMDB.Lookup(r.Context(), title, year)
	if err != nil {
		app.writeLookupError(w, err)
		return
	}
	if !rec.Found {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// CombinedHandler merges both catalogs for a single title, tolerating one
// provider being down.
func (app *App) CombinedHandler(w http.ResponseWriter, r *http.Request) {
	title, year, ok := lookupParams(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	tmdbRec, tmdbErr := app.TMDB.Lookup(r.Context(), title, year)
	omdbRec, omdbErr := app.OMDB.Lookup(r.Context(), title, year)
	if tmdbErr != nil && omdbErr != nil {
		app.writeLookupError(w, tmdbErr)
		return
	}
	if !tmdbRec.Found && !omdbRec.Found {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}

	combined := omdbRec
	if !combined.Found {
		combined = tmdbRec
	}
	if combined.PosterURL == "" || tmdbRec.PosterURL != "" {
		combined.PosterURL = tmdbRec.PosterURL
	}
	combined.Ratings.TMDBRating = tmdbRec.Ratings.TMDBRating
	combined.Ratings.TMDBVoteCount = tmdbRec.Ratings.TMDBVoteCount

	respondJSON(w, http.StatusOK, map[string]any{
		"movie":   combined,
		"tmdb_id": tmdbRec.ID,
		"imdb_id": omdbRec.ID,
	})
}

func (app *App) CreateInteractionHandler(w http.ResponseWriter, r *http.Request) {
	var in database.Interaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.SessionID == "" || in.Title == "" {
		respondError(w, http.StatusBadRequest, "session_id and movie_title are required")
		return
	}
	if !database.ValidInteractionType(in.Type) {
		respondError(w, http.StatusBadRequest, "interaction_type must be like, dislike or watchlist")
		return
	}

	if err := app.Interactions.Upsert(r.Context(), &in); err != nil {
		app.Logger.Error().Err(err).Msg("failed to save interaction")
		respondError(w, http.StatusInternalServerError, "failed to save interaction")
		return
	}
	respondJSON(w, http.StatusCreated, in)
}

func (app *App) ListInteractionsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	interactionType := r.URL.Query().Get("type")
	if interactionType != "" && !database.ValidInteractionType(interactionType) {
		respondError(w, http.StatusBadRequest, "unknown interaction type")
		return
	}

	list, err := app.Interactions.ListBySession(r.Context(), sessionID, interactionType)
	if err != nil {
		app.Logger.Error().Err(err).Msg("failed to list interactions")
		respondError(w, http.StatusInternalServerError, "failed to list interactions")
		return
	}
	if list == nil {
		list = []*database.Interaction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"interactions": list})
}

func (app *App) DeleteInteractionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	title := r.URL.Query().Get("title")
	if sessionID == "" || title == "" {
		respondError(w, http.StatusBadRequest, "session_id and title are required")
		return
	}

	err := app.Interactions.Delete(r.Context(), sessionID, title)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "interaction not found")
		return
	}
	if err != nil {
		app.Logger.Error().Err(err).Msg("failed to delete interaction")
		respondError(w, http.StatusInternalServerError, "failed to delete interaction")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
