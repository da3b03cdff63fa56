package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
	"github.com/kdimtricp/cineman/internal/catalog"
	"github.com/kdimtricp/cineman/internal/chat"
	"github.com/kdimtricp/cineman/internal/database"
	"github.com/kdimtricp/cineman/internal/ratelimit"
)

type fakeChat struct {
	resp    chat.Response
	err     error
	cleared map[string]bool
}

func (f *fakeChat) Chat(ctx context.Context, req chat.Request) (chat.Response, error) {
	return f.resp, f.err
}

func (f *fakeChat) ClearSession(id string) bool {
	return f.cleared[id]
}

type fakeLookup struct {
	rec catalog.Record
	err error
}

func (f *fakeLookup) Name() string { return "fake" }

func (f *fakeLookup) Lookup(ctx context.Context, title, year string) (catalog.Record, error) {
	return f.rec, f.err
}

type fakeQuota struct{ stats ratelimit.Stats }

func (f *fakeQuota) Stats(ctx context.Context) ratelimit.Stats { return f.stats }

func newTestApp(t *testing.T) (*App, func()) {
	t.Helper()

	db, err := database.NewDB(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	app := &App{
		Chat:         &fakeChat{},
		TMDB:         &fakeLookup{},
		OMDB:         &fakeLookup{},
		Cache:        cache.New(10, true),
		Interactions: database.NewInteractionRepository(db),
		Quota:        &fakeQuota{stats: ratelimit.Stats{APIName: "gemini", Limit: 50, Remaining: 50}},
		Providers:    ProviderStatus{TMDB: true, OMDB: true},
		Logger:       zerolog.Nop(),
	}
	return app, func() { db.Close() }
}

func doRequest(app *App, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	NewRouter(app).ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()

	rec := doRequest(app, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestChatHandler_Success(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.Chat = &fakeChat{resp: chat.Response{SessionID: "s1", Reply: "Try The Matrix!", RemainingCalls: 42}}

	rec := doRequest(app, http.MethodPost, "/chat", chat.Request{Message: "something mind-bending"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp chat.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.SessionID != "s1" || resp.RemainingCalls != 42 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestChatHandler_EmptyMessage(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()

	rec := doRequest(app, http.MethodPost, "/chat", chat.Request{Message: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestChatHandler_RateLimited(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.Chat = &fakeChat{err: chat.ErrRateLimited}

	rec := doRequest(app, http.MethodPost, "/chat", chat.Request{Message: "hi"})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
}

func TestClearSessionHandler(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.Chat = &fakeChat{cleared: map[string]bool{"s1": true}}

	rec := doRequest(app, http.MethodPost, "/session/clear", map[string]string{"session_id": "s1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cleared":true`) {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}

	rec = doRequest(app, http.MethodPost, "/session/clear", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing session_id, got %d", rec.Code)
	}
}

func TestPosterHandler(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.TMDB = &fakeLookup{rec: catalog.Record{
		Found:     true,
		Title:     "The Matrix",
		Year:      "1999",
		PosterURL: "https://image.tmdb.org/t/p/w500/matrix.jpg",
	}}

	rec := doRequest(app, http.MethodGet, "/api/movie/poster?title=The+Matrix&year=1999", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "matrix.jpg") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestPosterHandler_MissingTitle(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()

	rec := doRequest(app, http.MethodGet, "/api/movie/poster", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestFactsHandler_NotFound(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.OMDB = &fakeLookup{rec: catalog.Record{Found: false}}

	rec := doRequest(app, http.MethodGet, "/api/movie/facts?title=Zorblax", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestFactsHandler_AuthErrorIsBadGateway(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.OMDB = &fakeLookup{err: &apiclient.Error{Kind: apiclient.KindAuth, API: "OMDb", Message: "no key"}}

	rec := doRequest(app, http.MethodGet, "/api/movie/facts?title=Heat", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}
}

func TestCombinedHandler_OneProviderDown(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.TMDB = &fakeLookup{err: &apiclient.Error{Kind: apiclient.KindTransient, API: "TMDB", Message: "down"}}
	app.OMDB = &fakeLookup{rec: catalog.Record{Found: true, Title: "Heat", Year: "1995", Director: "Michael Mann"}}

	rec := doRequest(app, http.MethodGet, "/api/movie/combined?title=Heat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 when one provider survives, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Michael Mann") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestInteractionLifecycle(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()

	create := doRequest(app, http.MethodPost, "/api/interactions", map[string]string{
		"session_id":       "s1",
		"movie_title":      "The Matrix",
		"interaction_type": "watchlist",
	})
	if create.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", create.Code, create.Body.String())
	}

	list := doRequest(app, http.MethodGet, "/api/interactions?session_id=s1&type=watchlist", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", list.Code)
	}
	if !strings.Contains(list.Body.String(), "The Matrix") {
		t.Errorf("Expected interaction in list: %s", list.Body.String())
	}

	del := doRequest(app, http.MethodDelete, "/api/interactions?session_id=s1&title=The+Matrix", nil)
	if del.Code != http.StatusOK {
		t.Fatalf("Expected 200 on delete, got %d", del.Code)
	}

	del = doRequest(app, http.MethodDelete, "/api/interactions?session_id=s1&title=The+Matrix", nil)
	if del.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", del.Code)
	}
}

func TestCreateInteraction_InvalidType(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()

	rec := doRequest(app, http.MethodPost, "/api/interactions", map[string]string{
		"session_id":       "s1",
		"movie_title":      "X",
		"interaction_type": "meh",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()

	rec := doRequest(app, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"tmdb_configured", "quota", "cache"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in status body: %s", want, body)
		}
	}
}

func TestCacheStatsHandler(t *testing.T) {
	app, cleanup := newTestApp(t)
	defer cleanup()
	app.Cache.Set("tmdb:matrix", "x", 0)

	rec := doRequest(app, http.MethodGet, "/api/cache/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "max_size") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}
