package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/cache"
)

func TestOMDBLookup_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("t"); got != "The Shawshank Redemption" {
			t.Errorf("Expected title param, got %q", got)
		}
		w.Write([]byte(`{
			"Response": "True",
			"Title": "The Shawshank Redemption",
			"Year": "1994",
			"Director": "Frank Darabont",
			"Plot": "Two imprisoned men bond over a number of years.",
			"Poster": "https://m.media-amazon.com/shawshank.jpg",
			"imdbRating": "9.3",
			"imdbID": "tt0111161",
			"Ratings": [
				{"Source": "Internet Movie Database", "Value": "9.3/10"},
				{"Source": "Rotten Tomatoes", "Value": "91%"}
			]
		}`))
	}))
	defer server.Close()

	client := NewOMDBClient(OMDBConfig{APIKey: "k", BaseURL: server.URL}, testHTTPClient(), cache.New(10, true), zerolog.Nop())

	rec, err := client.Lookup(context.Background(), "The Shawshank Redemption", "1994")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !rec.Found {
		t.Fatal("Expected Found=true")
	}
	if rec.Title != "The Shawshank Redemption" || rec.Year != "1994" {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.Director != "Frank Darabont" {
		t.Errorf("Unexpected director: %q", rec.Director)
	}
	if rec.Ratings.IMDB != "9.3" {
		t.Errorf("Unexpected IMDb rating: %q", rec.Ratings.IMDB)
	}
	if rec.Ratings.RTTomatometer != "91%" {
		t.Errorf("Unexpected RT score: %q", rec.Ratings.RTTomatometer)
	}
}

func TestOMDBLookup_NotFoundInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Response": "False", "Error": "Movie not found!"}`))
	}))
	defer server.Close()

	client := NewOMDBClient(OMDBConfig{APIKey: "k", BaseURL: server.URL}, testHTTPClient(), cache.New(10, true), zerolog.Nop())

	rec, err := client.Lookup(context.Background(), "Zorblax Infinity Saga", "")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec.Found {
		t.Error("Expected Found=false when Response is False")
	}
}

func TestOMDBLookup_NAFieldsCleaned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"Response": "True",
			"Title": "Obscure Short",
			"Year": "2001",
			"Director": "N/A",
			"Plot": "N/A",
			"Poster": "N/A",
			"imdbRating": "N/A",
			"imdbID": "tt0000001"
		}`))
	}))
	defer server.Close()

	client := NewOMDBClient(OMDBConfig{APIKey: "k", BaseURL: server.URL}, testHTTPClient(), cache.New(10, true), zerolog.Nop())

	rec, err := client.Lookup(context.Background(), "Obscure Short", "")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec.Director != "" || rec.Plot != "" || rec.PosterURL != "" || rec.Ratings.IMDB != "" {
		t.Errorf("Expected N/A fields to be blanked, got %+v", rec)
	}
}

func TestOMDBLookup_MissingKeyIsAuthError(t *testing.T) {
	client := NewOMDBClient(OMDBConfig{}, testHTTPClient(), cache.New(10, true), zerolog.Nop())

	_, err := client.Lookup(context.Background(), "The Matrix", "")
	if !apiclient.IsAuth(err) {
		t.Errorf("Expected auth error, got %v", err)
	}
}

func TestOMDBLookup_NotFoundCached(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"Response": "False", "Error": "Movie not found!"}`))
	}))
	defer server.Close()

	client := NewOMDBClient(OMDBConfig{APIKey: "k", BaseURL: server.URL}, testHTTPClient(), cache.New(10, true), zerolog.Nop())

	for i := 0; i < 2; i++ {
		rec, err := client.Lookup(context.Background(), "Zorblax Infinity Saga", "")
		if err != nil {
			t.Fatalf("Lookup %d failed: %v", i, err)
		}
		if rec.Found {
			t.Errorf("Lookup %d: expected Found=false", i)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected not-found result to be cached, got %d network calls", n)
	}
}
