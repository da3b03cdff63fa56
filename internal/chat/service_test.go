package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/enrich"
	"github.com/kdimtricp/cineman/internal/llm"
	"github.com/kdimtricp/cineman/internal/session"
	"github.com/kdimtricp/cineman/internal/validation"
)

type fakeCompleter struct {
	reply   string
	err     error
	history []llm.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, sys string, history []llm.Message, msg string) (string, error) {
	f.history = history
	return f.reply, f.err
}

type fakeValidator struct {
	results []validation.Result
	summary validation.Summary
	seen    map[string]bool
}

func (f *fakeValidator) ValidateBatch(ctx context.Context, candidates []validation.Candidate, seen map[string]bool) ([]validation.Result, validation.Summary) {
	f.seen = seen
	return f.results, f.summary
}

type fakeEnricher struct{ movies []enrich.Movie }

func (f *fakeEnricher) Enrich(ctx context.Context, results []validation.Result) []enrich.Movie {
	return f.movies
}

type fakeLimiter struct {
	allowed    bool
	remaining  int
	increments int
}

func (f *fakeLimiter) Allow(ctx context.Context) (bool, int) { return f.allowed, f.remaining }
func (f *fakeLimiter) Increment(ctx context.Context)         { f.increments++ }

func newTestService(c Completer, v Validator, e Enricher, l Limiter) *Service {
	return NewService(c, v, e, l, session.NewManager(session.Config{}, zerolog.Nop()), "", zerolog.Nop())
}

func TestChat_RecommendationTurn(t *testing.T) {
	completer := &fakeCompleter{reply: `Try this classic!

{"movies": [{"title": "The Matrix", "year": "1999"}]}`}
	validator := &fakeValidator{
		results: []validation.Result{{Valid: true, Title: "The Matrix", Year: "1999", Confidence: 0.95}},
		summary: validation.Summary{Checked: 1, Valid: 1},
	}
	enricher := &fakeEnricher{movies: []enrich.Movie{{Title: "The Matrix", Year: "1999", Confidence: 0.95}}}
	limiter := &fakeLimiter{allowed: true, remaining: 9}

	svc := newTestService(completer, validator, enricher, limiter)

	resp, err := svc.Chat(context.Background(), Request{Message: "something mind-bending"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("Expected a session id")
	}
	if resp.Reply != "Try this classic!" {
		t.Errorf("Unexpected reply: %q", resp.Reply)
	}
	if len(resp.Movies) != 1 || resp.Movies[0].Title != "The Matrix" {
		t.Errorf("Unexpected movies: %+v", resp.Movies)
	}
	if resp.RemainingCalls != 9 {
		t.Errorf("Expected 9 remaining calls, got %d", resp.RemainingCalls)
	}
	if limiter.increments != 1 {
		t.Errorf("Expected 1 increment, got %d", limiter.increments)
	}
}

func TestChat_ConversationalTurnSkipsValidation(t *testing.T) {
	completer := &fakeCompleter{reply: "What genres do you enjoy?"}
	validator := &fakeValidator{}
	limiter := &fakeLimiter{allowed: true, remaining: 5}

	svc := newTestService(completer, validator, &fakeEnricher{}, limiter)

	resp, err := svc.Chat(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Reply != "What genres do you enjoy?" {
		t.Errorf("Unexpected reply: %q", resp.Reply)
	}
	if resp.Movies != nil {
		t.Errorf("Expected no movies, got %+v", resp.Movies)
	}
	if validator.seen != nil {
		t.Error("Validator must not run on conversational turns")
	}
}

func TestChat_RateLimited(t *testing.T) {
	svc := newTestService(&fakeCompleter{}, &fakeValidator{}, &fakeEnricher{}, &fakeLimiter{allowed: false})

	_, err := svc.Chat(context.Background(), Request{Message: "hi"})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestChat_LLMFailureDoesNotBurnQuota(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	svc := newTestService(&fakeCompleter{err: errors.New("upstream 500")}, &fakeValidator{}, &fakeEnricher{}, limiter)

	_, err := svc.Chat(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatal("Expected error from failing completer")
	}
	if limiter.increments != 0 {
		t.Errorf("Failed completion must not count against quota, got %d increments", limiter.increments)
	}
}

func TestChat_SessionCarriesHistoryAndDedupe(t *testing.T) {
	completer := &fakeCompleter{reply: `Here you go.

{"movies": [{"title": "The Matrix"}]}`}
	validator := &fakeValidator{
		results: []validation.Result{{Valid: true, Title: "The Matrix", Confidence: 0.95}},
		summary: validation.Summary{Checked: 1, Valid: 1},
	}
	enricher := &fakeEnricher{movies: []enrich.Movie{{Title: "The Matrix"}}}
	svc := newTestService(completer, validator, enricher, &fakeLimiter{allowed: true})

	first, err := svc.Chat(context.Background(), Request{Message: "recommend something"})
	if err != nil {
		t.Fatalf("First chat failed: %v", err)
	}

	_, err = svc.Chat(context.Background(), Request{SessionID: first.SessionID, Message: "more please"})
	if err != nil {
		t.Fatalf("Second chat failed: %v", err)
	}
	if len(completer.history) != 2 {
		t.Errorf("Expected 2 history messages on second turn, got %d", len(completer.history))
	}
	if !validator.seen[validation.Normalize("The Matrix")] {
		t.Errorf("Expected previously recommended title in seen set, got %v", validator.seen)
	}
}

func TestChat_NotificationMentionsDrops(t *testing.T) {
	completer := &fakeCompleter{reply: `Enjoy!

{"movies": [{"title": "Zorblax Infinity Saga"}]}`}
	validator := &fakeValidator{
		results: []validation.Result{{Valid: false, Reason: "not found in movie databases"}},
		summary: validation.Summary{Checked: 1, Dropped: 1, DroppedTitle: []string{"Zorblax Infinity Saga"}},
	}
	svc := newTestService(completer, validator, &fakeEnricher{}, &fakeLimiter{allowed: true})

	resp, err := svc.Chat(context.Background(), Request{Message: "recommend"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(resp.Notification, "could not be verified in movie databases") {
		t.Errorf("Expected drop notification, got %q", resp.Notification)
	}
}

func TestClearSession(t *testing.T) {
	svc := newTestService(&fakeCompleter{reply: "hello"}, &fakeValidator{}, &fakeEnricher{}, &fakeLimiter{allowed: true})

	resp, err := svc.Chat(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !svc.ClearSession(resp.SessionID) {
		t.Error("Expected session to exist")
	}
	if svc.ClearSession(resp.SessionID) {
		t.Error("Expected session to be gone")
	}
}
