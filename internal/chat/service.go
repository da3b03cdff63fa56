// Package chat orchestrates one conversation turn: quota check, session
// context, LLM completion, candidate validation, enrichment and history
// bookkeeping.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/enrich"
	"github.com/kdimtricp/cineman/internal/llm"
	"github.com/kdimtricp/cineman/internal/session"
	"github.com/kdimtricp/cineman/internal/validation"
)

// ErrRateLimited is returned when the daily LLM budget is exhausted.
var ErrRateLimited = errors.New("daily request limit reached, try again tomorrow")

const defaultSystemPrompt = `You are a friendly movie recommendation assistant. Chat naturally with the user about their taste.

When you recommend specific movies, end your reply with a JSON object on its own line in exactly this form:
{"movies": [{"title": "Movie Title", "year": "1999", "director": "Director Name"}]}

List only movies you are recommending in this reply. If you are not recommending any movies, do not emit the JSON block. Never recommend a movie you already recommended earlier in the conversation.`

// Completer produces the assistant reply for one turn.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []llm.Message, userMessage string) (string, error)
}

// Validator checks LLM candidates against the catalogs.
type Validator interface {
	ValidateBatch(ctx context.Context, candidates []validation.Candidate, seen map[string]bool) ([]validation.Result, validation.Summary)
}

// Enricher merges validated results into presentable movies.
type Enricher interface {
	Enrich(ctx context.Context, results []validation.Result) []enrich.Movie
}

// Limiter guards the daily LLM budget.
type Limiter interface {
	Allow(ctx context.Context) (bool, int)
	Increment(ctx context.Context)
}

// Request is one user turn.
type Request struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// Response is the service's answer to one turn.
type Response struct {
	SessionID      string             `json:"session_id"`
	Reply          string             `json:"reply"`
	Movies         []enrich.Movie     `json:"movies,omitempty"`
	Notification   string             `json:"notification,omitempty"`
	Validation     validation.Summary `json:"validation"`
	RemainingCalls int                `json:"remaining_calls"`
}

type Service struct {
	llm          Completer
	validator    Validator
	enricher     Enricher
	limiter      Limiter
	sessions     *session.Manager
	systemPrompt string
	logger       zerolog.Logger
}

// NewService wires the chat pipeline. An empty systemPrompt uses the
// built-in default.
func NewService(completer Completer, validator Validator, enricher Enricher, limiter Limiter, sessions *session.Manager, systemPrompt string, logger zerolog.Logger) *Service {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Service{
		llm:          completer,
		validator:    validator,
		enricher:     enricher,
		limiter:      limiter,
		sessions:     sessions,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Chat runs one conversation turn. Returns ErrRateLimited when the daily
// budget is spent; other errors mean the LLM call itself failed.
func (s *Service) Chat(ctx context.Context, req Request) (Response, error) {
	ok, remaining := s.limiter.Allow(ctx)
	if !ok {
		return Response{}, ErrRateLimited
	}

	sess := s.sessions.GetOrCreate(req.SessionID)

	raw, err := s.llm.Complete(ctx, s.systemPrompt, sess.History, req.Message)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	s.limiter.Increment(ctx)

	reply, candidates := llm.ExtractManifest(raw)
	resp := Response{
		SessionID:      sess.ID,
		Reply:          reply,
		RemainingCalls: remaining,
	}

	if len(candidates) == 0 {
		s.sessions.AppendTurn(sess.ID, req.Message, reply, nil)
		return resp, nil
	}

	results, summary := s.validator.ValidateBatch(ctx, candidates, sess.Recommended)
	resp.Validation = summary
	resp.Movies = s.enricher.Enrich(ctx, results)

	var corrections []validation.Correction
	recommended := make([]string, 0, len(resp.Movies))
	for _, m := range resp.Movies {
		corrections = append(corrections, m.Corrections...)
		recommended = append(recommended, m.Title)
	}
	resp.Notification = enrich.Notification(summary.DroppedTitle, corrections)

	s.sessions.AppendTurn(sess.ID, req.Message, reply, recommended)

	s.logger.Info().
		Str("session_id", sess.ID).
		Int("candidates", summary.Checked).
		Int("valid", summary.Valid).
		Int("dropped", summary.Dropped).
		Msg("chat turn validated")
	return resp, nil
}

// ClearSession drops a session's state. Returns true when it existed.
func (s *Service) ClearSession(id string) bool {
	return s.sessions.Delete(id)
}
