// Package session keeps per-conversation state in memory: chat history,
// titles already recommended and access times for idle expiry.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/llm"
	"github.com/kdimtricp/cineman/internal/validation"
)

// Session is one conversation's state. Callers must only touch it through
// the Manager, which serializes access.
type Session struct {
	ID           string
	History      []llm.Message
	Recommended  map[string]bool // normalized titles already suggested
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Manager owns the session map. Idle sessions are dropped lazily on access
// rather than by a background sweeper.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	idleTimeout  time.Duration
	historyLimit int
	now          func() time.Time
	logger       zerolog.Logger
}

type Config struct {
	IdleTimeout  time.Duration // default 1h
	HistoryLimit int           // user+assistant turns kept, default 10
}

func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	return newManagerWithClock(cfg, logger, time.Now)
}

func newManagerWithClock(cfg Config, logger zerolog.Logger, now func() time.Time) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		idleTimeout:  cfg.IdleTimeout,
		historyLimit: cfg.HistoryLimit,
		now:          now,
		logger:       logger,
	}
}

// GetOrCreate returns the live session for id, creating a fresh one when the
// id is unknown, blank or expired. The returned snapshot is safe to read
// without further locking.
func (m *Manager) GetOrCreate(id string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if id != "" {
		if s, ok := m.sessions[id]; ok {
			if now.Sub(s.LastAccessed) <= m.idleTimeout {
				s.LastAccessed = now
				return m.snapshot(s)
			}
			delete(m.sessions, id)
			m.logger.Debug().Str("session_id", id).Msg("session expired")
		}
	}

	s := &Session{
		ID:           uuid.NewString(),
		Recommended:  make(map[string]bool),
		CreatedAt:    now,
		LastAccessed: now,
	}
	m.sessions[s.ID] = s
	m.logger.Debug().Str("session_id", s.ID).Msg("session created")
	return m.snapshot(s)
}

// Snapshot is a copy of session state handed to callers.
type Snapshot struct {
	ID          string
	History     []llm.Message
	Recommended map[string]bool
}

func (m *Manager) snapshot(s *Session) Snapshot {
	history := make([]llm.Message, len(s.History))
	copy(history, s.History)
	recommended := make(map[string]bool, len(s.Recommended))
	for k := range s.Recommended {
		recommended[k] = true
	}
	return Snapshot{ID: s.ID, History: history, Recommended: recommended}
}

// AppendTurn records one user/assistant exchange and the titles that were
// recommended in it, trimming history to the configured limit.
func (m *Manager) AppendTurn(id, userMessage, assistantReply string, recommended []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return
	}

	s.History = append(s.History,
		llm.Message{Role: "user", Content: userMessage},
		llm.Message{Role: "assistant", Content: assistantReply},
	)
	if excess := len(s.History) - m.historyLimit; excess > 0 {
		s.History = s.History[excess:]
	}
	for _, title := range recommended {
		s.Recommended[validation.Normalize(title)] = true
	}
	s.LastAccessed = m.now()
}

// Delete removes a session. Returns true when it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Count reports how many sessions are currently held, expired or not.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
