package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interaction is a user's recorded reaction to a movie.
type Interaction struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"movie_title"`
	Year      string    `json:"movie_year,omitempty"`
	Type      string    `json:"interaction_type"` // like, dislike, watchlist
	CreatedAt time.Time `json:"created_at"`
}

// ValidInteractionType reports whether t is one of the accepted types.
func ValidInteractionType(t string) bool {
	return t == "like" || t == "dislike" || t == "watchlist"
}

type InteractionRepository struct {
	db *DB
}

func NewInteractionRepository(db *DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// Upsert records an interaction. A second interaction with the same session
// and title replaces the first, so "like" can become "dislike".
func (r *InteractionRepository) Upsert(ctx context.Context, in *Interaction) error {
	if !ValidInteractionType(in.Type) {
		return fmt.Errorf("invalid interaction type: %q", in.Type)
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO movie_interactions (id, session_id, movie_title, movie_year, interaction_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, movie_title)
		DO UPDATE SET interaction_type = excluded.interaction_type,
		              movie_year = excluded.movie_year,
		              created_at = excluded.created_at`

	_, err := r.db.conn.ExecContext(ctx, query,
		in.ID, in.SessionID, in.Title, in.Year, in.Type, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert interaction: %w", err)
	}
	return nil
}

// ListBySession returns a session's interactions, optionally filtered by
// type ("" returns all), newest first.
func (r *InteractionRepository) ListBySession(ctx context.Context, sessionID, interactionType string) ([]*Interaction, error) {
	query := `
		SELECT id, session_id, movie_title, movie_year, interaction_type, created_at
		FROM movie_interactions
		WHERE session_id = ?`
	args := []any{sessionID}
	if interactionType != "" {
		query += ` AND interaction_type = ?`
		args = append(args, interactionType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*Interaction
	for rows.Next() {
		in := &Interaction{}
		var year sql.NullString
		if err := rows.Scan(&in.ID, &in.SessionID, &in.Title, &year, &in.Type, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.Year = year.String
		interactions = append(interactions, in)
	}
	return interactions, rows.Err()
}

// Watchlist is a convenience filter over ListBySession.
func (r *InteractionRepository) Watchlist(ctx context.Context, sessionID string) ([]*Interaction, error) {
	return r.ListBySession(ctx, sessionID, "watchlist")
}

// Delete removes one interaction. Returns sql.ErrNoRows when nothing
// matched.
func (r *InteractionRepository) Delete(ctx context.Context, sessionID, title string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM movie_interactions WHERE session_id = ? AND movie_title = ?`,
		sessionID, title)
	if err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
