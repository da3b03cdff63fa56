// Package database owns the SQLite store: connection setup, schema
// creation and the repositories built on top of it.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

type Config struct {
	Path string // SQLite file path, ":memory:" for tests
}

func NewDB(config Config) (*DB, error) {
	if config.Path == "" {
		config.Path = "cineman.db"
	}

	conn, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS movie_interactions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		movie_title TEXT NOT NULL,
		movie_year TEXT,
		interaction_type TEXT NOT NULL CHECK (interaction_type IN ('like', 'dislike', 'watchlist')),
		created_at DATETIME NOT NULL,
		UNIQUE (session_id, movie_title)
	);

	CREATE TABLE IF NOT EXISTS api_usage_tracker (
		api_name TEXT PRIMARY KEY,
		call_count INTEGER NOT NULL DEFAULT 0,
		reset_date TEXT NOT NULL
	);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
