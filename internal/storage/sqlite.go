// Package storage provides SQLite persistence for templates and search
// history.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kensaku-io/kensaku/internal/models"
)

// SQLiteStorage backs the template store and the search-history sink.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS templates (
		name TEXT PRIMARY KEY,
		description TEXT,
		criteria TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_used_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS search_history (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		searched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_history_searched_at ON search_history(searched_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveTemplate inserts or replaces a template row.
func (s *SQLiteStorage) SaveTemplate(tpl *models.SearchTemplate) error {
	criteriaJSON, err := json.Marshal(tpl.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO templates (name, description, criteria, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   description = excluded.description,
		   criteria = excluded.criteria,
		   last_used_at = excluded.last_used_at`,
		tpl.Name, tpl.Description, string(criteriaJSON), tpl.CreatedAt, tpl.LastUsedAt,
	)
	return err
}

// DeleteTemplate removes a template row by name.
func (s *SQLiteStorage) DeleteTemplate(name string) error {
	_, err := s.db.Exec(`DELETE FROM templates WHERE name = ?`, name)
	return err
}

// LoadTemplates returns all saved templates.
func (s *SQLiteStorage) LoadTemplates() ([]*models.SearchTemplate, error) {
	rows, err := s.db.Query(
		`SELECT name, description, criteria, created_at, last_used_at FROM templates`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tpls []*models.SearchTemplate
	for rows.Next() {
		var tpl models.SearchTemplate
		var criteriaJSON string
		var lastUsed sql.NullTime
		if err := rows.Scan(&tpl.Name, &tpl.Description, &criteriaJSON, &tpl.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(criteriaJSON), &tpl.Criteria); err != nil {
			return nil, fmt.Errorf("failed to unmarshal criteria for %q: %w", tpl.Name, err)
		}
		if lastUsed.Valid {
			tpl.LastUsedAt = lastUsed.Time
		}
		tpls = append(tpls, &tpl)
	}
	return tpls, rows.Err()
}

// AppendHistory records a search query.
func (s *SQLiteStorage) AppendHistory(query string) error {
	_, err := s.db.Exec(
		`INSERT INTO search_history (id, query, searched_at) VALUES (?, ?, ?)`,
		uuid.New().String(), query, time.Now(),
	)
	return err
}

// RecentHistory returns up to limit most recent queries, newest first.
func (s *SQLiteStorage) RecentHistory(limit int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT query FROM search_history ORDER BY searched_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// PruneHistory keeps only the keep most recent history rows.
func (s *SQLiteStorage) PruneHistory(keep int) error {
	_, err := s.db.Exec(
		`DELETE FROM search_history WHERE id NOT IN (
		   SELECT id FROM search_history ORDER BY searched_at DESC LIMIT ?
		 )`, keep,
	)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
