package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/addoodi/yt2audi/internal/log"
	"github.com/addoodi/yt2audi/internal/model"
)

// Database defaults
const (
	DefaultFileName = "yt2audi.db"

	// DefaultCacheTTL is how long cached metadata stays fresh. Titles and
	// uploader names rarely change; a week keeps re-runs cheap without
	// serving stale data forever.
	DefaultCacheTTL = 7 * 24 * time.Hour

	dirPermissions = 0o755
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	video_id     TEXT PRIMARY KEY,
	completed_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS metadata (
	url       TEXT PRIMARY KEY,
	json      TEXT NOT NULL,
	cached_at INTEGER NOT NULL
);
`

// Store is the history book-keeper and metadata cache, safe for use from
// concurrent pipeline items.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	logger zerolog.Logger
}

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("store: cannot create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: cannot open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: cannot ping %s: %w", path, err)
	}

	// WAL plus a busy timeout so concurrent single-key writes from
	// different items queue instead of failing.
	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		logger := log.WithComponent("store")
		logger.Warn().Err(err).Msg("cannot set pragmas")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: cannot create schema: %w", err)
	}

	return &Store{
		db:     db,
		ttl:    DefaultCacheTTL,
		logger: log.WithComponent("store"),
	}, nil
}

// OpenDefault opens the store in dataDir using the default file name.
func OpenDefault(dataDir string) (*Store, error) {
	return Open(filepath.Join(dataDir, DefaultFileName))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetCacheTTL overrides the metadata freshness window.
func (s *Store) SetCacheTTL(ttl time.Duration) {
	s.ttl = ttl
}

// IsComplete reports whether the content ID has been processed before.
func (s *Store) IsComplete(videoID string) bool {
	if videoID == "" {
		return false
	}
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM history WHERE video_id = ?`, videoID).Scan(&one)
	return err == nil
}

// MarkComplete records the content ID as processed. Idempotent.
func (s *Store) MarkComplete(videoID string) error {
	if videoID == "" {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO history (video_id, completed_at) VALUES (?, ?)`,
		videoID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: cannot mark %s complete: %w", videoID, err)
	}
	s.logger.Debug().Str("id", videoID).Msg("marked complete")
	return nil
}

// GetMetadata returns cached metadata for a URL if present and fresh.
func (s *Store) GetMetadata(url string) (*model.Metadata, bool) {
	var raw string
	var cachedAt int64
	err := s.db.QueryRow(
		`SELECT json, cached_at FROM metadata WHERE url = ?`, url,
	).Scan(&raw, &cachedAt)
	if err != nil {
		return nil, false
	}

	if time.Since(time.Unix(cachedAt, 0)) > s.ttl {
		_, _ = s.db.Exec(`DELETE FROM metadata WHERE url = ?`, url)
		return nil, false
	}

	var meta model.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, false
	}
	s.logger.Debug().Str("url", url).Msg("metadata cache hit")
	return &meta, true
}

// PutMetadata stores metadata for a URL, replacing any previous entry.
func (s *Store) PutMetadata(url string, meta *model.Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: cannot encode metadata for %s: %w", url, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO metadata (url, json, cached_at) VALUES (?, ?, ?)`,
		url, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: cannot cache metadata for %s: %w", url, err)
	}
	return nil
}

// ClearHistory removes every history entry.
func (s *Store) ClearHistory() error {
	_, err := s.db.Exec(`DELETE FROM history`)
	return err
}

// ClearCache removes every cached metadata entry.
func (s *Store) ClearCache() error {
	_, err := s.db.Exec(`DELETE FROM metadata`)
	return err
}
