// Package archive is the download archive: a SQLite table of keys for files
// that were already fetched, so repeated runs only download what is new.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"opusdl/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS archive (
	entry TEXT PRIMARY KEY,
	added_at DATETIME DEFAULT CURRENT_TIMESTAMP
) WITHOUT ROWID;`

// Archive records which files were already downloaded. Entries are
// "<category><key>" so several sites could share one database.
type Archive struct {
	db       *sql.DB
	path     string
	category string
	logger   logger.Logger
	mu       sync.Mutex
}

// Open opens or creates the archive database at path
func Open(path, category string, log logger.Logger) (*Archive, error) {
	log = logger.OrDefault(log)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	// One connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive table: %w", err)
	}

	log.DebugWithFields("archive opened", map[string]interface{}{
		"path": path,
	})

	return &Archive{
		db:       db,
		path:     path,
		category: category,
		logger:   log,
	}, nil
}

func (a *Archive) entry(key string) string {
	return a.category + key
}

// Check reports whether key is archived
func (a *Archive) Check(ctx context.Context, key string) (bool, error) {
	var count int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM archive WHERE entry = ?", a.entry(key)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check archive entry %s: %w", key, err)
	}
	return count > 0, nil
}

// Add archives key. Adding an existing key is not an error.
func (a *Archive) Add(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO archive (entry) VALUES (?)", a.entry(key))
	if err != nil {
		return fmt.Errorf("failed to add archive entry %s: %w", key, err)
	}
	return nil
}

// Count returns the number of archived entries
func (a *Archive) Count(ctx context.Context) (int, error) {
	var count int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM archive").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archive entries: %w", err)
	}
	return count, nil
}

// Path returns the database file path
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}
