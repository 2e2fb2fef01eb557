// Package store provides the local store for brokerage-aggregator linkage
// tokens. It is the only persisted state outside the user-maintained cold
// storage file.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// PlaidItem is one linked aggregator item, keyed by container id
// (e.g. "schwab").
type PlaidItem struct {
	ContainerID     string
	AccessToken     string
	ItemID          string
	InstitutionName *string
	CreatedAt       time.Time
}

// LinkStore persists Plaid items in a small SQLite database.
type LinkStore struct {
	db  *sql.DB
	log zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS plaid_items (
	container_id     TEXT PRIMARY KEY,
	access_token     TEXT NOT NULL,
	item_id          TEXT NOT NULL,
	institution_name TEXT,
	created_at       INTEGER NOT NULL
);
`

// Open opens (creating if necessary) the link store at the given path.
func Open(path string, log zerolog.Logger) (*LinkStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create link store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open link store: %w", err)
	}

	// Single-user local file; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize link store schema: %w", err)
	}

	return &LinkStore{
		db:  db,
		log: log.With().Str("store", "link").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *LinkStore) Close() error {
	return s.db.Close()
}

// Get retrieves the item for a container id. Returns nil if no item is
// linked (not an error).
func (s *LinkStore) Get(containerID string) (*PlaidItem, error) {
	row := s.db.QueryRow(`
		SELECT container_id, access_token, item_id, institution_name, created_at
		FROM plaid_items WHERE container_id = ?`, containerID)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plaid item %s: %w", containerID, err)
	}
	return item, nil
}

// List returns all linked items ordered by container id.
func (s *LinkStore) List() ([]PlaidItem, error) {
	rows, err := s.db.Query(`
		SELECT container_id, access_token, item_id, institution_name, created_at
		FROM plaid_items ORDER BY container_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plaid items: %w", err)
	}
	defer rows.Close()

	var items []PlaidItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plaid item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Save inserts or replaces the item for a container id.
func (s *LinkStore) Save(item PlaidItem) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO plaid_items (container_id, access_token, item_id, institution_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(container_id) DO UPDATE SET
			access_token = excluded.access_token,
			item_id = excluded.item_id,
			institution_name = excluded.institution_name,
			created_at = excluded.created_at
	`, item.ContainerID, item.AccessToken, item.ItemID, item.InstitutionName, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save plaid item %s: %w", item.ContainerID, err)
	}

	s.log.Info().Str("container_id", item.ContainerID).Msg("Saved aggregator link")
	return nil
}

// Delete removes the item for a container id. Returns true if a row existed.
func (s *LinkStore) Delete(containerID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM plaid_items WHERE container_id = ?`, containerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete plaid item %s: %w", containerID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scannable) (*PlaidItem, error) {
	var item PlaidItem
	var institutionName sql.NullString
	var createdAt int64

	if err := row.Scan(&item.ContainerID, &item.AccessToken, &item.ItemID, &institutionName, &createdAt); err != nil {
		return nil, err
	}
	if institutionName.Valid {
		item.InstitutionName = &institutionName.String
	}
	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &item, nil
}
