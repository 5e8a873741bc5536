package index

import (
	"fmt"
	"time"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// UpsertEntry inserts or replaces an entry and its FTS row within a transaction.
func (db *DB) UpsertEntry(date, checksum, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO entries (date, checksum, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, date, checksum, body, time.Now())
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, date, body); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteEntry removes an entry and its FTS row.
func (db *DB) DeleteEntry(date string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, date)
	_, _ = tx.Exec(`DELETE FROM entries WHERE date = ?`, date)

	return tx.Commit()
}

// AllChecksums returns date → checksum for every indexed entry.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT date, checksum FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var d, cs string
		if err := rows.Scan(&d, &cs); err != nil {
			return nil, err
		}
		out[d] = cs
	}
	return out, rows.Err()
}
