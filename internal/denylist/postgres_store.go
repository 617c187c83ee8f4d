package denylist

import (
	"context"
	"database/sql"
)

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed denylist store.
// The schema is managed by the migrations under migrations/.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// Add records an entry, replacing any prior report from the same source
func (p *PostgresStore) Add(ctx context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO denylist_entries (address, tag, source, note, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address, source) DO UPDATE SET
			tag = EXCLUDED.tag,
			note = EXCLUDED.note,
			added_at = EXCLUDED.added_at
	`, entry.Address, entry.Tag, entry.Source, entry.Note, entry.AddedAt)
	return err
}

// Lookup returns all entries for an address
func (p *PostgresStore) Lookup(ctx context.Context, address string) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT address, tag, source, note, added_at
		FROM denylist_entries
		WHERE address = $1
		ORDER BY source
	`, Normalize(address))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

// Remove deletes a single source's report for an address
func (p *PostgresStore) Remove(ctx context.Context, address, source string) error {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM denylist_entries WHERE address = $1 AND source = $2
	`, Normalize(address), source)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns entries ordered by address then source
func (p *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT address, tag, source, note, added_at
		FROM denylist_entries
		ORDER BY address, source
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		if err := rows.Scan(&entry.Address, &entry.Tag, &entry.Source, &entry.Note, &entry.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
