package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/krxlab/stock-insight/internal/models"
)

// UpsertWatchItem adds a stock to the analysis watchlist or updates it
func (db *DB) UpsertWatchItem(w *models.WatchItem) error {
	query := `
		INSERT INTO watchlist (code, name, enabled, priority, notes, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			priority = EXCLUDED.priority,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if w.Priority == 0 {
		w.Priority = 1
	}

	_, err := db.conn.Exec(query, w.Code, w.Name, w.Enabled, w.Priority, w.Notes, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert watch item: %w", err)
	}
	w.AddedAt = now
	w.UpdatedAt = now
	return nil
}

// GetWatchItem retrieves a watchlist entry by code
func (db *DB) GetWatchItem(code string) (*models.WatchItem, error) {
	query := `
		SELECT code, name, enabled, priority, notes, added_at, updated_at
		FROM watchlist
		WHERE code = $1
	`
	var w models.WatchItem
	var name, notes sql.NullString

	err := db.conn.QueryRow(query, code).Scan(
		&w.Code, &name, &w.Enabled, &w.Priority, &notes, &w.AddedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("watch item %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watch item: %w", err)
	}

	if name.Valid {
		w.Name = name.String
	}
	if notes.Valid {
		w.Notes = notes.String
	}
	return &w, nil
}

// GetWatchlist retrieves watchlist entries, highest priority first
func (db *DB) GetWatchlist(enabledOnly bool) ([]*models.WatchItem, error) {
	query := `
		SELECT code, name, enabled, priority, notes, added_at, updated_at
		FROM watchlist
	`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY priority ASC, added_at ASC`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	defer rows.Close()

	var items []*models.WatchItem
	for rows.Next() {
		var w models.WatchItem
		var name, notes sql.NullString

		err := rows.Scan(&w.Code, &name, &w.Enabled, &w.Priority, &notes, &w.AddedAt, &w.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watch item: %w", err)
		}
		if name.Valid {
			w.Name = name.String
		}
		if notes.Valid {
			w.Notes = notes.String
		}
		items = append(items, &w)
	}
	return items, rows.Err()
}

// SetWatchItemEnabled toggles a watchlist entry
func (db *DB) SetWatchItemEnabled(code string, enabled bool) error {
	result, err := db.conn.Exec(
		`UPDATE watchlist SET enabled = $1, updated_at = $2 WHERE code = $3`,
		enabled, time.Now(), code,
	)
	if err != nil {
		return fmt.Errorf("failed to update watch item: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("watch item %s: %w", code, ErrNotFound)
	}
	return nil
}

// DeleteWatchItem removes a stock from the watchlist
func (db *DB) DeleteWatchItem(code string) error {
	result, err := db.conn.Exec(`DELETE FROM watchlist WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete watch item: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("watch item %s: %w", code, ErrNotFound)
	}
	return nil
}
