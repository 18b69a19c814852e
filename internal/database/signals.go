package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/krxlab/stock-insight/internal/models"
)

// CreateSignals persists the signals generated for a code on a given
// trading date
func (db *DB) CreateSignals(code string, date time.Time, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO signals (code, date, indicator, signal_type, reason, strength, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, s := range signals {
		_, err := stmt.Exec(code, date, s.Indicator, string(s.Type), s.Reason, s.Strength, now)
		if err != nil {
			return fmt.Errorf("failed to insert signal for %s: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSignalsByCode retrieves the most recently generated signals for a
// code, newest first
func (db *DB) GetSignalsByCode(code string, limit int) ([]*models.SignalRecord, error) {
	query := `
		SELECT id, code, date, indicator, signal_type, reason, strength, generated_at
		FROM signals
		WHERE code = $1
		ORDER BY generated_at DESC, id DESC
		LIMIT $2
	`
	return db.scanSignalRecords(db.conn.Query(query, code, limit))
}

// GetSignalsByDate retrieves all signals generated for a code on a trading
// date
func (db *DB) GetSignalsByDate(code string, date time.Time) ([]*models.SignalRecord, error) {
	query := `
		SELECT id, code, date, indicator, signal_type, reason, strength, generated_at
		FROM signals
		WHERE code = $1 AND date = $2
		ORDER BY id ASC
	`
	return db.scanSignalRecords(db.conn.Query(query, code, date))
}

func (db *DB) scanSignalRecords(rows *sql.Rows, err error) ([]*models.SignalRecord, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []*models.SignalRecord
	for rows.Next() {
		var r models.SignalRecord
		var signalType string

		err := rows.Scan(&r.ID, &r.Code, &r.Date, &r.Indicator, &signalType, &r.Reason, &r.Strength, &r.GeneratedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		r.Type = models.SignalType(signalType)
		records = append(records, &r)
	}
	return records, rows.Err()
}
