package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/krxlab/stock-insight/internal/models"
)

// UpsertIndicators stores one snapshot row per indicator point for a code.
// Undefined values persist as NULL so a later read can tell "not computed"
// from zero.
func (db *DB) UpsertIndicators(code string, points []models.IndicatorPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO indicator_snapshots (code, date, rsi, trix, trix_signal, macd, macd_signal, macd_histogram, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code, date) DO UPDATE SET
			rsi = EXCLUDED.rsi,
			trix = EXCLUDED.trix,
			trix_signal = EXCLUDED.trix_signal,
			macd = EXCLUDED.macd,
			macd_signal = EXCLUDED.macd_signal,
			macd_histogram = EXCLUDED.macd_histogram
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range points {
		_, err := stmt.Exec(code, p.Date, p.RSI, p.Trix, p.TrixSignal, p.MACD, p.MACDSignal, p.MACDHistogram, now)
		if err != nil {
			return fmt.Errorf("failed to insert indicator snapshot for %s: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetLatestIndicator retrieves the most recent indicator snapshot for a code
func (db *DB) GetLatestIndicator(code string) (*models.IndicatorPoint, error) {
	query := `
		SELECT date, rsi, trix, trix_signal, macd, macd_signal, macd_histogram
		FROM indicator_snapshots
		WHERE code = $1
		ORDER BY date DESC
		LIMIT 1
	`
	p, err := scanIndicatorPoint(db.conn.QueryRow(query, code))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("indicator snapshots for %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest indicator snapshot: %w", err)
	}
	return p, nil
}

func scanIndicatorPoint(row rowScanner) (*models.IndicatorPoint, error) {
	var p models.IndicatorPoint
	var rsi, trix, trixSignal, macd, macdSignal, macdHist sql.NullFloat64

	err := row.Scan(&p.Date, &rsi, &trix, &trixSignal, &macd, &macdSignal, &macdHist)
	if err != nil {
		return nil, err
	}

	if rsi.Valid {
		p.RSI = &rsi.Float64
	}
	if trix.Valid {
		p.Trix = &trix.Float64
	}
	if trixSignal.Valid {
		p.TrixSignal = &trixSignal.Float64
	}
	if macd.Valid {
		p.MACD = &macd.Float64
	}
	if macdSignal.Valid {
		p.MACDSignal = &macdSignal.Float64
	}
	if macdHist.Valid {
		p.MACDHistogram = &macdHist.Float64
	}
	return &p, nil
}
