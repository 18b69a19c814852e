package database

import (
	"fmt"
	"time"

	"github.com/krxlab/stock-insight/internal/models"
)

// CreateReportRecord stores metadata for a rendered report file
func (db *DB) CreateReportRecord(r *models.ReportRecord) error {
	query := `
		INSERT INTO reports (id, code, period, file_path, generated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	_, err := db.conn.Exec(query, r.ID, r.Code, r.Period, r.FilePath, r.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to create report record: %w", err)
	}
	return nil
}

// GetRecentReports retrieves report metadata for a code, newest first
func (db *DB) GetRecentReports(code string, limit int) ([]*models.ReportRecord, error) {
	query := `
		SELECT id, code, period, file_path, generated_at
		FROM reports
		WHERE code = $1
		ORDER BY generated_at DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent reports: %w", err)
	}
	defer rows.Close()

	var records []*models.ReportRecord
	for rows.Next() {
		var r models.ReportRecord
		if err := rows.Scan(&r.ID, &r.Code, &r.Period, &r.FilePath, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report record: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
