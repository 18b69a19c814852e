package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/krxlab/stock-insight/internal/models"
)

// CreatePricePoint inserts or updates a single daily bar
func (db *DB) CreatePricePoint(p *models.PricePoint) error {
	query := `
		INSERT INTO price_data_daily (code, date, open, high, low, close, volume, trading_value, change_rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			trading_value = EXCLUDED.trading_value,
			change_rate = EXCLUDED.change_rate
		RETURNING id
	`
	err := db.conn.QueryRow(query,
		p.Code, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, p.TradingValue, p.ChangeRate, time.Now(),
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to create price point: %w", err)
	}
	return nil
}

// CreatePriceBatch inserts or updates multiple daily bars in one transaction
func (db *DB) CreatePriceBatch(prices []models.PricePoint) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_data_daily (code, date, open, high, low, close, volume, trading_value, change_rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			trading_value = EXCLUDED.trading_value,
			change_rate = EXCLUDED.change_rate
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range prices {
		_, err := stmt.Exec(p.Code, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, p.TradingValue, p.ChangeRate, now)
		if err != nil {
			return fmt.Errorf("failed to insert price point for %s: %w", p.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPriceRange retrieves daily bars for a code within a date range,
// oldest first
func (db *DB) GetPriceRange(code string, startDate, endDate time.Time) ([]models.PricePoint, error) {
	query := `
		SELECT id, code, date, open, high, low, close, volume, trading_value, change_rate, created_at
		FROM price_data_daily
		WHERE code = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, code, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get price range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetRecentPrices retrieves the latest daily bars for a code, newest first
func (db *DB) GetRecentPrices(code string, limit int) ([]models.PricePoint, error) {
	query := `
		SELECT id, code, date, open, high, low, close, volume, trading_value, change_rate, created_at
		FROM price_data_daily
		WHERE code = $1
		ORDER BY date DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent prices: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetLatestPrice retrieves the most recent daily bar for a code
func (db *DB) GetLatestPrice(code string) (*models.PricePoint, error) {
	prices, err := db.GetRecentPrices(code, 1)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("price data for %s: %w", code, ErrNotFound)
	}
	return &prices[0], nil
}

// TopByTradingValue returns the codes with the highest trading value on the
// most recent trading date present in the table
func (db *DB) TopByTradingValue(n int) ([]string, error) {
	query := `
		SELECT code
		FROM price_data_daily
		WHERE date = (SELECT MAX(date) FROM price_data_daily)
		ORDER BY trading_value DESC NULLS LAST
		LIMIT $1
	`
	rows, err := db.conn.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get top stocks by trading value: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// DeletePricesOlderThan removes daily bars older than the given date and
// reports how many were removed
func (db *DB) DeletePricesOlderThan(date time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM price_data_daily WHERE date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price data: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPricePoint(row rowScanner) (*models.PricePoint, error) {
	var p models.PricePoint
	var tradingValue sql.NullString
	var changeRate sql.NullFloat64

	err := row.Scan(
		&p.ID, &p.Code, &p.Date, &p.Open, &p.High, &p.Low, &p.Close,
		&p.Volume, &tradingValue, &changeRate, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tradingValue.Valid {
		p.TradingValue, _ = decimal.NewFromString(tradingValue.String)
	}
	if changeRate.Valid {
		p.ChangeRate = &changeRate.Float64
	}
	return &p, nil
}

func scanPricePoints(rows *sql.Rows) ([]models.PricePoint, error) {
	var prices []models.PricePoint
	for rows.Next() {
		p, err := scanPricePoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		prices = append(prices, *p)
	}
	return prices, rows.Err()
}
