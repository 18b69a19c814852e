package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/krxlab/stock-insight/internal/models"
)

// UpsertStock inserts or refreshes listing info for a stock
func (db *DB) UpsertStock(s *models.StockInfo) error {
	query := `
		INSERT INTO stocks (code, name, market, sector, market_cap, per, pbr, eps, bps, dividend_yield, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			market = EXCLUDED.market,
			sector = EXCLUDED.sector,
			market_cap = EXCLUDED.market_cap,
			per = EXCLUDED.per,
			pbr = EXCLUDED.pbr,
			eps = EXCLUDED.eps,
			bps = EXCLUDED.bps,
			dividend_yield = EXCLUDED.dividend_yield,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := db.conn.Exec(query,
		s.Code, s.Name, s.Market, s.Sector, s.MarketCap,
		s.PER, s.PBR, s.EPS, s.BPS, s.DividendYield, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stock: %w", err)
	}
	s.UpdatedAt = now
	return nil
}

// GetStock retrieves listing info by code
func (db *DB) GetStock(code string) (*models.StockInfo, error) {
	query := `
		SELECT code, name, market, sector, market_cap, per, pbr, eps, bps, dividend_yield, updated_at
		FROM stocks
		WHERE code = $1
	`
	var s models.StockInfo
	var market, sector sql.NullString
	var marketCap sql.NullInt64
	var per, pbr, eps, bps, divYield sql.NullFloat64

	err := db.conn.QueryRow(query, code).Scan(
		&s.Code, &s.Name, &market, &sector, &marketCap,
		&per, &pbr, &eps, &bps, &divYield, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	if market.Valid {
		s.Market = market.String
	}
	if sector.Valid {
		s.Sector = sector.String
	}
	if marketCap.Valid {
		s.MarketCap = &marketCap.Int64
	}
	if per.Valid {
		s.PER = &per.Float64
	}
	if pbr.Valid {
		s.PBR = &pbr.Float64
	}
	if eps.Valid {
		s.EPS = &eps.Float64
	}
	if bps.Valid {
		s.BPS = &bps.Float64
	}
	if divYield.Valid {
		s.DividendYield = &divYield.Float64
	}
	return &s, nil
}
