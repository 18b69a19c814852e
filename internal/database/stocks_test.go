package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stock-insight/internal/models"
)

func TestStocksRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	fptr := func(v float64) *float64 { return &v }
	iptr := func(v int64) *int64 { return &v }

	t.Run("UpsertStock creates new stock", func(t *testing.T) {
		testDB.TruncateAll(t)

		stock := &models.StockInfo{
			Code:          "005930",
			Name:          "Samsung Electronics",
			Market:        models.MarketKOSPI,
			Sector:        "Semiconductors",
			MarketCap:     iptr(430000000000000),
			PER:           fptr(12.4),
			PBR:           fptr(1.3),
			EPS:           fptr(5820.0),
			BPS:           fptr(55400.0),
			DividendYield: fptr(2.1),
		}

		err := testDB.UpsertStock(stock)
		require.NoError(t, err)
		assert.False(t, stock.UpdatedAt.IsZero())
	})

	t.Run("UpsertStock updates existing stock", func(t *testing.T) {
		testDB.TruncateAll(t)

		stock := &models.StockInfo{
			Code:   "005930",
			Name:   "Samsung Electronics",
			Market: models.MarketKOSPI,
			PER:    fptr(12.4),
		}
		require.NoError(t, testDB.UpsertStock(stock))

		stock.PER = fptr(13.1)
		stock.Sector = "Semiconductors"
		require.NoError(t, testDB.UpsertStock(stock))

		retrieved, err := testDB.GetStock("005930")
		require.NoError(t, err)
		require.NotNil(t, retrieved.PER)
		assert.InDelta(t, 13.1, *retrieved.PER, 1e-9)
		assert.Equal(t, "Semiconductors", retrieved.Sector)

		var count int
		err = testDB.GetRawConn().QueryRow(`SELECT COUNT(*) FROM stocks`).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("GetStock round-trips optional fundamentals", func(t *testing.T) {
		testDB.TruncateAll(t)

		// Listing-only row: no fundamentals yet
		stock := &models.StockInfo{
			Code:   "278470",
			Name:   "APR",
			Market: models.MarketKOSDAQ,
		}
		require.NoError(t, testDB.UpsertStock(stock))

		retrieved, err := testDB.GetStock("278470")
		require.NoError(t, err)
		assert.Equal(t, "APR", retrieved.Name)
		assert.Equal(t, models.MarketKOSDAQ, retrieved.Market)
		assert.Nil(t, retrieved.MarketCap)
		assert.Nil(t, retrieved.PER)
		assert.Nil(t, retrieved.DividendYield)
	})

	t.Run("GetStock returns error for non-existent", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetStock("999999")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
