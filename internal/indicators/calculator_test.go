package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stock-insight/internal/models"
)

func makePrices(t *testing.T, closes []float64) []models.PricePoint {
	t.Helper()
	prices := make([]models.PricePoint, len(closes))
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		prices[i] = models.PricePoint{
			Code:   "005930",
			Date:   start.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(c),
			High:   decimal.NewFromFloat(c + 500),
			Low:    decimal.NewFromFloat(c - 500),
			Close:  decimal.NewFromFloat(c),
			Volume: 1_000_000,
		}
	}
	return prices
}

// waveCloses builds a deterministic oscillating series long enough to fill
// every warm-up window.
func waveCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 70000 + 3000*math.Sin(float64(i)/3) + 150*float64(i%5)
	}
	return closes
}

func TestNewCalculator(t *testing.T) {
	t.Run("zero params fall back to defaults", func(t *testing.T) {
		calc := NewCalculator(Params{})
		assert.Equal(t, DefaultParams(), calc.params)
	})

	t.Run("explicit params are kept", func(t *testing.T) {
		p := Params{RSILength: 7, TrixLength: 10, TrixSignal: 5, MACDFast: 6, MACDSlow: 13, MACDSignal: 4}
		calc := NewCalculator(p)
		assert.Equal(t, p, calc.params)
	})
}

func TestCalculateAll(t *testing.T) {
	calc := NewCalculator(DefaultParams())

	t.Run("empty input yields empty output", func(t *testing.T) {
		points := calc.CalculateAll(nil)
		assert.Empty(t, points)

		points = calc.CalculateAll([]models.PricePoint{})
		assert.Empty(t, points)
	})

	t.Run("output is date-aligned with input", func(t *testing.T) {
		prices := makePrices(t, waveCloses(60))
		points := calc.CalculateAll(prices)

		require.Len(t, points, len(prices))
		for i := range points {
			assert.Equal(t, prices[i].Date, points[i].Date)
		}
	})

	t.Run("warm-up values are absent until each window fills", func(t *testing.T) {
		points := calc.CalculateAll(makePrices(t, waveCloses(60)))
		require.Len(t, points, 60)

		firstPresent := func(get func(models.IndicatorPoint) *float64) int {
			for i, p := range points {
				if get(p) != nil {
					return i
				}
			}
			return -1
		}

		// RSI(14) needs 15 closes; MACD(12,26,9) needs the slow EMA and
		// then the signal EMA; TRIX(15,9) stacks three EMAs, one change
		// and the signal EMA.
		assert.Equal(t, 14, firstPresent(func(p models.IndicatorPoint) *float64 { return p.RSI }))
		assert.Equal(t, 25, firstPresent(func(p models.IndicatorPoint) *float64 { return p.MACD }))
		assert.Equal(t, 33, firstPresent(func(p models.IndicatorPoint) *float64 { return p.MACDSignal }))
		assert.Equal(t, 33, firstPresent(func(p models.IndicatorPoint) *float64 { return p.MACDHistogram }))
		assert.Equal(t, 43, firstPresent(func(p models.IndicatorPoint) *float64 { return p.Trix }))
		assert.Equal(t, 51, firstPresent(func(p models.IndicatorPoint) *float64 { return p.TrixSignal }))
	})
}

func TestRSI(t *testing.T) {
	calc := NewCalculator(DefaultParams())

	t.Run("present values stay within 0 and 100", func(t *testing.T) {
		rsi := calc.RSI(waveCloses(120))
		seen := 0
		for _, v := range rsi {
			if v == nil {
				continue
			}
			seen++
			assert.GreaterOrEqual(t, *v, 0.0)
			assert.LessOrEqual(t, *v, 100.0)
		}
		assert.NotZero(t, seen)
	})

	t.Run("strong uptrend reads overbought", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 50000 + 100*float64(i)
		}
		rsi := calc.RSI(closes)

		last := rsi[len(rsi)-1]
		require.NotNil(t, last)
		assert.Greater(t, *last, 70.0)
	})

	t.Run("flat series has no defined value", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = 50000
		}
		for _, v := range calc.RSI(closes) {
			assert.Nil(t, v)
		}
	})

	t.Run("insufficient history yields no values", func(t *testing.T) {
		for _, v := range calc.RSI(waveCloses(14)) {
			assert.Nil(t, v)
		}
	})
}

func TestTrix(t *testing.T) {
	calc := NewCalculator(DefaultParams())

	t.Run("series lengths match input", func(t *testing.T) {
		closes := waveCloses(80)
		trix, signal := calc.Trix(closes)
		assert.Len(t, trix, len(closes))
		assert.Len(t, signal, len(closes))
	})

	t.Run("constant series flattens to zero", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 12345
		}
		trix, signal := calc.Trix(closes)

		require.NotNil(t, trix[59])
		assert.InDelta(t, 0, *trix[59], 1e-12)
		require.NotNil(t, signal[59])
		assert.InDelta(t, 0, *signal[59], 1e-12)
	})
}

func TestMACD(t *testing.T) {
	calc := NewCalculator(DefaultParams())

	t.Run("series lengths match input", func(t *testing.T) {
		closes := waveCloses(80)
		macd, signal, hist := calc.MACD(closes)
		assert.Len(t, macd, len(closes))
		assert.Len(t, signal, len(closes))
		assert.Len(t, hist, len(closes))
	})

	t.Run("histogram equals line minus signal", func(t *testing.T) {
		macd, signal, hist := calc.MACD(waveCloses(120))
		checked := 0
		for i := range hist {
			if hist[i] == nil {
				continue
			}
			require.NotNil(t, macd[i])
			require.NotNil(t, signal[i])
			assert.InDelta(t, *macd[i]-*signal[i], *hist[i], 1e-9)
			checked++
		}
		assert.NotZero(t, checked)
	})
}

func TestEMASeries(t *testing.T) {
	t.Run("seeds from a simple average", func(t *testing.T) {
		values := toOptional([]float64{1, 2, 3, 4, 5})
		out := emaSeries(values, 3)

		assert.Nil(t, out[0])
		assert.Nil(t, out[1])
		require.NotNil(t, out[2])
		assert.InDelta(t, 2.0, *out[2], 1e-12) // (1+2+3)/3
		require.NotNil(t, out[3])
		assert.InDelta(t, 3.0, *out[3], 1e-12) // 2 + 0.5*(4-2)
		require.NotNil(t, out[4])
		assert.InDelta(t, 4.0, *out[4], 1e-12)
	})

	t.Run("skips leading undefined values", func(t *testing.T) {
		values := []*float64{nil, nil, fptr(1), fptr(2), fptr(3)}
		out := emaSeries(values, 2)

		assert.Nil(t, out[0])
		assert.Nil(t, out[1])
		assert.Nil(t, out[2])
		require.NotNil(t, out[3])
		assert.InDelta(t, 1.5, *out[3], 1e-12)
		require.NotNil(t, out[4])
		assert.InDelta(t, 2.5, *out[4], 1e-12) // k=2/3
	})

	t.Run("short input yields nothing", func(t *testing.T) {
		out := emaSeries(toOptional([]float64{1, 2}), 5)
		for _, v := range out {
			assert.Nil(t, v)
		}
	})
}
