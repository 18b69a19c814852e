package indicators

import (
	"github.com/krxlab/stock-insight/internal/models"
)

// Default oscillator periods
const (
	DefaultRSILength  = 14
	DefaultTrixLength = 15
	DefaultTrixSignal = 9
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// Params holds the oscillator periods used by a Calculator
type Params struct {
	RSILength  int `json:"rsi_length" yaml:"rsi_length"`
	TrixLength int `json:"trix_length" yaml:"trix_length"`
	TrixSignal int `json:"trix_signal" yaml:"trix_signal"`
	MACDFast   int `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow   int `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal int `json:"macd_signal" yaml:"macd_signal"`
}

// DefaultParams returns the standard RSI(14), TRIX(15,9), MACD(12,26,9) setup
func DefaultParams() Params {
	return Params{
		RSILength:  DefaultRSILength,
		TrixLength: DefaultTrixLength,
		TrixSignal: DefaultTrixSignal,
		MACDFast:   DefaultMACDFast,
		MACDSlow:   DefaultMACDSlow,
		MACDSignal: DefaultMACDSignal,
	}
}

// normalize replaces zero or negative periods with their defaults
func (p Params) normalize() Params {
	d := DefaultParams()
	if p.RSILength <= 0 {
		p.RSILength = d.RSILength
	}
	if p.TrixLength <= 0 {
		p.TrixLength = d.TrixLength
	}
	if p.TrixSignal <= 0 {
		p.TrixSignal = d.TrixSignal
	}
	if p.MACDFast <= 0 {
		p.MACDFast = d.MACDFast
	}
	if p.MACDSlow <= 0 {
		p.MACDSlow = d.MACDSlow
	}
	if p.MACDSignal <= 0 {
		p.MACDSignal = d.MACDSignal
	}
	return p
}

// Calculator derives indicator series and trading signals from a daily
// price series. It holds no state between calls; the same input always
// yields the same output, and concurrent use is safe.
//
// A nil entry in any returned series means the value is undefined at that
// position, either because the warm-up window has not filled yet or because
// the arithmetic itself is undefined there. Callers must never see NaN.
type Calculator struct {
	params Params
}

// NewCalculator returns a Calculator using the given periods; zero or
// negative periods fall back to the defaults.
func NewCalculator(params Params) *Calculator {
	return &Calculator{params: params.normalize()}
}

// CalculateAll computes the RSI, TRIX and MACD series for the given prices
// and returns one IndicatorPoint per input bar, date-aligned position for
// position. An empty input yields an empty result. Bars must be in
// ascending date order without duplicates; that is the caller's contract
// and is not validated here.
func (c *Calculator) CalculateAll(prices []models.PricePoint) []models.IndicatorPoint {
	points := make([]models.IndicatorPoint, len(prices))
	if len(prices) == 0 {
		return points
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close.InexactFloat64()
		points[i].Date = p.Date
	}

	rsi := c.RSI(closes)
	trix, trixSignal := c.Trix(closes)
	macd, macdSignal, hist := c.MACD(closes)

	for i := range points {
		points[i].RSI = rsi[i]
		points[i].Trix = trix[i]
		points[i].TrixSignal = trixSignal[i]
		points[i].MACD = macd[i]
		points[i].MACDSignal = macdSignal[i]
		points[i].MACDHistogram = hist[i]
	}
	return points
}

// RSI computes the Wilder-smoothed relative strength index over the close
// series. Average gain and loss seed from a simple mean of the first
// RSILength one-day moves, then blend recursively with weight 1/RSILength,
// so the first defined value sits at index RSILength. A zero gain+loss
// denominator leaves the value undefined rather than forcing a number.
func (c *Calculator) RSI(closes []float64) []*float64 {
	length := c.params.RSILength
	out := make([]*float64, len(closes))
	if len(closes) <= length {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= length; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(length)
	avgLoss /= float64(length)
	out[length] = rsiValue(avgGain, avgLoss)

	for i := length + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(length-1) + gain) / float64(length)
		avgLoss = (avgLoss*float64(length-1) + loss) / float64(length)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) *float64 {
	denom := avgGain + avgLoss
	if denom == 0 {
		return nil
	}
	v := 100 * avgGain / denom
	return &v
}

// Trix computes the triple-smoothed momentum oscillator and its signal
// line. The oscillator is the one-period percentage change of
// EMA(EMA(EMA(close))) scaled by 100; the signal line is an EMA of the
// oscillator over TrixSignal periods.
func (c *Calculator) Trix(closes []float64) (trix, signal []*float64) {
	base := toOptional(closes)
	e1 := emaSeries(base, c.params.TrixLength)
	e2 := emaSeries(e1, c.params.TrixLength)
	e3 := emaSeries(e2, c.params.TrixLength)

	trix = make([]*float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if e3[i] == nil || e3[i-1] == nil || *e3[i-1] == 0 {
			continue
		}
		v := 100 * (*e3[i] - *e3[i-1]) / *e3[i-1]
		trix[i] = &v
	}
	signal = emaSeries(trix, c.params.TrixSignal)
	return trix, signal
}

// MACD computes the moving average convergence divergence line, its signal
// line and the histogram (line minus signal).
func (c *Calculator) MACD(closes []float64) (macd, signal, histogram []*float64) {
	base := toOptional(closes)
	fast := emaSeries(base, c.params.MACDFast)
	slow := emaSeries(base, c.params.MACDSlow)

	macd = make([]*float64, len(closes))
	for i := range closes {
		if fast[i] == nil || slow[i] == nil {
			continue
		}
		v := *fast[i] - *slow[i]
		macd[i] = &v
	}

	signal = emaSeries(macd, c.params.MACDSignal)

	histogram = make([]*float64, len(closes))
	for i := range closes {
		if macd[i] == nil || signal[i] == nil {
			continue
		}
		v := *macd[i] - *signal[i]
		histogram[i] = &v
	}
	return macd, signal, histogram
}
