package indicators

import (
	"fmt"
	"math"

	"github.com/krxlab/stock-insight/internal/models"
)

// RSI zone thresholds
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// GenerateSignals inspects the last two indicator points and returns at
// most one signal per indicator family, appended in RSI, TRIX, MACD order.
// Fewer than two points yields no signals. The families are independent: a
// missing value in one never suppresses the others. Within a family the
// rules run in a fixed order and the first match wins, so a signal-line
// cross outranks a zero-line cross that happens on the same bar.
func (c *Calculator) GenerateSignals(points []models.IndicatorPoint) []models.Signal {
	signals := []models.Signal{}
	if len(points) < 2 {
		return signals
	}

	cur := points[len(points)-1]
	prev := points[len(points)-2]

	if cur.RSI != nil {
		if s := rsiSignal(*cur.RSI, prev.RSI); s != nil {
			signals = append(signals, *s)
		}
	}
	if cur.Trix != nil && cur.TrixSignal != nil {
		if s := crossSignal(models.IndicatorTrix, *cur.Trix, *cur.TrixSignal, prev.Trix, prev.TrixSignal, trixStrength); s != nil {
			signals = append(signals, *s)
		}
	}
	if cur.MACD != nil && cur.MACDSignal != nil {
		if s := crossSignal(models.IndicatorMACD, *cur.MACD, *cur.MACDSignal, prev.MACD, prev.MACDSignal, macdStrength); s != nil {
			signals = append(signals, *s)
		}
	}
	return signals
}

func rsiSignal(cur float64, prev *float64) *models.Signal {
	if cur < rsiOversold {
		return &models.Signal{
			Indicator: models.IndicatorRSI,
			Type:      models.SignalBuy,
			Reason:    fmt.Sprintf("RSI %.1f - entered oversold zone", cur),
			Strength:  min(5, int((rsiOversold-cur)/6)+1),
		}
	}
	if cur > rsiOverbought {
		return &models.Signal{
			Indicator: models.IndicatorRSI,
			Type:      models.SignalSell,
			Reason:    fmt.Sprintf("RSI %.1f - entered overbought zone", cur),
			Strength:  min(5, int((cur-rsiOverbought)/6)+1),
		}
	}
	if prev == nil {
		return nil
	}
	if *prev < rsiOversold && cur >= rsiOversold {
		return &models.Signal{
			Indicator: models.IndicatorRSI,
			Type:      models.SignalBuy,
			Reason:    fmt.Sprintf("RSI %.1f - left oversold zone", cur),
			Strength:  2,
		}
	}
	if *prev > rsiOverbought && cur <= rsiOverbought {
		return &models.Signal{
			Indicator: models.IndicatorRSI,
			Type:      models.SignalSell,
			Reason:    fmt.Sprintf("RSI %.1f - left overbought zone", cur),
			Strength:  2,
		}
	}
	return nil
}

// strengthFunc grades a cross by the gap between value and signal line
type strengthFunc func(gap float64) int

func trixStrength(gap float64) int {
	return min(5, int(gap*10)+2)
}

func macdStrength(gap float64) int {
	return min(5, int(gap/100)+2)
}

func crossSignal(indicator string, cur, curSig float64, prev, prevSig *float64, strength strengthFunc) *models.Signal {
	if prev == nil || prevSig == nil {
		return nil
	}
	p, ps := *prev, *prevSig

	if p <= ps && cur > curSig {
		return &models.Signal{
			Indicator: indicator,
			Type:      models.SignalBuy,
			Reason:    fmt.Sprintf("%s golden cross - broke above signal line", indicator),
			Strength:  strength(math.Abs(cur - curSig)),
		}
	}
	if p >= ps && cur < curSig {
		return &models.Signal{
			Indicator: indicator,
			Type:      models.SignalSell,
			Reason:    fmt.Sprintf("%s dead cross - broke below signal line", indicator),
			Strength:  strength(math.Abs(cur - curSig)),
		}
	}
	if p <= 0 && cur > 0 {
		return &models.Signal{
			Indicator: indicator,
			Type:      models.SignalBuy,
			Reason:    fmt.Sprintf("%s crossed above zero line", indicator),
			Strength:  2,
		}
	}
	if p >= 0 && cur < 0 {
		return &models.Signal{
			Indicator: indicator,
			Type:      models.SignalSell,
			Reason:    fmt.Sprintf("%s crossed below zero line", indicator),
			Strength:  2,
		}
	}
	return nil
}
