package engine

import "math"

// Technical indicators computed over an item's historical price series
// (oldest-first). These are heuristic inputs for the signal interpreter,
// not literal market-standard implementations: windows are tuned for the
// Grand Exchange's snapshot cadence.

const (
	rsiPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	bandsPeriod    = 20
	bandsMult      = 2.0
)

// MACDValue holds the last MACD line, signal line and histogram values.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// BandsValue holds the last Bollinger band levels plus the current price.
type BandsValue struct {
	Upper float64
	Lower float64
	Price float64
}

// IndicatorSet groups the per-item indicator values. Nil fields mean the
// history was too short to compute that indicator; the interpreter omits
// them rather than guessing.
type IndicatorSet struct {
	RSI        *float64
	MACD       *MACDValue
	Bands      *BandsValue
	Momentum   *float64
	Volatility *float64
}

// ComputeIndicators derives the full indicator set from a price series and
// the current price. Short histories yield a partially-populated set.
func ComputeIndicators(prices []float64, currentPrice float64, momentumWindow int) IndicatorSet {
	var set IndicatorSet
	if r, ok := lastRSI(prices, rsiPeriod); ok {
		set.RSI = &r
	}
	if m, ok := lastMACD(prices); ok {
		set.MACD = &m
	}
	if b, ok := lastBands(prices, bandsPeriod, bandsMult, currentPrice); ok {
		set.Bands = &b
	}
	if len(prices) >= 2 {
		m := MomentumScore(prices, momentumWindow)
		set.Momentum = &m
		v := Volatility(prices)
		set.Volatility = &v
	}
	return set
}

// LogReturns computes r_t = ln(P_t / P_{t-1}) over the series. Zero or
// negative prices contribute a zero return so one bad point cannot poison
// the series.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// Volatility is the standard deviation of log returns scaled by 100.
// Returns 0 when fewer than 2 historical points exist.
func Volatility(prices []float64) float64 {
	rets := LogReturns(prices)
	if len(rets) < 1 {
		return 0
	}
	var sum, sum2 float64
	for _, r := range rets {
		sum += r
		sum2 += r * r
	}
	n := float64(len(rets))
	mean := sum / n
	variance := sum2/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance) * 100
}

// MomentumScore counts consecutive up-moves minus down-moves over the
// trailing window and normalizes the net into [-100, 100].
func MomentumScore(prices []float64, window int) float64 {
	if window < 2 {
		window = 2
	}
	if len(prices) < 2 {
		return 0
	}
	start := len(prices) - window
	if start < 1 {
		start = 1
	}
	net := 0
	moves := 0
	for i := start; i < len(prices); i++ {
		switch {
		case prices[i] > prices[i-1]:
			net++
		case prices[i] < prices[i-1]:
			net--
		}
		moves++
	}
	if moves == 0 {
		return 0
	}
	return clamp(float64(net)/float64(moves)*100, -100, 100)
}

func lastRSI(prices []float64, period int) (float64, bool) {
	if len(prices) < period+1 {
		return 0, false
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remainder of the series.
	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

func lastMACD(prices []float64) (MACDValue, bool) {
	if len(prices) < macdSlow+macdSignal {
		return MACDValue{}, false
	}
	fast := ema(prices, macdFast)
	slow := ema(prices, macdSlow)
	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fast[i] - slow[i]
	}
	sig := ema(line[macdSlow-1:], macdSignal)
	m := line[len(line)-1]
	s := sig[len(sig)-1]
	return MACDValue{MACD: m, Signal: s, Histogram: m - s}, true
}

func lastBands(prices []float64, period int, mult, currentPrice float64) (BandsValue, bool) {
	if len(prices) < period {
		return BandsValue{}, false
	}
	window := prices[len(prices)-period:]
	var sum float64
	for _, p := range window {
		sum += p
	}
	ma := sum / float64(period)
	var sq float64
	for _, p := range window {
		d := p - ma
		sq += d * d
	}
	sd := math.Sqrt(sq / float64(period))
	price := currentPrice
	if price <= 0 {
		price = window[len(window)-1]
	}
	return BandsValue{Upper: ma + mult*sd, Lower: ma - mult*sd, Price: price}, true
}

func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
