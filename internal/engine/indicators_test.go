package engine

import (
	"math"
	"testing"
)

func TestVolatilityShortSeries(t *testing.T) {
	if v := Volatility(nil); v != 0 {
		t.Fatalf("nil series volatility = %v", v)
	}
	if v := Volatility([]float64{100}); v != 0 {
		t.Fatalf("single point volatility = %v", v)
	}
}

func TestVolatilityFlatSeriesZero(t *testing.T) {
	if v := Volatility([]float64{100, 100, 100, 100}); v != 0 {
		t.Fatalf("flat series volatility = %v, want 0", v)
	}
}

func TestVolatilityKnownValue(t *testing.T) {
	// Alternating +/-10% moves: log returns oscillate around a fixed pair.
	prices := []float64{100, 110, 99, 108.9, 98.01}
	v := Volatility(prices)
	if v <= 0 || v > 100 {
		t.Fatalf("volatility %v implausible", v)
	}
	// More dispersion must raise it.
	wilder := Volatility([]float64{100, 150, 70, 160, 60})
	if wilder <= v {
		t.Fatalf("wilder series volatility %v <= %v", wilder, v)
	}
}

func TestVolatilityIgnoresBadPoints(t *testing.T) {
	v := Volatility([]float64{100, 0, 100, 100})
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.Fatalf("bad point poisoned volatility: %v", v)
	}
}

func TestLogReturnsLength(t *testing.T) {
	if r := LogReturns([]float64{1}); r != nil {
		t.Fatalf("short series returned %v", r)
	}
	r := LogReturns([]float64{100, 105, 110})
	if len(r) != 2 {
		t.Fatalf("len = %d, want 2", len(r))
	}
	approx(t, r[0], math.Log(1.05), 1e-12, "first return")
}

func TestMomentumScoreDirection(t *testing.T) {
	up := MomentumScore([]float64{1, 2, 3, 4, 5}, 10)
	if up != 100 {
		t.Fatalf("monotone rise momentum = %v, want 100", up)
	}
	down := MomentumScore([]float64{5, 4, 3, 2, 1}, 10)
	if down != -100 {
		t.Fatalf("monotone fall momentum = %v, want -100", down)
	}
	mixed := MomentumScore([]float64{1, 2, 1, 2, 1}, 10)
	if mixed < -100 || mixed > 100 {
		t.Fatalf("momentum %v out of range", mixed)
	}
	if flat := MomentumScore([]float64{3, 3, 3, 3}, 10); flat != 0 {
		t.Fatalf("flat momentum = %v, want 0", flat)
	}
}

func TestMomentumScoreWindowing(t *testing.T) {
	// Old falls outside a short window must not count.
	prices := []float64{10, 9, 8, 7, 8, 9, 10}
	got := MomentumScore(prices, 3)
	if got != 100 {
		t.Fatalf("momentum over trailing window = %v, want 100", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	prices := make([]float64, rsiPeriod+1)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	r, ok := lastRSI(prices, rsiPeriod)
	if !ok {
		t.Fatalf("rsi unavailable")
	}
	if r != 100 {
		t.Fatalf("all-gain RSI = %v, want 100", r)
	}
}

func TestRSIAllLossesNearZero(t *testing.T) {
	prices := make([]float64, rsiPeriod+1)
	for i := range prices {
		prices[i] = 200 - float64(i)
	}
	r, ok := lastRSI(prices, rsiPeriod)
	if !ok {
		t.Fatalf("rsi unavailable")
	}
	if r > 1e-9 {
		t.Fatalf("all-loss RSI = %v, want 0", r)
	}
}

func TestRSINeedsHistory(t *testing.T) {
	if _, ok := lastRSI(make([]float64, rsiPeriod), rsiPeriod); ok {
		t.Fatalf("rsi computed from insufficient history")
	}
}

func TestMACDNeedsHistory(t *testing.T) {
	if _, ok := lastMACD(make([]float64, macdSlow+macdSignal-1)); ok {
		t.Fatalf("macd computed from insufficient history")
	}
	prices := make([]float64, macdSlow+macdSignal)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	m, ok := lastMACD(prices)
	if !ok {
		t.Fatalf("macd unavailable with %d points", len(prices))
	}
	// Steady rise keeps the fast EMA above the slow one.
	if m.MACD <= 0 {
		t.Fatalf("rising series MACD = %v, want > 0", m.MACD)
	}
}

func TestBandsContainFlatSeries(t *testing.T) {
	prices := make([]float64, bandsPeriod)
	for i := range prices {
		prices[i] = 100
	}
	b, ok := lastBands(prices, bandsPeriod, bandsMult, 100)
	if !ok {
		t.Fatalf("bands unavailable")
	}
	if b.Upper != 100 || b.Lower != 100 {
		t.Fatalf("flat series bands = %v/%v, want 100/100", b.Upper, b.Lower)
	}
	if b.Price != 100 {
		t.Fatalf("band price = %v", b.Price)
	}
}

func TestBandsWidenWithDispersion(t *testing.T) {
	calm := make([]float64, bandsPeriod)
	wild := make([]float64, bandsPeriod)
	for i := range calm {
		calm[i] = 100 + float64(i%2)
		wild[i] = 100 + 10*float64(i%2)
	}
	cb, _ := lastBands(calm, bandsPeriod, bandsMult, 100)
	wb, _ := lastBands(wild, bandsPeriod, bandsMult, 100)
	if wb.Upper-wb.Lower <= cb.Upper-cb.Lower {
		t.Fatalf("dispersion did not widen bands: %v vs %v", wb.Upper-wb.Lower, cb.Upper-cb.Lower)
	}
}

func TestComputeIndicatorsOmission(t *testing.T) {
	short := ComputeIndicators([]float64{100, 101, 102}, 102, 10)
	if short.RSI != nil || short.MACD != nil || short.Bands != nil {
		t.Fatalf("short series must omit rsi/macd/bands: %+v", short)
	}
	if short.Momentum == nil || short.Volatility == nil {
		t.Fatalf("momentum and volatility available from 2 points")
	}

	if set := ComputeIndicators([]float64{100}, 100, 10); set.Momentum != nil || set.Volatility != nil {
		t.Fatalf("single point must omit everything: %+v", set)
	}

	long := make([]float64, macdSlow+macdSignal+5)
	for i := range long {
		long[i] = 100 + math.Sin(float64(i))*5
	}
	full := ComputeIndicators(long, long[len(long)-1], 10)
	if full.RSI == nil || full.MACD == nil || full.Bands == nil || full.Momentum == nil || full.Volatility == nil {
		t.Fatalf("full history must populate all indicators: %+v", full)
	}
}

func TestClamp(t *testing.T) {
	if clamp(-1, 0, 10) != 0 || clamp(11, 0, 10) != 10 || clamp(5, 0, 10) != 5 {
		t.Fatalf("clamp misbehaves")
	}
}
