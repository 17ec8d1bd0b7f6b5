package engine

import (
	"math"
	"testing"

	"GEFlip/internal/domain/models"
)

func approx(t *testing.T, got, want, eps float64, what string) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("%s = %v, want %v", what, got, want)
	}
}

func f64(v float64) *float64 { return &v }

func TestInterpretRSIOversold(t *testing.T) {
	c := interpretRSI(25)
	if c.Signal != models.SignalBuy {
		t.Fatalf("signal = %s, want BUY", c.Signal)
	}
	approx(t, c.Strength, 5.0/30.0, 1e-9, "strength")
}

func TestInterpretRSIOverbought(t *testing.T) {
	c := interpretRSI(80)
	if c.Signal != models.SignalSell {
		t.Fatalf("signal = %s, want SELL", c.Signal)
	}
	approx(t, c.Strength, 10.0/30.0, 1e-9, "strength")
}

func TestInterpretRSINeutralBands(t *testing.T) {
	if c := interpretRSI(50); c.Signal != models.SignalHold || c.Strength != 0.2 {
		t.Fatalf("RSI 50: got %s/%v, want HOLD/0.2", c.Signal, c.Strength)
	}
	if c := interpretRSI(40); c.Signal != models.SignalHold || c.Strength != 0.1 {
		t.Fatalf("RSI 40: got %s/%v, want HOLD/0.1", c.Signal, c.Strength)
	}
	if c := interpretRSI(60); c.Signal != models.SignalHold || c.Strength != 0.1 {
		t.Fatalf("RSI 60: got %s/%v, want HOLD/0.1", c.Signal, c.Strength)
	}
}

func TestInterpretRSIStrengthCapped(t *testing.T) {
	if c := interpretRSI(-10); c.Strength > 1 {
		t.Fatalf("strength %v exceeds 1", c.Strength)
	}
	if c := interpretRSI(150); c.Strength > 1 {
		t.Fatalf("strength %v exceeds 1", c.Strength)
	}
}

func TestInterpretMACD(t *testing.T) {
	bull := interpretMACD(MACDValue{MACD: 2, Signal: 1, Histogram: 1})
	if bull.Signal != models.SignalBuy {
		t.Fatalf("bullish MACD: got %s", bull.Signal)
	}
	approx(t, bull.Strength, 0.1, 1e-9, "bull strength")

	bear := interpretMACD(MACDValue{MACD: -3, Signal: -1, Histogram: -2})
	if bear.Signal != models.SignalSell {
		t.Fatalf("bearish MACD: got %s", bear.Signal)
	}
	approx(t, bear.Strength, 0.2, 1e-9, "bear strength")

	flat := interpretMACD(MACDValue{MACD: 1, Signal: 1, Histogram: 0.05})
	if flat.Signal != models.SignalHold || flat.Strength != 0.1 {
		t.Fatalf("flat MACD: got %s/%v", flat.Signal, flat.Strength)
	}

	big := interpretMACD(MACDValue{MACD: 100, Signal: 50, Histogram: 50})
	if big.Strength != 1 {
		t.Fatalf("strength must cap at 1, got %v", big.Strength)
	}
}

func TestInterpretBands(t *testing.T) {
	buy := interpretBands(BandsValue{Upper: 110, Lower: 90, Price: 88})
	if buy.Signal != models.SignalBuy {
		t.Fatalf("below band: got %s", buy.Signal)
	}
	approx(t, buy.Strength, 0.1+2.0/20.0, 1e-9, "buy strength")

	sell := interpretBands(BandsValue{Upper: 110, Lower: 90, Price: 110})
	if sell.Signal != models.SignalSell || sell.Strength != 0.1 {
		t.Fatalf("at upper band: got %s/%v", sell.Signal, sell.Strength)
	}

	mid := interpretBands(BandsValue{Upper: 110, Lower: 90, Price: 100})
	if mid.Signal != models.SignalHold || mid.Strength != 0.2 {
		t.Fatalf("mid band: got %s/%v", mid.Signal, mid.Strength)
	}

	collapsed := interpretBands(BandsValue{Upper: 100, Lower: 100, Price: 100})
	if collapsed.Signal != models.SignalHold || collapsed.Strength != 0.1 {
		t.Fatalf("collapsed bands: got %s/%v", collapsed.Signal, collapsed.Strength)
	}
}

func TestInterpretMomentum(t *testing.T) {
	up := interpretMomentum(40)
	if up.Signal != models.SignalBuy {
		t.Fatalf("momentum 40: got %s", up.Signal)
	}
	approx(t, up.Strength, 0.8, 1e-9, "up strength")

	down := interpretMomentum(-60)
	if down.Signal != models.SignalSell || down.Strength != 1 {
		t.Fatalf("momentum -60: got %s/%v", down.Signal, down.Strength)
	}

	building := interpretMomentum(10)
	if building.Signal != models.SignalHold || building.Strength != 0.3 {
		t.Fatalf("momentum 10: got %s/%v", building.Signal, building.Strength)
	}

	quiet := interpretMomentum(2)
	if quiet.Signal != models.SignalHold || quiet.Strength != 0.1 {
		t.Fatalf("momentum 2: got %s/%v", quiet.Signal, quiet.Strength)
	}
}

func TestInterpretVolatilityAlwaysHold(t *testing.T) {
	for _, v := range []float64{0, 15, 30, 45, 80, 200} {
		c := interpretVolatility(v)
		if c.Signal != models.SignalHold {
			t.Fatalf("volatility %v emitted %s", v, c.Signal)
		}
		if c.Strength < 0.1 || c.Strength > 0.4 {
			t.Fatalf("volatility %v strength %v out of [0.1, 0.4]", v, c.Strength)
		}
	}
	approx(t, interpretVolatility(30).Strength, 0.4, 1e-9, "calm strength")
	approx(t, interpretVolatility(50).Strength, 0.2, 1e-9, "elevated strength")
}

func TestCombineWeightConservation(t *testing.T) {
	set := IndicatorSet{
		RSI:        f64(25),
		MACD:       &MACDValue{MACD: 2, Signal: 1, Histogram: 1},
		Bands:      &BandsValue{Upper: 110, Lower: 90, Price: 88},
		Momentum:   f64(40),
		Volatility: f64(15),
	}
	sig := NewInterpreter(testConfig(t)).Generate(set)

	var want float64
	for _, c := range sig.Components {
		want += c.Weight * c.Strength
	}
	got := sig.Analysis.BuyWeight + sig.Analysis.SellWeight + sig.Analysis.HoldWeight
	approx(t, got, want, 1e-9, "weight sum")

	if sig.Type != models.SignalBuy {
		t.Fatalf("all-bullish set produced %s", sig.Type)
	}
	if sig.Confidence <= 0 || sig.Confidence > 1 {
		t.Fatalf("confidence %v out of (0,1]", sig.Confidence)
	}
	if len(sig.Components) != 5 {
		t.Fatalf("components = %d, want 5", len(sig.Components))
	}
}

func TestCombineConfidenceIsDominantShare(t *testing.T) {
	sig := combine([]models.SignalComponent{
		{Source: "rsi", Signal: models.SignalBuy, Strength: 0.5, Weight: weightRSI},
		{Source: "macd", Signal: models.SignalSell, Strength: 0.5, Weight: weightMACD},
	})
	buy := weightRSI * 0.5
	sell := weightMACD * 0.5
	approx(t, sig.Confidence, buy/(buy+sell), 1e-9, "confidence")
	if sig.Type != models.SignalBuy {
		t.Fatalf("type = %s, want BUY", sig.Type)
	}
}

func TestCombineTieGoesToHold(t *testing.T) {
	sig := combine([]models.SignalComponent{
		{Source: "a", Signal: models.SignalBuy, Strength: 0.5, Weight: 0.2},
		{Source: "b", Signal: models.SignalSell, Strength: 0.5, Weight: 0.2},
	})
	if sig.Type != models.SignalHold {
		t.Fatalf("buy/sell tie resolved to %s, want HOLD", sig.Type)
	}
}

func TestGenerateMissingIndicatorsOmitted(t *testing.T) {
	sig := NewInterpreter(testConfig(t)).Generate(IndicatorSet{RSI: f64(25)})
	if len(sig.Components) != 1 {
		t.Fatalf("components = %d, want 1", len(sig.Components))
	}
	if sig.Components[0].Source != "rsi" {
		t.Fatalf("unexpected source %q", sig.Components[0].Source)
	}
}

func TestGenerateEmptySetSafeDefault(t *testing.T) {
	sig := NewInterpreter(testConfig(t)).Generate(IndicatorSet{})
	if sig.Type != models.SignalHold {
		t.Fatalf("type = %s, want HOLD", sig.Type)
	}
	if sig.Strength != 0.1 || sig.Confidence != 0.5 {
		t.Fatalf("safe default = %v/%v, want 0.1/0.5", sig.Strength, sig.Confidence)
	}
}
