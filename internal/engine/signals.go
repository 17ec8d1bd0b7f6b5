package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"GEFlip/internal/domain/models"
)

// Interpreter maps indicator values to a weighted consensus MarketSignal.
type Interpreter struct {
	cfg Config
}

func NewInterpreter(cfg Config) *Interpreter {
	return &Interpreter{cfg: cfg}
}

// safeDefaultSignal is what callers receive when signal generation hits an
// unexpected internal error. Structurally valid, directionally neutral.
func safeDefaultSignal() models.MarketSignal {
	return models.MarketSignal{
		Type:       models.SignalHold,
		Strength:   0.1,
		Confidence: 0.5,
		Analysis:   models.SignalAnalysis{Interpretation: "insufficient data, defaulting to hold"},
	}
}

// Generate builds the consensus signal for one indicator set. Missing
// indicators are omitted from aggregation. Any internal defect is caught at
// this boundary and converted to the safe default so callers always receive
// a structurally valid signal.
func (it *Interpreter) Generate(set IndicatorSet) (sig models.MarketSignal) {
	defer func() {
		if r := recover(); r != nil {
			sig = safeDefaultSignal()
		}
	}()

	components := make([]models.SignalComponent, 0, 5)
	if set.RSI != nil {
		components = append(components, interpretRSI(*set.RSI))
	}
	if set.MACD != nil {
		components = append(components, interpretMACD(*set.MACD))
	}
	if set.Bands != nil {
		components = append(components, interpretBands(*set.Bands))
	}
	if set.Momentum != nil {
		components = append(components, interpretMomentum(*set.Momentum))
	}
	if set.Volatility != nil {
		components = append(components, interpretVolatility(*set.Volatility))
	}
	return combine(components)
}

// interpretRSI: oversold below 30 is a buy, overbought above 70 a sell,
// the 45..55 dead zone a firm hold.
func interpretRSI(r float64) models.SignalComponent {
	c := models.SignalComponent{Source: "rsi", Weight: weightRSI}
	switch {
	case r < 30:
		c.Signal = models.SignalBuy
		c.Strength = clamp((30-r)/30, 0, 1)
		c.Interpretation = fmt.Sprintf("RSI %.1f oversold", r)
	case r > 70:
		c.Signal = models.SignalSell
		c.Strength = clamp((r-70)/30, 0, 1)
		c.Interpretation = fmt.Sprintf("RSI %.1f overbought", r)
	case r >= 45 && r <= 55:
		c.Signal = models.SignalHold
		c.Strength = 0.2
		c.Interpretation = fmt.Sprintf("RSI %.1f neutral", r)
	default:
		c.Signal = models.SignalHold
		c.Strength = 0.1
		c.Interpretation = fmt.Sprintf("RSI %.1f leaning but inconclusive", r)
	}
	return c
}

func interpretMACD(m MACDValue) models.SignalComponent {
	c := models.SignalComponent{Source: "macd", Weight: weightMACD}
	absHist := math.Abs(m.Histogram)
	switch {
	case m.MACD > m.Signal && m.Histogram > 0:
		c.Signal = models.SignalBuy
		c.Strength = math.Min(1, absHist/10)
		c.Interpretation = "MACD above signal line, positive histogram"
	case m.MACD < m.Signal && m.Histogram < 0:
		c.Signal = models.SignalSell
		c.Strength = math.Min(1, absHist/10)
		c.Interpretation = "MACD below signal line, negative histogram"
	case absHist < 0.1:
		c.Signal = models.SignalHold
		c.Strength = 0.1
		c.Interpretation = "MACD flat"
	default:
		c.Signal = models.SignalHold
		c.Strength = 0.2
		c.Interpretation = "MACD crossing without confirmation"
	}
	return c
}

func interpretBands(b BandsValue) models.SignalComponent {
	c := models.SignalComponent{Source: "bands", Weight: weightBands}
	width := b.Upper - b.Lower
	if width <= 0 {
		c.Signal = models.SignalHold
		c.Strength = 0.1
		c.Interpretation = "bands collapsed"
		return c
	}
	switch {
	case b.Price <= b.Lower:
		c.Signal = models.SignalBuy
		c.Strength = clamp(0.1+(b.Lower-b.Price)/width, 0.1, 1)
		c.Interpretation = "price at or below lower band"
	case b.Price >= b.Upper:
		c.Signal = models.SignalSell
		c.Strength = clamp(0.1+(b.Price-b.Upper)/width, 0.1, 1)
		c.Interpretation = "price at or above upper band"
	default:
		pctB := (b.Price - b.Lower) / width
		if pctB >= 0.4 && pctB <= 0.6 {
			c.Signal = models.SignalHold
			c.Strength = 0.2
			c.Interpretation = "price mid-band"
		} else {
			c.Signal = models.SignalHold
			c.Strength = 0.1
			c.Interpretation = "price inside bands"
		}
	}
	return c
}

func interpretMomentum(m float64) models.SignalComponent {
	c := models.SignalComponent{Source: "momentum", Weight: weightMomentum}
	abs := math.Abs(m)
	switch {
	case m > 20:
		c.Signal = models.SignalBuy
		c.Strength = math.Min(1, m/50)
		c.Interpretation = fmt.Sprintf("momentum %.0f trending up", m)
	case m < -20:
		c.Signal = models.SignalSell
		c.Strength = math.Min(1, -m/50)
		c.Interpretation = fmt.Sprintf("momentum %.0f trending down", m)
	case abs > 5:
		c.Signal = models.SignalHold
		c.Strength = 0.3
		c.Interpretation = "momentum building, not confirmed"
	default:
		c.Signal = models.SignalHold
		c.Strength = 0.1
		c.Interpretation = "no meaningful momentum"
	}
	return c
}

// interpretVolatility always resolves to HOLD: it tempers the consensus as
// volatility rises past 30 without ever emitting a directional call.
func interpretVolatility(v float64) models.SignalComponent {
	c := models.SignalComponent{Source: "volatility", Weight: weightVolatility, Signal: models.SignalHold}
	if v <= 30 {
		c.Strength = 0.4
		c.Interpretation = fmt.Sprintf("volatility %.1f acceptable", v)
	} else {
		c.Strength = math.Max(0.1, 0.4-(v-30)/100)
		c.Interpretation = fmt.Sprintf("volatility %.1f elevated, caution", v)
	}
	return c
}

// combine aggregates components into the weighted consensus. The dominant
// signal is the argmax of the grouped weighted sums with HOLD winning any
// tie; confidence is the dominant share of the total.
func combine(components []models.SignalComponent) models.MarketSignal {
	if len(components) == 0 {
		return safeDefaultSignal()
	}

	var buyW, sellW, holdW, totalWeight float64
	for _, c := range components {
		w := c.Weight * c.Strength
		switch c.Signal {
		case models.SignalBuy:
			buyW += w
		case models.SignalSell:
			sellW += w
		default:
			holdW += w
		}
		totalWeight += c.Weight
	}

	dominant := models.SignalHold
	domW := holdW
	if buyW > domW && buyW > sellW {
		dominant = models.SignalBuy
		domW = buyW
	} else if sellW > domW && sellW > buyW {
		dominant = models.SignalSell
		domW = sellW
	}

	sum := buyW + sellW + holdW
	conf := 0.0
	if sum > 0 {
		conf = math.Max(buyW, math.Max(sellW, holdW)) / sum
	}
	strength := 0.0
	if totalWeight > 0 {
		strength = clamp(domW/totalWeight, 0, 1)
	}

	return models.MarketSignal{
		Type:       dominant,
		Strength:   strength,
		Confidence: conf,
		Components: components,
		Analysis: models.SignalAnalysis{
			BuyWeight:      buyW,
			SellWeight:     sellW,
			HoldWeight:     holdW,
			Interpretation: describeConsensus(dominant, components),
		},
	}
}

func describeConsensus(dominant models.SignalType, components []models.SignalComponent) string {
	var supporting, conflicting []string
	for _, c := range components {
		if c.Signal == dominant {
			supporting = append(supporting, c.Source)
		} else {
			conflicting = append(conflicting, c.Source)
		}
	}
	sort.Strings(supporting)
	sort.Strings(conflicting)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s consensus", strings.ToLower(string(dominant)))
	if len(supporting) > 0 {
		fmt.Fprintf(&sb, ", supported by %s", strings.Join(supporting, ", "))
	}
	if len(conflicting) > 0 {
		fmt.Fprintf(&sb, "; conflicting: %s", strings.Join(conflicting, ", "))
	}
	return sb.String()
}
