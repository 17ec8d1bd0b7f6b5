package engine

import (
	"math"
	"time"

	"GEFlip/internal/domain/models"
)

// Normalizer turns raw market snapshots into bounded MetricsBundles. It is
// a pure function over its inputs; calling it twice with identical
// arguments yields identical bundles.
type Normalizer struct {
	cfg Config
}

func NewNormalizer(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Data quality labels.
const (
	QualityFull    = "full"
	QualityPartial = "partial"
	QualityInvalid = "invalid"
)

// minFullHistory is the history length below which a bundle is flagged
// partial.
const minFullHistory = 10

// Normalize derives a MetricsBundle from one snapshot plus its historical
// price series (oldest-first, may be empty). A malformed snapshot yields a
// zeroed bundle with Confidence 0 rather than an error, so a single bad
// item cannot interrupt a batch.
func (n *Normalizer) Normalize(s models.MarketSnapshot, history []float64) models.MetricsBundle {
	b := models.MetricsBundle{ItemID: s.ItemID}

	if s.HighPrice <= 0 || s.LowPrice <= 0 {
		b.DataQuality = QualityInvalid
		return b
	}

	b.Volatility = Volatility(history)
	b.MomentumScore = MomentumScore(history, n.cfg.MomentumWindow)
	b.VolumeScore = volumeScore(s.Volume)
	b.Velocity = n.velocity(s)

	if s.LowPrice <= s.HighPrice {
		b.GrossProfitGp = s.HighPrice - s.LowPrice
		b.GrossProfitPercent = b.GrossProfitGp / s.LowPrice * 100

		b.GeTaxAmount = n.geTax(s.HighPrice)
		b.IsTaxFree = b.GeTaxAmount == 0
		netSell := s.HighPrice - b.GeTaxAmount
		b.MarginGp = netSell - s.LowPrice
		b.MarginPercent = b.MarginGp / s.LowPrice * 100
	} else {
		// Inverted quote: margin-dependent fields stay zero.
		b.IsTaxFree = s.HighPrice <= n.cfg.TaxThreshold
	}

	b.RiskScore = riskScore(b.Volatility, b.GrossProfitPercent, b.VolumeScore)
	b.ExpectedProfitPerHour = expectedProfitPerHour(b.MarginGp, s.Volume, b.Velocity)

	if len(history) >= minFullHistory {
		b.DataQuality = QualityFull
	} else {
		b.DataQuality = QualityPartial
	}
	b.Confidence = confidence(len(history), s.Volume)
	return b
}

func (n *Normalizer) geTax(sellPrice float64) float64 {
	if sellPrice <= n.cfg.TaxThreshold {
		return 0
	}
	return math.Floor(sellPrice * n.cfg.TaxRate)
}

// velocity estimates flip turnaround speed from traded volume and snapshot
// freshness. Bounded to [0, 10].
func (n *Normalizer) velocity(s models.MarketSnapshot) float64 {
	fresh := freshness(s.Timestamp)
	return clamp(volumeScore(s.Volume)/100*fresh*10, 0, 10)
}

// freshness decays from 1 toward 0.1 as the snapshot ages over a day.
func freshness(ts int64) float64 {
	if ts <= 0 {
		return 0.1
	}
	age := time.Since(time.Unix(ts, 0))
	if age <= 10*time.Minute {
		return 1
	}
	return clamp(1-age.Hours()/24, 0.1, 1)
}

// volumeScore maps traded volume onto [0,100] on a log scale; 100k+ daily
// volume saturates the scale.
func volumeScore(volume float64) float64 {
	if volume <= 0 {
		return 0
	}
	return clamp(math.Log(volume+1)/math.Log(100001)*100, 0, 100)
}

// riskScore combines volatility, spread-relative-to-price and volume
// scarcity. Each term is monotone: more volatility, wider spreads or
// thinner volume never lower the score. Result clamps to [0,100].
func riskScore(volatility, spreadPercent, volScore float64) float64 {
	volComponent := clamp(volatility*2, 0, 100)
	spreadComponent := clamp(spreadPercent, 0, 100)
	scarcityComponent := 100 - volScore
	return clamp(0.4*volComponent+0.3*spreadComponent+0.3*scarcityComponent, 0, 100)
}

// expectedProfitPerHour is marginGp times the estimated flips per hour.
// Zero whenever the margin is non-positive, and never negative.
func expectedProfitPerHour(marginGp, volume, velocity float64) float64 {
	if marginGp <= 0 {
		return 0
	}
	minutes := timeToFlipMinutes(volume, velocity)
	flipsPerHour := 60 / minutes
	return marginGp * flipsPerHour
}

// timeToFlipMinutes estimates one buy-then-sell round trip, clamped to
// [5, 120] minutes. Zero activity pins the estimate at the 120m ceiling.
func timeToFlipMinutes(volume, velocity float64) float64 {
	arg := volume*velocity/100 + 1
	ln := math.Log(arg)
	if ln <= 0 {
		return 120
	}
	return clamp(60/ln, 5, 120)
}

func confidence(historyLen int, volume float64) float64 {
	h := math.Min(1, float64(historyLen)/50)
	v := math.Min(1, volume/1000)
	return clamp(0.3+0.5*h+0.2*v, 0, 1)
}
