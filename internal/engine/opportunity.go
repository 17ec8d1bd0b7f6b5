package engine

import (
	"time"

	"GEFlip/internal/domain/models"
)

// Ranker decides whether a metrics/signal pair constitutes a tradable
// opportunity and scores items for collection prioritization.
type Ranker struct {
	cfg Config
}

func NewRanker(cfg Config) *Ranker {
	return &Ranker{cfg: cfg}
}

// IdentifyOpportunity returns nil unless the tax-adjusted margin clears the
// configured minimum and the price data is valid.
func (r *Ranker) IdentifyOpportunity(s models.MarketSnapshot, b models.MetricsBundle, sig models.MarketSignal) *models.FlippingOpportunity {
	return r.IdentifyOpportunityMin(s, b, sig, r.cfg.MinProfitMargin)
}

// IdentifyOpportunityMin is IdentifyOpportunity with a caller-supplied
// margin floor (the HTTP layer lets clients raise it per request).
func (r *Ranker) IdentifyOpportunityMin(s models.MarketSnapshot, b models.MetricsBundle, sig models.MarketSignal, minMargin float64) *models.FlippingOpportunity {
	if !b.Valid() || s.LowPrice <= 0 || s.HighPrice < s.LowPrice {
		return nil
	}
	if b.MarginPercent < minMargin {
		return nil
	}

	op := &models.FlippingOpportunity{
		ItemID:          s.ItemID,
		ItemName:        s.ItemName,
		BuyPrice:        s.LowPrice,
		SellPrice:       s.HighPrice,
		GrossProfitGp:   b.GrossProfitGp,
		NetProfitGp:     b.MarginGp,
		MarginPercent:   b.MarginPercent,
		GeTaxAmount:     b.GeTaxAmount,
		ExpectedPerHour: b.ExpectedProfitPerHour,
		RiskScore:       b.RiskScore,
		RiskLevel:       riskLevel(b.RiskScore),
		TimeToFlip:      time.Duration(timeToFlipMinutes(s.Volume, b.Velocity) * float64(time.Minute)),
		Signal:          sig,
		Tags:            opportunityTags(s, b),
		DetectedAt:      time.Now(),
	}
	return op
}

func riskLevel(score float64) models.RiskLevel {
	switch {
	case score > 70:
		return models.RiskHigh
	case score > 40:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// opportunityTags applies the fixed tag rules. Each rule is independent and
// order-insensitive.
func opportunityTags(s models.MarketSnapshot, b models.MetricsBundle) []string {
	tags := make([]string, 0, 6)
	if b.MarginPercent >= 20 {
		tags = append(tags, "high_profit")
	} else if b.MarginPercent >= 10 {
		tags = append(tags, "solid_profit")
	}
	if b.IsTaxFree {
		tags = append(tags, "tax_free")
	}
	if s.Volume >= 1000 {
		tags = append(tags, "high_volume")
	} else if s.Volume < 50 {
		tags = append(tags, "low_volume")
	}
	if b.Volatility > 30 {
		tags = append(tags, "volatile")
	} else if b.Volatility < 10 {
		tags = append(tags, "stable")
	}
	if b.RiskScore <= 40 {
		tags = append(tags, "low_risk")
	}
	if b.Velocity >= 5 {
		tags = append(tags, "fast_flip")
	}
	return tags
}

// ScoreItem ranks an item for collection prioritization: a weighted
// composite of margin, volume, price stability and snapshot freshness.
func (r *Ranker) ScoreItem(s models.MarketSnapshot, b models.MetricsBundle) models.ItemScore {
	if !b.Valid() {
		return models.ItemScore{ItemID: s.ItemID}
	}
	margin := clamp(b.MarginPercent*5, 0, 100) // 20% margin saturates
	stability := 100 - clamp(b.Volatility*2, 0, 100)
	fresh := freshness(s.Timestamp) * 100
	score := scoreWeightMargin*margin +
		scoreWeightVolume*b.VolumeScore +
		scoreWeightStability*stability +
		scoreWeightFreshness*fresh
	return models.ItemScore{ItemID: s.ItemID, Score: clamp(score, 0, 100)}
}
