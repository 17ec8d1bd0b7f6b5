package models

import "time"

// RiskLevel classifies an opportunity's risk bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// FlippingOpportunity is a candidate buy-low/sell-high trade surfaced when
// the tax-adjusted margin clears the configured minimum. Never persisted by
// the engine itself.
type FlippingOpportunity struct {
	ItemID   int    `json:"item_id"`
	ItemName string `json:"item_name,omitempty"`

	BuyPrice        float64 `json:"buy_price"`
	SellPrice       float64 `json:"sell_price"`
	GrossProfitGp   float64 `json:"gross_profit_gp"`
	NetProfitGp     float64 `json:"net_profit_gp"`
	MarginPercent   float64 `json:"margin_percent"`
	GeTaxAmount     float64 `json:"ge_tax_amount"`
	ExpectedPerHour float64 `json:"expected_profit_per_hour"`

	RiskLevel  RiskLevel     `json:"risk_level"`
	RiskScore  float64       `json:"risk_score"`
	TimeToFlip time.Duration `json:"time_to_flip"` // estimated round trip
	Signal     MarketSignal  `json:"signal"`
	Tags       []string      `json:"tags"`

	DetectedAt time.Time `json:"detected_at"`
}

// ItemScore ranks an item for collection prioritization.
type ItemScore struct {
	ItemID int     `json:"item_id"`
	Score  float64 `json:"score"`
}
