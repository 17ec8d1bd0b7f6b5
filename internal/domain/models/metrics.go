package models

// MetricsBundle holds derived indicators for one (snapshot, history) pair.
// All percentage/score fields are clamped into their documented ranges by
// the normalizer; consumers can rely on the bounds without re-checking.
type MetricsBundle struct {
	ItemID int `json:"item_id"`

	GrossProfitGp      float64 `json:"gross_profit_gp"`
	GrossProfitPercent float64 `json:"gross_profit_percent"`
	GeTaxAmount        float64 `json:"ge_tax_amount"`
	IsTaxFree          bool    `json:"is_tax_free"`
	MarginGp           float64 `json:"margin_gp"`
	MarginPercent      float64 `json:"margin_percent"`

	Volatility           float64 `json:"volatility"`
	Velocity             float64 `json:"velocity"`
	MomentumScore        float64 `json:"momentum_score"` // [-100,100]
	RiskScore            float64 `json:"risk_score"`     // [0,100]
	ExpectedProfitPerHour float64 `json:"expected_profit_per_hour"`
	VolumeScore          float64 `json:"volume_score"` // [0,100]

	Confidence  float64 `json:"confidence"`   // [0,1]
	DataQuality string  `json:"data_quality"` // "full", "partial", "invalid"
}

// Valid reports whether the bundle came from a well-formed snapshot.
func (b MetricsBundle) Valid() bool { return b.DataQuality != "invalid" }
