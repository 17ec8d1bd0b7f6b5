package models

import "time"

// Position is an open holding tracked by the risk engine. It is opened
// externally when a trade executes and closed externally when a stop-loss
// or take-profit action is acted upon; the engine only recommends.
type Position struct {
	ID              string    `json:"id"`
	ItemID          int       `json:"item_id"`
	ItemName        string    `json:"item_name,omitempty"`
	CapitalInvested float64   `json:"capital_invested"`
	EntryPrice      float64   `json:"entry_price"`
	EntryTime       time.Time `json:"entry_time"`

	// Refreshed each risk tick from market data.
	CurrentPrice      float64       `json:"current_price"`
	CurrentVolatility float64       `json:"current_volatility"`
	UnrealizedPnL     float64       `json:"unrealized_pnl"`
	HoldingTime       time.Duration `json:"holding_time"`
}

// StopLossOrder guards one position. StopPrice only ever ratchets upward.
// Once Triggered the order is terminal: it never re-fires and never trails
// again, even if the price recovers before the position is closed.
type StopLossOrder struct {
	PositionID      string    `json:"position_id"`
	StopPrice       float64   `json:"stop_price"`
	TrailingEnabled bool      `json:"trailing_enabled"`
	Triggered       bool      `json:"triggered,omitempty"`
	TriggeredAt     time.Time `json:"triggered_at,omitempty"`
	LastUpdate      time.Time `json:"last_update"`
}

// RiskUrgency grades how quickly an action should be taken.
type RiskUrgency string

const (
	UrgencyHigh   RiskUrgency = "HIGH"
	UrgencyMedium RiskUrgency = "MEDIUM"
	UrgencyLow    RiskUrgency = "LOW"
)

// Risk action kinds emitted by the engine.
const (
	ActionStopLossTriggered  = "STOP_LOSS_TRIGGERED"
	ActionTrailingStopUpdate = "TRAILING_STOP_UPDATE"
	ActionReducePosition     = "REDUCE_POSITION"
)

// RiskAction is a recommendation emitted during a risk cycle.
type RiskAction struct {
	Type       string      `json:"type"`
	PositionID string      `json:"position_id"`
	ItemID     int         `json:"item_id"`
	Urgency    RiskUrgency `json:"urgency"`
	Price      float64     `json:"price,omitempty"`
	StopPrice  float64     `json:"stop_price,omitempty"`
	Reason     string      `json:"reason"`
	Timestamp  time.Time   `json:"ts"`
}

// PositionRisk holds the per-position risk decomposition.
type PositionRisk struct {
	PositionID         string  `json:"position_id"`
	ItemID             int     `json:"item_id"`
	Weight             float64 `json:"weight"` // share of portfolio capital
	SizeRisk           float64 `json:"size_risk"`
	VolatilityRisk     float64 `json:"volatility_risk"`
	HoldingTimeRisk    float64 `json:"holding_time_risk"`
	UnrealizedLossRisk float64 `json:"unrealized_loss_risk"`
	TotalRisk          float64 `json:"total_risk"`
	Stale              bool    `json:"stale,omitempty"` // market data missing this cycle
}

// PortfolioRiskMetrics aggregates all open positions. Recomputed fully on
// every risk cycle; never incrementally maintained.
type PortfolioRiskMetrics struct {
	Timestamp         time.Time      `json:"ts"`
	TotalRisk         float64        `json:"total_risk"`
	ConcentrationRisk float64        `json:"concentration_risk"`
	CorrelationRisk   float64        `json:"correlation_risk"`
	LiquidityRisk     float64        `json:"liquidity_risk"`
	MarketRisk        float64        `json:"market_risk"`
	VolatilityRisk    float64        `json:"volatility_risk"`
	PositionRisks     []PositionRisk `json:"position_risks"`
	RiskScore         float64        `json:"risk_score"` // [0,100]
	Alerts            []string       `json:"alerts,omitempty"`
}

// PortfolioAssessment is the full output of one risk cycle.
type PortfolioAssessment struct {
	Metrics         PortfolioRiskMetrics `json:"metrics"`
	Actions         []RiskAction         `json:"actions"`
	Recommendations []string             `json:"recommendations,omitempty"`
}
