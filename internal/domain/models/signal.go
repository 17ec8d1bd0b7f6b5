package models

// SignalType is a directional trading call.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// SignalComponent is one indicator's contribution to the consensus.
// Constructed and consumed within a single analysis call.
type SignalComponent struct {
	Source         string     `json:"source"` // "rsi", "macd", "bands", "momentum", "volatility"
	Signal         SignalType `json:"signal"`
	Strength       float64    `json:"strength"` // [0,1]
	Weight         float64    `json:"weight"`   // [0,1]
	Interpretation string     `json:"interpretation"`
}

// SignalAnalysis carries the weighted sums behind a consensus signal.
type SignalAnalysis struct {
	BuyWeight      float64 `json:"buy_weight"`
	SellWeight     float64 `json:"sell_weight"`
	HoldWeight     float64 `json:"hold_weight"`
	Interpretation string  `json:"interpretation"`
}

// MarketSignal is the weighted consensus over all present components.
type MarketSignal struct {
	Type       SignalType        `json:"type"`
	Strength   float64           `json:"strength"`   // [0,1]
	Confidence float64           `json:"confidence"` // [0,1]
	Components []SignalComponent `json:"components"`
	Analysis   SignalAnalysis    `json:"analysis"`
}
