package models

// MarketSnapshot is one observation of an item's Grand Exchange state.
// Immutable once produced by the collector.
type MarketSnapshot struct {
	ItemID    int     `json:"item_id"`
	ItemName  string  `json:"item_name,omitempty"`
	Timestamp int64   `json:"ts"` // epoch seconds
	HighPrice float64 `json:"high"`
	LowPrice  float64 `json:"low"`
	Volume    float64 `json:"volume"`
}

// PricePoint is one element of an item's historical price series.
type PricePoint struct {
	Timestamp int64   `json:"ts"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
}
