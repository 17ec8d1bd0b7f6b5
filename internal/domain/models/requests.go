package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type AnalysisRequest struct {
	ItemID int `query:"item_id" json:"item_id" validate:"required,gt=0"`
	N      int `query:"n" json:"n" default:"300" validate:"gte=2,lte=5000"`
}

type OpportunitiesRequest struct {
	Limit     int     `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
	MinMargin float64 `query:"min_margin" json:"min_margin" default:"5" validate:"gte=0,lte=100"`
}

type PricesRequest struct {
	ItemID int `query:"item_id" json:"item_id" validate:"required,gt=0"`
	N      int `query:"n" json:"n" default:"300" validate:"gte=1,lte=10000"`
}

type OpenPositionRequest struct {
	ItemID          int     `json:"item_id" validate:"required,gt=0"`
	ItemName        string  `json:"item_name"`
	CapitalInvested float64 `json:"capital_invested" validate:"required,gt=0"`
	EntryPrice      float64 `json:"entry_price" validate:"required,gt=0"`
}

type PredictRequest struct {
	ItemID int `query:"item_id" json:"item_id" validate:"required,gt=0"`
	N      int `query:"n" json:"n" default:"300" validate:"gte=2,lte=5000"`
}
