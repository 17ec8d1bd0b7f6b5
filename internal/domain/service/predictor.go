package service

import (
	"context"

	"GEFlip/internal/domain/models"
)

// Prediction is the RL microservice's verdict for one item.
type Prediction struct {
	ItemID         int               `json:"item_id"`
	Action         models.SignalType `json:"action"`
	Confidence     float64           `json:"confidence"`
	ExpectedProfit float64           `json:"expected_profit"`
	ModelVersion   string            `json:"model_version"`
}

// TradePredictor proxies trade-action predictions to the RL service.
type TradePredictor interface {
	Predict(ctx context.Context, itemID int, features map[string]float64) (Prediction, error)
}
