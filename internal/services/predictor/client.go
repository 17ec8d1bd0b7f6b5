package predictor

import (
	"context"
	"fmt"
	"strings"

	"GEFlip/internal/domain/models"
	domsvc "GEFlip/internal/domain/service"
	"GEFlip/pkg/config"
)

// HTTPTradePredictor proxies predictions to the Python RL service.
type HTTPTradePredictor struct{ base *HTTPServiceBase }

func NewHTTPTradePredictor(cfg *config.Config) *HTTPTradePredictor {
	return &HTTPTradePredictor{base: NewHTTPServiceBase(cfg)}
}

type predictReq struct {
	ItemID   int                `json:"item_id"`
	Features map[string]float64 `json:"features"`
}

type predictResp struct {
	Action         string  `json:"action"`
	Confidence     float64 `json:"confidence"`
	ExpectedProfit float64 `json:"expected_profit"`
	ModelVersion   string  `json:"model_version"`
}

func (s *HTTPTradePredictor) Predict(ctx context.Context, itemID int, features map[string]float64) (domsvc.Prediction, error) {
	var result domsvc.Prediction
	var pr predictResp
	err := s.base.PostJSONWithRetry(ctx, "/predict", predictReq{ItemID: itemID, Features: features}, &pr, 2)
	if err != nil {
		return result, fmt.Errorf("post predict: %w", err)
	}
	action, err := parseAction(pr.Action)
	if err != nil {
		return result, err
	}
	result.ItemID = itemID
	result.Action = action
	result.Confidence = pr.Confidence
	result.ExpectedProfit = pr.ExpectedProfit
	result.ModelVersion = pr.ModelVersion
	return result, nil
}

func parseAction(s string) (models.SignalType, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return models.SignalBuy, nil
	case "SELL":
		return models.SignalSell, nil
	case "HOLD":
		return models.SignalHold, nil
	default:
		return "", fmt.Errorf("unknown predictor action %q", s)
	}
}

var _ domsvc.TradePredictor = (*HTTPTradePredictor)(nil)
