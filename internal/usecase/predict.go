package usecase

import (
	"context"
	"fmt"

	domsvc "GEFlip/internal/domain/service"
)

// PredictUseCase feeds engine metrics into the external RL model and
// returns its verdict alongside the engine's own signal.
type PredictUseCase struct {
	analysis  *AnalysisUseCase
	predictor domsvc.TradePredictor
}

func NewPredictUseCase(analysis *AnalysisUseCase, predictor domsvc.TradePredictor) *PredictUseCase {
	return &PredictUseCase{analysis: analysis, predictor: predictor}
}

// PredictResult pairs the model's prediction with the engine analysis the
// features were derived from. Degraded marks a result served from the
// engine's own signal because the RL service was unreachable.
type PredictResult struct {
	Prediction domsvc.Prediction `json:"prediction"`
	Analysis   *AnalysisResult   `json:"analysis"`
	Degraded   bool              `json:"degraded,omitempty"`
}

// consensusModelVersion labels degraded predictions built from the
// engine signal rather than the RL model.
const consensusModelVersion = "engine-consensus"

// Predict analyzes the item, projects the metrics bundle into the model's
// feature space and queries the RL service. When the service fails the
// engine signal stands in, so a model outage never blanks the endpoint.
func (uc *PredictUseCase) Predict(ctx context.Context, itemID, n int) (*PredictResult, error) {
	analysis, err := uc.analysis.Analyze(ctx, itemID, n)
	if err != nil {
		return nil, fmt.Errorf("analyze for predict: %w", err)
	}

	b := analysis.Metrics
	features := map[string]float64{
		"margin_percent":     b.MarginPercent,
		"margin_gp":          b.MarginGp,
		"volatility":         b.Volatility,
		"velocity":           b.Velocity,
		"momentum":           b.MomentumScore,
		"risk_score":         b.RiskScore,
		"volume_score":       b.VolumeScore,
		"expected_per_hour":  b.ExpectedProfitPerHour,
		"signal_strength":    analysis.Signal.Strength,
		"signal_confidence":  analysis.Signal.Confidence,
		"history_len":        float64(analysis.HistoryLen),
		"metrics_confidence": b.Confidence,
	}

	pred, err := uc.predictor.Predict(ctx, itemID, features)
	if err != nil {
		return &PredictResult{
			Prediction: domsvc.Prediction{
				ItemID:       itemID,
				Action:       analysis.Signal.Type,
				Confidence:   analysis.Signal.Confidence,
				ModelVersion: consensusModelVersion,
			},
			Analysis: analysis,
			Degraded: true,
		}, nil
	}
	return &PredictResult{Prediction: pred, Analysis: analysis}, nil
}
