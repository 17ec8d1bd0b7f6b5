package usecase

import (
	"context"
	"fmt"

	"GEFlip/internal/domain/models"
	domrepo "GEFlip/internal/domain/repository"
	"GEFlip/internal/engine"
)

// AnalysisUseCase runs the full scoring path for one item: metrics
// normalization, indicator interpretation and opportunity identification.
type AnalysisUseCase struct {
	prices      domrepo.PriceStore
	normalizer  *engine.Normalizer
	interpreter *engine.Interpreter
	ranker      *engine.Ranker
	cfg         engine.Config
}

func NewAnalysisUseCase(prices domrepo.PriceStore, cfg engine.Config) *AnalysisUseCase {
	return &AnalysisUseCase{
		prices:      prices,
		normalizer:  engine.NewNormalizer(cfg),
		interpreter: engine.NewInterpreter(cfg),
		ranker:      engine.NewRanker(cfg),
		cfg:         cfg,
	}
}

// AnalysisResult is the full engine output for one item.
type AnalysisResult struct {
	ItemID      int                         `json:"item_id"`
	ItemName    string                      `json:"item_name,omitempty"`
	Metrics     models.MetricsBundle        `json:"metrics"`
	Signal      models.MarketSignal         `json:"signal"`
	Opportunity *models.FlippingOpportunity `json:"opportunity,omitempty"`
	HistoryLen  int                         `json:"history_len"`
}

// Analyze scores one item from its last n persisted snapshots.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, itemID, n int) (*AnalysisResult, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("item id required")
	}
	if n <= 0 {
		n = 300
	}

	snaps, err := uc.prices.GetLatestN(ctx, itemID, n)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no data for item %d", itemID)
	}

	latest := snaps[len(snaps)-1]
	history := midPrices(snaps)

	bundle := uc.normalizer.Normalize(latest, history)
	set := engine.ComputeIndicators(history, midPrice(latest), uc.cfg.MomentumWindow)
	signal := uc.interpreter.Generate(set)
	opp := uc.ranker.IdentifyOpportunity(latest, bundle, signal)

	return &AnalysisResult{
		ItemID:      latest.ItemID,
		ItemName:    latest.ItemName,
		Metrics:     bundle,
		Signal:      signal,
		Opportunity: opp,
		HistoryLen:  len(history),
	}, nil
}

// AnalyzeSnapshot scores an item from an in-memory snapshot plus history,
// bypassing storage. Used by the opportunity scanner.
func (uc *AnalysisUseCase) AnalyzeSnapshot(latest models.MarketSnapshot, history []float64, minMargin float64) (models.MetricsBundle, models.MarketSignal, *models.FlippingOpportunity) {
	bundle := uc.normalizer.Normalize(latest, history)
	set := engine.ComputeIndicators(history, midPrice(latest), uc.cfg.MomentumWindow)
	signal := uc.interpreter.Generate(set)
	opp := uc.ranker.IdentifyOpportunityMin(latest, bundle, signal, minMargin)
	return bundle, signal, opp
}

// Score ranks an item for collection prioritization.
func (uc *AnalysisUseCase) Score(latest models.MarketSnapshot, history []float64) models.ItemScore {
	bundle := uc.normalizer.Normalize(latest, history)
	return uc.ranker.ScoreItem(latest, bundle)
}

// midPrices projects snapshots onto the mid of the instant-buy and
// instant-sell quotes, the series the indicators run on.
func midPrices(snaps []models.MarketSnapshot) []float64 {
	out := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		if p := midPrice(s); p > 0 {
			out = append(out, p)
		}
	}
	return out
}

func midPrice(s models.MarketSnapshot) float64 {
	switch {
	case s.HighPrice > 0 && s.LowPrice > 0:
		return (s.HighPrice + s.LowPrice) / 2
	case s.HighPrice > 0:
		return s.HighPrice
	default:
		return s.LowPrice
	}
}
