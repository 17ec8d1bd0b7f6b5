package usecase

import (
	"context"
	"fmt"
	"testing"

	"GEFlip/internal/domain/models"
	domsvc "GEFlip/internal/domain/service"
)

// fakePredictor either returns a canned verdict or fails outright.
type fakePredictor struct {
	pred domsvc.Prediction
	fail bool
}

func (f *fakePredictor) Predict(ctx context.Context, itemID int, features map[string]float64) (domsvc.Prediction, error) {
	if f.fail {
		return domsvc.Prediction{}, fmt.Errorf("rl service unreachable")
	}
	return f.pred, nil
}

func TestPredictReturnsModelVerdict(t *testing.T) {
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{4151: flipHistory(4151, 60)}}
	fp := &fakePredictor{pred: domsvc.Prediction{
		ItemID:       4151,
		Action:       models.SignalBuy,
		Confidence:   0.82,
		ModelVersion: "rl-v3",
	}}
	uc := NewPredictUseCase(NewAnalysisUseCase(store, engineConfig(t)), fp)

	res, err := uc.Predict(context.Background(), 4151, 0)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Degraded {
		t.Fatal("healthy model marked degraded")
	}
	if res.Prediction.ModelVersion != "rl-v3" || res.Prediction.Action != models.SignalBuy {
		t.Fatalf("wrong verdict: %+v", res.Prediction)
	}
	if res.Analysis == nil || res.Analysis.ItemID != 4151 {
		t.Fatal("analysis missing from result")
	}
}

func TestPredictFallsBackToEngineSignal(t *testing.T) {
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{4151: flipHistory(4151, 60)}}
	uc := NewPredictUseCase(NewAnalysisUseCase(store, engineConfig(t)), &fakePredictor{fail: true})

	res, err := uc.Predict(context.Background(), 4151, 0)
	if err != nil {
		t.Fatalf("model outage must not fail the call: %v", err)
	}
	if !res.Degraded {
		t.Fatal("fallback result not marked degraded")
	}
	if res.Prediction.ModelVersion != "engine-consensus" {
		t.Fatalf("model version = %q, want engine-consensus", res.Prediction.ModelVersion)
	}
	if res.Prediction.ItemID != 4151 {
		t.Fatalf("item = %d, want 4151", res.Prediction.ItemID)
	}
	if res.Prediction.Action != res.Analysis.Signal.Type {
		t.Fatalf("fallback action %q differs from engine signal %q",
			res.Prediction.Action, res.Analysis.Signal.Type)
	}
	if res.Prediction.Confidence != res.Analysis.Signal.Confidence {
		t.Fatalf("fallback confidence %v differs from engine signal %v",
			res.Prediction.Confidence, res.Analysis.Signal.Confidence)
	}
}

func TestPredictStillFailsWithoutAnalysis(t *testing.T) {
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{}}
	uc := NewPredictUseCase(NewAnalysisUseCase(store, engineConfig(t)), &fakePredictor{fail: true})

	if _, err := uc.Predict(context.Background(), 999, 10); err == nil {
		t.Fatal("expected error when no market data exists for the item")
	}
}
