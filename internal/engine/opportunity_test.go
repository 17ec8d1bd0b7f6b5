package engine

import (
	"testing"
	"time"

	"GEFlip/internal/domain/models"
)

func TestIdentifyOpportunityBelowMinMargin(t *testing.T) {
	cfg := testConfig(t)
	n := NewNormalizer(cfg)
	r := NewRanker(cfg)

	// 3% spread against the 5% default floor.
	s := snap(515, 500, 200)
	b := n.Normalize(s, nil)
	if op := r.IdentifyOpportunity(s, b, safeDefaultSignal()); op != nil {
		t.Fatalf("margin %.2f%% below floor must yield nil, got %+v", b.MarginPercent, op)
	}
}

func TestIdentifyOpportunityInvalidBundle(t *testing.T) {
	r := NewRanker(testConfig(t))
	s := snap(2000, 1000, 500)
	b := models.MetricsBundle{ItemID: s.ItemID, DataQuality: QualityInvalid}
	if op := r.IdentifyOpportunity(s, b, safeDefaultSignal()); op != nil {
		t.Fatalf("invalid bundle must yield nil")
	}
}

func TestIdentifyOpportunityFields(t *testing.T) {
	cfg := testConfig(t)
	n := NewNormalizer(cfg)
	r := NewRanker(cfg)

	s := snap(2000, 1000, 500)
	b := n.Normalize(s, nil)
	op := r.IdentifyOpportunity(s, b, safeDefaultSignal())
	if op == nil {
		t.Fatalf("expected opportunity")
	}
	if op.BuyPrice != 1000 || op.SellPrice != 2000 {
		t.Fatalf("prices = %v/%v", op.BuyPrice, op.SellPrice)
	}
	if op.NetProfitGp != 960 {
		t.Fatalf("net profit = %v, want 960", op.NetProfitGp)
	}
	if op.TimeToFlip < 5*time.Minute || op.TimeToFlip > 120*time.Minute {
		t.Fatalf("time to flip %v out of [5m, 120m]", op.TimeToFlip)
	}
	if op.RiskLevel != riskLevel(op.RiskScore) {
		t.Fatalf("risk level %s inconsistent with score %v", op.RiskLevel, op.RiskScore)
	}
	if op.DetectedAt.IsZero() {
		t.Fatalf("DetectedAt unset")
	}
}

func TestIdentifyOpportunityMinOverride(t *testing.T) {
	cfg := testConfig(t)
	n := NewNormalizer(cfg)
	r := NewRanker(cfg)

	s := snap(515, 500, 200)
	b := n.Normalize(s, nil)
	if op := r.IdentifyOpportunityMin(s, b, safeDefaultSignal(), 1); op == nil {
		t.Fatalf("1%% floor should admit a 3%% spread")
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{40, models.RiskLow},
		{40.1, models.RiskMedium},
		{70, models.RiskMedium},
		{70.1, models.RiskHigh},
		{100, models.RiskHigh},
	}
	for _, tc := range cases {
		if got := riskLevel(tc.score); got != tc.want {
			t.Fatalf("riskLevel(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestOpportunityTags(t *testing.T) {
	s := snap(500, 400, 2000)
	b := models.MetricsBundle{
		MarginPercent: 25,
		IsTaxFree:     true,
		Volatility:    5,
		RiskScore:     20,
		Velocity:      6,
		DataQuality:   QualityFull,
	}
	got := opportunityTags(s, b)
	want := []string{"high_profit", "tax_free", "high_volume", "stable", "low_risk", "fast_flip"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags = %v, want %v", got, want)
		}
	}

	thin := opportunityTags(snap(500, 460, 10), models.MetricsBundle{MarginPercent: 8, Volatility: 45, RiskScore: 80, DataQuality: QualityFull})
	for _, tag := range thin {
		switch tag {
		case "low_volume", "volatile":
		default:
			t.Fatalf("unexpected tag %q in %v", tag, thin)
		}
	}
}

func TestScoreItemBounds(t *testing.T) {
	cfg := testConfig(t)
	n := NewNormalizer(cfg)
	r := NewRanker(cfg)

	for _, tc := range []models.MarketSnapshot{
		snap(2000, 1000, 500),
		snap(100, 99, 1),
		snap(5e6, 4.9e6, 20000),
	} {
		b := n.Normalize(tc, []float64{100, 101, 99, 102})
		sc := r.ScoreItem(tc, b)
		if sc.Score < 0 || sc.Score > 100 {
			t.Fatalf("score %v out of [0,100] for %+v", sc.Score, tc)
		}
	}
}

func TestScoreItemInvalidBundleZero(t *testing.T) {
	r := NewRanker(testConfig(t))
	sc := r.ScoreItem(snap(100, 50, 10), models.MetricsBundle{DataQuality: QualityInvalid})
	if sc.Score != 0 {
		t.Fatalf("invalid bundle score = %v, want 0", sc.Score)
	}
}
