package usecase

import (
	"context"
	"testing"
	"time"

	"GEFlip/internal/domain/models"
	"GEFlip/internal/engine"
)

func monitorFixture(t *testing.T) (*RiskMonitor, *fakePriceStore) {
	t.Helper()
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{4151: flipHistory(4151, 60)}}
	manager := engine.NewRiskManager(engineConfig(t), engine.NewPositionStore())
	return NewRiskMonitor(manager, store, time.Minute, nil), store
}

func TestAssessCreatesStopOrders(t *testing.T) {
	m, _ := monitorFixture(t)
	err := m.Manager().Store().Open(models.Position{
		ID:              "p1",
		ItemID:          4151,
		CapitalInvested: 1_500_000,
		EntryPrice:      1500,
		EntryTime:       time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	assessment := m.Assess(context.Background())
	if len(assessment.Metrics.PositionRisks) != 1 {
		t.Fatalf("position risks = %d, want 1", len(assessment.Metrics.PositionRisks))
	}
	if assessment.Metrics.PositionRisks[0].Stale {
		t.Fatal("position with fresh market data marked stale")
	}

	order, ok := m.Manager().Store().Order("p1")
	if !ok {
		t.Fatal("no stop order created")
	}
	if order.StopPrice != 1500*0.95 {
		t.Fatalf("stop price = %v, want %v", order.StopPrice, 1500*0.95)
	}
}

func TestAssessMarksMissingMarketDataStale(t *testing.T) {
	m, _ := monitorFixture(t)
	if err := m.Manager().Store().Open(models.Position{
		ID:              "p2",
		ItemID:          999, // no history in the store
		CapitalInvested: 100_000,
		EntryPrice:      100,
		EntryTime:       time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("open: %v", err)
	}

	assessment := m.Assess(context.Background())
	if len(assessment.Metrics.PositionRisks) != 1 {
		t.Fatalf("position risks = %d, want 1", len(assessment.Metrics.PositionRisks))
	}
	if !assessment.Metrics.PositionRisks[0].Stale {
		t.Fatal("expected stale position when market data is missing")
	}
}

func TestLastAndSubscribe(t *testing.T) {
	m, _ := monitorFixture(t)

	if _, ok := m.Last(); ok {
		t.Fatal("Last should be empty before any cycle")
	}

	ch, cancel := m.Subscribe()
	defer cancel()

	m.Assess(context.Background())

	if _, ok := m.Last(); !ok {
		t.Fatal("Last empty after a cycle")
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive assessment")
	}

	// cancelled subscribers stop receiving
	cancel()
	m.Assess(context.Background())
	drained := false
	for !drained {
		select {
		case <-ch:
		default:
			drained = true
		}
	}
}
