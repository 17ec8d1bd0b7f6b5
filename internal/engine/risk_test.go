package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"GEFlip/internal/domain/models"
)

func testManager(t *testing.T) *RiskManager {
	t.Helper()
	return NewRiskManager(testConfig(t), NewPositionStore())
}

func openPosition(t *testing.T, m *RiskManager, id string, itemID int, capital, entry float64) {
	t.Helper()
	err := m.Store().Open(models.Position{
		ID:              id,
		ItemID:          itemID,
		CapitalInvested: capital,
		EntryPrice:      entry,
		EntryTime:       time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("open %s: %v", id, err)
	}
}

func TestStopLossCreatedOnFirstCycle(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 4151, 100000, 1000)

	m.EvaluatePortfolio(map[int]MarketView{4151: {Price: 1000, Volatility: 5, Volume: 500}})

	o, ok := m.Store().Order("p1")
	if !ok {
		t.Fatalf("no stop-loss order created")
	}
	approx(t, o.StopPrice, 950, 1e-9, "initial stop")
	if !o.TrailingEnabled {
		t.Fatalf("trailing disabled on new order")
	}
}

func TestTrailingStopRatchetsUpwardOnly(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 100000, 100000, 1000)
	openPosition(t, m, "pad", 999, 100000, 500)

	view := func(price float64) map[int]MarketView {
		return map[int]MarketView{
			100000: {Price: price, Volatility: 5, Volume: 500},
			999:    {Price: 500, Volatility: 5, Volume: 500},
		}
	}

	m.EvaluatePortfolio(view(1000))

	a := m.EvaluatePortfolio(view(1100))
	o, _ := m.Store().Order("p1")
	approx(t, o.StopPrice, 1100*0.97, 1e-9, "raised stop")
	if !containsAction(a.Actions, "p1", models.ActionTrailingStopUpdate) {
		t.Fatalf("expected trailing update action, got %+v", a.Actions)
	}

	// A pullback above the stop must not lower it.
	m.EvaluatePortfolio(view(1070))
	o2, _ := m.Store().Order("p1")
	if o2.StopPrice != o.StopPrice {
		t.Fatalf("stop moved down: %v -> %v", o.StopPrice, o2.StopPrice)
	}
}

func TestStopLossTriggers(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 4151, 100000, 1000)
	market := func(price float64) map[int]MarketView {
		return map[int]MarketView{4151: {Price: price, Volatility: 5, Volume: 500}}
	}

	m.EvaluatePortfolio(market(1000)) // creates order at 950
	a := m.EvaluatePortfolio(market(940))

	if !containsAction(a.Actions, "p1", models.ActionStopLossTriggered) {
		t.Fatalf("expected stop-loss trigger at 940, got %+v", a.Actions)
	}
	var trig models.RiskAction
	for _, act := range a.Actions {
		if act.Type == models.ActionStopLossTriggered {
			trig = act
		}
	}
	if trig.Urgency != models.UrgencyHigh {
		t.Fatalf("trigger urgency = %s, want HIGH", trig.Urgency)
	}
	approx(t, trig.StopPrice, 950, 1e-9, "trigger stop price")
}

func TestStopLossTriggerIsTerminal(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 4151, 100000, 1000)
	market := func(price float64) map[int]MarketView {
		return map[int]MarketView{4151: {Price: price, Volatility: 5, Volume: 500}}
	}

	m.EvaluatePortfolio(market(1000)) // creates order at 950
	first := m.EvaluatePortfolio(market(940))
	if !containsAction(first.Actions, "p1", models.ActionStopLossTriggered) {
		t.Fatalf("expected trigger at 940, got %+v", first.Actions)
	}

	// Same breached price on the next tick must stay silent.
	again := m.EvaluatePortfolio(market(940))
	if containsAction(again.Actions, "p1", models.ActionStopLossTriggered) {
		t.Fatalf("trigger re-fired: %+v", again.Actions)
	}

	// A recovery must not resume trailing on a triggered order.
	recovered := m.EvaluatePortfolio(market(1200))
	if containsAction(recovered.Actions, "p1", models.ActionTrailingStopUpdate) ||
		containsAction(recovered.Actions, "p1", models.ActionStopLossTriggered) {
		t.Fatalf("triggered order emitted stop actions after recovery: %+v", recovered.Actions)
	}

	o, ok := m.Store().Order("p1")
	if !ok {
		t.Fatalf("order dropped after trigger")
	}
	if !o.Triggered {
		t.Fatalf("order not marked triggered")
	}
	approx(t, o.StopPrice, 950, 1e-9, "stop frozen after trigger")
}

func TestCorrelationRiskCoMovingPositions(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 4151, 100000, 1000)
	openPosition(t, m, "p2", 2, 100000, 200)

	// Identical volatility, equal weights: 2 * 0.5 * 0.5 * 1.
	a := m.EvaluatePortfolio(map[int]MarketView{
		4151: {Price: 1000, Volatility: 10, Volume: 500},
		2:    {Price: 200, Volatility: 10, Volume: 500},
	})
	approx(t, a.Metrics.CorrelationRisk, 0.5, 1e-9, "co-moving pair")

	// Diverging volatilities shrink the pair's contribution.
	b := m.EvaluatePortfolio(map[int]MarketView{
		4151: {Price: 1000, Volatility: 5, Volume: 500},
		2:    {Price: 200, Volatility: 20, Volume: 500},
	})
	if b.Metrics.CorrelationRisk >= a.Metrics.CorrelationRisk {
		t.Fatalf("diverging vols did not lower correlation: %v >= %v",
			b.Metrics.CorrelationRisk, a.Metrics.CorrelationRisk)
	}
	if b.Metrics.RiskScore <= 0 {
		t.Fatalf("risk score missing: %+v", b.Metrics)
	}
}

func TestCorrelationRiskSinglePosition(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 4151, 100000, 1000)
	a := m.EvaluatePortfolio(map[int]MarketView{4151: {Price: 1000, Volatility: 10, Volume: 500}})
	if a.Metrics.CorrelationRisk != 0 {
		t.Fatalf("single position has correlation risk %v", a.Metrics.CorrelationRisk)
	}
}

func TestConcentrationEmitsReduceAction(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "big", 4151, 900000, 1000)
	openPosition(t, m, "small", 2, 100000, 200)

	a := m.EvaluatePortfolio(map[int]MarketView{
		4151: {Price: 1000, Volatility: 5, Volume: 500},
		2:    {Price: 200, Volatility: 5, Volume: 500},
	})

	if !containsAction(a.Actions, "big", models.ActionReducePosition) {
		t.Fatalf("no reduce action for the oversized position: %+v", a.Actions)
	}
}

func TestStalePositionSkipped(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 4151, 100000, 1000)
	openPosition(t, m, "p2", 2, 100000, 200)

	a := m.EvaluatePortfolio(map[int]MarketView{4151: {Price: 1000, Volatility: 5, Volume: 500}})

	var stale, live int
	for _, pr := range a.Metrics.PositionRisks {
		if pr.Stale {
			stale++
			if pr.TotalRisk != 0 {
				t.Fatalf("stale position scored: %+v", pr)
			}
		} else {
			live++
		}
	}
	if stale != 1 || live != 1 {
		t.Fatalf("stale=%d live=%d, want 1/1", stale, live)
	}
	if _, ok := m.Store().Order("p2"); ok {
		t.Fatalf("stop-loss created without market data")
	}
}

func TestEvaluatePortfolioEmpty(t *testing.T) {
	m := testManager(t)
	a := m.EvaluatePortfolio(nil)
	if len(a.Metrics.PositionRisks) != 0 || a.Metrics.RiskScore != 0 {
		t.Fatalf("empty portfolio produced %+v", a.Metrics)
	}
}

func TestEvaluatePortfolioIdempotentState(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "p1", 4151, 100000, 1000)
	market := map[int]MarketView{4151: {Price: 1020, Volatility: 8, Volume: 300}}

	m.EvaluatePortfolio(market)
	first, _ := m.Store().Order("p1")
	m.EvaluatePortfolio(market)
	second, _ := m.Store().Order("p1")

	if first.StopPrice != second.StopPrice {
		t.Fatalf("same market moved the stop: %v -> %v", first.StopPrice, second.StopPrice)
	}
}

func TestScorePositionBoundsAndBlend(t *testing.T) {
	m := testManager(t)
	p := models.Position{
		ID:                "p1",
		ItemID:            4151,
		CapitalInvested:   100000,
		EntryPrice:        1000,
		CurrentPrice:      900,
		CurrentVolatility: 500,
		UnrealizedPnL:     -10000,
		HoldingTime:       48 * time.Hour,
	}
	pr := m.scorePosition(p, 1)
	for name, v := range map[string]float64{
		"size":     pr.SizeRisk,
		"vol":      pr.VolatilityRisk,
		"holding":  pr.HoldingTimeRisk,
		"unrlloss": pr.UnrealizedLossRisk,
	} {
		if v < 0 || v > 1 {
			t.Fatalf("%s risk %v out of [0,1]", name, v)
		}
	}
	// All components saturate at 1 here, so the blend collapses to the weight.
	approx(t, pr.TotalRisk, 1, 1e-9, "total risk")

	if pr2 := m.scorePosition(p, 0.5); pr2.TotalRisk >= pr.TotalRisk {
		t.Fatalf("smaller weight must lower total risk")
	}
}

func TestScorePositionNoLossNoLossRisk(t *testing.T) {
	m := testManager(t)
	pr := m.scorePosition(models.Position{
		ID: "p1", CapitalInvested: 1000, EntryPrice: 100,
		CurrentPrice: 110, UnrealizedPnL: 100,
	}, 0.1)
	if pr.UnrealizedLossRisk != 0 {
		t.Fatalf("profit produced loss risk %v", pr.UnrealizedLossRisk)
	}
}

func TestConcentrationAlert(t *testing.T) {
	m := testManager(t)
	openPosition(t, m, "big", 4151, 900000, 1000)
	openPosition(t, m, "small", 2, 100000, 200)

	a := m.EvaluatePortfolio(map[int]MarketView{
		4151: {Price: 1000, Volatility: 5, Volume: 500},
		2:    {Price: 200, Volatility: 5, Volume: 500},
	})

	approx(t, a.Metrics.ConcentrationRisk, 0.9, 1e-9, "concentration")
	if len(a.Metrics.Alerts) == 0 {
		t.Fatalf("90%% concentration raised no alert")
	}
	found := false
	for _, r := range a.Recommendations {
		if r == "reduce largest position to lower concentration" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing concentration recommendation: %v", a.Recommendations)
	}
}

func containsAction(actions []models.RiskAction, positionID, typ string) bool {
	for _, a := range actions {
		if a.PositionID == positionID && a.Type == typ {
			return true
		}
	}
	return false
}

func TestPositionStoreDuplicateOpen(t *testing.T) {
	s := NewPositionStore()
	p := models.Position{ID: "p1", ItemID: 1, CapitalInvested: 100, EntryPrice: 10, EntryTime: time.Now()}
	if err := s.Open(p); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.Open(p); err == nil {
		t.Fatalf("duplicate open accepted")
	}
	if err := s.Open(models.Position{}); err == nil {
		t.Fatalf("empty id accepted")
	}
}

func TestPositionStoreCloseAndGet(t *testing.T) {
	s := NewPositionStore()
	_ = s.Open(models.Position{ID: "p1", ItemID: 1, CapitalInvested: 100, EntryPrice: 10, EntryTime: time.Now()})

	if _, ok := s.Get("p1"); !ok {
		t.Fatalf("get after open failed")
	}
	if !s.Close("p1") {
		t.Fatalf("close failed")
	}
	if s.Close("p1") {
		t.Fatalf("double close succeeded")
	}
	if _, ok := s.Get("p1"); ok {
		t.Fatalf("get after close succeeded")
	}
	if ok := s.WithLock("p1", func(p *models.Position, o *models.StopLossOrder) *models.StopLossOrder {
		return nil
	}); ok {
		t.Fatalf("WithLock on closed position succeeded")
	}
}

func TestPositionStoreListSorted(t *testing.T) {
	s := NewPositionStore()
	for _, id := range []string{"c", "a", "b"} {
		_ = s.Open(models.Position{ID: id, ItemID: 1, CapitalInvested: 1, EntryPrice: 1, EntryTime: time.Now()})
	}
	got := s.List()
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("list not sorted by id: %+v", got)
	}
}

func TestPositionStoreConcurrentWithLock(t *testing.T) {
	s := NewPositionStore()
	const n = 8
	for i := 0; i < n; i++ {
		_ = s.Open(models.Position{ID: fmt.Sprintf("p%d", i), ItemID: i, CapitalInvested: 1, EntryPrice: 1, EntryTime: time.Now()})
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for j := 0; j < 50; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				s.WithLock(id, func(p *models.Position, o *models.StopLossOrder) *models.StopLossOrder {
					p.CurrentPrice++
					return nil
				})
			}(fmt.Sprintf("p%d", i))
		}
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		p, _ := s.Get(fmt.Sprintf("p%d", i))
		if p.CurrentPrice != 50 {
			t.Fatalf("position %d price = %v, want 50", i, p.CurrentPrice)
		}
	}
}
