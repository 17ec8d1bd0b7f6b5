package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"GEFlip/internal/domain/models"
	"GEFlip/internal/engine"
)

// fakePriceStore serves canned history per item id.
type fakePriceStore struct {
	histories map[int][]models.MarketSnapshot
	active    []int
	failFor   map[int]bool
}

func (f *fakePriceStore) GetLatestN(ctx context.Context, itemID, n int) ([]models.MarketSnapshot, error) {
	if f.failFor[itemID] {
		return nil, fmt.Errorf("store unavailable")
	}
	snaps := f.histories[itemID]
	if len(snaps) > n {
		snaps = snaps[len(snaps)-n:]
	}
	return snaps, nil
}

func (f *fakePriceStore) GetSeries(ctx context.Context, itemID int, from, to time.Time) ([]models.MarketSnapshot, error) {
	var out []models.MarketSnapshot
	for _, s := range f.histories[itemID] {
		ts := time.Unix(s.Timestamp, 0)
		if !ts.Before(from) && !ts.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakePriceStore) ActiveItems(ctx context.Context, since time.Time, limit int) ([]int, error) {
	ids := f.active
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// flipHistory builds a flat, liquid series with a wide spread so the
// engine reliably reports an opportunity.
func flipHistory(itemID, n int) []models.MarketSnapshot {
	base := time.Now().Add(-time.Duration(n) * time.Minute).Unix()
	out := make([]models.MarketSnapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.MarketSnapshot{
			ItemID:    itemID,
			ItemName:  "Abyssal whip",
			HighPrice: 2000,
			LowPrice:  1000,
			Volume:    5000,
			Timestamp: base + int64(i)*60,
		})
	}
	return out
}

func engineConfig(t *testing.T) engine.Config {
	t.Helper()
	cfg, err := engine.NewConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	return cfg
}

func TestAnalyzeReturnsFullResult(t *testing.T) {
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{4151: flipHistory(4151, 60)}}
	uc := NewAnalysisUseCase(store, engineConfig(t))

	res, err := uc.Analyze(context.Background(), 4151, 0)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.ItemID != 4151 || res.ItemName != "Abyssal whip" {
		t.Fatalf("wrong identity: %d %q", res.ItemID, res.ItemName)
	}
	if res.HistoryLen != 60 {
		t.Fatalf("history len = %d, want 60", res.HistoryLen)
	}
	if res.Metrics.MarginGp <= 0 {
		t.Fatalf("expected positive margin, got %v", res.Metrics.MarginGp)
	}
	if res.Opportunity == nil {
		t.Fatal("expected an opportunity for a wide-spread liquid item")
	}
	if res.Opportunity.NetProfitGp != 960 {
		t.Fatalf("net profit = %v, want 960 (1000 gross minus 40 tax)", res.Opportunity.NetProfitGp)
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{}}
	uc := NewAnalysisUseCase(store, engineConfig(t))

	if _, err := uc.Analyze(context.Background(), 0, 10); err == nil {
		t.Fatal("expected error for item id 0")
	}
	if _, err := uc.Analyze(context.Background(), 999, 10); err == nil || !strings.Contains(err.Error(), "no data") {
		t.Fatalf("expected no-data error, got %v", err)
	}
}

func TestScanSkipsFailingItems(t *testing.T) {
	store := &fakePriceStore{
		histories: map[int][]models.MarketSnapshot{
			4151: flipHistory(4151, 60),
			3:    nil, // active but no history
		},
		active:  []int{4151, 2, 3},
		failFor: map[int]bool{2: true},
	}
	analysis := NewAnalysisUseCase(store, engineConfig(t))
	uc := NewOpportunitiesUseCase(store, analysis)

	res, err := uc.Scan(context.Background(), ScanParams{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.ScannedItems != 3 {
		t.Fatalf("scanned = %d, want 3", res.ScannedItems)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	if res.Opportunities[0].ItemID != 4151 {
		t.Fatalf("unexpected item %d", res.Opportunities[0].ItemID)
	}
}

func TestScanHonorsLimitAndOrder(t *testing.T) {
	histories := make(map[int][]models.MarketSnapshot)
	active := make([]int, 0, 5)
	for i := 1; i <= 5; i++ {
		h := flipHistory(i, 60)
		// deeper spread on higher ids, so expected profit rises with id
		for j := range h {
			h[j].HighPrice = 2000 + float64(i)*200
		}
		histories[i] = h
		active = append(active, i)
	}
	store := &fakePriceStore{histories: histories, active: active}
	analysis := NewAnalysisUseCase(store, engineConfig(t))
	uc := NewOpportunitiesUseCase(store, analysis)

	res, err := uc.Scan(context.Background(), ScanParams{Limit: 3})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Opportunities) != 3 {
		t.Fatalf("opportunities = %d, want 3", len(res.Opportunities))
	}
	for i := 1; i < len(res.Opportunities); i++ {
		if res.Opportunities[i].ExpectedPerHour > res.Opportunities[i-1].ExpectedPerHour {
			t.Fatal("opportunities not sorted by expected profit per hour")
		}
	}
}

func TestGetLatestPrices(t *testing.T) {
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{4151: flipHistory(4151, 20)}}
	uc := NewPricesUseCase(store)

	res, err := uc.GetLatestPrices(context.Background(), 4151, 10)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if res.Count != 10 {
		t.Fatalf("count = %d, want 10", res.Count)
	}
	if !res.From.Before(res.To) {
		t.Fatalf("from %v not before to %v", res.From, res.To)
	}
	if _, err := uc.GetLatestPrices(context.Background(), 0, 10); err == nil {
		t.Fatal("expected error for item id 0")
	}
}

func TestGetPricesRangeValidation(t *testing.T) {
	store := &fakePriceStore{histories: map[int][]models.MarketSnapshot{4151: flipHistory(4151, 20)}}
	uc := NewPricesUseCase(store)

	now := time.Now()
	if _, err := uc.GetPrices(context.Background(), GetPricesParams{ItemID: 4151, From: now, To: now.Add(-time.Hour)}); err == nil {
		t.Fatal("expected error for inverted range")
	}

	res, err := uc.GetPrices(context.Background(), GetPricesParams{
		ItemID: 4151,
		From:   now.Add(-30 * time.Minute),
		To:     now,
		Limit:  5,
	})
	if err != nil {
		t.Fatalf("get prices: %v", err)
	}
	if res.Count > 5 {
		t.Fatalf("limit not applied: %d", res.Count)
	}
	// truncation keeps the most recent snapshots
	for i := 1; i < len(res.Snapshots); i++ {
		if res.Snapshots[i].Timestamp < res.Snapshots[i-1].Timestamp {
			t.Fatal("snapshots not oldest-first")
		}
	}
}
