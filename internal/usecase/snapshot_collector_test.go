package usecase

import (
	"context"
	"testing"
	"time"

	"GEFlip/internal/domain/models"
)

// fakeQueue records every published message in order.
type fakeQueue struct {
	types    []string
	payloads []interface{}
}

func (q *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, payload)
	return nil
}

func feedSnap(itemID int, high, low float64) models.MarketSnapshot {
	return models.MarketSnapshot{
		ItemID:    itemID,
		HighPrice: high,
		LowPrice:  low,
		Volume:    5000,
		Timestamp: time.Now().Unix(),
	}
}

func selectionCollector(t *testing.T, q *fakeQueue, topItems int) *SnapshotCollector {
	t.Helper()
	c := NewSnapshotCollector(nil, nil, nil, nil)
	c.EnableSmartSelection(NewAnalysisUseCase(&fakePriceStore{}, engineConfig(t)), q, topItems, time.Minute)
	return c
}

func TestSmartSelectionEnqueuesTopSlice(t *testing.T) {
	q := &fakeQueue{}
	c := selectionCollector(t, q, 1)

	// A wide-margin item and a thin-margin one. Only the former fits
	// in a top-1 slice.
	for i := 0; i < 30; i++ {
		c.observe(feedSnap(4151, 2000, 1000))
		c.observe(feedSnap(554, 1010, 1000))
	}

	if err := c.runSelection(context.Background()); err != nil {
		t.Fatalf("selection: %v", err)
	}
	if len(q.payloads) != 1 {
		t.Fatalf("published %d messages, want 1", len(q.payloads))
	}
	if q.types[0] != "backfill" {
		t.Fatalf("message type = %q, want backfill", q.types[0])
	}
	p, ok := q.payloads[0].(BackfillPayload)
	if !ok {
		t.Fatalf("payload type %T, want BackfillPayload", q.payloads[0])
	}
	if p.ItemID != 4151 {
		t.Fatalf("enqueued item %d, want the wide-margin 4151", p.ItemID)
	}
}

func TestSmartSelectionRanksBestFirst(t *testing.T) {
	q := &fakeQueue{}
	c := selectionCollector(t, q, 0)

	for i := 0; i < 30; i++ {
		c.observe(feedSnap(554, 1010, 1000))
		c.observe(feedSnap(4151, 2000, 1000))
	}

	if err := c.runSelection(context.Background()); err != nil {
		t.Fatalf("selection: %v", err)
	}
	if len(q.payloads) != 2 {
		t.Fatalf("published %d messages, want 2", len(q.payloads))
	}
	first := q.payloads[0].(BackfillPayload)
	second := q.payloads[1].(BackfillPayload)
	if first.ItemID != 4151 || second.ItemID != 554 {
		t.Fatalf("rank order = [%d %d], want [4151 554]", first.ItemID, second.ItemID)
	}
}

func TestSmartSelectionEmptyObservationsNoop(t *testing.T) {
	q := &fakeQueue{}
	c := selectionCollector(t, q, 5)

	if err := c.runSelection(context.Background()); err != nil {
		t.Fatalf("selection: %v", err)
	}
	if len(q.payloads) != 0 {
		t.Fatalf("published %d messages for an empty view, want 0", len(q.payloads))
	}
}
