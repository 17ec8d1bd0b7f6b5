package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"GEFlip/internal/domain/models"
)

type fakeProc struct {
	mu    sync.Mutex
	got   []*models.MarketSnapshot
	err   error
	calls int
}

func (f *fakeProc) Process(ctx context.Context, s *models.MarketSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, s)
	return nil
}

func (f *fakeProc) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type fakeMetrics struct {
	mu      sync.Mutex
	errs    map[string]int
	timings map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errs: make(map[string]int), timings: make(map[string]float64)}
}

func (f *fakeMetrics) RecordMessageSent(backend, item string) {}
func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[kind]++
}
func (f *fakeMetrics) RecordLastPrice(item string, price float64) {}
func (f *fakeMetrics) RecordLatency(op string, seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timings[op] = seconds
}

func (f *fakeMetrics) errCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[kind]
}

func snapAt(itemID int, ts int64) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		ItemID:    itemID,
		ItemName:  "Abyssal whip",
		HighPrice: 2000,
		LowPrice:  1900,
		Volume:    500,
		Timestamp: ts,
	}
}

func TestPipelineRejectsInvalidSnapshots(t *testing.T) {
	proc := &fakeProc{}
	m := newFakeMetrics()
	p := NewSnapshotPipeline(proc, m)

	cases := []*models.MarketSnapshot{
		nil,
		{ItemID: 0, Timestamp: 100},
		{ItemID: 4151, Timestamp: 0},
		{ItemID: 4151, Timestamp: 100, HighPrice: -1},
	}
	for i, s := range cases {
		if err := p.Process(context.Background(), s); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if proc.calls != 0 {
		t.Fatalf("invalid snapshots reached downstream: %d calls", proc.calls)
	}
	if m.errCount("pipeline_validate") != len(cases) {
		t.Fatalf("expected %d validate errors, got %d", len(cases), m.errCount("pipeline_validate"))
	}
}

func TestPipelineDropsStaleTimestamps(t *testing.T) {
	proc := &fakeProc{}
	m := newFakeMetrics()
	p := NewSnapshotPipeline(proc, m)
	ctx := context.Background()

	if err := p.Process(ctx, snapAt(4151, 100)); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	// same and older timestamps are silently dropped
	if err := p.Process(ctx, snapAt(4151, 100)); err != nil {
		t.Fatalf("duplicate should not error: %v", err)
	}
	if err := p.Process(ctx, snapAt(4151, 90)); err != nil {
		t.Fatalf("stale should not error: %v", err)
	}
	// a different item with the same timestamp is independent
	if err := p.Process(ctx, snapAt(2, 100)); err != nil {
		t.Fatalf("other item: %v", err)
	}
	if err := p.Process(ctx, snapAt(4151, 101)); err != nil {
		t.Fatalf("advanced timestamp: %v", err)
	}

	if got := proc.count(); got != 3 {
		t.Fatalf("expected 3 forwarded snapshots, got %d", got)
	}
	if m.errCount("pipeline_duplicate") != 2 {
		t.Fatalf("expected 2 duplicate drops, got %d", m.errCount("pipeline_duplicate"))
	}
}

func TestPipelineTransformApplied(t *testing.T) {
	proc := &fakeProc{}
	m := newFakeMetrics()
	p := NewSnapshotPipeline(proc, m, WithTransform(func(s *models.MarketSnapshot) *models.MarketSnapshot {
		out := *s
		out.ItemName = "renamed"
		return &out
	}))

	if err := p.Process(context.Background(), snapAt(4151, 100)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.got[0].ItemName != "renamed" {
		t.Fatalf("transform not applied: %q", proc.got[0].ItemName)
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &fakeProc{err: fmt.Errorf("backend down")}
	m := newFakeMetrics()
	p := NewSnapshotPipeline(proc, m, WithBufferSize(4))
	ctx := context.Background()

	if err := p.Process(ctx, snapAt(4151, 100)); err == nil {
		t.Fatal("expected downstream error")
	}
	if m.errCount("pipeline_process") != 1 {
		t.Fatalf("expected 1 process error, got %d", m.errCount("pipeline_process"))
	}

	// backend recovers; background flush drains the buffer
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered snapshot never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
