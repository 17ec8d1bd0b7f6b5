package usecase

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"GEFlip/internal/domain/models"
	drepo "GEFlip/internal/domain/repository"
	mid "GEFlip/internal/middleware"
	"GEFlip/pkg/queue"
)

// historyWindow bounds the per-item mid-price series kept for scoring.
const historyWindow = 128

// itemScorer ranks a single item from its latest snapshot and recent
// mid-price history.
type itemScorer interface {
	Score(latest models.MarketSnapshot, history []float64) models.ItemScore
}

// SnapshotCollector collects snapshots from the market feed and processes them.
// With smart selection enabled it also keeps a rolling view of every item it
// sees and periodically enqueues backfills for the top-scored slice.
type SnapshotCollector struct {
	feed    drepo.MarketFeed
	proc    *SnapshotProcessor
	metrics drepo.Metrics
	pipe    *mid.SnapshotPipeline

	scorer    itemScorer
	backfill  queue.QueueService
	topItems  int
	scanEvery time.Duration

	selMu   sync.Mutex
	latest  map[int]models.MarketSnapshot
	history map[int][]float64
}

// NewSnapshotCollector creates a new SnapshotCollector instance.
func NewSnapshotCollector(feed drepo.MarketFeed, proc *SnapshotProcessor, metrics drepo.Metrics, pipe *mid.SnapshotPipeline) *SnapshotCollector {
	return &SnapshotCollector{feed: feed, proc: proc, metrics: metrics, pipe: pipe}
}

// EnableSmartSelection turns on per-cycle item scoring. Every scan interval
// the collector ranks the items observed so far and enqueues backfills for
// the top slice, so deep history lands first for items worth trading.
// topItems caps the slice, 0 means every observed item.
func (c *SnapshotCollector) EnableSmartSelection(scorer itemScorer, q queue.QueueService, topItems int, every time.Duration) {
	c.scorer = scorer
	c.backfill = q
	c.topItems = topItems
	c.scanEvery = every
	c.latest = make(map[int]models.MarketSnapshot)
	c.history = make(map[int][]float64)
}

// IsConnected returns true if the market feed is connected.
func (c *SnapshotCollector) IsConnected() bool {
	return c.feed.IsConnected()
}

func (c *SnapshotCollector) Start(ctx context.Context) error {
	if err := c.feed.Connect(ctx); err != nil {
		return err
	}
	if err := c.feed.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	snapCh, errCh := c.feed.Read(ctx)
	go c.consume(ctx, snapCh, errCh)
	if c.scorer != nil && c.backfill != nil && c.scanEvery > 0 {
		go c.selectLoop(ctx)
	}
	return nil
}

func (c *SnapshotCollector) consume(ctx context.Context, snapCh <-chan *models.MarketSnapshot, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("feed")
				_ = c.feed.Reconnect(ctx)
			}
		case s := <-snapCh:
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.proc.Process(ctx, s)
			}
			if c.scorer != nil {
				c.observe(*s)
			}
			c.metrics.RecordLastPrice(strconv.Itoa(s.ItemID), s.HighPrice)
		}
	}
}

func (c *SnapshotCollector) observe(s models.MarketSnapshot) {
	c.selMu.Lock()
	defer c.selMu.Unlock()
	c.latest[s.ItemID] = s
	if p := midPrice(s); p > 0 {
		h := append(c.history[s.ItemID], p)
		if len(h) > historyWindow {
			h = h[len(h)-historyWindow:]
		}
		c.history[s.ItemID] = h
	}
}

// rankItems scores every observed item and returns IDs best first,
// capped at topItems when set.
func (c *SnapshotCollector) rankItems() []int {
	c.selMu.Lock()
	scores := make([]models.ItemScore, 0, len(c.latest))
	for id, snap := range c.latest {
		scores = append(scores, c.scorer.Score(snap, c.history[id]))
	}
	c.selMu.Unlock()

	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if c.topItems > 0 && len(scores) > c.topItems {
		scores = scores[:c.topItems]
	}
	ids := make([]int, len(scores))
	for i, s := range scores {
		ids[i] = s.ItemID
	}
	return ids
}

func (c *SnapshotCollector) runSelection(ctx context.Context) error {
	ids := c.rankItems()
	if len(ids) == 0 {
		return nil
	}
	return EnqueueBackfills(ctx, c.backfill, ids, "")
}

func (c *SnapshotCollector) selectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.scanEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.runSelection(ctx); err != nil {
				c.metrics.RecordError("selection")
			}
		}
	}
}

func (c *SnapshotCollector) Stop() error { return c.feed.Close() }

// Processor returns the underlying SnapshotProcessor for lifecycle management.
func (c *SnapshotCollector) Processor() *SnapshotProcessor { return c.proc }

// Shutdown stops pipeline and closes the feed.
func (c *SnapshotCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.feed.Close()
}
