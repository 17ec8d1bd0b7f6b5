package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GEFlip/internal/domain/models"
	domrepo "GEFlip/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.MarketSnapshot) error
}

// SnapshotPipeline sits between the wiki feed and the backend. It
// validates, de-duplicates per item, optionally transforms, and buffers
// when downstream is unavailable.
type SnapshotPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan *models.MarketSnapshot
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	lastTS  map[int]int64 // per-item timestamp of the last accepted snapshot
	// simple format transform hook (optional)
	transform func(*models.MarketSnapshot) *models.MarketSnapshot
	// metrics
	bufDepthGauge func(int)
}

type PipelineOption func(*SnapshotPipeline)

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook to modify snapshot format.
func WithTransform(fn func(*models.MarketSnapshot) *models.MarketSnapshot) PipelineOption {
	return func(p *SnapshotPipeline) { p.transform = fn }
}

// NewSnapshotPipeline creates a new pipeline.
func NewSnapshotPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		proc:    proc,
		metrics: metrics,
		bufSize: 1000, // default buffer
		bufCh:   make(chan *models.MarketSnapshot, 1000),
		stopCh:  make(chan struct{}),
		lastTS:  make(map[int]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.MarketSnapshot, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	return p
}

// Start launches background flushing of buffered snapshots.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SnapshotPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, de-duplicates, and forwards a snapshot downstream,
// buffering on errors. Snapshots whose timestamp has not advanced since the
// item's last accepted one are dropped: the wiki poll re-reports unchanged
// prices every cycle.
func (p *SnapshotPipeline) Process(ctx context.Context, s *models.MarketSnapshot) error {
	start := time.Now()
	if err := validateSnapshot(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		s = p.transform(s)
		if err := validateSnapshot(s); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.advanced(s) {
		p.metrics.RecordError("pipeline_duplicate")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- s:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateSnapshot(s *models.MarketSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot nil")
	}
	if s.ItemID <= 0 {
		return fmt.Errorf("item id invalid")
	}
	if s.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if s.HighPrice < 0 || s.LowPrice < 0 || s.Volume < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}

func (p *SnapshotPipeline) advanced(s *models.MarketSnapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Timestamp <= p.lastTS[s.ItemID] {
		return false
	}
	p.lastTS[s.ItemID] = s.Timestamp
	return true
}
