package usecase

import (
	"context"
	"fmt"

	"GEFlip/internal/service/osrswiki"
	applogger "GEFlip/pkg/logger"
	"GEFlip/pkg/queue"
)

const (
	backfillJobName = "snapshot_backfill"
	backfillMsgType = "backfill"

	// defaultBackfillStep is the wiki timeseries resolution used for
	// deep refreshes. 5m gives ~365 points per request.
	defaultBackfillStep = "5m"
)

// BackfillPayload asks for a historical deep refresh of one item.
type BackfillPayload struct {
	ItemID int    `json:"item_id"`
	Step   string `json:"step"`
}

// BackfillJob pulls an item's wiki timeseries and pushes it through the
// normal snapshot path, so freshly watched items get history before the
// poll loop has accumulated any.
type BackfillJob struct {
	wiki *osrswiki.Client
	proc *SnapshotProcessor
	l    *applogger.Logger
}

func NewBackfillJob(wiki *osrswiki.Client, proc *SnapshotProcessor) *BackfillJob {
	return &BackfillJob{wiki: wiki, proc: proc}
}

var _ queue.Job = (*BackfillJob)(nil)

// SetLogger injects a structured logger.
func (j *BackfillJob) SetLogger(l *applogger.Logger) { j.l = l }

func (j *BackfillJob) Name() string { return backfillJobName }

func (j *BackfillJob) Type() string { return backfillMsgType }

func (j *BackfillJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[BackfillPayload](payload)
	if err != nil {
		return fmt.Errorf("backfill payload: %w", err)
	}
	if p.ItemID <= 0 {
		return fmt.Errorf("backfill: item id required")
	}
	step := p.Step
	if step == "" {
		step = defaultBackfillStep
	}

	snaps, err := j.wiki.TimeseriesSnapshots(ctx, p.ItemID, step)
	if err != nil {
		return fmt.Errorf("backfill fetch item %d: %w", p.ItemID, err)
	}
	if len(snaps) == 0 {
		if j.l != nil {
			j.l.Warn("backfill returned no points", applogger.Int("item_id", p.ItemID))
		}
		return nil
	}
	if err := j.proc.ProcessBatch(ctx, snaps); err != nil {
		return fmt.Errorf("backfill store item %d: %w", p.ItemID, err)
	}
	if j.l != nil {
		j.l.Info("backfill complete",
			applogger.Int("item_id", p.ItemID),
			applogger.Int("points", len(snaps)),
			applogger.String("step", step),
		)
	}
	return nil
}

// EnqueueBackfills schedules one deep refresh per watchlist item.
func EnqueueBackfills(ctx context.Context, q queue.QueueService, items []int, step string) error {
	for _, id := range items {
		if err := q.PublishMessage(ctx, backfillMsgType, BackfillPayload{ItemID: id, Step: step}); err != nil {
			return fmt.Errorf("enqueue backfill item %d: %w", id, err)
		}
	}
	return nil
}
