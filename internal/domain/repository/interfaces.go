package repository

import (
	"context"
	"time"

	"GEFlip/internal/domain/models"
)

// MarketFeed supplies a continuous stream of Grand Exchange snapshots.
type MarketFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher publishes snapshots to a message backend.
type Publisher interface {
	Publish(ctx context.Context, s *models.MarketSnapshot) error
	PublishBatch(ctx context.Context, snaps []*models.MarketSnapshot) error
	Close() error
}

// Storage persists raw snapshots.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, s *models.MarketSnapshot) error
	StoreBatch(ctx context.Context, snaps []*models.MarketSnapshot) error
	Query(ctx context.Context, itemID int, from, to time.Time, limit int) ([]*models.MarketSnapshot, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordMessageSent(backend, item string)
	RecordError(kind string)
	RecordLastPrice(item string, price float64)
	RecordLatency(op string, seconds float64)
}
