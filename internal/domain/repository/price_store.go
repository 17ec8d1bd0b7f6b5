package repository

import (
	"context"
	"time"

	"GEFlip/internal/domain/models"
)

// PriceStore provides read-only access to persisted price history for the
// analysis layer.
type PriceStore interface {
	// GetLatestN returns up to n most recent snapshots for one item,
	// oldest-first.
	GetLatestN(ctx context.Context, itemID int, n int) ([]models.MarketSnapshot, error)
	// GetSeries returns snapshots within [from, to], oldest-first.
	GetSeries(ctx context.Context, itemID int, from, to time.Time) ([]models.MarketSnapshot, error)
	// ActiveItems returns ids of items with at least one snapshot since the
	// given time, most recently traded first.
	ActiveItems(ctx context.Context, since time.Time, limit int) ([]int, error)
}
