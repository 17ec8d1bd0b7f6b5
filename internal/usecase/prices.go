package usecase

import (
	"context"
	"fmt"
	"time"

	"GEFlip/internal/domain/models"
	domrepo "GEFlip/internal/domain/repository"
)

// PricesUseCase provides business logic for retrieving price history.
type PricesUseCase struct {
	store domrepo.PriceStore
}

func NewPricesUseCase(store domrepo.PriceStore) *PricesUseCase {
	return &PricesUseCase{store: store}
}

type GetPricesParams struct {
	ItemID int
	From   time.Time
	To     time.Time
	Limit  int
}

type GetPricesResult struct {
	ItemID    int                     `json:"item_id"`
	From      time.Time               `json:"from"`
	To        time.Time               `json:"to"`
	Count     int                     `json:"count"`
	Snapshots []models.MarketSnapshot `json:"snapshots"`
}

// GetLatestPrices returns the last n snapshots for one item, oldest-first.
func (uc *PricesUseCase) GetLatestPrices(ctx context.Context, itemID, n int) (*GetPricesResult, error) {
	if itemID <= 0 {
		return nil, fmt.Errorf("item id required")
	}
	if n <= 0 {
		n = 300
	}
	snaps, err := uc.store.GetLatestN(ctx, itemID, n)
	if err != nil {
		return nil, fmt.Errorf("get latest prices: %w", err)
	}
	res := &GetPricesResult{ItemID: itemID, Count: len(snaps), Snapshots: snaps}
	if len(snaps) > 0 {
		res.From = time.Unix(snaps[0].Timestamp, 0)
		res.To = time.Unix(snaps[len(snaps)-1].Timestamp, 0)
	}
	return res, nil
}

func (uc *PricesUseCase) GetPrices(ctx context.Context, p GetPricesParams) (*GetPricesResult, error) {
	if p.ItemID <= 0 {
		return nil, fmt.Errorf("item id required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}

	snaps, err := uc.store.GetSeries(ctx, p.ItemID, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}
	if len(snaps) > p.Limit {
		snaps = snaps[len(snaps)-p.Limit:]
	}

	return &GetPricesResult{
		ItemID:    p.ItemID,
		From:      p.From,
		To:        p.To,
		Count:     len(snaps),
		Snapshots: snaps,
	}, nil
}
