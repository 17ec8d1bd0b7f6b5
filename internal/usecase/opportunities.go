package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"GEFlip/internal/domain/models"
	domrepo "GEFlip/internal/domain/repository"
	applogger "GEFlip/pkg/logger"
)

// historyDepth is how many snapshots back the scanner looks per item.
const historyDepth = 300

// activeWindow bounds how stale an item's last snapshot may be before the
// scanner skips it entirely.
const activeWindow = 24 * time.Hour

// OpportunitiesUseCase scans recently active items and ranks flipping
// opportunities.
type OpportunitiesUseCase struct {
	prices   domrepo.PriceStore
	analysis *AnalysisUseCase
	l        *applogger.Logger
}

func NewOpportunitiesUseCase(prices domrepo.PriceStore, analysis *AnalysisUseCase) *OpportunitiesUseCase {
	return &OpportunitiesUseCase{prices: prices, analysis: analysis}
}

// SetLogger injects a structured logger.
func (uc *OpportunitiesUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

type ScanParams struct {
	Limit     int
	MinMargin float64
	MaxItems  int // cap on items examined, 0 = scanner default
}

type ScanResult struct {
	ScannedItems  int                           `json:"scanned_items"`
	Opportunities []*models.FlippingOpportunity `json:"opportunities"`
	GeneratedAt   time.Time                     `json:"generated_at"`
}

// Scan analyzes every recently active item and returns the top
// opportunities sorted by expected profit per hour. A failed item is logged
// and skipped, never fatal to the scan.
func (uc *OpportunitiesUseCase) Scan(ctx context.Context, p ScanParams) (*ScanResult, error) {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	maxItems := p.MaxItems
	if maxItems <= 0 {
		maxItems = 500
	}

	ids, err := uc.prices.ActiveItems(ctx, time.Now().Add(-activeWindow), maxItems)
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}

	opportunities := make([]*models.FlippingOpportunity, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		snaps, err := uc.prices.GetLatestN(ctx, id, historyDepth)
		if err != nil {
			if uc.l != nil {
				uc.l.Warn("scan: item history failed", applogger.Int("item_id", id), applogger.Error(err))
			}
			continue
		}
		if len(snaps) == 0 {
			continue
		}
		latest := snaps[len(snaps)-1]
		_, _, opp := uc.analysis.AnalyzeSnapshot(latest, midPrices(snaps), p.MinMargin)
		if opp != nil {
			opportunities = append(opportunities, opp)
		}
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].ExpectedPerHour > opportunities[j].ExpectedPerHour
	})
	if len(opportunities) > p.Limit {
		opportunities = opportunities[:p.Limit]
	}

	return &ScanResult{
		ScannedItems:  len(ids),
		Opportunities: opportunities,
		GeneratedAt:   time.Now(),
	}, nil
}
