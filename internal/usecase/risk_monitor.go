package usecase

import (
	"context"
	"sync"
	"time"

	"GEFlip/internal/domain/models"
	domrepo "GEFlip/internal/domain/repository"
	"GEFlip/internal/engine"
	applogger "GEFlip/pkg/logger"
)

// volatilityDepth is how many snapshots feed the per-item volatility the
// risk cycle uses.
const volatilityDepth = 50

// RiskMonitor periodically re-assesses the portfolio against fresh market
// data and fans the assessment out to subscribers.
type RiskMonitor struct {
	manager  *engine.RiskManager
	prices   domrepo.PriceStore
	interval time.Duration
	l        *applogger.Logger

	mu     sync.RWMutex
	last   *models.PortfolioAssessment
	subs   map[chan models.PortfolioAssessment]struct{}
	stopCh chan struct{}
}

func NewRiskMonitor(manager *engine.RiskManager, prices domrepo.PriceStore, interval time.Duration, l *applogger.Logger) *RiskMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RiskMonitor{
		manager:  manager,
		prices:   prices,
		interval: interval,
		l:        l,
		subs:     make(map[chan models.PortfolioAssessment]struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Manager exposes the underlying risk manager for the HTTP layer.
func (m *RiskMonitor) Manager() *engine.RiskManager { return m.manager }

// Start launches the monitor loop. The first cycle runs immediately.
func (m *RiskMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			m.runCycle(ctx)
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the monitor loop.
func (m *RiskMonitor) Stop() {
	close(m.stopCh)
}

// Assess runs one risk cycle on demand and returns the assessment.
func (m *RiskMonitor) Assess(ctx context.Context) models.PortfolioAssessment {
	return m.runCycle(ctx)
}

// Last returns the most recent assessment, if any cycle has completed.
func (m *RiskMonitor) Last() (models.PortfolioAssessment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return models.PortfolioAssessment{}, false
	}
	return *m.last, true
}

// Subscribe returns a channel receiving every assessment until cancel is
// called. Slow subscribers miss cycles rather than block the monitor.
func (m *RiskMonitor) Subscribe() (<-chan models.PortfolioAssessment, func()) {
	ch := make(chan models.PortfolioAssessment, 4)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	cancel := func() {
		m.mu.Lock()
		delete(m.subs, ch)
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *RiskMonitor) runCycle(ctx context.Context) models.PortfolioAssessment {
	start := time.Now()
	market := m.marketViews(ctx)
	assessment := m.manager.EvaluatePortfolio(market)

	m.mu.Lock()
	m.last = &assessment
	for ch := range m.subs {
		select {
		case ch <- assessment:
		default:
		}
	}
	m.mu.Unlock()

	if m.l != nil {
		m.l.Debug("risk cycle done",
			applogger.Int("positions", len(assessment.Metrics.PositionRisks)),
			applogger.Int("actions", len(assessment.Actions)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return assessment
}

// marketViews loads the current price, volatility and volume for every item
// held in the portfolio. Items with no data are left out; the risk manager
// marks those positions stale.
func (m *RiskMonitor) marketViews(ctx context.Context) map[int]engine.MarketView {
	views := make(map[int]engine.MarketView)
	for _, p := range m.manager.Store().List() {
		if _, ok := views[p.ItemID]; ok {
			continue
		}
		snaps, err := m.prices.GetLatestN(ctx, p.ItemID, volatilityDepth)
		if err != nil || len(snaps) == 0 {
			if err != nil && m.l != nil {
				m.l.Warn("risk cycle: market data failed",
					applogger.Int("item_id", p.ItemID),
					applogger.Error(err),
				)
			}
			continue
		}
		latest := snaps[len(snaps)-1]
		prices := make([]float64, 0, len(snaps))
		for _, s := range snaps {
			if mid := midPrice(s); mid > 0 {
				prices = append(prices, mid)
			}
		}
		views[p.ItemID] = engine.MarketView{
			Price:      midPrice(latest),
			Volatility: engine.Volatility(prices),
			Volume:     latest.Volume,
		}
	}
	return views
}
