package engine

import (
	"fmt"
	"time"

	"GEFlip/internal/domain/models"
)

// MarketView is the per-item market state a risk cycle reads. Positions
// whose item has no entry in the view are skipped for that cycle.
type MarketView struct {
	Price      float64
	Volatility float64
	Volume     float64
}

// RiskManager evaluates open positions against stop-loss, liquidity and
// concentration thresholds and aggregates portfolio risk. It recommends
// actions; execution belongs to the caller.
type RiskManager struct {
	cfg   Config
	store *PositionStore
}

func NewRiskManager(cfg Config, store *PositionStore) *RiskManager {
	return &RiskManager{cfg: cfg, store: store}
}

// Store exposes the underlying position store for the HTTP layer.
func (m *RiskManager) Store() *PositionStore { return m.store }

// EvaluatePortfolio runs one full risk cycle: refresh each position from
// market data, advance its stop-loss state, score it, then recompute the
// portfolio aggregate from scratch. Positions with missing market data are
// skipped (stale) and never abort the pass.
func (m *RiskManager) EvaluatePortfolio(market map[int]MarketView) models.PortfolioAssessment {
	now := time.Now()
	positions := m.store.List()

	var totalCapital float64
	for _, p := range positions {
		totalCapital += p.CapitalInvested
	}

	assessment := models.PortfolioAssessment{
		Metrics: models.PortfolioRiskMetrics{Timestamp: now},
	}
	if len(positions) == 0 || totalCapital <= 0 {
		return assessment
	}

	var (
		risks     []models.PositionRisk
		actions   []models.RiskAction
		sumRisk   float64
		maxWeight float64
		sumVol    float64
		sumVolume float64
		liveCount int
		largest   models.Position
		exposures []exposure
	)

	for _, snap := range positions {
		view, ok := market[snap.ItemID]
		weight := snap.CapitalInvested / totalCapital
		if weight > maxWeight {
			maxWeight = weight
			largest = snap
		}

		if !ok {
			risks = append(risks, models.PositionRisk{
				PositionID: snap.ID,
				ItemID:     snap.ItemID,
				Weight:     weight,
				Stale:      true,
			})
			continue
		}

		var (
			updated models.Position
			act     []models.RiskAction
		)
		m.store.WithLock(snap.ID, func(p *models.Position, o *models.StopLossOrder) *models.StopLossOrder {
			p.CurrentPrice = view.Price
			p.CurrentVolatility = view.Volatility
			p.HoldingTime = now.Sub(p.EntryTime)
			if p.EntryPrice > 0 {
				units := p.CapitalInvested / p.EntryPrice
				p.UnrealizedPnL = (view.Price - p.EntryPrice) * units
			}
			updated = *p

			next, a := m.advanceStopLoss(p, o, now)
			act = a
			return next
		})
		actions = append(actions, act...)

		pr := m.scorePosition(updated, weight)
		risks = append(risks, pr)
		sumRisk += pr.TotalRisk
		sumVol += view.Volatility
		sumVolume += view.Volume
		liveCount++
		exposures = append(exposures, exposure{weight: weight, vol: view.Volatility})
	}

	if maxWeight > m.cfg.MaxConcentrationRisk && largest.ID != "" {
		actions = append(actions, models.RiskAction{
			Type:       models.ActionReducePosition,
			PositionID: largest.ID,
			ItemID:     largest.ItemID,
			Urgency:    models.UrgencyMedium,
			Price:      largest.CurrentPrice,
			Reason: fmt.Sprintf("position weight %.1f%% exceeds concentration limit %.1f%%",
				maxWeight*100, m.cfg.MaxConcentrationRisk*100),
			Timestamp: now,
		})
	}

	metrics := models.PortfolioRiskMetrics{
		Timestamp:         now,
		TotalRisk:         sumRisk,
		ConcentrationRisk: maxWeight,
		CorrelationRisk:   correlationRisk(exposures),
		PositionRisks:     risks,
	}
	if liveCount > 0 {
		avgVol := sumVol / float64(liveCount)
		avgVolume := sumVolume / float64(liveCount)
		metrics.VolatilityRisk = clamp(avgVol/m.cfg.VolatilityThreshold, 0, 1)
		metrics.MarketRisk = metrics.VolatilityRisk
		// Thin aggregate volume means positions are hard to unwind.
		metrics.LiquidityRisk = clamp(1-volumeScore(avgVolume)/100, 0, 1)
	}
	metrics.RiskScore = clamp(
		(0.35*clamp(sumRisk/m.cfg.MaxPortfolioRisk, 0, 1)+
			0.25*clamp(maxWeight/m.cfg.MaxConcentrationRisk, 0, 1)+
			0.15*metrics.VolatilityRisk+
			0.15*metrics.LiquidityRisk+
			0.1*metrics.CorrelationRisk)*100, 0, 100)
	metrics.Alerts = m.alerts(metrics)

	assessment.Metrics = metrics
	assessment.Actions = actions
	assessment.Recommendations = m.recommendations(metrics, actions)
	return assessment
}

type exposure struct {
	weight float64
	vol    float64
}

// correlationRisk estimates how much of the portfolio moves together. With
// no per-item return series to correlate, volatility similarity stands in:
// each live pair contributes its joint capital weight scaled by how close
// the two volatilities are (identical -> 1, disjoint -> toward 0). A single
// position carries no correlation risk.
func correlationRisk(exposures []exposure) float64 {
	var corr float64
	for i := 0; i < len(exposures); i++ {
		for j := i + 1; j < len(exposures); j++ {
			lo, hi := exposures[i].vol, exposures[j].vol
			if lo > hi {
				lo, hi = hi, lo
			}
			if lo <= 0 || hi <= 0 {
				continue
			}
			corr += 2 * exposures[i].weight * exposures[j].weight * (lo / hi)
		}
	}
	return clamp(corr, 0, 1)
}

// scorePosition decomposes one position's risk. Every component clamps to
// [0,1] and the fixed 0.3/0.3/0.2/0.2 blend is weighted by portfolio share.
func (m *RiskManager) scorePosition(p models.Position, weight float64) models.PositionRisk {
	pr := models.PositionRisk{
		PositionID: p.ID,
		ItemID:     p.ItemID,
		Weight:     weight,
	}
	pr.SizeRisk = clamp(weight/m.cfg.MaxPositionRisk, 0, 1)
	pr.VolatilityRisk = clamp(p.CurrentVolatility/m.cfg.VolatilityThreshold, 0, 1)
	pr.HoldingTimeRisk = clamp(float64(p.HoldingTime)/float64(m.cfg.MaxHoldingTime), 0, 1)
	if p.UnrealizedPnL < 0 && p.CapitalInvested > 0 {
		lossFraction := -p.UnrealizedPnL / p.CapitalInvested
		pr.UnrealizedLossRisk = clamp(lossFraction/m.cfg.DefaultStopLossPct, 0, 1)
	}
	pr.TotalRisk = weight * (0.3*pr.SizeRisk + 0.3*pr.VolatilityRisk +
		0.2*pr.HoldingTimeRisk + 0.2*pr.UnrealizedLossRisk)
	return pr
}

// advanceStopLoss runs the per-position stop-loss state machine:
//
//	NO_ORDER -> ACTIVE -> {TRIGGERED, TRAILING_UPDATED}
//
// The order's stop price only ever ratchets upward. TRIGGERED is terminal:
// the action fires once and the order stays inert until the position is
// closed externally.
func (m *RiskManager) advanceStopLoss(p *models.Position, o *models.StopLossOrder, now time.Time) (*models.StopLossOrder, []models.RiskAction) {
	if o == nil {
		return &models.StopLossOrder{
			PositionID:      p.ID,
			StopPrice:       p.EntryPrice * (1 - m.cfg.DefaultStopLossPct),
			TrailingEnabled: true,
			LastUpdate:      now,
		}, nil
	}

	if o.Triggered {
		return o, nil
	}

	if p.CurrentPrice > 0 && p.CurrentPrice <= o.StopPrice {
		o.Triggered = true
		o.TriggeredAt = now
		o.LastUpdate = now
		return o, []models.RiskAction{{
			Type:       models.ActionStopLossTriggered,
			PositionID: p.ID,
			ItemID:     p.ItemID,
			Urgency:    models.UrgencyHigh,
			Price:      p.CurrentPrice,
			StopPrice:  o.StopPrice,
			Reason:     fmt.Sprintf("price %.0f at or below stop %.0f", p.CurrentPrice, o.StopPrice),
			Timestamp:  now,
		}}
	}

	if o.TrailingEnabled && p.CurrentPrice > 0 {
		candidate := p.CurrentPrice * (1 - m.cfg.TrailingStopLossPct)
		if candidate > o.StopPrice {
			o.StopPrice = candidate
			o.LastUpdate = now
			return o, []models.RiskAction{{
				Type:       models.ActionTrailingStopUpdate,
				PositionID: p.ID,
				ItemID:     p.ItemID,
				Urgency:    models.UrgencyMedium,
				Price:      p.CurrentPrice,
				StopPrice:  o.StopPrice,
				Reason:     fmt.Sprintf("trailing stop raised to %.0f", o.StopPrice),
				Timestamp:  now,
			}}
		}
	}
	return o, nil
}

func (m *RiskManager) alerts(metrics models.PortfolioRiskMetrics) []string {
	var alerts []string
	if metrics.TotalRisk > m.cfg.MaxPortfolioRisk {
		alerts = append(alerts, fmt.Sprintf("portfolio risk %.3f exceeds limit %.3f", metrics.TotalRisk, m.cfg.MaxPortfolioRisk))
	}
	if metrics.ConcentrationRisk > m.cfg.MaxConcentrationRisk {
		alerts = append(alerts, fmt.Sprintf("concentration %.1f%% exceeds limit %.1f%%", metrics.ConcentrationRisk*100, m.cfg.MaxConcentrationRisk*100))
	}
	if metrics.VolatilityRisk >= 1 {
		alerts = append(alerts, "average volatility at or above threshold")
	}
	if metrics.LiquidityRisk > 0.8 {
		alerts = append(alerts, "aggregate liquidity very thin")
	}
	return alerts
}

func (m *RiskManager) recommendations(metrics models.PortfolioRiskMetrics, actions []models.RiskAction) []string {
	var recs []string
	if metrics.ConcentrationRisk > m.cfg.MaxConcentrationRisk {
		recs = append(recs, "reduce largest position to lower concentration")
	}
	for _, a := range actions {
		if a.Type == models.ActionStopLossTriggered {
			recs = append(recs, fmt.Sprintf("close position %s: stop loss hit", a.PositionID))
		}
	}
	for _, pr := range metrics.PositionRisks {
		if pr.HoldingTimeRisk >= 1 {
			recs = append(recs, fmt.Sprintf("position %s held past the configured maximum, review exit", pr.PositionID))
		}
	}
	return recs
}
