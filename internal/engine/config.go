package engine

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config enumerates every knob the engine recognizes. Loose option bags are
// deliberately avoided: the struct is populated with defaults and validated
// once at construction.
type Config struct {
	// MinProfitMargin is the tax-adjusted margin percent below which an
	// item is not considered a flipping opportunity.
	MinProfitMargin float64 `yaml:"min_profit_margin" default:"5" validate:"gte=0,lte=100"`

	// GE tax parameters. Sales at or under the threshold are tax free.
	TaxRate      float64 `yaml:"tax_rate" default:"0.02" validate:"gte=0,lt=1"`
	TaxThreshold float64 `yaml:"tax_threshold" default:"1000" validate:"gte=0"`

	// Stop-loss placement and trailing margin, as fractions of price.
	DefaultStopLossPct  float64 `yaml:"default_stop_loss_pct" default:"0.05" validate:"gt=0,lt=1"`
	TrailingStopLossPct float64 `yaml:"trailing_stop_loss_pct" default:"0.03" validate:"gt=0,lt=1"`

	// Portfolio thresholds.
	MaxPositionRisk      float64       `yaml:"max_position_risk" default:"0.02" validate:"gt=0,lte=1"`
	MaxPortfolioRisk     float64       `yaml:"max_portfolio_risk" default:"0.10" validate:"gt=0,lte=1"`
	MaxConcentrationRisk float64       `yaml:"max_concentration_risk" default:"0.15" validate:"gt=0,lte=1"`
	VolatilityThreshold  float64       `yaml:"volatility_threshold" default:"20" validate:"gt=0"`
	MaxHoldingTime       time.Duration `yaml:"max_holding_time" default:"24h" validate:"gt=0"`

	// MomentumWindow is the trailing window (in points) for the up/down
	// move count behind the momentum score.
	MomentumWindow int `yaml:"momentum_window" default:"10" validate:"gte=2,lte=200"`
}

var validate = validator.New()

// NewConfig returns a Config with defaults applied and validated.
func NewConfig() (Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return Config{}, fmt.Errorf("engine config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration once; the engine assumes a valid Config
// everywhere else.
func (c *Config) Validate() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("engine config defaults: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if c.TrailingStopLossPct >= c.DefaultStopLossPct*10 {
		return fmt.Errorf("engine config: trailing stop %.3f implausibly large vs default stop %.3f",
			c.TrailingStopLossPct, c.DefaultStopLossPct)
	}
	return nil
}

// Fixed prioritization weights. The ratios are heuristic; no derivation
// exists beyond live tuning.
const (
	scoreWeightMargin    = 0.4
	scoreWeightVolume    = 0.3
	scoreWeightStability = 0.2
	scoreWeightFreshness = 0.1
)

// Consensus weights per indicator source. They sum to 1.0; components that
// are missing for an item are omitted from aggregation, not zero-padded.
const (
	weightRSI        = 0.30
	weightMACD       = 0.25
	weightBands      = 0.20
	weightMomentum   = 0.15
	weightVolatility = 0.10
)
