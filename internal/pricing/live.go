package pricing

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// LiveConfig holds the constants of the live odds adjuster.
type LiveConfig struct {
	ModelWeight     float64
	StakeWeight     float64
	TargetOverround float64
	MinOdds         float64
	MaxOdds         float64
}

// DefaultLiveConfig blends 70% model with 30% stake share.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		ModelWeight:     0.7,
		StakeWeight:     0.3,
		TargetOverround: 1.08,
		MinOdds:         1.01,
		MaxOdds:         50,
	}
}

// Adjuster re-prices open markets from the stake each selection has taken.
// It has no access to outcomes or bets.
type Adjuster struct {
	cfg LiveConfig
}

// NewAdjuster creates an Adjuster.
func NewAdjuster(cfg LiveConfig) *Adjuster {
	return &Adjuster{cfg: cfg}
}

// Adjust returns m re-priced against stakes, keyed by selection label. Locked
// and settled markets are refused with ErrMarketLocked.
func (a *Adjuster) Adjust(m domain.Market, stakes map[string]float64, now time.Time) (domain.Market, error) {
	if !m.IsOpen() {
		return m, fmt.Errorf("pricing: adjust %s %q: %w", m.EventID, m.Name, domain.ErrMarketLocked)
	}
	if len(m.Selections) == 0 {
		return m, nil
	}

	model := make([]float64, len(m.Selections))
	modelSum := 0.0
	for i, s := range m.Selections {
		model[i] = s.ModelProb
		modelSum += s.ModelProb
	}
	if modelSum <= 0 {
		for i, s := range m.Selections {
			if s.Odds > 0 {
				model[i] = 1 / s.Odds
			}
		}
	}
	model = normalize(model)

	totalStake := 0.0
	for _, s := range m.Selections {
		totalStake += max(stakes[s.Label], 0)
	}
	blended := make([]float64, len(model))
	for i, s := range m.Selections {
		share := model[i]
		if totalStake > 0 {
			share = max(stakes[s.Label], 0) / totalStake
		}
		blended[i] = a.cfg.ModelWeight*model[i] + a.cfg.StakeWeight*share
	}
	blended = normalize(blended)

	band := OddsBand{Min: a.cfg.MinOdds, Max: a.cfg.MaxOdds}
	out := m
	out.Selections = make([]domain.Selection, len(m.Selections))
	copy(out.Selections, m.Selections)
	for i := range out.Selections {
		implied := blended[i] * a.cfg.TargetOverround
		odds := 0.0
		if implied > 0 {
			odds = 1 / implied
		}
		out.Selections[i].Odds = round2(clampF(odds, band.Min, band.Max))
	}
	guardOverround(&out, band)
	fillImplied(&out)
	out.UpdatedAt = now
	return out, nil
}
