package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BonusTier grants Percent of the base accumulator return once at least Legs
// legs have won.
type BonusTier struct {
	Legs    int
	Percent decimal.Decimal
}

// RiskTables is the externally configured risk data.
type RiskTables struct {
	// DriverGroups maps a group name to the market keys ("kind" or
	// "kind:subject") it covers.
	DriverGroups map[string][]string
	BonusTiers   []BonusTier
	BonusCap     decimal.Decimal
}

// Limits are the hard payout caps.
type Limits struct {
	MaxPayoutPerEvent        decimal.Decimal
	SystemExposureMultiplier decimal.Decimal
}

// DefaultRiskTables mirrors the shipped risk_tables.yaml.
func DefaultRiskTables() RiskTables {
	return RiskTables{
		DriverGroups: map[string][]string{
			"win":    {"winner", "margin_band", "leader:most_triples"},
			"points": {"over_under:total_points", "over_under:bullseyes", "highest_round", "prop:maximum"},
			"flow":   {"over_under:lead_changes", "prop:tie_breaker", "leader:strong_start", "leader:late_surge", "prop:late_aggression"},
			"rounds": {"round_winner", "prop:perfect_round", "prop:shutout_round"},
			"awards": {"award"},
		},
		BonusTiers: []BonusTier{
			{Legs: 3, Percent: decimal.RequireFromString("0.05")},
			{Legs: 5, Percent: decimal.RequireFromString("0.10")},
			{Legs: 8, Percent: decimal.RequireFromString("0.20")},
		},
		BonusCap: decimal.NewFromInt(500),
	}
}

// DefaultLimits returns the stock payout caps.
func DefaultLimits() Limits {
	return Limits{
		MaxPayoutPerEvent:        decimal.NewFromInt(3000),
		SystemExposureMultiplier: decimal.NewFromInt(50),
	}
}

// bonusPercent returns the highest tier reached by wonLegs.
func (t RiskTables) bonusPercent(wonLegs int) decimal.Decimal {
	tiers := append([]BonusTier(nil), t.BonusTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Legs < tiers[j].Legs })
	pct := decimal.Zero
	for _, tier := range tiers {
		if wonLegs >= tier.Legs && tier.Percent.GreaterThan(pct) {
			pct = tier.Percent
		}
	}
	return pct
}

// groupIndex inverts DriverGroups.
func (t RiskTables) groupIndex() map[string]string {
	idx := make(map[string]string)
	names := make([]string, 0, len(t.DriverGroups))
	for name := range t.DriverGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, key := range t.DriverGroups[name] {
			if _, taken := idx[key]; !taken {
				idx[key] = name
			}
		}
	}
	return idx
}
