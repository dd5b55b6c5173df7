package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/wagerbook/internal/settlement"
	"github.com/alanyoungcy/wagerbook/internal/simulator"
)

// RiskFile is the decoded risk table file: correlation driver groups,
// accumulator bonus tiers and, optionally, duel throw tables per tier.
type RiskFile struct {
	Tables      settlement.RiskTables
	ThrowTables map[int]simulator.ThrowTable
}

type rawBonusTier struct {
	Legs    int    `yaml:"legs"`
	Percent string `yaml:"percent"`
}

type rawRiskFile struct {
	DriverGroups map[string][]string          `yaml:"driver_groups"`
	BonusTiers   []rawBonusTier               `yaml:"bonus_tiers"`
	BonusCap     string                       `yaml:"bonus_cap"`
	ThrowTables  map[int]simulator.ThrowTable `yaml:"throw_tables"`
}

// LoadRiskTables reads the YAML risk file at path. A missing file, or an
// empty path, yields the built-in tables. Sections absent from the file keep
// their defaults.
func LoadRiskTables(path string) (RiskFile, error) {
	out := RiskFile{Tables: settlement.DefaultRiskTables()}
	if path == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return RiskFile{}, fmt.Errorf("config: read risk tables %s: %w", path, err)
	}
	return ParseRiskTables(b)
}

// ParseRiskTables decodes and validates a risk table document.
func ParseRiskTables(data []byte) (RiskFile, error) {
	var raw rawRiskFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return RiskFile{}, fmt.Errorf("config: decode risk tables: %w", err)
	}

	out := RiskFile{Tables: settlement.DefaultRiskTables(), ThrowTables: raw.ThrowTables}
	var errs []string

	if raw.DriverGroups != nil {
		out.Tables.DriverGroups = raw.DriverGroups
	}
	if raw.BonusTiers != nil {
		tiers := make([]settlement.BonusTier, 0, len(raw.BonusTiers))
		for i, t := range raw.BonusTiers {
			pct, err := decimal.NewFromString(strings.TrimSpace(t.Percent))
			if err != nil {
				errs = append(errs, fmt.Sprintf("bonus_tiers[%d]: percent %q is not a number", i, t.Percent))
				continue
			}
			tiers = append(tiers, settlement.BonusTier{Legs: t.Legs, Percent: pct})
		}
		out.Tables.BonusTiers = tiers
	}
	if raw.BonusCap != "" {
		bc, err := decimal.NewFromString(strings.TrimSpace(raw.BonusCap))
		if err != nil {
			errs = append(errs, fmt.Sprintf("bonus_cap %q is not a number", raw.BonusCap))
		} else {
			out.Tables.BonusCap = bc
		}
	}

	errs = append(errs, validateRiskTables(out)...)
	if len(errs) > 0 {
		return RiskFile{}, fmt.Errorf("risk tables validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return out, nil
}

func validateRiskTables(f RiskFile) []string {
	var errs []string

	seen := make(map[string]string)
	names := make([]string, 0, len(f.Tables.DriverGroups))
	for name := range f.Tables.DriverGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "driver_groups: group name must not be empty")
		}
		for _, key := range f.Tables.DriverGroups[name] {
			if prev, dup := seen[key]; dup {
				errs = append(errs, fmt.Sprintf("driver_groups: %q listed in both %q and %q", key, prev, name))
				continue
			}
			seen[key] = name
		}
	}

	// Tiers must be strictly increasing in legs and never decrease in percent.
	one := decimal.NewFromInt(1)
	for i, t := range f.Tables.BonusTiers {
		if t.Legs < 2 {
			errs = append(errs, fmt.Sprintf("bonus_tiers[%d]: legs must be >= 2", i))
		}
		if t.Percent.IsNegative() || t.Percent.GreaterThan(one) {
			errs = append(errs, fmt.Sprintf("bonus_tiers[%d]: percent must be within [0, 1]", i))
		}
		if i > 0 {
			prev := f.Tables.BonusTiers[i-1]
			if t.Legs <= prev.Legs {
				errs = append(errs, fmt.Sprintf("bonus_tiers[%d]: legs must increase", i))
			}
			if t.Percent.LessThan(prev.Percent) {
				errs = append(errs, fmt.Sprintf("bonus_tiers[%d]: percent must not decrease", i))
			}
		}
	}
	if f.Tables.BonusCap.IsNegative() {
		errs = append(errs, "bonus_cap must be >= 0")
	}

	for tier, table := range f.ThrowTables {
		if tier < 1 {
			errs = append(errs, fmt.Sprintf("throw_tables: tier %d must be >= 1", tier))
		}
		if table.Miss < 0 || table.InnerBull < 0 || table.OuterBull < 0 || table.MaxTriple < 0 ||
			table.OtherTriple < 0 || table.Double < 0 || table.Single < 0 {
			errs = append(errs, fmt.Sprintf("throw_tables: tier %d has a negative weight", tier))
		}
	}
	// Tiers are drawn uniformly from 1..N, so the merged set must have no gaps.
	if len(f.ThrowTables) > 0 {
		merged := simulator.DefaultDuelParams().TierTables
		for tier, table := range f.ThrowTables {
			merged[tier] = table
		}
		for tier := 1; tier <= len(merged); tier++ {
			if _, ok := merged[tier]; !ok {
				errs = append(errs, fmt.Sprintf("throw_tables: tiers must run 1..%d without gaps, tier %d is missing", len(merged), tier))
				break
			}
		}
	}
	return errs
}
