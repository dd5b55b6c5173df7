// Package simulator turns a seed composite plus a roster into a complete,
// reproducible Outcome. Two families exist: three-participant quiz matches
// and two-participant duels.
package simulator

// RoundRule describes the scoring of one quiz round.
type RoundRule struct {
	Name      string
	Questions int
	Points    int
	Penalty   int
}

// QuizParams holds the tunable constants of the quiz heuristic.
type QuizParams struct {
	Rounds []RoundRule

	OffDayChance    float64
	OffDayMin       float64
	OffDayMax       float64
	HotStreakChance float64
	HotStreakMin    float64
	HotStreakMax    float64
	ChaosChance     float64

	StrengthNoise     float64
	RankedStrengthMin float64
	RankedStrengthMax float64
	OpenStrengthMin   float64
	OpenStrengthMax   float64

	TieBreakIterations int
	TieBreakMaxBonus   int

	FirstCorrectPoints    int
	FastestResponsePoints int

	// Neighbors maps a region slug to the slugs consulted, in order, when the
	// region alone cannot field three participants.
	Neighbors map[string][]string
}

// DefaultQuizParams returns the stock five-round format.
func DefaultQuizParams() QuizParams {
	return QuizParams{
		Rounds: []RoundRule{
			{Name: "Warm Up", Questions: 10, Points: 10, Penalty: 0},
			{Name: "Fast Fingers", Questions: 15, Points: 5, Penalty: 2},
			{Name: "Deep Dive", Questions: 8, Points: 20, Penalty: 5},
			{Name: "Picture Round", Questions: 10, Points: 10, Penalty: 0},
			{Name: "Final Stakes", Questions: 6, Points: 25, Penalty: 10},
		},
		OffDayChance:          0.30,
		OffDayMin:             0.5,
		OffDayMax:             0.8,
		HotStreakChance:       0.20,
		HotStreakMin:          1.2,
		HotStreakMax:          1.5,
		ChaosChance:           0.05,
		StrengthNoise:         5,
		RankedStrengthMin:     40,
		RankedStrengthMax:     85,
		OpenStrengthMin:       20,
		OpenStrengthMax:       90,
		TieBreakIterations:    10,
		TieBreakMaxBonus:      5,
		FirstCorrectPoints:    10,
		FastestResponsePoints: 5,
		Neighbors: map[string][]string{
			"north":    {"midlands", "east"},
			"midlands": {"north", "south", "west"},
			"south":    {"midlands", "west", "east"},
			"east":     {"midlands", "north", "south"},
			"west":     {"midlands", "south"},
		},
	}
}

// DuelParams holds the tunable constants of the duel heuristic.
type DuelParams struct {
	Rounds         int
	ThrowsPerRound int
	// LateAggressionThreshold is the share of a participant's total that must
	// come from the final two rounds to raise the late aggression flag.
	LateAggressionThreshold float64
	// TierTables holds throw category weights per skill tier (1-based).
	TierTables map[int]ThrowTable
}

// ThrowTable weights the discrete throw categories for one skill tier.
type ThrowTable struct {
	Miss        float64 `yaml:"miss"`
	InnerBull   float64 `yaml:"inner_bull"`
	OuterBull   float64 `yaml:"outer_bull"`
	MaxTriple   float64 `yaml:"max_triple"`
	OtherTriple float64 `yaml:"triple"`
	Double      float64 `yaml:"double"`
	Single      float64 `yaml:"single"`
}

func (t ThrowTable) weights() []float64 {
	return []float64{t.Miss, t.InnerBull, t.OuterBull, t.MaxTriple, t.OtherTriple, t.Double, t.Single}
}

// DefaultDuelParams returns the stock five-round, three-throw format.
func DefaultDuelParams() DuelParams {
	return DuelParams{
		Rounds:                  5,
		ThrowsPerRound:          3,
		LateAggressionThreshold: 0.5,
		TierTables: map[int]ThrowTable{
			1: {Miss: 0.20, InnerBull: 0.01, OuterBull: 0.03, MaxTriple: 0.02, OtherTriple: 0.06, Double: 0.08, Single: 0.60},
			2: {Miss: 0.12, InnerBull: 0.02, OuterBull: 0.05, MaxTriple: 0.05, OtherTriple: 0.10, Double: 0.10, Single: 0.56},
			3: {Miss: 0.06, InnerBull: 0.04, OuterBull: 0.07, MaxTriple: 0.10, OtherTriple: 0.13, Double: 0.12, Single: 0.48},
			4: {Miss: 0.03, InnerBull: 0.06, OuterBull: 0.08, MaxTriple: 0.16, OtherTriple: 0.15, Double: 0.13, Single: 0.39},
		},
	}
}
