package simulator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

func testPool() []domain.Participant {
	regions := []string{"North", "South", "East", "West", "Midlands"}
	var pool []domain.Participant
	for i := 0; i < 15; i++ {
		pool = append(pool, domain.Participant{
			Name:   fmt.Sprintf("Team %02d", i),
			Region: regions[i%len(regions)],
			Ranked: i%2 == 0,
		})
	}
	return pool
}

func nationalInput(round int64, match int) QuizInput {
	return QuizInput{
		Round:    round,
		Match:    match,
		Category: domain.CategoryNational,
		PoolID:   "main",
		National: testPool(),
	}
}

func TestQuizDeterministic(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())

	first, err := q.Simulate(nationalInput(5, 0))
	require.NoError(t, err)
	second, err := q.Simulate(nationalInput(5, 0))
	require.NoError(t, err)

	assert.Equal(t, first.WinnerIndex, second.WinnerIndex)
	assert.Equal(t, first.Totals, second.Totals)
	assert.Equal(t, first, second)
	assert.Equal(t, "5_0_national_all", first.EventID.String())
}

func TestQuizIgnoresPoolOrder(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())
	in := nationalInput(9, 2)
	a, err := q.Simulate(in)
	require.NoError(t, err)

	reversed := testPool()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	in.National = reversed
	b, err := q.Simulate(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestQuizShape(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())
	for match := 0; match < 20; match++ {
		out, err := q.Simulate(nationalInput(42, match))
		require.NoError(t, err)

		require.Len(t, out.Participants, 3)
		require.GreaterOrEqual(t, len(out.Rounds), 5)
		assert.Len(t, out.RegularRounds(), 5)
		require.GreaterOrEqual(t, out.WinnerIndex, 0)
		if !out.TieBreakExhausted {
			for i, total := range out.Totals {
				if i != out.WinnerIndex {
					assert.Less(t, total, out.Totals[out.WinnerIndex])
				}
			}
		}

		sum := make([]int, 3)
		for _, r := range out.Rounds {
			for i, s := range r.Scores {
				sum[i] += s
			}
		}
		for _, a := range out.Awards {
			sum[a.Index] += a.Points
		}
		assert.Equal(t, sum, out.Totals, "totals are rounds plus awards")
		assert.Len(t, out.Awards, 2)
		assert.GreaterOrEqual(t, out.HighestScoringRound, 1)
		assert.LessOrEqual(t, out.HighestScoringRound, 5)
		assert.NotEmpty(t, out.Commentary)
	}
}

func TestQuizTripletsDisjointWithinRound(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())
	seen := map[string]int{}
	for match := 0; match < 5; match++ {
		out, err := q.Simulate(nationalInput(7, match))
		require.NoError(t, err)
		for _, p := range out.Participants {
			seen[p.Name]++
		}
	}
	assert.Len(t, seen, 15)
	for name, n := range seen {
		assert.Equal(t, 1, n, name)
	}
}

func TestQuizRegionalFallback(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())
	pool := testPool()

	t.Run("region alone", func(t *testing.T) {
		out, err := q.Simulate(QuizInput{Round: 1, Category: domain.CategoryRegional, Region: "North", Pool: pool})
		require.NoError(t, err)
		for _, p := range out.Participants {
			assert.Equal(t, "North", p.Region)
		}
		assert.Equal(t, "1_0_regional_north", out.EventID.String())
	})

	t.Run("neighbors", func(t *testing.T) {
		small := []domain.Participant{
			{Name: "A", Region: "West"},
			{Name: "B", Region: "Midlands"},
			{Name: "C", Region: "Midlands"},
			{Name: "D", Region: "North"},
		}
		out, err := q.Simulate(QuizInput{Round: 1, Category: domain.CategoryRegional, Region: "West", Pool: small})
		require.NoError(t, err)
		names := []string{}
		for _, p := range out.Participants {
			names = append(names, p.Name)
		}
		assert.ElementsMatch(t, []string{"A", "B", "C"}, names)
	})

	t.Run("national", func(t *testing.T) {
		out, err := q.Simulate(QuizInput{
			Round: 1, Category: domain.CategoryRegional, Region: "Islands",
			Pool: pool, National: pool[:6],
		})
		require.NoError(t, err)
		assert.Len(t, out.Participants, 3)
	})

	t.Run("exhausted", func(t *testing.T) {
		_, err := q.Simulate(QuizInput{Round: 1, Category: domain.CategoryRegional, Region: "Islands", Pool: pool, National: pool[:2]})
		assert.ErrorIs(t, err, domain.ErrInsufficientParticipants)
	})
}

func TestQuizStrengthOverride(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())
	in := nationalInput(3, 0)
	in.Strengths = map[string]float64{}
	for _, p := range testPool() {
		in.Strengths[p.Name] = 70
	}
	out, err := q.Simulate(in)
	require.NoError(t, err)
	for _, p := range out.Participants {
		assert.InDelta(t, 70, p.Strength, 5.01)
	}
}

func TestQuizUserOffsetChangesDraw(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())
	base := nationalInput(11, 0)
	other := base
	other.UserOffset = 99
	a, err := q.Simulate(base)
	require.NoError(t, err)
	b, err := q.Simulate(other)
	require.NoError(t, err)
	assert.Equal(t, a.EventID, b.EventID)
	assert.NotEqual(t, a.Totals, b.Totals)
}

func TestBreakTiesAddsExplicitRound(t *testing.T) {
	params := DefaultQuizParams()
	q := NewQuiz(params)
	out := domain.Outcome{
		Participants: make([]domain.Participant, 3),
		Totals:       []int{100, 100, 80},
		Rounds:       []domain.RoundResult{{Number: 1, Scores: []int{100, 100, 80}}},
	}
	q.breakTies(newTestSource(), &out)

	require.True(t, out.HasTieBreaker())
	tb := out.Rounds[len(out.Rounds)-1]
	assert.Equal(t, 2, tb.Number)
	assert.Zero(t, tb.Scores[2], "only tied participants receive bonus points")
	assert.GreaterOrEqual(t, uniqueMax(out.Totals), 0)
}

func TestBreakTiesNoopWhenClear(t *testing.T) {
	q := NewQuiz(DefaultQuizParams())
	out := domain.Outcome{Totals: []int{10, 20, 5}}
	q.breakTies(newTestSource(), &out)
	assert.False(t, out.HasTieBreaker())
	assert.Equal(t, []int{10, 20, 5}, out.Totals)
}

func TestPhaseLeaderTie(t *testing.T) {
	rounds := []domain.RoundResult{
		{Scores: []int{10, 20, 0}},
		{Scores: []int{20, 10, 0}},
	}
	assert.Equal(t, -1, phaseLeader(rounds, 0, 2))
	assert.Equal(t, 1, phaseLeader(rounds, 0, 1))
	assert.Equal(t, -1, phaseLeader(rounds, 3, 5))
}
