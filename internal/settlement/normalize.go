// Package settlement resolves bet legs against finalized outcomes and
// aggregates them into payouts.
package settlement

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// MarketRef is the normalized form of a market name.
type MarketRef struct {
	Kind    domain.MarketKind
	Subject string
	Round   int
	Line    float64
	HasLine bool
}

// GroupKey is the key used by driver group tables: "kind" or "kind:subject".
func (r MarketRef) GroupKey() string {
	if r.Subject == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ":" + r.Subject
}

// aliases maps a canonical phrase (numbers removed) to its market.
var aliases = map[string]MarketRef{
	"match winner":           {Kind: domain.MarketKindWinner},
	"winner":                 {Kind: domain.MarketKindWinner},
	"match result":           {Kind: domain.MarketKindWinner},
	"to win":                 {Kind: domain.MarketKindWinner},
	"total points":           {Kind: domain.MarketKindOverUnder, Subject: domain.StatTotalPoints},
	"total score":            {Kind: domain.MarketKindOverUnder, Subject: domain.StatTotalPoints},
	"match total":            {Kind: domain.MarketKindOverUnder, Subject: domain.StatTotalPoints},
	"total bullseyes":        {Kind: domain.MarketKindOverUnder, Subject: domain.StatBullseyes},
	"bullseyes":              {Kind: domain.MarketKindOverUnder, Subject: domain.StatBullseyes},
	"total lead changes":     {Kind: domain.MarketKindOverUnder, Subject: domain.StatLeadChanges},
	"lead changes":           {Kind: domain.MarketKindOverUnder, Subject: domain.StatLeadChanges},
	"winning margin":         {Kind: domain.MarketKindMarginBand},
	"margin":                 {Kind: domain.MarketKindMarginBand},
	"round winner":           {Kind: domain.MarketKindRoundWinner},
	"highest scoring round":  {Kind: domain.MarketKindHighestRound},
	"perfect round":          {Kind: domain.MarketKindProp, Subject: domain.PropPerfectRound},
	"shutout round":          {Kind: domain.MarketKindProp, Subject: domain.PropShutoutRound},
	"shutout":                {Kind: domain.MarketKindProp, Subject: domain.PropShutoutRound},
	"tie breaker":            {Kind: domain.MarketKindProp, Subject: domain.PropTieBreaker},
	"tiebreaker":             {Kind: domain.MarketKindProp, Subject: domain.PropTieBreaker},
	"maximum thrown":         {Kind: domain.MarketKindProp, Subject: domain.PropMaximum},
	"maximum":                {Kind: domain.MarketKindProp, Subject: domain.PropMaximum},
	"late aggression":        {Kind: domain.MarketKindProp, Subject: domain.PropLateAggression},
	"first correct award":    {Kind: domain.MarketKindAward, Subject: domain.AwardFirstCorrect},
	"first correct":          {Kind: domain.MarketKindAward, Subject: domain.AwardFirstCorrect},
	"fastest response award": {Kind: domain.MarketKindAward, Subject: domain.AwardFastestResponse},
	"fastest response":       {Kind: domain.MarketKindAward, Subject: domain.AwardFastestResponse},
	"strong start leader":    {Kind: domain.MarketKindLeader, Subject: domain.LeaderStrongStart},
	"strong start":           {Kind: domain.MarketKindLeader, Subject: domain.LeaderStrongStart},
	"late surge leader":      {Kind: domain.MarketKindLeader, Subject: domain.LeaderLateSurge},
	"late surge":             {Kind: domain.MarketKindLeader, Subject: domain.LeaderLateSurge},
	"most triples":           {Kind: domain.MarketKindLeader, Subject: domain.LeaderMostTriples},
}

// NormalizeName lower-cases a market name, drops punctuation other than '.'
// and '+', and collapses whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '+':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Normalize maps a free-form market name onto a MarketRef. Numbers are lifted
// out of the name first: an integer after "round" is the round index, any
// other number is a line. Names that match no alias exactly are
// unresolvable.
func Normalize(name string) (MarketRef, error) {
	tokens := strings.Fields(NormalizeName(name))
	var words []string
	var ref MarketRef
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "+"), 64)
		if err != nil {
			words = append(words, tok)
			continue
		}
		if i > 0 && tokens[i-1] == "round" && v == float64(int(v)) {
			ref.Round = int(v)
			continue
		}
		ref.Line, ref.HasLine = v, true
	}
	base, ok := aliases[strings.Join(words, " ")]
	if !ok {
		return MarketRef{}, fmt.Errorf("settlement: market %q: %w", name, domain.ErrUnresolvableMarket)
	}
	base.Round, base.Line, base.HasLine = ref.Round, ref.Line, ref.HasLine
	if base.Kind == domain.MarketKindRoundWinner && base.Round <= 0 {
		return MarketRef{}, fmt.Errorf("settlement: market %q has no round: %w", name, domain.ErrUnresolvableMarket)
	}
	return base, nil
}
