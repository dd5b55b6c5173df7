package simulator

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/rng"
)

const quizSize = 3

// candidates builds the deterministic candidate list for a quiz match.
// Regional events filter by slug, then widen to neighbor regions, then fall
// back to the national pool.
func candidates(category, regionSlug string, pool, national []domain.Participant, neighbors map[string][]string) ([]domain.Participant, error) {
	if category == domain.CategoryRegional && regionSlug != "" {
		picked := filterRegion(pool, regionSlug)
		if len(picked) >= quizSize {
			return picked, nil
		}
		for _, n := range neighbors[regionSlug] {
			picked = append(picked, filterRegion(pool, n)...)
			picked = dedupe(picked)
			if len(picked) >= quizSize {
				return picked, nil
			}
		}
	}
	picked := dedupe(national)
	if len(picked) < quizSize && category != domain.CategoryRegional {
		picked = dedupe(append(picked, pool...))
	}
	if len(picked) < quizSize {
		return nil, fmt.Errorf("simulator: %d candidates for %s/%s: %w",
			len(picked), category, regionSlug, domain.ErrInsufficientParticipants)
	}
	return picked, nil
}

func filterRegion(pool []domain.Participant, slug string) []domain.Participant {
	var out []domain.Participant
	for _, p := range pool {
		if domain.Slugify(p.Region) == slug {
			out = append(out, p)
		}
	}
	return out
}

// dedupe drops repeated names and sorts by name so the caller's ordering
// never leaks into the shuffle.
func dedupe(in []domain.Participant) []domain.Participant {
	seen := make(map[string]bool, len(in))
	out := make([]domain.Participant, 0, len(in))
	for _, p := range in {
		if p.Name == "" || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// pickTriplet shuffles candidates with the round-wide selection stream and
// returns the disjoint triplet addressed by the match slot. Every match of a
// round slot sees the same shuffle, so triplets never overlap within a cycle.
func pickTriplet(src *rng.Source, list []domain.Participant, match int) []domain.Participant {
	shuffled := make([]domain.Participant, len(list))
	copy(shuffled, list)
	src.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	triplets := len(shuffled) / quizSize
	slot := match % triplets
	if slot < 0 {
		slot += triplets
	}
	out := make([]domain.Participant, quizSize)
	copy(out, shuffled[slot*quizSize:slot*quizSize+quizSize])
	return out
}
