package search

import (
	"math/rand"
	"sync"

	"hypothesis-lab/internal/domain"
)

// maxDrawFactor bounds random draws at maxDrawFactor*maxEvaluations.
const maxDrawFactor = 10

// Random samples assignments uniformly per parameter and deduplicates them.
// Spaces no larger than the cap are enumerated exhaustively via Grid.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random strategy drawing from rng.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

// Method returns domain.SearchMethodRandom.
func (r *Random) Method() domain.SearchMethod { return domain.SearchMethodRandom }

// Candidates returns up to maxEvaluations distinct assignments.
// Fewer may be returned when draws keep colliding.
func (r *Random) Candidates(space domain.ParameterSpace, maxEvaluations int) []domain.Assignment {
	if space.Empty() || maxEvaluations <= 0 {
		return nil
	}
	if SpaceSize(space) <= maxEvaluations {
		return Grid{}.Candidates(space, maxEvaluations)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lists := candidateLists(space)
	names := space.Names()
	seen := make(map[string]struct{}, maxEvaluations)
	var out []domain.Assignment

	for draws := 0; draws < maxDrawFactor*maxEvaluations && len(out) < maxEvaluations; draws++ {
		a := make(domain.Assignment, len(names))
		for i, name := range names {
			a[name] = lists[i][r.rng.Intn(len(lists[i]))]
		}
		key := a.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
