package search

import "hypothesis-lab/internal/domain"

// Grid enumerates the cartesian product of candidate values in declared order.
// The first parameter varies slowest.
type Grid struct{}

// Method returns domain.SearchMethodGrid.
func (Grid) Method() domain.SearchMethod { return domain.SearchMethodGrid }

// Candidates returns the first maxEvaluations points of the product.
func (Grid) Candidates(space domain.ParameterSpace, maxEvaluations int) []domain.Assignment {
	if space.Empty() || maxEvaluations <= 0 {
		return nil
	}
	lists := candidateLists(space)
	names := space.Names()

	// Odometer over indices; the last position turns fastest.
	idx := make([]int, len(lists))
	var out []domain.Assignment
	for len(out) < maxEvaluations {
		a := make(domain.Assignment, len(names))
		for i, name := range names {
			a[name] = lists[i][idx[i]]
		}
		out = append(out, a)

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(lists[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}
