// Package search generates candidate parameter assignments from a parameter space.
package search

import (
	"fmt"
	"math/rand"
	"time"

	"hypothesis-lab/internal/domain"
)

// Strategy produces up to maxEvaluations distinct assignments from a space.
type Strategy interface {
	Candidates(space domain.ParameterSpace, maxEvaluations int) []domain.Assignment
	Method() domain.SearchMethod
}

// New returns the strategy for method. Random uses seed (0 picks a time-based seed).
func New(method domain.SearchMethod, seed int64) (Strategy, error) {
	switch method {
	case domain.SearchMethodGrid, "":
		return Grid{}, nil
	case domain.SearchMethodRandom:
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return NewRandom(rand.New(rand.NewSource(seed))), nil
	}
	return nil, fmt.Errorf("unknown search method %q", method)
}
