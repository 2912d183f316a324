package search

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/domain"
)

func f(v float64) *float64 { return &v }

func intParam(name string, min, max, step float64) domain.TunableParameter {
	return domain.TunableParameter{
		Name: name, Kind: domain.ParameterKindInteger,
		Min: f(min), Max: f(max), Step: f(step),
		Default: domain.IntValue(int64(min)),
	}
}

func TestCandidateValues(t *testing.T) {
	tests := []struct {
		name  string
		param domain.TunableParameter
		want  []domain.Value
	}{
		{
			name:  "boolean",
			param: domain.TunableParameter{Name: "b", Kind: domain.ParameterKindBoolean},
			want:  []domain.Value{domain.BoolValue(true), domain.BoolValue(false)},
		},
		{
			name:  "integer inclusive range",
			param: intParam("n", 10, 20, 5),
			want:  []domain.Value{domain.IntValue(10), domain.IntValue(15), domain.IntValue(20)},
		},
		{
			name: "float range rounds drift",
			param: domain.TunableParameter{
				Name: "x", Kind: domain.ParameterKindFloat,
				Min: f(0.1), Max: f(0.3), Step: f(0.1),
			},
			want: []domain.Value{domain.FloatValue(0.1), domain.FloatValue(0.2), domain.FloatValue(0.3)},
		},
		{
			name: "missing bounds fall back to default",
			param: domain.TunableParameter{
				Name: "n", Kind: domain.ParameterKindInteger, Default: domain.IntValue(7),
			},
			want: []domain.Value{domain.IntValue(7)},
		},
		{
			name: "non-positive step falls back to default",
			param: domain.TunableParameter{
				Name: "n", Kind: domain.ParameterKindInteger,
				Min: f(1), Max: f(5), Step: f(0), Default: domain.IntValue(3),
			},
			want: []domain.Value{domain.IntValue(3)},
		},
		{
			name: "empty choice set falls back to default",
			param: domain.TunableParameter{
				Name: "mode", Kind: domain.ParameterKindChoice, Default: domain.StringValue("fast"),
			},
			want: []domain.Value{domain.StringValue("fast")},
		},
		{
			name: "choices preserved in order",
			param: domain.TunableParameter{
				Name: "mode", Kind: domain.ParameterKindChoice,
				Choices: []domain.Value{domain.StringValue("a"), domain.StringValue("b")},
			},
			want: []domain.Value{domain.StringValue("a"), domain.StringValue("b")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CandidateValues(tt.param))
		})
	}
}

func TestSpaceSize(t *testing.T) {
	space := domain.ParameterSpace{Parameters: []domain.TunableParameter{
		intParam("a", 1, 3, 1),
		{Name: "b", Kind: domain.ParameterKindBoolean},
	}}
	assert.Equal(t, 6, SpaceSize(space))
	assert.Equal(t, 0, SpaceSize(domain.ParameterSpace{}))
}

func TestGrid_OrderAndCap(t *testing.T) {
	space := domain.ParameterSpace{Parameters: []domain.TunableParameter{
		intParam("a", 1, 2, 1),
		intParam("b", 10, 30, 10),
	}}

	all := Grid{}.Candidates(space, 100)
	require.Len(t, all, 6)
	// First parameter varies slowest.
	assert.Equal(t, domain.IntValue(1), all[0]["a"])
	assert.Equal(t, domain.IntValue(10), all[0]["b"])
	assert.Equal(t, domain.IntValue(1), all[2]["a"])
	assert.Equal(t, domain.IntValue(30), all[2]["b"])
	assert.Equal(t, domain.IntValue(2), all[3]["a"])

	capped := Grid{}.Candidates(space, 4)
	require.Len(t, capped, 4)
	assert.Equal(t, all[:4], capped)
}

func TestGrid_SizeIsMinOfProductAndCap(t *testing.T) {
	space := domain.ParameterSpace{Parameters: []domain.TunableParameter{
		intParam("a", 1, 5, 1),
		intParam("b", 1, 4, 1),
	}}
	for _, cap := range []int{1, 7, 20, 50} {
		got := Grid{}.Candidates(space, cap)
		assert.Len(t, got, min(20, cap))

		seen := map[string]bool{}
		for _, a := range got {
			assert.False(t, seen[a.Key()], "duplicate assignment %s", a)
			seen[a.Key()] = true
		}
	}
}

func TestGrid_EmptySpace(t *testing.T) {
	assert.Empty(t, Grid{}.Candidates(domain.ParameterSpace{}, 10))
}

func TestRandom_SmallSpaceMatchesGrid(t *testing.T) {
	space := domain.ParameterSpace{Parameters: []domain.TunableParameter{
		intParam("a", 1, 3, 1),
		{Name: "b", Kind: domain.ParameterKindBoolean},
	}}
	r := NewRandom(rand.New(rand.NewSource(1)))
	assert.Equal(t, Grid{}.Candidates(space, 10), r.Candidates(space, 10))
}

func TestRandom_DistinctAndCapped(t *testing.T) {
	space := domain.ParameterSpace{Parameters: []domain.TunableParameter{
		intParam("a", 1, 100, 1),
		intParam("b", 1, 100, 1),
	}}
	r := NewRandom(rand.New(rand.NewSource(42)))
	got := r.Candidates(space, 25)
	require.Len(t, got, 25)

	seen := map[string]bool{}
	for _, a := range got {
		assert.False(t, seen[a.Key()])
		seen[a.Key()] = true
	}
}

func TestRandom_DeterministicWithSeed(t *testing.T) {
	space := domain.ParameterSpace{Parameters: []domain.TunableParameter{
		intParam("a", 1, 50, 1),
		intParam("b", 1, 50, 1),
	}}
	a := NewRandom(rand.New(rand.NewSource(7))).Candidates(space, 10)
	b := NewRandom(rand.New(rand.NewSource(7))).Candidates(space, 10)
	assert.Equal(t, a, b)
}

func TestNew_UnknownMethod(t *testing.T) {
	_, err := New("bayesian", 1)
	require.Error(t, err)

	s, err := New(domain.SearchMethodRandom, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.SearchMethodRandom, s.Method())
}
