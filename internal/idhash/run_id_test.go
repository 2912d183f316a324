package idhash

import (
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypothesis-lab/internal/domain"
)

func TestComputeRunID(t *testing.T) {
	cfg := domain.DefaultWalkForwardConfig()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	id := ComputeRunID("mom-1", cfg, ts)
	raw, err := base58.Decode(id)
	require.NoError(t, err)
	assert.Len(t, raw, 16)

	assert.Equal(t, id, ComputeRunID("mom-1", cfg, ts), "must be deterministic")
	assert.NotEqual(t, id, ComputeRunID("mom-2", cfg, ts))
	assert.NotEqual(t, id, ComputeRunID("mom-1", cfg, ts.Add(time.Millisecond)))

	rolling := cfg
	rolling.Policy = domain.WindowRolling
	assert.NotEqual(t, id, ComputeRunID("mom-1", rolling, ts))
}

func TestComputeEvaluationKey(t *testing.T) {
	doc := domain.StrategyDocument{ID: "s", Rules: map[string]string{"entry": "close > sma(20)"}}
	r := domain.YearRange(2012, 2014)
	a := domain.Assignment{"x": domain.IntValue(1), "y": domain.BoolValue(true)}
	b := domain.Assignment{"y": domain.BoolValue(true), "x": domain.IntValue(1)}

	key := func(d domain.StrategyDocument, p domain.Assignment, rng domain.DateRange) string {
		k, err := ComputeEvaluationKey(d, p, rng)
		require.NoError(t, err)
		return k
	}

	base := key(doc, a, r)
	assert.Equal(t, base, key(doc, b, r))
	assert.Equal(t, base, key(doc.WithAssignment(b), a, r), "assigned values are not part of the document hash")
	assert.NotEqual(t, base, key(doc, a, domain.YearRange(2012, 2015)))

	renamed := doc.Clone()
	renamed.ID = "t"
	assert.NotEqual(t, base, key(renamed, a, r))

	edited := doc.Clone()
	edited.Rules["entry"] = "close > sma(50)"
	assert.NotEqual(t, base, key(edited, a, r))

	retimed := doc.Clone()
	retimed.Timeframe = "1h"
	assert.NotEqual(t, base, key(retimed, a, r))
}
