package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSONKeepsType(t *testing.T) {
	in := Assignment{
		"flag":   BoolValue(true),
		"window": IntValue(20),
		"ratio":  FloatValue(2),
		"alpha":  FloatValue(0.25),
		"mode":   StringValue("fast"),
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"flag":true,"window":20,"ratio":2.0,"alpha":0.25,"mode":"fast"}`, string(raw))

	var out Assignment
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, in.Equal(out))
	assert.Equal(t, in.Key(), out.Key())
}

func TestAssignment_KeyIsOrderIndependent(t *testing.T) {
	a := Assignment{"b": IntValue(2), "a": IntValue(1)}
	b := Assignment{"a": IntValue(1), "b": IntValue(2)}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "a=1, b=2", a.String())

	c := Assignment{"a": FloatValue(1), "b": IntValue(2)}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestStrategyDocument_WithAssignmentLeavesOriginal(t *testing.T) {
	min, max, step := 1.0, 5.0, 1.0
	doc := StrategyDocument{
		ID:    "mom-1",
		Rules: map[string]string{"entry": "close > sma"},
		Parameters: []TunableParameter{
			{Name: "window", Kind: ParameterKindInteger, Min: &min, Max: &max, Step: &step, Default: IntValue(3)},
			{Name: "short", Kind: ParameterKindBoolean, Default: BoolValue(false)},
		},
	}

	params := Assignment{"window": IntValue(5)}
	variant := doc.WithAssignment(params)
	params["window"] = IntValue(99)
	variant.Rules["entry"] = "changed"
	*variant.Parameters[0].Min = 0

	assert.Nil(t, doc.Assigned)
	assert.Equal(t, "close > sma", doc.Rules["entry"])
	assert.Equal(t, 1.0, *doc.Parameters[0].Min)
	assert.Equal(t, IntValue(5), variant.Assigned["window"])

	eff := variant.EffectiveValues()
	assert.Equal(t, IntValue(5), eff["window"])
	assert.Equal(t, BoolValue(false), eff["short"])
}

func TestDateRange_Overlaps(t *testing.T) {
	a := YearRange(2015, 2016)
	b := YearRange(2016, 2017)
	c := YearRange(2017, 2017)
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
	assert.Equal(t, "2015-01-01..2016-12-31", a.String())
}
