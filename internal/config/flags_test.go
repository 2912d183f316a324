package config

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() (*flag.FlagSet, *Overrides) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs, RegisterFlags(fs)
}

func TestOverrides_OnlySetFlagsApply(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	fs, o := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--start-year=2012", "--policy=rolling", "--simulations=250", "--use-stub"}))
	require.NoError(t, o.Apply(cfg))

	assert.Equal(t, 2012, cfg.WalkForward.StartYear)
	assert.Equal(t, "rolling", cfg.WalkForward.Policy)
	assert.Equal(t, 250, cfg.MonteCarlo.Simulations)
	assert.True(t, cfg.Backtest.UseStub)

	// Untouched flags keep loaded values, including zero-valued flag defaults.
	assert.Equal(t, 2023, cfg.WalkForward.EndYear)
	assert.Equal(t, 1, cfg.WalkForward.Workers)
	assert.Equal(t, "grid", cfg.WalkForward.Method)
}

func TestOverrides_Revalidates(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	fs, o := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--method=annealing"}))
	err = o.Apply(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}
