package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileOutputJSON(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Output = "file"
	cfg.Level = "debug"
	cfg.Filename = filepath.Join(t.TempDir(), "nested", "lab.log")

	log, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	Component(log, "optimizer").WithField("candidates", 3).Info("optimization started")

	data, err := os.ReadFile(cfg.Filename)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "optimization started", entry["msg"])
	assert.Equal(t, "optimizer", entry["component"])
	assert.Equal(t, 3.0, entry["candidates"])
}

func TestNew_InvalidLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	_, err := New(cfg)
	assert.Error(t, err)
}
