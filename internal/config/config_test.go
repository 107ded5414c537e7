package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indicatorsYAML = `
atypicality:
  variable: c04_referencelist
  samples: 10
  keepDiag: true
novelty:
  variable: c04_referencelist
  futureWindow: 5
foster:
  variable: keywords
`

func TestParseIndicators_Defaults(t *testing.T) {
	cfg, err := ParseIndicators([]byte(indicatorsYAML))
	require.NoError(t, err)

	require.NotNil(t, cfg.Atypicality)
	assert.Equal(t, 10, cfg.Atypicality.Samples)
	assert.Equal(t, DefaultCheckpointEvery, cfg.Atypicality.CheckpointEvery)
	assert.Equal(t, ModeCombinatorial, cfg.Atypicality.Mode)
	assert.True(t, cfg.Atypicality.KeepDiag)

	require.NotNil(t, cfg.Novelty)
	assert.Equal(t, DefaultWindow, cfg.Novelty.PastWindow)
	assert.Equal(t, 5, cfg.Novelty.FutureWindow)
	assert.Equal(t, DefaultReuseThreshold, cfg.Novelty.ReuseThreshold)

	require.NotNil(t, cfg.Foster)
	assert.Equal(t, DefaultEdgeFraction, cfg.Foster.EdgeFraction)

	assert.Nil(t, cfg.Commonness)
	assert.Nil(t, cfg.Distance)
}

func TestParseIndicators_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":            ``,
		"missing variable": "commonness:\n  weighted: true\n",
		"bad mode":         "commonness:\n  variable: v\n  mode: dense\n",
		"weighted dot":     "commonness:\n  variable: v\n  mode: binarized_dot\n  weighted: true\n",
		"one sample":       "atypicality:\n  variable: v\n  samples: 1\n",
		"bad threshold":    "novelty:\n  variable: v\n  reuseThreshold: -2\n",
		"bad fraction":     "foster:\n  variable: v\n  edgeFraction: 1.5\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIndicators([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadIndicators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(indicatorsYAML), 0o600))

	cfg, err := LoadIndicators(path)
	require.NoError(t, err)
	assert.Equal(t, "keywords", cfg.Foster.Variable)

	_, err = LoadIndicators(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WORKERS", "8")
	t.Setenv("STORE_BACKEND", "redis")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, "sqlite3", cfg.DocStoreDriver)
}
