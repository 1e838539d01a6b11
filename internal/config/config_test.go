package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, ModeProd, cfg.Mode)
	require.InDelta(t, 2.0/3.0, cfg.Cluster.SuperMajorityThreshold, 1e-9)
	require.Equal(t, 0.5, cfg.Cluster.SimpleMajorityThreshold)
	require.Equal(t, 3, cfg.Cluster.MinAbsoluteClusterSize)
	require.Equal(t, 5, cfg.Cluster.RetryMaxAttempts)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: dev
dataDir: /var/lib/optimystic
cluster:
  minAbsoluteClusterSize: 1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ModeDev, cfg.Mode)
	require.Equal(t, "/var/lib/optimystic", cfg.DataDir)
	require.Equal(t, 1, cfg.Cluster.MinAbsoluteClusterSize)
	// Unset fields keep their defaults.
	require.Equal(t, 5, cfg.Cluster.RetryMaxAttempts)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestThresholdsAndRetryConfigConversion(t *testing.T) {
	cfg := Default()
	th := cfg.Cluster.Thresholds()
	require.Equal(t, cfg.Cluster.SuperMajorityThreshold, th.SuperMajority)

	rc := cfg.Cluster.RetryConfig()
	require.Equal(t, 5, rc.MaxAttempts)
}
