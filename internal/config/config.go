// Package config loads the storage engine's cluster, retry, and
// mode settings from a YAML file, defaulting every field the §6
// configuration surface documents.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/optimystic/internal/cluster"
)

// Mode selects development-friendly behavior (small clusters allowed
// without a network-size estimate) versus production behavior.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// Cluster carries the C6 threshold and retry knobs (§6).
type Cluster struct {
	SuperMajorityThreshold  float64 `yaml:"superMajorityThreshold"`
	SimpleMajorityThreshold float64 `yaml:"simpleMajorityThreshold"`
	AllowClusterDownsize    bool    `yaml:"allowClusterDownsize"`
	ClusterSizeTolerance    float64 `yaml:"clusterSizeTolerance"`
	MinAbsoluteClusterSize  int     `yaml:"minAbsoluteClusterSize"`

	RetryInitialIntervalMs int     `yaml:"retryInitialIntervalMs"`
	RetryBackoffFactor     float64 `yaml:"retryBackoffFactor"`
	RetryMaxIntervalMs     int     `yaml:"retryMaxIntervalMs"`
	RetryMaxAttempts       int     `yaml:"retryMaxAttempts"`
}

// Config is the root configuration document.
type Config struct {
	Mode        Mode    `yaml:"mode"`
	DataDir     string  `yaml:"dataDir"`
	ListenAddr  string  `yaml:"listenAddr"`
	MetricsAddr string  `yaml:"metricsAddr"`
	Cluster     Cluster `yaml:"cluster"`
}

// Default returns the documented §6 defaults.
func Default() Config {
	return Config{
		Mode:        ModeProd,
		DataDir:     "./data",
		ListenAddr:  ":7070",
		MetricsAddr: ":9090",
		Cluster: Cluster{
			SuperMajorityThreshold:  2.0 / 3.0,
			SimpleMajorityThreshold: 0.5,
			AllowClusterDownsize:    false,
			ClusterSizeTolerance:    0.25,
			MinAbsoluteClusterSize:  3,
			RetryInitialIntervalMs:  2000,
			RetryBackoffFactor:      2.0,
			RetryMaxIntervalMs:      30000,
			RetryMaxAttempts:        5,
		},
	}
}

// Load reads and parses a YAML config file, layering it over Default
// so an omitted field keeps its documented default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Thresholds converts the loaded Cluster settings into the
// cluster.Thresholds the coordinator consumes.
func (c Cluster) Thresholds() cluster.Thresholds {
	return cluster.Thresholds{
		SuperMajority:          c.SuperMajorityThreshold,
		SimpleMajority:         c.SimpleMajorityThreshold,
		AllowClusterDownsize:   c.AllowClusterDownsize,
		ClusterSizeTolerance:   c.ClusterSizeTolerance,
		MinAbsoluteClusterSize: c.MinAbsoluteClusterSize,
	}
}

// RetryConfig converts the loaded retry settings into the
// cluster.RetryConfig the coordinator consumes.
func (c Cluster) RetryConfig() cluster.RetryConfig {
	return cluster.RetryConfig{
		InitialInterval: time.Duration(c.RetryInitialIntervalMs) * time.Millisecond,
		BackoffFactor:   c.RetryBackoffFactor,
		MaxInterval:     time.Duration(c.RetryMaxIntervalMs) * time.Millisecond,
		MaxAttempts:     c.RetryMaxAttempts,
	}
}
