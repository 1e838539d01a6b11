package cluster

import "math"

// Thresholds carries the cluster-size-dependent consensus parameters
// of §6: super-majority for promise, simple-majority for commit, plus
// the small-cluster validation knobs.
type Thresholds struct {
	SuperMajority          float64
	SimpleMajority         float64
	AllowClusterDownsize   bool
	ClusterSizeTolerance   float64
	MinAbsoluteClusterSize int
}

// DefaultThresholds matches the documented defaults in §6.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SuperMajority:          2.0 / 3.0,
		SimpleMajority:         0.5,
		AllowClusterDownsize:   false,
		ClusterSizeTolerance:   0.25,
		MinAbsoluteClusterSize: 3,
	}
}

// SuperMajorityCount returns ⌈peerCount * θ_super⌉.
func (t Thresholds) SuperMajorityCount(peerCount int) int {
	return int(math.Ceil(float64(peerCount) * t.SuperMajority))
}

// SimpleMajorityCount returns ⌊peerCount * θ_simple⌋ + 1.
func (t Thresholds) SimpleMajorityCount(peerCount int) int {
	return int(math.Floor(float64(peerCount)*t.SimpleMajority)) + 1
}

// MaxAllowedRejections returns peerCount - SuperMajorityCount(peerCount).
func (t Thresholds) MaxAllowedRejections(peerCount int) int {
	return peerCount - t.SuperMajorityCount(peerCount)
}
