package cluster

import (
	"context"
	"time"
)

// SizeEstimate is the result of probing the wider network for an
// approximate peer count, used by small-cluster validation (§4.5).
type SizeEstimate struct {
	Estimate   int
	Confidence float64
}

// Prober checks whether a single seed peer is currently reachable. A
// one-method liveness-check seam, repurposed here for peer sampling
// instead of container health.
type Prober interface {
	Probe(ctx context.Context, peer PeerId) (reachable bool, err error)
}

// Estimator is the C11 network-size estimator: given the cluster this
// peer observes for a blockId, it produces an (estimate, confidence)
// for the wider network by probing a seed set of known peers beyond
// the observed cluster: the estimate is the number of responsive
// seeds, raised to the observed cluster size when smaller, and the
// confidence is the responsive fraction.
type Estimator struct {
	prober  Prober
	seeds   []PeerId
	timeout time.Duration
}

// NewEstimator creates an Estimator over a fixed seed set. seeds
// should be a sample of peers known to this node from the routing
// layer, independent of any one cluster.
func NewEstimator(prober Prober, seeds []PeerId, timeout time.Duration) *Estimator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Estimator{prober: prober, seeds: seeds, timeout: timeout}
}

// Estimate probes every seed peer in parallel. The estimate is the
// responsive fraction times the seed count (the number of responsive
// seeds), never less than observedClusterSize; the confidence is the
// responsive fraction, so a mostly-responsive seed set yields high
// confidence even when the seed set itself is small.
func (e *Estimator) Estimate(ctx context.Context, observedClusterSize int) SizeEstimate {
	if len(e.seeds) == 0 {
		return SizeEstimate{Estimate: observedClusterSize, Confidence: 0}
	}

	type result struct {
		reachable bool
	}
	results := make(chan result, len(e.seeds))
	for _, peer := range e.seeds {
		peer := peer
		go func() {
			pctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			reachable, err := e.prober.Probe(pctx, peer)
			results <- result{reachable: err == nil && reachable}
		}()
	}

	responsive := 0
	for range e.seeds {
		r := <-results
		if r.reachable {
			responsive++
		}
	}

	fraction := float64(responsive) / float64(len(e.seeds))
	estimate := int(fraction * float64(len(e.seeds)))
	if estimate < observedClusterSize {
		estimate = observedClusterSize
	}
	return SizeEstimate{Estimate: estimate, Confidence: fraction}
}

// WithinOrderOfMagnitude reports whether estimate is within one order
// of magnitude of observed, per §4.5's small-cluster validation rule.
func WithinOrderOfMagnitude(estimate, observed int) bool {
	if observed <= 0 {
		observed = 1
	}
	ratio := float64(estimate) / float64(observed)
	return ratio >= 0.1 && ratio <= 10
}
