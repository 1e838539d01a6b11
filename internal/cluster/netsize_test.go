package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	reachable map[PeerId]bool
}

func (f fakeProber) Probe(ctx context.Context, peer PeerId) (bool, error) {
	return f.reachable[peer], nil
}

func TestEstimatorAllReachableHighConfidence(t *testing.T) {
	prober := fakeProber{reachable: map[PeerId]bool{"p1": true, "p2": true, "p3": true}}
	est := NewEstimator(prober, []PeerId{"p1", "p2", "p3"}, time.Second)

	result := est.Estimate(context.Background(), 2)
	require.Equal(t, 1.0, result.Confidence)
	require.GreaterOrEqual(t, result.Estimate, 2)
}

func TestEstimatorNoSeedsZeroConfidence(t *testing.T) {
	est := NewEstimator(fakeProber{}, nil, time.Second)
	result := est.Estimate(context.Background(), 2)
	require.Equal(t, 0.0, result.Confidence)
	require.Equal(t, 2, result.Estimate)
}

func TestEstimatorPartialReachability(t *testing.T) {
	prober := fakeProber{reachable: map[PeerId]bool{"p1": true}}
	est := NewEstimator(prober, []PeerId{"p1", "p2"}, time.Second)

	result := est.Estimate(context.Background(), 1)
	require.Equal(t, 0.5, result.Confidence)
}
