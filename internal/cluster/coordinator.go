package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/optimystic/internal/events"
	"github.com/cuemby/optimystic/pkg/log"
	"github.com/cuemby/optimystic/pkg/metrics"
)

// ErrRejectedByValidators is returned when more peers reject the
// promise than the super-majority threshold tolerates.
var ErrRejectedByValidators = errors.New("cluster: rejected by validators")

// ErrSuperMajorityFailed is returned when the promise phase cannot
// gather a super-majority of approvals.
var ErrSuperMajorityFailed = errors.New("cluster: super-majority failed")

// ErrClusterTooSmall is returned when small-cluster validation fails
// and the coordinator is not running in developer mode.
var ErrClusterTooSmall = errors.New("cluster: cluster size below minimum and network-size estimate did not corroborate it")

// State names the cluster-request state machine of §4.5.
type State string

const (
	StatePromising           State = "Promising"
	StatePromised            State = "Promised"
	StateRejectedByValidators State = "RejectedByValidators"
	StateSuperMajorityFailed State = "SuperMajorityFailed"
	StateCommitting          State = "Committing"
	StateCommitted           State = "Committed"
	StateCommitPartial       State = "CommitPartial"
	StateRetrying            State = "Retrying"
)

// PeerClient dispatches promise/commit requests to a single peer.
// The local peer is handled in-process by the coordinator without
// going through this interface.
type PeerClient interface {
	Promise(ctx context.Context, peer PeerId, record *ClusterRecord) (Signature, error)
	Commit(ctx context.Context, peer PeerId, record *ClusterRecord) (Signature, error)
}

// LocalHandler answers promise/commit requests for the local peer
// in-process, without a network round trip.
type LocalHandler interface {
	PromiseLocal(ctx context.Context, record *ClusterRecord) Signature
	CommitLocal(ctx context.Context, record *ClusterRecord) Signature
}

// Outcome is the result of driving one ClusterRecord through the
// promise/commit protocol.
type Outcome struct {
	State      State
	Record     *ClusterRecord
	Stragglers []PeerId
}

// Coordinator runs the two-phase promise/commit protocol (C6) for
// RepoMessages addressed to a cluster of peers. One Coordinator is
// shared by every cluster transaction a peer originates.
type Coordinator struct {
	localPeer  PeerId
	client     PeerClient
	local      LocalHandler
	thresholds Thresholds
	retry      RetryConfig
	estimator  *Estimator
	devMode    bool

	mu       sync.Mutex
	inFlight map[string]*ClusterRecord

	events *events.Broker
	logger zerolog.Logger
}

// SetEvents attaches a broker that ExecuteClusterTransaction publishes
// promise/commit outcome events to. A nil broker (the default)
// disables publishing entirely.
func (c *Coordinator) SetEvents(b *events.Broker) {
	c.events = b
}

func (c *Coordinator) publish(typ events.Type, messageHash string) {
	if c.events == nil {
		return
	}
	c.events.Publish(&events.Event{Type: typ, Message: messageHash})
}

// NewCoordinator constructs a Coordinator. estimator may be nil, in
// which case small-cluster validation always fails closed in
// production mode and always succeeds in developer mode.
func NewCoordinator(localPeer PeerId, client PeerClient, local LocalHandler, thresholds Thresholds, retry RetryConfig, estimator *Estimator, devMode bool) *Coordinator {
	return &Coordinator{
		localPeer:  localPeer,
		client:     client,
		local:      local,
		thresholds: thresholds,
		retry:      retry,
		estimator:  estimator,
		devMode:    devMode,
		inFlight:   make(map[string]*ClusterRecord),
		logger:     log.WithNodeID(string(localPeer)).With().Str("component", "cluster").Logger(),
	}
}

// ExecuteClusterTransaction drives msg through promise then commit
// against the named peers. The commit phase waits for every peer to
// reply or fail, then succeeds if a simple majority approved (a
// terminal failure in the promise phase returns earlier). Stragglers,
// if any, are retried asynchronously in the background and are not
// awaited.
func (c *Coordinator) ExecuteClusterTransaction(ctx context.Context, msg RepoMessage, peers map[PeerId]PeerAddr, blockIds []string) (*Outcome, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ClusterTransactionDuration)

	record := NewClusterRecord(msg, peers, blockIds)
	peerCount := len(peers)

	if peerCount < c.thresholds.MinAbsoluteClusterSize {
		if err := c.validateSmallCluster(ctx, peerCount); err != nil {
			return &Outcome{State: StateRejectedByValidators, Record: record}, err
		}
	}

	c.register(record)
	defer c.scheduleCleanup(record.MessageHash)

	if err := c.promisePhase(ctx, record, peerCount); err != nil {
		var state State
		switch {
		case errors.Is(err, ErrRejectedByValidators):
			state = StateRejectedByValidators
			metrics.ClusterPromiseOutcomeTotal.WithLabelValues("rejected").Inc()
			c.publish(events.ClusterRejected, record.MessageHash)
		case errors.Is(err, ErrSuperMajorityFailed):
			state = StateSuperMajorityFailed
			metrics.ClusterPromiseOutcomeTotal.WithLabelValues("no-quorum").Inc()
			c.publish(events.ClusterRejected, record.MessageHash)
		default:
			state = StateSuperMajorityFailed
			metrics.ClusterPromiseOutcomeTotal.WithLabelValues("error").Inc()
			c.publish(events.ClusterRejected, record.MessageHash)
		}
		return &Outcome{State: state, Record: record}, err
	}
	metrics.ClusterPromiseOutcomeTotal.WithLabelValues("quorum").Inc()
	c.publish(events.ClusterPromised, record.MessageHash)

	outcome, err := c.commitPhase(ctx, record, peerCount)
	if err != nil {
		metrics.ClusterCommitOutcomeTotal.WithLabelValues("error").Inc()
		return outcome, err
	}
	if outcome.State == StateCommitted {
		metrics.ClusterCommitOutcomeTotal.WithLabelValues("committed").Inc()
		c.publish(events.ClusterCommitted, record.MessageHash)
	} else {
		metrics.ClusterCommitOutcomeTotal.WithLabelValues("partial").Inc()
		c.publish(events.ClusterCommitPartial, record.MessageHash)
		c.retryStragglers(record, outcome.Stragglers)
	}
	return outcome, nil
}

func (c *Coordinator) validateSmallCluster(ctx context.Context, observed int) error {
	if c.estimator == nil {
		if c.devMode {
			return nil
		}
		return ErrClusterTooSmall
	}
	est := c.estimator.Estimate(ctx, observed)
	if est.Confidence > 0.5 && WithinOrderOfMagnitude(est.Estimate, observed) {
		return nil
	}
	if c.devMode {
		return nil
	}
	return ErrClusterTooSmall
}

func (c *Coordinator) register(record *ClusterRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight[record.MessageHash] = record
}

// scheduleCleanup removes the in-flight record after a delay long
// enough to absorb late promise replies, per §9's "Ambient coordinator
// state" redesign note.
func (c *Coordinator) scheduleCleanup(hash string) {
	const lateReplyGrace = 5 * time.Second
	go func() {
		time.Sleep(lateReplyGrace)
		c.mu.Lock()
		delete(c.inFlight, hash)
		c.mu.Unlock()
	}()
}

func (c *Coordinator) promisePhase(ctx context.Context, record *ClusterRecord, peerCount int) error {
	type promiseResult struct {
		peer PeerId
		sig  Signature
		err  error
	}
	results := make(chan promiseResult, peerCount)

	for peer := range record.Peers {
		peer := peer
		if peer == c.localPeer {
			sig := c.local.PromiseLocal(ctx, record)
			results <- promiseResult{peer: peer, sig: sig}
			continue
		}
		go func() {
			sig, err := c.client.Promise(ctx, peer, record)
			results <- promiseResult{peer: peer, sig: sig, err: err}
		}()
	}

	rejections := 0
	for i := 0; i < peerCount; i++ {
		r := <-results
		if r.err != nil {
			continue
		}
		record.Promises[r.peer] = r.sig
		if r.sig.Type == SignatureReject {
			rejections++
		}
	}

	if rejections > c.thresholds.MaxAllowedRejections(peerCount) {
		return ErrRejectedByValidators
	}

	if peerCount > 1 {
		approvals := 0
		for _, sig := range record.Promises {
			if sig.Type == SignatureApprove {
				approvals++
			}
		}
		if approvals < c.thresholds.SuperMajorityCount(peerCount) {
			return ErrSuperMajorityFailed
		}
	}

	return nil
}

func (c *Coordinator) commitPhase(ctx context.Context, record *ClusterRecord, peerCount int) (*Outcome, error) {
	type commitResult struct {
		peer PeerId
		sig  Signature
		err  error
	}
	results := make(chan commitResult, peerCount)

	for peer := range record.Peers {
		peer := peer
		if peer == c.localPeer {
			sig := c.local.CommitLocal(ctx, record)
			results <- commitResult{peer: peer, sig: sig}
			continue
		}
		go func() {
			sig, err := c.client.Commit(ctx, peer, record)
			results <- commitResult{peer: peer, sig: sig, err: err}
		}()
	}

	acked := make(map[PeerId]bool, peerCount)
	for i := 0; i < peerCount; i++ {
		r := <-results
		if r.err != nil || r.sig.Type != SignatureApprove {
			continue
		}
		record.Commits[r.peer] = r.sig
		acked[r.peer] = true
	}

	if len(record.Commits) < c.thresholds.SimpleMajorityCount(peerCount) {
		return &Outcome{State: StateCommitPartial, Record: record}, fmt.Errorf("cluster: commit phase did not reach simple majority (%d/%d acked)", len(record.Commits), peerCount)
	}

	var stragglers []PeerId
	for peer := range record.Peers {
		if !acked[peer] {
			stragglers = append(stragglers, peer)
		}
	}

	if len(stragglers) == 0 {
		return &Outcome{State: StateCommitted, Record: record}, nil
	}
	return &Outcome{State: StateCommitPartial, Record: record, Stragglers: stragglers}, nil
}

// retryStragglers schedules background retries with exponential
// backoff for peers that did not acknowledge commit, per §4.5's retry
// phase.
func (c *Coordinator) retryStragglers(record *ClusterRecord, stragglers []PeerId) {
	pending := make(map[PeerId]bool, len(stragglers))
	for _, p := range stragglers {
		pending[p] = true
	}
	metrics.ClusterRetryQueueDepth.Add(float64(len(pending)))

	batchId := uuid.NewString()
	batchLog := c.logger.With().Str("retry_batch_id", batchId).Str("message_hash", record.MessageHash).Logger()
	batchLog.Debug().Int("stragglers", len(pending)).Msg("scheduling straggler retry batch")

	go func() {
		ctx := context.Background()
		for attempt := 1; attempt <= c.retry.MaxAttempts && len(pending) > 0; attempt++ {
			time.Sleep(c.retry.IntervalForAttempt(attempt))
			for peer := range pending {
				metrics.ClusterRetryAttemptsTotal.Inc()
				sig, err := c.client.Commit(ctx, peer, record)
				if err != nil || sig.Type != SignatureApprove {
					batchLog.Debug().Str("peer", string(peer)).Int("attempt", attempt).Err(err).Msg("straggler retry failed")
					continue
				}
				record.Commits[peer] = sig
				delete(pending, peer)
				metrics.ClusterRetryQueueDepth.Dec()
			}
		}
		if len(pending) > 0 {
			batchLog.Warn().Int("stragglers_remaining", len(pending)).Msg("retry budget exhausted with stragglers outstanding")
			metrics.ClusterRetryQueueDepth.Sub(float64(len(pending)))
		}
	}()
}
