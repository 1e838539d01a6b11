package txn

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/engine"
	"github.com/cuemby/optimystic/internal/events"
	"github.com/cuemby/optimystic/internal/repository"
	"github.com/cuemby/optimystic/pkg/log"
	"github.com/cuemby/optimystic/pkg/metrics"
)

// appliedAction is one collection's Apply outcome, threaded through
// GATHER/PEND/COMMIT and, on failure, CANCEL compensation.
type appliedAction struct {
	coll       *Collection
	rev        block.Revision
	transforms block.Transforms
	criticalId block.Id
	blockIds   []block.Id
}

// NomineeQuerier is the GATHER-phase hook: for a critical block
// touched by a multi-collection transaction, it asks that block's
// cluster who else it thinks belongs in the supercluster (§4.6 GATHER,
// skipped entirely for single-collection transactions).
type NomineeQuerier interface {
	QueryNominees(ctx context.Context, criticalBlockId block.Id) ([]string, error)
}

// Coordinator drives a transaction's statements through a registered
// engine, applies the resulting per-collection actions, and commits
// them atomically across every collection touched, compensating with
// CANCEL on any failure (C9, §4.6).
type Coordinator struct {
	registry    *engine.Registry
	collections map[string]*Collection
	nominees    NomineeQuerier
	events      *events.Broker
	logger      zerolog.Logger
}

// SetEvents attaches a broker that Execute publishes lifecycle events
// to (transaction.committed/failed/compensated). Publishing is
// best-effort and non-blocking; a nil broker (the default) disables
// it entirely.
func (c *Coordinator) SetEvents(b *events.Broker) {
	c.events = b
}

func (c *Coordinator) publish(typ events.Type, message string) {
	if c.events == nil {
		return
	}
	c.events.Publish(&events.Event{Type: typ, Message: message})
}

// NewCoordinator builds a Coordinator over a fixed set of collections.
// nominees may be nil; GATHER is then skipped even for multi-collection
// transactions, trusting PEND's own conflict detection.
func NewCoordinator(registry *engine.Registry, collections map[string]*Collection, nominees NomineeQuerier) *Coordinator {
	return &Coordinator{
		registry:    registry,
		collections: collections,
		nominees:    nominees,
		logger:      log.WithComponent("txn.coordinator"),
	}
}

// Execute runs statements through engineId's engine and drives the
// resulting actions through Apply/GATHER/PEND/COMMIT, compensating
// with CANCEL on any failure (§4.6).
func (c *Coordinator) Execute(ctx context.Context, peerId, engineId, schemaHash string, statements []string, timestamp int64) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TransactionDuration)

	eng, err := c.registry.Get(engineId)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("engine-not-registered").Inc()
		return Result{Success: false, Reason: err.Error()}, nil
	}

	execResult, err := eng.Execute(ctx, statements)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("engine-error").Inc()
		return Result{}, fmt.Errorf("txn: engine execute: %w", err)
	}
	if !execResult.Success {
		metrics.TransactionsTotal.WithLabelValues("statements-invalid").Inc()
		return Result{Success: false, Reason: execResult.Error}, nil
	}

	stamp := NewStamp(peerId, timestamp, engineId, schemaHash)
	tx := NewTransaction(stamp, statements, nil)

	actionId, err := block.NewActionId()
	if err != nil {
		return Result{}, fmt.Errorf("txn: generate action id: %w", err)
	}

	// Apply: act on each collection's tracker, then append each
	// touched collection's transforms to its Log, recording the
	// critical block (the Log's own tail chunk stands in for it —
	// every collection touched by the transaction has exactly one).
	var touched []appliedAction

	for _, ca := range execResult.Actions {
		coll, ok := c.collections[ca.CollectionId]
		if !ok {
			return c.compensate(ctx, touched, actionId, tx.Id, fmt.Sprintf("unknown collection %q", ca.CollectionId))
		}
		for _, action := range ca.Actions {
			if err := coll.Act(action); err != nil {
				return c.compensate(ctx, touched, actionId, tx.Id, err.Error())
			}
		}
		rev, transforms, err := coll.Apply(ctx, actionId)
		if err != nil {
			return c.compensate(ctx, touched, actionId, tx.Id, err.Error())
		}
		blockIds := block.BlockIdsForTransforms(transforms)
		var critical block.Id
		if len(blockIds) > 0 {
			critical = blockIds[0]
		}
		touched = append(touched, appliedAction{coll: coll, rev: rev, transforms: transforms, criticalId: critical, blockIds: blockIds})
	}

	if len(touched) == 0 {
		metrics.TransactionsTotal.WithLabelValues("no-op").Inc()
		return Result{Success: true, TransactionId: tx.Id}, nil
	}

	// GATHER: only meaningful across multiple collections (§4.6).
	nominees := map[string]struct{}{}
	if len(touched) > 1 && c.nominees != nil {
		for _, a := range touched {
			if a.criticalId == "" {
				continue
			}
			peers, err := c.nominees.QueryNominees(ctx, a.criticalId)
			if err != nil {
				c.logger.Warn().Err(err).Str("blockId", string(a.criticalId)).Msg("gather: nominee query failed, proceeding without")
				continue
			}
			for _, p := range peers {
				nominees[p] = struct{}{}
			}
		}
	}
	nomineeList := make([]string, 0, len(nominees))
	for p := range nominees {
		nomineeList = append(nomineeList, p)
	}
	sort.Strings(nomineeList)

	opsHash := operationsHash(tx.Id, touched[0].coll.Id)

	// PEND, per collection, policy 'r' (return conflicting transforms
	// rather than blind-retry; §4.4 policy semantics).
	pended := make([]appliedAction, 0, len(touched))
	for _, a := range touched {
		resp := a.coll.Transactor.Pend(ctx, repository.PendRequest{
			ActionId:             actionId,
			Transforms:           a.transforms,
			Policy:               repository.PolicyReturn,
			Rev:                  &a.rev,
			OperationsHash:       opsHash,
			Transaction:          &repository.TransactionEnvelope{StampId: stamp.Id, OperationsHash: opsHash, Raw: tx},
			SuperclusterNominees: nomineeList,
		})
		if !resp.Success {
			metrics.TransactionsTotal.WithLabelValues("pend-failed").Inc()
			return c.compensate(ctx, pended, actionId, tx.Id, resp.Reason)
		}
		pended = append(pended, a)
	}

	// COMMIT, per collection; tailId is the collection's own critical
	// block as recorded at PEND time.
	var results []CollectionResult
	for _, a := range pended {
		resp := a.coll.Transactor.Commit(ctx, repository.CommitRequest{
			ActionId: actionId,
			BlockIds: a.blockIds,
			TailId:   a.criticalId,
			Rev:      a.rev,
		})
		if !resp.Success {
			metrics.TransactionsTotal.WithLabelValues("commit-failed").Inc()
			return c.compensate(ctx, pended, actionId, tx.Id, resp.Reason)
		}
		results = append(results, CollectionResult{CollectionId: a.coll.Id, BlockIds: a.blockIds})
	}

	metrics.TransactionsTotal.WithLabelValues("committed").Inc()
	c.publish(events.TransactionCommitted, tx.Id)
	return Result{Success: true, TransactionId: tx.Id, Collections: results}, nil
}

// compensate issues best-effort CANCEL against every collection that
// reached PEND, logging failures rather than raising them (§4.6: "a
// cancel failure does not itself fail the transaction — it is best
// effort compensation, not a second two-phase protocol").
func (c *Coordinator) compensate(ctx context.Context, pended []appliedAction, actionId block.ActionId, txId, reason string) (Result, error) {
	for _, a := range pended {
		if err := a.coll.Transactor.Cancel(ctx, repository.CancelRequest{ActionId: actionId, BlockIds: a.blockIds}); err != nil {
			c.logger.Warn().Err(err).Str("collectionId", a.coll.Id).Msg("cancel compensation failed")
		}
	}
	if len(pended) > 0 {
		metrics.CompensationTotal.Inc()
		c.publish(events.TransactionCompensated, txId)
	} else {
		c.publish(events.TransactionFailed, txId)
	}
	return Result{Success: false, TransactionId: txId, Reason: reason, Compensated: len(pended) > 0}, nil
}

func operationsHash(transactionId, firstCollectionId string) string {
	sum := sha256.Sum256([]byte(transactionId + "|" + firstCollectionId))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
