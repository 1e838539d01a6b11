package txn

import (
	"context"
	"fmt"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/colllog"
	"github.com/cuemby/optimystic/internal/engine"
	"github.com/cuemby/optimystic/internal/repository"
	"github.com/cuemby/optimystic/internal/tracker"
)

// Collection wires a tracker, a per-collection Log, and the
// transactor (local repository or remote peer, per C5/C7) that
// ultimately durable-stores the collection's blocks.
type Collection struct {
	Id         string
	Tracker    *tracker.Tracker
	Log        *colllog.Log
	Transactor repository.Transactor
}

// NewCollection constructs a Collection over an existing block source.
func NewCollection(id string, source tracker.Source, log *colllog.Log, transactor repository.Transactor) *Collection {
	return &Collection{
		Id:         id,
		Tracker:    tracker.New(source),
		Log:        log,
		Transactor: transactor,
	}
}

// Act applies one engine-produced action to the collection's tracker,
// per §4.6 step 1: "the coordinator invokes the collection's act
// method, which appends to the tracker and updates the local
// snapshot."
func (c *Collection) Act(action engine.CollectionAction) error {
	blockId := block.Id(action.BlockId)

	switch action.Kind {
	case "insert":
		attrs, err := toAttributes(action.Attributes)
		if err != nil {
			return err
		}
		c.Tracker.Insert(&block.Block{
			Header:     block.Header{Id: blockId, CollectionId: block.CollectionId(c.Id)},
			Attributes: attrs,
		})
	case "delete":
		c.Tracker.Delete(blockId)
	case "update":
		attrs, err := toAttributes(action.Attributes)
		if err != nil {
			return err
		}
		for attr, values := range attrs {
			c.Tracker.Update(blockId, block.Op{Attribute: attr, Index: 0, DeleteCount: -1, Inserts: values})
		}
	default:
		return fmt.Errorf("txn: unknown action kind %q", action.Kind)
	}
	return nil
}

func toAttributes(raw interface{}) (map[string][]any, error) {
	if raw == nil {
		return map[string][]any{}, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("txn: action attributes must be an object")
	}
	out := make(map[string][]any, len(m))
	for k, v := range m {
		if list, ok := v.([]any); ok {
			out[k] = list
		} else {
			out[k] = []any{v}
		}
	}
	return out, nil
}

// Apply appends the tracker's accumulated transforms to the
// collection's Log as a new action entry, returning the new
// revision and resetting the tracker's buffer.
func (c *Collection) Apply(ctx context.Context, actionId block.ActionId) (block.Revision, block.Transforms, error) {
	transforms := c.Tracker.Transforms()
	blockIds := block.BlockIdsForTransforms(transforms)

	rev, err := c.Log.Append(ctx, func(rev block.Revision) colllog.Entry {
		return colllog.Entry{
			Kind: colllog.EntryAction,
			Action: &colllog.ActionEntry{
				ActionId:      actionId,
				BlockIds:      blockIds,
				CollectionIds: []string{c.Id},
			},
		}
	})
	if err != nil {
		return 0, block.Transforms{}, err
	}

	c.Tracker.Reset()
	return rev, transforms, nil
}
