package block

import "errors"

// ErrConflictingInsert is returned when composing two transforms that
// both insert the same block id with non-equal values (§4.1).
var ErrConflictingInsert = errors.New("block: conflicting insert")

// ErrConflictingInsertDelete is returned when a composition would
// produce both an insert and a delete for the same block id (§4.1).
var ErrConflictingInsertDelete = errors.New("block: conflicting insert and delete")

// Op is a single update operation: on Attribute, splice from Index,
// remove DeleteCount elements, then insert Inserts in order. Scalar
// attribute assignment is modeled as (0, 0, [value]).
type Op struct {
	Attribute   string `json:"attribute"`
	Index       int    `json:"index"`
	DeleteCount int    `json:"deleteCount"`
	Inserts     []any  `json:"inserts,omitempty"`
}

// Transform is the per-block edit descriptor: an insert, a delete, or
// an ordered list of update operations. Insert and Updates may coexist
// (insert-then-mutate within one action); Insert and Delete may not.
type Transform struct {
	Insert  *Block `json:"insert,omitempty"`
	Updates []Op   `json:"updates,omitempty"`
	Delete  bool   `json:"delete,omitempty"`
}

// IsEmpty reports whether t carries no edit at all.
func (t Transform) IsEmpty() bool {
	return t.Insert == nil && len(t.Updates) == 0 && !t.Delete
}

// Transforms is the multi-block edit set carried by an Action.
type Transforms struct {
	Inserts map[Id]*Block `json:"inserts,omitempty"`
	Updates map[Id][]Op   `json:"updates,omitempty"`
	Deletes map[Id]bool   `json:"deletes,omitempty"`
}

// NewTransforms returns an empty, ready-to-use Transforms value.
func NewTransforms() Transforms {
	return Transforms{
		Inserts: make(map[Id]*Block),
		Updates: make(map[Id][]Op),
		Deletes: make(map[Id]bool),
	}
}

// Apply mutates block in place according to op.
func Apply(b *Block, op Op) {
	cur := b.Attributes[op.Attribute]
	if cur == nil && b.Attributes == nil {
		b.Attributes = make(map[string][]any)
	}
	spliced := spliceSlice(cur, op.Index, op.DeleteCount, op.Inserts)
	b.Attributes[op.Attribute] = spliced
}

func spliceSlice(s []any, index, deleteCount int, inserts []any) []any {
	if index < 0 {
		index = 0
	}
	if index > len(s) {
		index = len(s)
	}
	end := index + deleteCount
	if end > len(s) {
		end = len(s)
	}
	out := make([]any, 0, len(s)-(end-index)+len(inserts))
	out = append(out, s[:index]...)
	out = append(out, inserts...)
	out = append(out, s[end:]...)
	return out
}

// WithOperation returns a new block with op applied; the original is
// left untouched.
func WithOperation(b *Block, op Op) *Block {
	clone := b.Clone()
	Apply(clone, op)
	return clone
}

// ApplyTransform applies a single-block Transform to b and returns the
// resulting block. Insert transforms ignore b and materialize t.Insert
// (with any coexisting Updates folded in); Delete transforms return
// nil; otherwise t.Updates are folded over b via Apply, in order.
func ApplyTransform(b *Block, t Transform) *Block {
	if t.Insert != nil {
		result := t.Insert.Clone()
		for _, op := range t.Updates {
			Apply(result, op)
		}
		return result
	}
	if t.Delete {
		return nil
	}
	if b == nil {
		return nil
	}
	result := b.Clone()
	for _, op := range t.Updates {
		Apply(result, op)
	}
	return result
}

// TransformForBlockId projects the multi-block Transforms onto a
// single-block view.
func TransformForBlockId(t Transforms, id Id) Transform {
	var out Transform
	if t.Inserts != nil {
		out.Insert = t.Inserts[id]
	}
	if t.Updates != nil {
		if ops, ok := t.Updates[id]; ok {
			out.Updates = append([]Op(nil), ops...)
		}
	}
	if t.Deletes != nil {
		out.Delete = t.Deletes[id]
	}
	return out
}

// BlockIdsForTransforms returns the union of keys of Inserts, Updates,
// and the elements of Deletes.
func BlockIdsForTransforms(t Transforms) []Id {
	seen := make(map[Id]bool)
	var ids []Id
	add := func(id Id) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range t.Inserts {
		add(id)
	}
	for id := range t.Updates {
		add(id)
	}
	for id := range t.Deletes {
		add(id)
	}
	return ids
}

// ConcatTransform folds a single-block Transform for blockId into an
// existing multi-block Transforms. Updates are appended in composition
// order (never dropped). An existing insert/delete slot is only
// replaced if empty; concurrent inserts for the same id must be
// value-equal or this fails with ErrConflictingInsert. A transform
// that would carry both an insert and a delete for blockId fails with
// ErrConflictingInsertDelete.
func ConcatTransform(t *Transforms, blockId Id, single Transform) error {
	if t.Inserts == nil {
		t.Inserts = make(map[Id]*Block)
	}
	if t.Updates == nil {
		t.Updates = make(map[Id][]Op)
	}
	if t.Deletes == nil {
		t.Deletes = make(map[Id]bool)
	}

	willInsert := single.Insert != nil || t.Inserts[blockId] != nil
	willDelete := single.Delete || t.Deletes[blockId]
	if willInsert && willDelete {
		return ErrConflictingInsertDelete
	}

	if single.Insert != nil {
		if existing, ok := t.Inserts[blockId]; ok && existing != nil {
			if !existing.Equal(single.Insert) {
				return ErrConflictingInsert
			}
		} else {
			t.Inserts[blockId] = single.Insert
		}
	}

	if len(single.Updates) > 0 {
		t.Updates[blockId] = append(t.Updates[blockId], single.Updates...)
	}

	if single.Delete {
		t.Deletes[blockId] = true
	}

	return nil
}

// ConcatTransforms composes any number of Transforms in order, left to
// right, per ConcatTransform's rules. It returns the first composition
// error encountered.
func ConcatTransforms(ts ...Transforms) (Transforms, error) {
	result := NewTransforms()
	for _, t := range ts {
		for _, id := range BlockIdsForTransforms(t) {
			if err := ConcatTransform(&result, id, TransformForBlockId(t, id)); err != nil {
				return Transforms{}, err
			}
		}
	}
	return result, nil
}

// MergeTransforms composes exactly two Transforms; a thin, commonly
// used wrapper over ConcatTransforms.
func MergeTransforms(a, b Transforms) (Transforms, error) {
	return ConcatTransforms(a, b)
}
