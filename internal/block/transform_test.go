package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTransformIdentity(t *testing.T) {
	b := &Block{
		Header:     Header{Id: "b1", Type: "row", CollectionId: "c1"},
		Attributes: map[string][]any{"name": {"Alice"}},
	}
	result := ApplyTransform(b, Transform{})
	assert.True(t, b.Equal(result))
}

func TestApplyTransformComposition(t *testing.T) {
	b := &Block{
		Header:     Header{Id: "b1", Type: "row", CollectionId: "c1"},
		Attributes: map[string][]any{"balance": {100}},
	}
	t1 := Transform{Updates: []Op{{Attribute: "balance", Index: 0, DeleteCount: 1, Inserts: []any{75}}}}
	t2 := Transform{Updates: []Op{{Attribute: "tag", Index: 0, DeleteCount: 0, Inserts: []any{"vip"}}}}

	sequential := ApplyTransform(ApplyTransform(b, t1), t2)

	composed, err := ConcatTransforms(
		singleTransforms("b1", t1),
		singleTransforms("b1", t2),
	)
	require.NoError(t, err)
	atOnce := ApplyTransform(b, TransformForBlockId(composed, "b1"))

	assert.True(t, sequential.Equal(atOnce))
}

func TestInsertThenUpdateInSameAction(t *testing.T) {
	inserted := &Block{Header: Header{Id: "b2", Type: "row", CollectionId: "c1"}}
	ts := NewTransforms()
	require.NoError(t, ConcatTransform(&ts, "b2", Transform{Insert: inserted}))
	require.NoError(t, ConcatTransform(&ts, "b2", Transform{Updates: []Op{{Attribute: "name", Inserts: []any{"Bob"}}}}))

	result := ApplyTransform(nil, TransformForBlockId(ts, "b2"))
	require.NotNil(t, result)
	assert.Equal(t, []any{"Bob"}, result.Attributes["name"])
}

func TestConcatUpdatesAppendAcrossCompositions(t *testing.T) {
	a := singleTransforms("b1", Transform{Updates: []Op{{Attribute: "x", Inserts: []any{1}}}})
	b := singleTransforms("b1", Transform{Updates: []Op{{Attribute: "y", Inserts: []any{2}}}})

	composed, err := ConcatTransforms(a, b)
	require.NoError(t, err)
	require.Len(t, composed.Updates["b1"], 2)
	assert.Equal(t, "x", composed.Updates["b1"][0].Attribute)
	assert.Equal(t, "y", composed.Updates["b1"][1].Attribute)
}

func TestConflictingInsertRejected(t *testing.T) {
	a := singleTransforms("b1", Transform{Insert: &Block{Header: Header{Id: "b1"}, Attributes: map[string][]any{"v": {1}}}})
	b := singleTransforms("b1", Transform{Insert: &Block{Header: Header{Id: "b1"}, Attributes: map[string][]any{"v": {2}}}})

	_, err := ConcatTransforms(a, b)
	assert.ErrorIs(t, err, ErrConflictingInsert)
}

func TestConflictingInsertDeleteRejected(t *testing.T) {
	a := singleTransforms("b1", Transform{Insert: &Block{Header: Header{Id: "b1"}}})
	b := singleTransforms("b1", Transform{Delete: true})

	_, err := ConcatTransforms(a, b)
	assert.ErrorIs(t, err, ErrConflictingInsertDelete)
}

func TestDeletesDeduplicated(t *testing.T) {
	a := singleTransforms("b1", Transform{Delete: true})
	b := singleTransforms("b1", Transform{Delete: true})

	composed, err := ConcatTransforms(a, b)
	require.NoError(t, err)
	assert.Len(t, composed.Deletes, 1)
	assert.True(t, composed.Deletes["b1"])
}

func TestBlockIdsForTransforms(t *testing.T) {
	ts := NewTransforms()
	ts.Inserts["a"] = &Block{}
	ts.Updates["b"] = []Op{{Attribute: "x"}}
	ts.Deletes["c"] = true
	ts.Deletes["a"] = true // also present in inserts; must still be one entry

	ids := BlockIdsForTransforms(ts)
	assert.ElementsMatch(t, []Id{"a", "b", "c"}, ids)
}

func singleTransforms(id Id, t Transform) Transforms {
	out := NewTransforms()
	_ = ConcatTransform(&out, id, t)
	return out
}
