package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/optimystic/internal/block"
)

type fakeSource struct {
	blocks map[block.Id]*block.Block
}

func (f *fakeSource) TryGet(_ context.Context, id block.Id) (*block.Block, error) {
	return f.blocks[id], nil
}

func TestTrackerInsertThenTryGet(t *testing.T) {
	src := &fakeSource{blocks: map[block.Id]*block.Block{}}
	tr := New(src)

	b := &block.Block{Header: block.Header{Id: "b1"}, Attributes: map[string][]any{"name": {"Alice"}}}
	tr.Insert(b)
	tr.Update("b1", block.Op{Attribute: "name", Index: 0, DeleteCount: 1, Inserts: []any{"Bob"}})

	got, err := tr.TryGet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []any{"Bob"}, got.Attributes["name"])
}

func TestTrackerDeleteHidesSourceBlock(t *testing.T) {
	src := &fakeSource{blocks: map[block.Id]*block.Block{
		"b1": {Header: block.Header{Id: "b1"}},
	}}
	tr := New(src)
	tr.Delete("b1")

	got, err := tr.TryGet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrackerReadsPreferBufferOverSource(t *testing.T) {
	src := &fakeSource{blocks: map[block.Id]*block.Block{
		"b1": {Header: block.Header{Id: "b1"}, Attributes: map[string][]any{"name": {"FromSource"}}},
	}}
	tr := New(src)
	tr.Insert(&block.Block{Header: block.Header{Id: "b1"}, Attributes: map[string][]any{"name": {"FromBuffer"}}})

	got, err := tr.TryGet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, []any{"FromBuffer"}, got.Attributes["name"])
}

func TestTrackerDoubleDeleteThenReinsertNotPhantom(t *testing.T) {
	src := &fakeSource{blocks: map[block.Id]*block.Block{}}
	tr := New(src)

	tr.Delete("b1")
	tr.Delete("b1")
	tr.Insert(&block.Block{Header: block.Header{Id: "b1"}})

	transforms := tr.Transforms()
	_, stillDeleted := transforms.Deletes["b1"]
	assert.False(t, stillDeleted)
	assert.NotNil(t, transforms.Inserts["b1"])
}

func TestTrackerResetClearsBuffer(t *testing.T) {
	src := &fakeSource{blocks: map[block.Id]*block.Block{}}
	tr := New(src)
	tr.Insert(&block.Block{Header: block.Header{Id: "b1"}})

	snapshot := tr.Reset()
	assert.Len(t, snapshot.Inserts, 1)

	after := tr.Transforms()
	assert.Empty(t, after.Inserts)
}
