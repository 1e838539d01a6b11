package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONEngineValidStatement(t *testing.T) {
	e := NewJSONEngine()
	result, err := e.Execute(context.Background(), []string{
		`{"collectionId":"users","actions":[{"kind":"insert","blockId":"1"}]}`,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Actions, 1)
	require.Equal(t, "users", result.Actions[0].CollectionId)
}

func TestJSONEngineRejectsEmptyCollectionId(t *testing.T) {
	e := NewJSONEngine()
	result, err := e.Execute(context.Background(), []string{
		`{"collectionId":"","actions":[{"kind":"insert"}]}`,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestJSONEngineRejectsEmptyActions(t *testing.T) {
	e := NewJSONEngine()
	result, err := e.Execute(context.Background(), []string{
		`{"collectionId":"users","actions":[]}`,
	})
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestJSONEngineDeterministic(t *testing.T) {
	e := NewJSONEngine()
	stmt := []string{`{"collectionId":"users","actions":[{"kind":"insert","blockId":"1"}]}`}

	r1, err := e.Execute(context.Background(), stmt)
	require.NoError(t, err)
	r2, err := e.Execute(context.Background(), stmt)
	require.NoError(t, err)
	require.Equal(t, r1.Actions, r2.Actions)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	e := NewJSONEngine()
	reg.Register(e)

	got, err := reg.Get(JSONEngineId)
	require.NoError(t, err)
	require.Equal(t, JSONEngineId, got.EngineId())

	_, err = reg.Get("unknown/v1")
	require.ErrorIs(t, err, ErrEngineNotRegistered)
}
