package uiquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goquery/query"
)

func TestAsyncStoreMirrorsObserverState(t *testing.T) {
	ep := query.NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		return "ten", nil
	})
	o := ep.Use()
	as := NewAsyncStore[int, string](o)
	defer as.Close()

	assert.False(t, as.Get().HasData)

	require.NoError(t, as.SetArg(context.Background(), 10))

	state := as.Get()
	assert.True(t, state.HasData)
	assert.Equal(t, "ten", state.Data)
	assert.Equal(t, query.StatusSuccess, state.Status)
	assert.False(t, state.Loading)
}

func TestAsyncStoreCloseStopsUpdates(t *testing.T) {
	ep := query.NewEndpoint[int, string](func(ctx context.Context, arg int) (string, error) {
		return "v", nil
	})
	o := ep.Use()
	as := NewAsyncStore[int, string](o)

	as.Close()
	require.NoError(t, as.SetArg(context.Background(), 1))

	assert.False(t, as.Get().HasData, "store must not update after Close")
}
