package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: TransactionCommitted, Message: "tx committed"})

	select {
	case ev := <-sub:
		require.Equal(t, TransactionCommitted, ev.Type)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerSubscriberCount(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	require.Equal(t, 0, b.SubscriberCount())
	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())
}

func TestBrokerUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	require.NotPanics(t, func() { b.Unsubscribe(sub) })
}
