package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRunsHandlersInOrder(t *testing.T) {
	bus := NewBus()
	var seen []string
	bus.Subscribe(func(_ context.Context, c Change) error {
		seen = append(seen, "first:"+c.ID)
		return nil
	})
	bus.Subscribe(func(_ context.Context, c Change) error {
		seen = append(seen, "second:"+c.ID)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), Change{Kind: KindProduct, ID: "p1"}))
	require.Equal(t, []string{"first:p1", "second:p1"}, seen)
	require.Equal(t, 2, bus.HandlerCount())
}

func TestPublishJoinsErrorsAndRecoversPanics(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	calls := 0
	bus.Subscribe(func(context.Context, Change) error { return boom })
	bus.Subscribe(func(context.Context, Change) error { panic("bad handler") })
	bus.Subscribe(func(context.Context, Change) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), Change{Kind: KindOrder, ID: "o1"})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "order change handler panic")
	require.Equal(t, 1, calls)
}
