package eventbus_test

import (
	"context"
	"testing"

	"github.com/WelcomerTeam/Mirror/pkg/eventbus"
	"github.com/stretchr/testify/assert"
)

func TestPublishRegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := eventbus.New[int]()

	var calls []string

	bus.Subscribe("a", func(_ context.Context, v int) { calls = append(calls, "first") })
	bus.Subscribe("a", func(_ context.Context, v int) { calls = append(calls, "second") })
	bus.Subscribe("b", func(_ context.Context, v int) { calls = append(calls, "other") })

	handled := bus.Publish(context.Background(), "a", 1)

	assert.Equal(t, 2, handled)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	bus := eventbus.New[string]()

	assert.Equal(t, 0, bus.Publish(context.Background(), "missing", "value"))
	assert.False(t, bus.Has("missing"))
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	bus := eventbus.New[int]()
	total := 0

	unsubscribe := bus.Subscribe("a", func(_ context.Context, v int) { total += v })
	bus.Subscribe("a", func(_ context.Context, v int) { total += v * 10 })

	bus.Publish(context.Background(), "a", 1)
	assert.Equal(t, 11, total)

	unsubscribe()
	unsubscribe()

	bus.Publish(context.Background(), "a", 1)
	assert.Equal(t, 21, total)
	assert.True(t, bus.Has("a"))
}
