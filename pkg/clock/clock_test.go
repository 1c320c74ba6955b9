package clock_test

import (
	"testing"
	"time"

	"github.com/WelcomerTeam/Mirror/pkg/clock"
	"github.com/stretchr/testify/assert"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	t.Parallel()

	start := time.Unix(0, 0)
	fake := clock.NewFake(start)

	var fired []int

	fake.AfterFunc(2*time.Second, func() { fired = append(fired, 2) })
	fake.AfterFunc(1*time.Second, func() { fired = append(fired, 1) })
	fake.AfterFunc(5*time.Second, func() { fired = append(fired, 5) })

	fake.Advance(3 * time.Second)

	assert.Equal(t, []int{1, 2}, fired)
	assert.Equal(t, start.Add(3*time.Second), fake.Now())
	assert.Equal(t, 1, fake.Pending())
}

func TestFakeStop(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(time.Unix(0, 0))
	called := false

	timer := fake.AfterFunc(time.Second, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	fake.Advance(time.Minute)

	assert.False(t, called)
	assert.Equal(t, 0, fake.Pending())
}

func TestFakeRescheduleFromCallback(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(time.Unix(0, 0))
	count := 0

	var tick func()
	tick = func() {
		count++
		fake.AfterFunc(time.Second, tick)
	}

	fake.AfterFunc(time.Second, tick)
	fake.Advance(3500 * time.Millisecond)

	assert.Equal(t, 3, count)
	assert.Equal(t, 1, fake.Pending())
}
