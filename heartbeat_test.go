package mirror_test

import (
	"testing"
	"time"

	mirror "github.com/WelcomerTeam/Mirror"
	"github.com/WelcomerTeam/Mirror/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatFirstBeatIncludesJitter(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	monitor := mirror.NewHeartbeatMonitor(clk, func() time.Duration { return 300 * time.Millisecond })

	beats := 0

	monitor.Arm(time.Second, func() { beats++ })
	assert.Equal(t, mirror.HeartbeatArmed, monitor.State())

	clk.Advance(time.Second)
	assert.Equal(t, 0, beats)

	clk.Advance(300 * time.Millisecond)
	assert.Equal(t, 1, beats)
}

func TestHeartbeatScheduleIsExact(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	monitor := mirror.NewHeartbeatMonitor(clk, func() time.Duration { return 500 * time.Millisecond })

	var fired []time.Duration

	start := clk.Now()

	var beat func()

	beat = func() {
		fired = append(fired, clk.Now().Sub(start))

		require.True(t, monitor.Beat())
		monitor.Ack()
		monitor.Schedule(beat)
	}

	monitor.Arm(time.Second, beat)

	clk.Advance(4 * time.Second)

	assert.Equal(t, []time.Duration{
		1500 * time.Millisecond,
		2500 * time.Millisecond,
		3500 * time.Millisecond,
	}, fired)
}

func TestHeartbeatZombieWithoutAck(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	monitor := mirror.NewHeartbeatMonitor(clk, func() time.Duration { return 0 })

	monitor.Arm(time.Second, func() {})

	assert.True(t, monitor.Beat())
	assert.Equal(t, mirror.HeartbeatWaiting, monitor.State())
	assert.False(t, monitor.Acked())

	assert.False(t, monitor.Beat())
	assert.Equal(t, mirror.HeartbeatZombie, monitor.State())
}

func TestHeartbeatAckLatency(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	monitor := mirror.NewHeartbeatMonitor(clk, func() time.Duration { return 0 })

	monitor.Arm(time.Second, func() {})

	require.True(t, monitor.Beat())

	clk.Advance(120 * time.Millisecond)

	assert.Equal(t, 120*time.Millisecond, monitor.Ack())
	assert.True(t, monitor.Acked())
	assert.Equal(t, mirror.HeartbeatArmed, monitor.State())
	assert.True(t, monitor.Beat())
}

func TestHeartbeatStopCancelsTimers(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	monitor := mirror.NewHeartbeatMonitor(clk, func() time.Duration { return 0 })

	beats := 0

	monitor.Arm(time.Second, func() { beats++ })
	monitor.Schedule(func() { beats++ })

	require.Equal(t, 2, clk.Pending())

	monitor.Stop()

	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, mirror.HeartbeatIdle, monitor.State())

	clk.Advance(time.Minute)
	assert.Equal(t, 0, beats)

	// Scheduling while idle does nothing.
	monitor.Schedule(func() { beats++ })
	assert.Equal(t, 0, clk.Pending())
}

func TestStateStringsOutOfRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Waiting", mirror.HeartbeatWaiting.String())
	assert.Equal(t, "Unknown", mirror.HeartbeatState(42).String())
	assert.Equal(t, "Unknown", mirror.HeartbeatState(-1).String())

	assert.Equal(t, "Closed", mirror.StatusClosed.String())
	assert.Equal(t, "Unknown", mirror.StatusKind(42).String())
}
