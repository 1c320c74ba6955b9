package mirror

import (
	"math/rand"
	"time"

	"github.com/WelcomerTeam/Mirror/pkg/clock"
)

// MaxHeartbeatJitter bounds the random delay added before the first beat.
const MaxHeartbeatJitter = time.Second

type HeartbeatState int

const (
	HeartbeatIdle HeartbeatState = iota
	HeartbeatArmed
	HeartbeatWaiting
	HeartbeatZombie
)

func (state HeartbeatState) String() string {
	switch state {
	case HeartbeatIdle:
		return "Idle"
	case HeartbeatArmed:
		return "Armed"
	case HeartbeatWaiting:
		return "Waiting"
	case HeartbeatZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// HeartbeatMonitor schedules heartbeats and tracks acknowledgements. It does
// no locking of its own: every method is called while holding the owning
// Connection's lock.
type HeartbeatMonitor struct {
	clock  clock.Clock
	jitter func() time.Duration

	initial   clock.Timer
	repeating clock.Timer

	lastSent time.Time
	lastAck  time.Time

	interval time.Duration
	state    HeartbeatState
	acked    bool
}

// NewHeartbeatMonitor creates an idle monitor. A nil jitter draws uniformly
// from [0, MaxHeartbeatJitter).
func NewHeartbeatMonitor(c clock.Clock, jitter func() time.Duration) *HeartbeatMonitor {
	if c == nil {
		c = clock.Real()
	}

	if jitter == nil {
		jitter = randomJitter
	}

	return &HeartbeatMonitor{
		clock:  c,
		jitter: jitter,
	}
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(MaxHeartbeatJitter)))
}

// Arm starts the schedule. beat is called after interval plus jitter and
// must call Schedule to request the following beat.
func (h *HeartbeatMonitor) Arm(interval time.Duration, beat func()) {
	h.Stop()

	h.interval = interval
	h.acked = true
	h.state = HeartbeatArmed
	h.initial = h.clock.AfterFunc(interval+h.jitter(), beat)
}

// Schedule requests the next beat exactly one interval from now.
func (h *HeartbeatMonitor) Schedule(beat func()) {
	if h.state == HeartbeatIdle {
		return
	}

	h.repeating = h.clock.AfterFunc(h.interval, beat)
}

// Beat is called when a beat is due. It returns false, and enters the zombie
// state, when the previous beat was never acknowledged. Otherwise the beat
// is recorded as sent and the monitor waits for its ack.
func (h *HeartbeatMonitor) Beat() (alive bool) {
	if !h.acked {
		h.state = HeartbeatZombie

		return false
	}

	h.acked = false
	h.lastSent = h.clock.Now()
	h.state = HeartbeatWaiting

	return true
}

// Ack records an acknowledgement and returns the round trip of the last beat.
// The schedule is not changed.
func (h *HeartbeatMonitor) Ack() (latency time.Duration) {
	h.acked = true
	h.lastAck = h.clock.Now()

	if h.state == HeartbeatWaiting {
		h.state = HeartbeatArmed
	}

	if h.lastSent.IsZero() {
		return 0
	}

	return h.lastAck.Sub(h.lastSent)
}

// MarkSent records an out of schedule heartbeat, such as one requested by
// the server. The ack state is left alone.
func (h *HeartbeatMonitor) MarkSent() {
	h.lastSent = h.clock.Now()
}

// Stop cancels both timers and returns the monitor to idle.
func (h *HeartbeatMonitor) Stop() {
	if h.initial != nil {
		h.initial.Stop()
		h.initial = nil
	}

	if h.repeating != nil {
		h.repeating.Stop()
		h.repeating = nil
	}

	h.state = HeartbeatIdle
}

func (h *HeartbeatMonitor) State() HeartbeatState {
	return h.state
}

func (h *HeartbeatMonitor) Interval() time.Duration {
	return h.interval
}

func (h *HeartbeatMonitor) Acked() bool {
	return h.acked
}
