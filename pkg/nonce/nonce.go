package nonce

import (
	"strconv"
	"sync"
	"time"
)

// DiscordEpoch is the first millisecond of 2015 in unix milliseconds.
const DiscordEpoch = 1420070400000

// counterBits is the width of the low part of a nonce.
const counterBits = 22

const counterMask = 1<<counterBits - 1

// Generator produces snowflake shaped nonces: the milliseconds since the
// discord epoch shifted left by 22 bits, or'd with a counter. The counter
// wraps to zero after 4194303, so two nonces generated in the same
// millisecond only collide after 2^22 calls.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	counter uint64
}

// New creates a Generator. A nil now uses time.Now.
func New(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}

	return &Generator{now: now}
}

// Next returns the next nonce.
func (g *Generator) Next() string {
	g.mu.Lock()
	counter := g.counter
	g.counter = (g.counter + 1) & counterMask
	g.mu.Unlock()

	ms := uint64(g.now().UnixMilli() - DiscordEpoch)

	return strconv.FormatUint(ms<<counterBits|counter, 10)
}
