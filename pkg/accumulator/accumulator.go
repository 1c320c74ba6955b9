package accumulator

import (
	"context"
	"sync"
	"time"
)

// Accumulator counts increments and moves the running total into a sample
// every interval. Only the newest storedSamples samples are kept.
//
// 60 samples with an interval of 1 second provide a one minute history.
type Accumulator struct {
	mu      sync.RWMutex
	samples []Sample
	acc     int64

	storedSamples int
	interval      time.Duration
}

// Sample contains the time the sample was made and its value.
type Sample struct {
	StoredAt time.Time `json:"stored_at"`
	Value    int64     `json:"value"`
}

// New creates an accumulator. Run must be called for samples to be taken.
func New(storedSamples int, interval time.Duration) *Accumulator {
	if storedSamples < 1 {
		storedSamples = 1
	}

	return &Accumulator{
		samples:       make([]Sample, 0, storedSamples),
		storedSamples: storedSamples,
		interval:      interval,
	}
}

func (ac *Accumulator) Increment() {
	ac.IncrementBy(1)
}

func (ac *Accumulator) IncrementBy(value int64) {
	ac.mu.Lock()
	ac.acc += value
	ac.mu.Unlock()
}

// Pending returns the total since the last sample.
func (ac *Accumulator) Pending() int64 {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	return ac.acc
}

// Last returns up to the newest n samples.
func (ac *Accumulator) Last(n int) SampleGroup {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	index := len(ac.samples) - n
	if index < 0 {
		index = 0
	}

	return SampleGroup(append([]Sample{}, ac.samples[index:]...))
}

// Since returns every sample stored after t.
func (ac *Accumulator) Since(t time.Time) SampleGroup {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	return SampleGroup(ac.samples).Since(t)
}

// Sample stores the running total at t and resets it.
func (ac *Accumulator) Sample(t time.Time) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	ac.samples = append(ac.samples, Sample{StoredAt: t, Value: ac.acc})
	ac.acc = 0

	if len(ac.samples) > ac.storedSamples {
		ac.samples = append(ac.samples[:0], ac.samples[len(ac.samples)-ac.storedSamples:]...)
	}
}

// Run samples every interval until ctx is done.
func (ac *Accumulator) Run(ctx context.Context) {
	ticker := time.NewTicker(ac.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			ac.Sample(now.UTC())
		}
	}
}

// SampleGroup is an ordered run of samples, oldest first.
type SampleGroup []Sample

func (sg SampleGroup) Sum() int64 {
	acc := int64(0)

	for _, sample := range sg {
		acc += sample.Value
	}

	return acc
}

// Avg returns 0 for an empty group.
func (sg SampleGroup) Avg() float64 {
	if len(sg) == 0 {
		return 0
	}

	return float64(sg.Sum()) / float64(len(sg))
}

func (sg SampleGroup) Since(t time.Time) SampleGroup {
	for index, sample := range sg {
		if sample.StoredAt.After(t) {
			return append(SampleGroup{}, sg[index:]...)
		}
	}

	return SampleGroup{}
}
