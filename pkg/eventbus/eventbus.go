package eventbus

import (
	"context"
	"sync"
)

// Handler receives a published value.
type Handler[T any] func(ctx context.Context, value T)

type subscription[T any] struct {
	handler Handler[T]
	id      uint64
}

// Bus is a per-key subscription registry. Handlers for a key run
// synchronously on the publishing goroutine in the order they subscribed.
type Bus[T any] struct {
	mu       sync.RWMutex
	handlers map[string][]subscription[T]
	nextID   uint64
}

// New creates an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{
		handlers: make(map[string][]subscription[T]),
	}
}

// Subscribe registers handler for key. Calling the returned function removes
// the handler; calling it more than once is a no-op.
func (b *Bus[T]) Subscribe(key string, handler Handler[T]) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[key] = append(b.handlers[key], subscription[T]{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			b.remove(key, id)
		})
	}
}

func (b *Bus[T]) remove(key string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.handlers[key]
	kept := make([]subscription[T], 0, len(current))

	for _, sub := range current {
		if sub.id != id {
			kept = append(kept, sub)
		}
	}

	if len(kept) == 0 {
		delete(b.handlers, key)
	} else {
		b.handlers[key] = kept
	}
}

// Publish delivers value to every handler subscribed to key and returns how
// many handlers ran. Handlers subscribed during a publish are not called
// until the next one.
func (b *Bus[T]) Publish(ctx context.Context, key string, value T) (handled int) {
	b.mu.RLock()
	subscribers := b.handlers[key]
	b.mu.RUnlock()

	for _, sub := range subscribers {
		sub.handler(ctx, value)
		handled++
	}

	return handled
}

// Has reports if any handler is subscribed to key.
func (b *Bus[T]) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[key]) > 0
}
