package mirror

import csmap "github.com/mhmtszr/concurrent-swiss-map"

// Cache is a concurrent single key to value cache.
type Cache[K comparable, V any] struct {
	inner *csmap.CsMap[K, V]
}

func NewCache[K comparable, V any](size uint64) *Cache[K, V] {
	return &Cache[K, V]{
		inner: csmap.Create(
			csmap.WithSize[K, V](size),
		),
	}
}

func (c *Cache[K, V]) Load(key K) (value V, ok bool) {
	return c.inner.Load(key)
}

func (c *Cache[K, V]) Store(key K, value V) {
	c.inner.Store(key, value)
}

func (c *Cache[K, V]) Delete(key K) {
	c.inner.Delete(key)
}

// DeleteIf removes key when condition holds for its current value.
func (c *Cache[K, V]) DeleteIf(key K, condition func(value V) bool) bool {
	return c.inner.DeleteIf(key, condition)
}

// Update replaces an existing value with the result of fn. Missing keys are
// left untouched.
func (c *Cache[K, V]) Update(key K, fn func(value V) V) (value V, ok bool) {
	value, ok = c.inner.Load(key)
	if !ok {
		return value, false
	}

	value = fn(value)
	c.inner.Store(key, value)

	return value, true
}

// Range stops iterating when fn returns true.
func (c *Cache[K, V]) Range(fn func(key K, value V) bool) {
	c.inner.Range(fn)
}

func (c *Cache[K, V]) Count() int {
	return c.inner.Count()
}

func (c *Cache[K, V]) Clear() {
	c.inner.Clear()
}

func (c *Cache[K, V]) SetIfAbsent(key K, value V) {
	c.inner.SetIfAbsent(key, value)
}

// Values returns a snapshot of every value.
func (c *Cache[K, V]) Values() []V {
	values := make([]V, 0, c.inner.Count())

	c.inner.Range(func(_ K, value V) bool {
		values = append(values, value)

		return false
	})

	return values
}

// DoubleCache is a two key to value cache.
type DoubleCache[KA comparable, KB comparable, V any] struct {
	inner     *Cache[KA, *Cache[KB, V]]
	sizeInner uint64
}

func NewDoubleCache[KA comparable, KB comparable, V any](sizeOuter uint64, sizeInner uint64) *DoubleCache[KA, KB, V] {
	return &DoubleCache[KA, KB, V]{
		inner:     NewCache[KA, *Cache[KB, V]](sizeOuter),
		sizeInner: sizeInner,
	}
}

func (c *DoubleCache[KA, KB, V]) Inner(key KA) (value *Cache[KB, V], ok bool) {
	return c.inner.Load(key)
}

func (c *DoubleCache[KA, KB, V]) LoadOrNew(key KA) *Cache[KB, V] {
	if inner, ok := c.inner.Load(key); ok {
		return inner
	}

	c.inner.SetIfAbsent(key, NewCache[KB, V](c.sizeInner))

	inner, _ := c.inner.Load(key)

	return inner
}

func (c *DoubleCache[KA, KB, V]) Load(key KA, subKey KB) (value V, ok bool) {
	if inner, ok := c.inner.Load(key); ok {
		return inner.Load(subKey)
	}

	return value, false
}

func (c *DoubleCache[KA, KB, V]) Store(key KA, subKey KB, value V) {
	c.LoadOrNew(key).Store(subKey, value)
}

func (c *DoubleCache[KA, KB, V]) Delete(key KA, subKey KB) {
	if inner, ok := c.inner.Load(key); ok {
		inner.Delete(subKey)
	}
}

func (c *DoubleCache[KA, KB, V]) Update(key KA, subKey KB, fn func(value V) V) (value V, ok bool) {
	if inner, ok := c.inner.Load(key); ok {
		return inner.Update(subKey, fn)
	}

	return value, false
}

// TotalCount returns the number of values under every key.
func (c *DoubleCache[KA, KB, V]) TotalCount() int {
	count := 0

	c.inner.Range(func(_ KA, inner *Cache[KB, V]) bool {
		count += inner.Count()

		return false
	})

	return count
}

func (c *DoubleCache[KA, KB, V]) Count(key KA) int {
	if inner, ok := c.inner.Load(key); ok {
		return inner.Count()
	}

	return 0
}

func (c *DoubleCache[KA, KB, V]) Clear() {
	c.inner.Clear()
}

// ClearKey removes every value under key.
func (c *DoubleCache[KA, KB, V]) ClearKey(key KA) {
	c.inner.Delete(key)
}
