// Package counter provides a generic multiset used for n-gram bookkeeping.
package counter

// Counter is a frequency table over comparable keys. The zero value is not
// usable; create one with New.
type Counter[K comparable] struct {
	counts map[K]int
}

// New returns a Counter seeded with the given keys.
func New[K comparable](keys ...K) *Counter[K] {
	c := &Counter[K]{counts: make(map[K]int, len(keys))}
	c.Update(keys...)
	return c
}

// Update increments the count of every key by one.
func (c *Counter[K]) Update(keys ...K) {
	for _, k := range keys {
		c.counts[k]++
	}
}

// Add increments the count of key by n.
func (c *Counter[K]) Add(key K, n int) {
	c.counts[key] += n
}

// Set overwrites the count of key. Negative counts are stored as zero.
func (c *Counter[K]) Set(key K, n int) {
	if n < 0 {
		n = 0
	}
	c.counts[key] = n
}

// Count returns the count of key, or 0 when absent.
func (c *Counter[K]) Count(key K) int {
	return c.counts[key]
}

// Contains reports whether key has been recorded.
func (c *Counter[K]) Contains(key K) bool {
	_, ok := c.counts[key]
	return ok
}

// Len returns the number of distinct keys.
func (c *Counter[K]) Len() int {
	return len(c.counts)
}

// Total returns the sum of all counts.
func (c *Counter[K]) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Each calls fn for every key and its count. Iteration order is unspecified.
func (c *Counter[K]) Each(fn func(key K, count int)) {
	for k, n := range c.counts {
		fn(k, n)
	}
}

// Intersect returns a new Counter holding the keys present in both counters
// with the minimum of the two counts.
func (c *Counter[K]) Intersect(other *Counter[K]) *Counter[K] {
	small, large := c, other
	if large.Len() < small.Len() {
		small, large = large, small
	}
	out := &Counter[K]{counts: make(map[K]int)}
	for k, n := range small.counts {
		m, ok := large.counts[k]
		if !ok {
			continue
		}
		out.counts[k] = min(n, m)
	}
	return out
}

// MergeMax raises each key's count to the count in other when other's is
// larger, adding missing keys.
func (c *Counter[K]) MergeMax(other *Counter[K]) {
	for k, n := range other.counts {
		if cur, ok := c.counts[k]; !ok || n > cur {
			c.counts[k] = n
		}
	}
}
