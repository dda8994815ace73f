// Package alloc hands out pooled assets (images) so that no item is reused
// within a run until every candidate in its pool has been used once.
package alloc

import "sync"

// Pool is a named, ordered list of candidates. Each pool keeps its own
// round-robin cursor; the used-set is shared by all pools.
type Pool struct {
	Name  string
	Items []string
}

// Allocator owns the rotation cursors and the run-wide used-set. It is safe
// for concurrent use; calls are serialized because allocation order is part
// of its contract.
type Allocator struct {
	mu      sync.Mutex
	cursors map[string]int
	used    map[string]struct{}
}

// New creates an allocator with an empty used-set.
func New() *Allocator {
	return &Allocator{
		cursors: make(map[string]int),
		used:    make(map[string]struct{}),
	}
}

// Next returns the next unused item of p in rotation order. Once every item
// has been used it keeps rotating and reuses items instead of failing.
// It returns false only for an empty pool.
func (a *Allocator) Next(p Pool) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next(p)
}

// PickDistinct returns count items from p, each different from exclude and
// from one another. A slot gets at most 2*len(p.Items) draws; if none is
// distinct the last draw is reused, so the call always terminates.
func (a *Allocator) PickDistinct(p Pool, exclude []string, count int) []string {
	if count <= 0 || len(p.Items) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	taken := make(map[string]struct{}, len(exclude)+count)
	for _, e := range exclude {
		taken[e] = struct{}{}
	}

	maxAttempts := 2 * len(p.Items)
	out := make([]string, 0, count)
	for len(out) < count {
		var item string
		for attempt := 0; attempt < maxAttempts; attempt++ {
			item, _ = a.next(p)
			if _, dup := taken[item]; !dup {
				break
			}
		}
		taken[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Used reports how many distinct items have been handed out so far.
func (a *Allocator) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

func (a *Allocator) next(p Pool) (string, bool) {
	n := len(p.Items)
	if n == 0 {
		return "", false
	}

	start := a.cursors[p.Name] % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		item := p.Items[idx]
		if _, used := a.used[item]; used {
			continue
		}
		a.cursors[p.Name] = (idx + 1) % n
		a.used[item] = struct{}{}
		return item, true
	}

	// Pool exhausted: plain rotation, least recently handed out first.
	a.cursors[p.Name] = (start + 1) % n
	return p.Items[start], true
}
