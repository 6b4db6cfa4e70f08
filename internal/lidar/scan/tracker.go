package scan

import "sync"

// Tracker collects the results a caller accumulates across scans so they
// can be released together.
type Tracker struct {
	mu      sync.Mutex
	results []*Result
}

// Track records r and returns it.
func (t *Tracker) Track(r *Result) *Result {
	if r == nil {
		return nil
	}
	t.mu.Lock()
	t.results = append(t.results, r)
	t.mu.Unlock()
	return r
}

// Len returns the number of tracked results.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.results)
}

// ReleaseAll releases every tracked result and forgets them.
func (t *Tracker) ReleaseAll() {
	t.mu.Lock()
	results := t.results
	t.results = nil
	t.mu.Unlock()
	for _, r := range results {
		r.Release()
	}
}
