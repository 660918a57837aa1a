package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errTrackerTimeout = errors.New("timeout waiting for in-flight operations")

// ErrBusy is returned by WhenIdle while any key is held.
var ErrBusy = errors.New("operation in flight")

// Tracker is a keyed try-acquire guard. A key held by one caller is refused
// to every other caller until released; nothing is queued.
type Tracker struct {
	mu   sync.Mutex
	held map[string]struct{}
	wg   sync.WaitGroup
}

func NewTracker() *Tracker {
	return &Tracker{held: make(map[string]struct{})}
}

// TryAcquire claims key. ok is false when key is already held.
// The release callback is safe to call more than once.
func (t *Tracker) TryAcquire(key string) (release func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.held[key]; busy {
		return func() {}, false
	}
	t.held[key] = struct{}{}
	t.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.held, key)
			t.mu.Unlock()
			t.wg.Done()
		})
	}, true
}

func (t *Tracker) Held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[key]
	return ok
}

// WhenIdle runs fn only if no key is held, and keeps every TryAcquire
// waiting until fn returns. fn must not call back into the tracker.
func (t *Tracker) WhenIdle(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.held) > 0 {
		return ErrBusy
	}
	return fn()
}

// Busy reports whether any key is held.
func (t *Tracker) Busy() bool {
	return t.Active() > 0
}

func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}

// Keys returns the held keys in sorted order.
func (t *Tracker) Keys() []string {
	t.mu.Lock()
	keys := make([]string, 0, len(t.held))
	for k := range t.held {
		keys = append(keys, k)
	}
	t.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Wait blocks until every held key is released or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	return waitGroup(ctx, &t.wg, errTrackerTimeout)
}
