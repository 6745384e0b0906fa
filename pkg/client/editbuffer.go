package client

import (
	"sync"
	"time"
)

// DebounceInterval is the quiet period after the last edit to a field
// before its value is committed.
const DebounceInterval = 300 * time.Millisecond

// CommitFunc receives the final value for a field once its edit settles.
type CommitFunc func(stepID, paramName string, value any)

type editKey struct {
	stepID    string
	paramName string
}

type pendingEdit struct {
	value any
	timer *time.Timer
}

// EditBuffer keeps the UI responsive to every slider tick while bounding
// network traffic: intermediate values are visible locally at once, and a
// field is committed only on an explicit flush (pointer release, blur,
// confirm) or after the quiet period elapses with no further edits.
//
// There is at most one pending commit per (step, param) key: a newer edit
// to the same key cancels and replaces the prior timer, so a burst of N
// rapid edits produces exactly one commit carrying the last value.
type EditBuffer struct {
	mu       sync.Mutex
	interval time.Duration
	commit   CommitFunc
	pending  map[editKey]*pendingEdit
}

// NewEditBuffer creates a buffer committing through fn after interval of
// quiet. A non-positive interval falls back to DebounceInterval.
func NewEditBuffer(interval time.Duration, fn CommitFunc) *EditBuffer {
	if interval <= 0 {
		interval = DebounceInterval
	}
	return &EditBuffer{
		interval: interval,
		commit:   fn,
		pending:  make(map[editKey]*pendingEdit),
	}
}

// Set records a continuous-field edit and (re)schedules its commit.
func (b *EditBuffer) Set(stepID, paramName string, value any) {
	key := editKey{stepID, paramName}

	b.mu.Lock()
	defer b.mu.Unlock()

	if prior, ok := b.pending[key]; ok {
		prior.timer.Stop()
	}
	edit := &pendingEdit{value: value}
	edit.timer = time.AfterFunc(b.interval, func() { b.fire(key, edit) })
	b.pending[key] = edit
}

// SetRange records an edit to a two-bound range field. Partial range edits
// are not independently meaningful, so no idle timer is scheduled: the pair
// is committed whole, and only by Flush.
func (b *EditBuffer) SetRange(stepID, paramName string, low, high float64) {
	key := editKey{stepID, paramName}

	b.mu.Lock()
	defer b.mu.Unlock()

	if prior, ok := b.pending[key]; ok && prior.timer != nil {
		prior.timer.Stop()
	}
	b.pending[key] = &pendingEdit{value: []float64{low, high}}
}

// Flush commits the pending value for a key immediately, if any. Used for
// release, blur and explicit confirm signals.
func (b *EditBuffer) Flush(stepID, paramName string) {
	key := editKey{stepID, paramName}

	b.mu.Lock()
	edit, ok := b.pending[key]
	if ok {
		if edit.timer != nil {
			edit.timer.Stop()
		}
		delete(b.pending, key)
	}
	b.mu.Unlock()

	if ok {
		b.commit(key.stepID, key.paramName, edit.value)
	}
}

// Pending returns the uncommitted local value for a key, for rendering the
// local-only view ahead of the server's echo.
func (b *EditBuffer) Pending(stepID, paramName string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	edit, ok := b.pending[editKey{stepID, paramName}]
	if !ok {
		return nil, false
	}
	return edit.value, true
}

// Close cancels all pending timers without committing. Failed or abandoned
// edits are never retried; the next user edit supersedes them.
func (b *EditBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, edit := range b.pending {
		if edit.timer != nil {
			edit.timer.Stop()
		}
		delete(b.pending, key)
	}
}

// fire is the timer callback: it commits only if this edit is still the
// live entry for its key (a newer edit may have replaced it between the
// timer firing and the lock being acquired).
func (b *EditBuffer) fire(key editKey, edit *pendingEdit) {
	b.mu.Lock()
	current, ok := b.pending[key]
	if !ok || current != edit {
		b.mu.Unlock()
		return
	}
	delete(b.pending, key)
	b.mu.Unlock()

	b.commit(key.stepID, key.paramName, edit.value)
}
