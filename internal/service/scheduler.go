package service

import (
	"sync"
	"time"
)

// TaskScheduler runs delayed tasks keyed by purpose. Scheduling a new task
// under a key cancels any pending task with the same key, which is the
// whole debounce contract: only the latest command of a kind survives the
// quiet period.
type TaskScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTaskScheduler creates an empty scheduler.
func NewTaskScheduler() *TaskScheduler {
	return &TaskScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms fn to run after delay, replacing any pending task under
// the same key. fn runs on the timer goroutine.
func (ts *TaskScheduler) Schedule(key string, delay time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if t, ok := ts.timers[key]; ok {
		t.Stop()
	}
	ts.timers[key] = time.AfterFunc(delay, func() {
		ts.mu.Lock()
		delete(ts.timers, key)
		ts.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending task under key, if any.
func (ts *TaskScheduler) Cancel(key string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t, ok := ts.timers[key]; ok {
		t.Stop()
		delete(ts.timers, key)
	}
}

// StopAll cancels every pending task.
func (ts *TaskScheduler) StopAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for key, t := range ts.timers {
		t.Stop()
		delete(ts.timers, key)
	}
}
