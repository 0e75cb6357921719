package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerFiresAfterDelay(t *testing.T) {
	sched := NewTaskScheduler()
	defer sched.StopAll()

	var fired atomic.Int32
	sched.Schedule("k", 10*time.Millisecond, func() { fired.Add(1) })

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerReplacesPendingTaskWithSameKey(t *testing.T) {
	sched := NewTaskScheduler()
	defer sched.StopAll()

	var first, second atomic.Int32
	sched.Schedule("k", 20*time.Millisecond, func() { first.Add(1) })
	sched.Schedule("k", 20*time.Millisecond, func() { second.Add(1) })

	assert.Eventually(t, func() bool {
		return second.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestSchedulerCancel(t *testing.T) {
	sched := NewTaskScheduler()
	defer sched.StopAll()

	var fired atomic.Int32
	sched.Schedule("k", 20*time.Millisecond, func() { fired.Add(1) })
	sched.Cancel("k")

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())

	// Cancelling an unknown key is a no-op.
	sched.Cancel("missing")
}

func TestSchedulerStopAll(t *testing.T) {
	sched := NewTaskScheduler()

	var fired atomic.Int32
	sched.Schedule("a", 20*time.Millisecond, func() { fired.Add(1) })
	sched.Schedule("b", 20*time.Millisecond, func() { fired.Add(1) })
	sched.StopAll()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
