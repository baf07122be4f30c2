package app

import "time"

// Clock is the time source of the controller and its monitors.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// dispatcher hands a closure to the coordinator queue.
type dispatcher func(func())

// task is a one-shot timer whose callback runs on the coordinator.
// Cancelling a task also drops a callback that is already queued.
type task struct {
	timer Timer
	done  bool
}

// schedule arms fn to run on the coordinator after d.
// It must be called from the coordinator.
func schedule(clock Clock, post dispatcher, d time.Duration, fn func()) *task {
	t := &task{}
	t.timer = clock.AfterFunc(d, func() {
		post(func() {
			if t.done {
				return
			}
			t.done = true
			fn()
		})
	})
	return t
}

// cancel stops the task. Safe on nil and on fired tasks.
func (t *task) cancel() {
	if t == nil || t.done {
		return
	}
	t.done = true
	t.timer.Stop()
}

// pending reports whether the task is armed and has not fired.
func (t *task) pending() bool {
	return t != nil && !t.done
}
