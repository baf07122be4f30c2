package app

import "time"

// Watchdog detects a rotation stall: it fires when it has not been re-armed
// within interval. The owner re-arms it after every successful rotation and
// after handling each fire, so it fires at most once per stall window.
type Watchdog struct {
	interval time.Duration
	clock    Clock
	post     dispatcher
	onStall  func()

	timer *task
	fired int
}

func newWatchdog(clock Clock, post dispatcher, onStall func()) *Watchdog {
	return &Watchdog{clock: clock, post: post, onStall: onStall}
}

// SetInterval changes the stall window used by the next Arm.
func (w *Watchdog) SetInterval(d time.Duration) {
	w.interval = d
}

// Arm (re)starts the stall window.
func (w *Watchdog) Arm() {
	w.timer.cancel()
	w.timer = schedule(w.clock, w.post, w.interval, w.fire)
}

// Disarm cancels the stall window.
func (w *Watchdog) Disarm() {
	w.timer.cancel()
	w.timer = nil
}

// Armed reports whether a stall window is running.
func (w *Watchdog) Armed() bool {
	return w.timer.pending()
}

// Fired returns how many stalls have been detected.
func (w *Watchdog) Fired() int {
	return w.fired
}

func (w *Watchdog) fire() {
	w.timer = nil
	w.fired++
	w.onStall()
}
