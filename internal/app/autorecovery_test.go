package app

import (
	"errors"
	"testing"
	"time"
)

// direct runs posted closures inline; the fake clock only fires from Advance.
func direct(fn func()) { fn() }

type recoveryProbe struct {
	clock      *fakeClock
	checkErr   []error
	restartErr error
	restarts   []time.Duration
	recovered  int
	exhausted  int
	lastErr    error
}

func (p *recoveryProbe) hooks() recoveryHooks {
	return recoveryHooks{
		check: func() error {
			if len(p.checkErr) == 0 {
				return nil
			}
			err := p.checkErr[0]
			p.checkErr = p.checkErr[1:]
			return err
		},
		restart: func() error {
			p.restarts = append(p.restarts, p.clock.Now().Sub(epoch))
			return p.restartErr
		},
		recovered: func() { p.recovered++ },
		exhausted: func(err error) {
			p.exhausted++
			p.lastErr = err
		},
	}
}

func newTestRecovery(p *recoveryProbe) *AutoRecovery {
	p.clock = newFakeClock(epoch)
	return newAutoRecovery(DefaultRecoveryConfig(), p.clock, direct, mockLogger{}, p.hooks())
}

func TestAutoRecovery_BackoffSequence(t *testing.T) {
	p := &recoveryProbe{restartErr: errors.New("capture unavailable")}
	r := newTestRecovery(p)

	if !r.Schedule(errors.New("watchdog timeout")) {
		t.Fatal("Schedule() = false, want an attempt pending")
	}

	var delays []time.Duration
	for r.Pending() {
		delays = append(delays, r.NextDelay())
		p.clock.Advance(r.NextDelay())
		if len(delays) > 10 {
			t.Fatal("recovery never gave up")
		}
	}

	want := []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i+1, delays[i], want[i])
		}
	}

	wantAt := []time.Duration{30 * time.Second, 90 * time.Second, 210 * time.Second, 450 * time.Second, 930 * time.Second}
	for i := range wantAt {
		if p.restarts[i] != wantAt[i] {
			t.Errorf("restart %d at %v, want %v", i+1, p.restarts[i], wantAt[i])
		}
	}

	if p.exhausted != 1 || p.recovered != 0 {
		t.Errorf("exhausted = %d recovered = %d, want 1 and 0", p.exhausted, p.recovered)
	}

	// No sixth attempt.
	p.clock.Advance(time.Hour)
	if len(p.restarts) != 5 {
		t.Errorf("restarts = %d, want 5", len(p.restarts))
	}
}

func TestAutoRecovery_ScheduleIsIdempotent(t *testing.T) {
	p := &recoveryProbe{}
	r := newTestRecovery(p)

	r.Schedule(errors.New("first"))
	p.clock.Advance(10 * time.Second)
	r.Schedule(errors.New("second"))

	p.clock.Advance(20 * time.Second)
	if len(p.restarts) != 1 || p.restarts[0] != 30*time.Second {
		t.Fatalf("restarts = %v, want one at 30s", p.restarts)
	}
	p.clock.Advance(time.Hour)
	if len(p.restarts) != 1 {
		t.Errorf("duplicate schedule produced extra attempts: %v", p.restarts)
	}
}

func TestAutoRecovery_PreconditionFailureDoesNotConsumeAttempt(t *testing.T) {
	p := &recoveryProbe{checkErr: []error{errors.New("no permission"), errors.New("no permission")}}
	r := newTestRecovery(p)

	r.Schedule(errors.New("permission revoked"))

	p.clock.Advance(30 * time.Second)
	p.clock.Advance(30 * time.Second)
	if len(p.restarts) != 0 || r.Attempts() != 0 {
		t.Fatalf("restarts = %v attempts = %d, want none while preconditions fail", p.restarts, r.Attempts())
	}
	if r.NextDelay() != 30*time.Second {
		t.Errorf("deferred delay = %v, want unchanged 30s", r.NextDelay())
	}

	p.clock.Advance(30 * time.Second)
	if len(p.restarts) != 1 || p.restarts[0] != 90*time.Second {
		t.Fatalf("restarts = %v, want one at 90s", p.restarts)
	}
	if p.recovered != 1 || r.Attempts() != 0 || r.Pending() {
		t.Errorf("recovered = %d attempts = %d pending = %v", p.recovered, r.Attempts(), r.Pending())
	}
}

func TestAutoRecovery_NudgeRunsPendingAttempt(t *testing.T) {
	p := &recoveryProbe{}
	r := newTestRecovery(p)

	r.Nudge()
	if len(p.restarts) != 0 {
		t.Fatal("Nudge without a pending attempt must do nothing")
	}

	r.Schedule(errors.New("disk full"))
	p.clock.Advance(5 * time.Second)
	r.Nudge()

	if len(p.restarts) != 1 || p.restarts[0] != 5*time.Second {
		t.Fatalf("restarts = %v, want one at 5s", p.restarts)
	}
	if r.Pending() {
		t.Errorf("attempt still pending after successful nudge")
	}
	p.clock.Advance(time.Minute)
	if len(p.restarts) != 1 {
		t.Errorf("cancelled timer still fired: %v", p.restarts)
	}
}

func TestAutoRecovery_CancelResets(t *testing.T) {
	p := &recoveryProbe{restartErr: errors.New("fail")}
	r := newTestRecovery(p)

	r.Schedule(errors.New("x"))
	p.clock.Advance(30 * time.Second)
	if r.Attempts() != 1 || r.NextDelay() != time.Minute {
		t.Fatalf("attempts = %d next = %v", r.Attempts(), r.NextDelay())
	}

	r.Cancel()
	if r.Pending() || r.Attempts() != 0 {
		t.Errorf("pending = %v attempts = %d after Cancel", r.Pending(), r.Attempts())
	}
	r.Schedule(errors.New("y"))
	if r.NextDelay() != 30*time.Second {
		t.Errorf("delay after cancel = %v, want base delay", r.NextDelay())
	}
}
