package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/rollcam/internal/ports"
)

// ErrInvalidTransition is returned by TransitionTo for a disallowed edge.
var ErrInvalidTransition = errors.New("rollcam: invalid state transition")

// State represents the recording state of the controller.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StatePaused
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRecording:
		return "Recording"
	case StatePaused:
		return "Paused"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// transitions lists the allowed edges of the state machine.
var transitions = map[State][]State{
	StateIdle:      {StateStarting},
	StateStarting:  {StateRecording, StateIdle},
	StateRecording: {StatePaused, StateStopping},
	StatePaused:    {StateStarting, StateStopping},
	StateStopping:  {StateIdle},
}

// Lifecycle manages the recording state machine.
// Transitions are made by the coordinator; State may be read from anywhere.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	logger       ports.Logger
	eventEmitter EventEmitter
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateIdle,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
// Returns ErrInvalidTransition if the edge is not allowed.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !allowed(oldState, newState) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
	}
	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)

	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanStart returns true if a recording start is valid from the current state.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateIdle || l.state == StatePaused
}

// Active returns true while recording or paused.
func (l *Lifecycle) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRecording || l.state == StatePaused
}
