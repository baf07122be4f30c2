package rollcam

import (
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/rollcam/internal/domain"
	"github.com/bft-labs/rollcam/internal/ports"
)

// ServiceState is the lifecycle state of a Recorder as a whole, as opposed
// to its recording state.
type ServiceState int

const (
	ServiceStopped ServiceState = iota
	ServiceStarting
	ServiceRunning
	ServiceStopping
	ServiceCrashed
)

func (s ServiceState) String() string {
	switch s {
	case ServiceStopped:
		return "Stopped"
	case ServiceStarting:
		return "Starting"
	case ServiceRunning:
		return "Running"
	case ServiceStopping:
		return "Stopping"
	case ServiceCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

var serviceEdges = map[ServiceState][]ServiceState{
	ServiceStopped:  {ServiceStarting},
	ServiceStarting: {ServiceRunning, ServiceCrashed},
	ServiceRunning:  {ServiceStopping, ServiceCrashed},
	ServiceStopping: {ServiceStopped, ServiceCrashed},
	ServiceCrashed:  {ServiceStarting},
}

// service tracks the Recorder lifecycle and its background workers.
type service struct {
	mu     sync.RWMutex
	state  ServiceState
	wg     sync.WaitGroup
	logger ports.Logger
}

func newService(logger ports.Logger) *service {
	return &service{state: ServiceStopped, logger: logger}
}

func (s *service) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *service) transition(to ServiceState, reason string) error {
	s.mu.Lock()
	from := s.state
	ok := false
	for _, next := range serviceEdges[from] {
		if next == to {
			ok = true
			break
		}
	}
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("recorder %s -> %s not allowed", from, to)
	}
	s.state = to
	s.mu.Unlock()

	s.logger.Debug("recorder state",
		ports.String("from", from.String()),
		ports.String("to", to.String()),
		ports.String("reason", reason),
	)
	return nil
}

func (s *service) canStart() bool {
	st := s.State()
	return st == ServiceStopped || st == ServiceCrashed
}

func (s *service) canStop() bool {
	st := s.State()
	return st == ServiceRunning
}

// spawn runs fn as a tracked worker.
func (s *service) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// wait blocks until all workers are done or timeout expires.
func (s *service) wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout, abandoning workers", ports.Duration("timeout", timeout))
		return domain.ErrShutdownTimeout
	}
}
