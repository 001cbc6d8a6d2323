// SPDX-License-Identifier: MPL-2.0

package reloadserver

import (
	"context"
	"fmt"
)

const (
	// StateCreated indicates New was called but Start was not.
	StateCreated State = iota
	// StateStarting indicates Start is binding the listener.
	StateStarting
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopping indicates Stop is shutting the server down.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: the listener could not be bound or Serve
	// returned an error.
	StateFailed
)

// State is the lifecycle state of a Server. A Server is single-use.
type State int32

// String returns a human-readable representation of the server state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// transitionToStarting moves Created to Starting. It fails the server when
// ctx is already done.
func (s *Server) transitionToStarting(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		s.transitionToFailed(fmt.Errorf("context cancelled before start: %w", err))
		return s.LastError()
	}
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("%w: cannot start server in state %s", ErrNotStartable, s.State())
	}
	return nil
}

func (s *Server) transitionToRunning() {
	s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
}

func (s *Server) transitionToFailed(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
	s.state.Store(int32(StateFailed))
}

// transitionToStopping reports whether the caller owns the shutdown. A
// never-started server goes straight to Stopped.
func (s *Server) transitionToStopping() bool {
	for {
		current := s.State()
		switch current {
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				return true
			}
		default:
			return false
		}
	}
}
