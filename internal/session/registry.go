package session

import "sync"

// Registry enforces the at-most-one-active-session invariant. All session
// starts and stops go through it.
type Registry struct {
	mu     sync.Mutex
	active *Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Begin starts a new session if none is live. A live session (any phase
// before FINALIZED/ERRORED) makes this fail with ErrSessionActive without
// touching the stream.
func (r *Registry) Begin(stream MediaStream, cfg Config) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil && !r.active.terminal() {
		return nil, ErrSessionActive
	}
	s, err := Begin(stream, cfg)
	if err != nil {
		return nil, err
	}
	r.active = s
	return s, nil
}

// Active returns the live session, or nil once it has reached a terminal
// phase.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.terminal() {
		return nil
	}
	return r.active
}

// Stop forwards a stop request to the live session. With no live session it
// returns ErrNotRecording.
func (r *Registry) Stop() error {
	s := r.Active()
	if s == nil {
		return ErrNotRecording
	}
	return s.Stop()
}
