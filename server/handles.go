package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/rtl/rtl"
)

// handle is a server-side reference to an instance.
type handle struct {
	id       string
	inst     *rtl.Instance
	owner    bool
	created  time.Time
	lastUsed time.Time
}

// HandleStore maps opaque string IDs to instances held on behalf of
// remote clients. A reference-counted instance gets one reference per
// handle, which the handle gives back on release. Any other instance is
// freed when the handle that constructed it is released.
//
// Store methods touch instance state and must run on the worker.
type HandleStore struct {
	mu      sync.RWMutex
	handles map[string]*handle
	nextID  atomic.Uint64
}

// NewHandleStore creates a new handle store.
func NewHandleStore() *HandleStore {
	return &HandleStore{
		handles: make(map[string]*handle),
	}
}

// Create registers an instance and returns an opaque handle ID. owner marks
// the handle that frees a non-reference-counted instance.
func (s *HandleStore) Create(inst *rtl.Instance, owner bool) (string, error) {
	if inst.Class().RefCounted() {
		if _, err := inst.AddRef(); err != nil {
			return "", err
		}
	}

	id := fmt.Sprintf("h-%d", s.nextID.Add(1))
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[id] = &handle{
		id:       id,
		inst:     inst,
		owner:    owner,
		created:  now,
		lastUsed: now,
	}
	return id, nil
}

// Lookup retrieves the instance for a handle.
func (s *HandleStore) Lookup(id string) (*rtl.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if !ok {
		return nil, false
	}
	h.lastUsed = time.Now()
	return h.inst, true
}

// Release removes a handle and drops what it held. It returns the
// remaining reference count (0 for instances without one) and whether the
// instance was destroyed.
func (s *HandleStore) Release(id string) (int, bool, error) {
	s.mu.Lock()
	h, ok := s.handles[id]
	if ok {
		delete(s.handles, id)
	}
	s.mu.Unlock()

	if !ok {
		return 0, false, fmt.Errorf("handle %q not found", id)
	}
	return drop(h)
}

func drop(h *handle) (int, bool, error) {
	inst := h.inst
	switch {
	case inst.Destroyed():
		return 0, true, nil
	case inst.Class().RefCounted():
		n, err := inst.Release()
		return n, inst.Destroyed(), err
	case h.owner:
		err := inst.Free()
		return 0, inst.Destroyed(), err
	}
	return 0, false, nil
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}

// Sweep releases handles that haven't been accessed within the TTL.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var stale []*handle
	for id, h := range s.handles {
		if h.lastUsed.Before(cutoff) {
			stale = append(stale, h)
			delete(s.handles, id)
		}
	}
	s.mu.Unlock()

	for _, h := range stale {
		drop(h)
	}
	return len(stale)
}

// StartSweeper runs periodic TTL sweeps on the worker. Returns a stop
// function.
func (s *HandleStore) StartSweeper(w *Worker, interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				w.Do(func(*rtl.Runtime) (any, error) {
					return s.Sweep(ttl), nil
				})
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
