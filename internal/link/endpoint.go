package link

import (
	"sync"

	"github.com/skobkin/rovlink/internal/config"
)

// EndpointStore holds the current vehicle endpoint. Every target change bumps
// a generation number and raises a coalescing change signal, so a session can
// tell a fresh change from one that happened before it dialed.
type EndpointStore struct {
	mu         sync.Mutex
	endpoint   config.ConnectionConfig
	generation uint64
	changed    chan struct{}
}

func NewEndpointStore(endpoint config.ConnectionConfig) *EndpointStore {
	return &EndpointStore{
		endpoint: endpoint,
		changed:  make(chan struct{}, 1),
	}
}

// Current returns the endpoint together with its generation.
func (s *EndpointStore) Current() (config.ConnectionConfig, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.endpoint, s.generation
}

func (s *EndpointStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generation
}

// Apply stores endpoint and reports whether the target changed, in which case
// the active session is asked to restart. Non-target fields are stored
// silently.
func (s *EndpointStore) Apply(endpoint config.ConnectionConfig) bool {
	s.mu.Lock()
	changed := !s.endpoint.SameTarget(endpoint)
	s.endpoint = endpoint
	if changed {
		s.generation++
	}
	s.mu.Unlock()

	if changed {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}

	return changed
}

// Changed fires after at least one target change since it was last drained.
func (s *EndpointStore) Changed() <-chan struct{} {
	return s.changed
}
