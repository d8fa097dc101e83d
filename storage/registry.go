package storage

import (
	"iter"
	"sync"

	"github.com/ruteri/fallback-storage/interfaces"
)

// Entry is a configured backend together with its descriptor.
type Entry struct {
	Location interfaces.StorageBackendLocation
	Backend  interfaces.StorageBackend
}

// ID returns the descriptor identifier used for logging and error sets.
func (e Entry) ID() string {
	return e.Location.Redacted()
}

// Registry holds the ordered backend descriptors of a façade and the
// instances built from them. Instances are constructed on first use and
// kept for the registry's lifetime.
type Registry struct {
	locations []interfaces.StorageBackendLocation
	factory   interfaces.StorageBackendFactory
	slots     []registrySlot
}

// registrySlot guards the construction of one backend, so a slow
// constructor only blocks users of its own descriptor.
type registrySlot struct {
	mu      sync.Mutex
	backend interfaces.StorageBackend
}

// NewRegistry creates a registry over locations. An empty list is a configuration error.
func NewRegistry(locations []interfaces.StorageBackendLocation, factory interfaces.StorageBackendFactory) (*Registry, error) {
	if len(locations) == 0 {
		return nil, &ConfigurationError{Reason: "the backend list is either missing or empty"}
	}
	if factory == nil {
		return nil, &ConfigurationError{Reason: "no backend factory configured"}
	}

	locs := make([]interfaces.StorageBackendLocation, len(locations))
	copy(locs, locations)

	return &Registry{
		locations: locs,
		factory:   factory,
		slots:     make([]registrySlot, len(locs)),
	}, nil
}

// Len returns the number of configured backends.
func (r *Registry) Len() int {
	return len(r.locations)
}

// Locations returns a copy of the configured descriptors in order.
func (r *Registry) Locations() []interfaces.StorageBackendLocation {
	out := make([]interfaces.StorageBackendLocation, len(r.locations))
	copy(out, r.locations)
	return out
}

// Backend returns the i-th backend, constructing it if needed.
func (r *Registry) Backend(i int) (Entry, error) {
	loc := r.locations[i]
	slot := &r.slots[i]

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.backend == nil {
		backend, err := r.factory.StorageBackendFor(loc)
		if err != nil {
			return Entry{}, &BackendConstructionError{Location: loc.Redacted(), Err: err}
		}
		slot.backend = backend
	}
	return Entry{Location: loc, Backend: slot.backend}, nil
}

// Last returns the last configured backend.
func (r *Registry) Last() (Entry, error) {
	return r.Backend(len(r.locations) - 1)
}

// Backends yields every backend in configured order. A construction failure
// is yielded once and ends the sequence.
func (r *Registry) Backends() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for i := range r.locations {
			entry, err := r.Backend(i)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// capableEntry is a backend viewed through one capability.
type capableEntry[C any] struct {
	Entry
	cap C
}

// capable yields, in order, the backends implementing capability C.
func capable[C any](r *Registry) iter.Seq2[capableEntry[C], error] {
	return func(yield func(capableEntry[C], error) bool) {
		for entry, err := range r.Backends() {
			if err != nil {
				yield(capableEntry[C]{}, err)
				return
			}
			c, ok := entry.Backend.(C)
			if !ok {
				continue
			}
			if !yield(capableEntry[C]{Entry: entry, cap: c}, nil) {
				return
			}
		}
	}
}
