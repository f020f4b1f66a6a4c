package sentinel

import (
	"sync"
	"time"
)

// Resource wraps a remotely fetched value. A failed refresh records the error but keeps
// the last good data.
type Resource[T any] struct {
	mu            sync.RWMutex
	data          T
	hasData       bool
	loading       bool
	err           string
	lastFetchedAt time.Time
}

// ResourceSnapshot is a point-in-time copy of a Resource.
type ResourceSnapshot[T any] struct {
	Data          T         `json:"data"`
	HasData       bool      `json:"has_data"`
	Loading       bool      `json:"loading"`
	Error         string    `json:"error,omitempty"`
	LastFetchedAt time.Time `json:"last_fetched_at"`
}

// NewResource returns a resource in the loading state.
func NewResource[T any]() *Resource[T] {
	return &Resource[T]{loading: true}
}

// Commit stores fresh data and clears any previous error.
func (r *Resource[T]) Commit(data T, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data
	r.hasData = true
	r.loading = false
	r.err = ""
	r.lastFetchedAt = at
}

// Fail records a failed refresh. Previously committed data is left intact.
func (r *Resource[T]) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	if err != nil {
		r.err = err.Error()
	}
}

// Snapshot copies the current state.
func (r *Resource[T]) Snapshot() ResourceSnapshot[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ResourceSnapshot[T]{
		Data:          r.data,
		HasData:       r.hasData,
		Loading:       r.loading,
		Error:         r.err,
		LastFetchedAt: r.lastFetchedAt,
	}
}

// Data returns the committed value and whether one exists.
func (r *Resource[T]) Data() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data, r.hasData
}
