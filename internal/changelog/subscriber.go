package changelog

import (
	"log/slog"
	"sync"

	"chunkstore/internal/logging"
)

// StoreView is a subscriber to a ChunkStore's mutations. OnEvents is called
// synchronously by the store after each mutation that produced at least one
// event; implementations must return promptly and defer expensive work to
// their own goroutines — they must not call back into the originating
// store while the batch is in flight.
type StoreView interface {
	Name() string
	OnEvents(batch []StoreEvent)
}

// Registerable is an optional interface a StoreView can implement to opt
// out of external registration (e.g. an internal view the store installs
// itself). Registerable() returning false causes Registry.Register to
// reject the subscriber.
type Registerable interface {
	Registerable() bool
}

// Registry dispatches StoreEvent batches to every registered StoreView. One
// Registry is owned by one ChunkStore instance; registration is therefore
// "process-global for the store instance" in the sense the spec means,
// without reaching for a true package-level global (which would make two
// independent stores in the same process interfere with each other).
type Registry struct {
	mu     sync.RWMutex
	views  map[string]StoreView
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		views:  make(map[string]StoreView),
		logger: logging.Default(logger).With("component", "changelog-registry"),
	}
}

// Register adds a subscriber. Returns false without registering if the
// view declines via Registerable.
func (r *Registry) Register(v StoreView) bool {
	if reg, ok := v.(Registerable); ok && !reg.Registerable() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.Name()] = v
	return true
}

// Unregister removes a subscriber by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, name)
}

// Dispatch delivers batch to every registered view. A panicking subscriber
// is isolated: it is logged and the remaining subscribers still receive
// the batch, per §4.2's failure table.
func (r *Registry) Dispatch(batch []StoreEvent) {
	if len(batch) == 0 {
		return
	}
	r.mu.RLock()
	views := make([]StoreView, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	r.mu.RUnlock()

	for _, v := range views {
		r.dispatchOne(v, batch)
	}
}

func (r *Registry) dispatchOne(v StoreView, batch []StoreEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked handling store events", "subscriber", v.Name(), "panic", rec)
		}
	}()
	v.OnEvents(batch)
}
