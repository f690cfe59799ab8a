// Package models owns the currently loaded decoding model and the
// on-disk model store. Replacement is a reference-counted swap: a new
// model becomes visible to new sessions atomically, while sessions
// already borrowing the old model keep it until the last one releases.
package models

import (
	"log/slog"
	"sync"

	"github.com/scribelabs/scribe-core/internal/decoder"
	"github.com/scribelabs/scribe-core/internal/fault"
)

// Handle is a borrowed reference to a loaded model. Borrowers must
// call Release exactly once; the underlying model is closed only when
// it has been retired from the registry and the last borrower is gone.
type Handle struct {
	model decoder.Model

	mu      sync.Mutex
	refs    int
	retired bool
}

// Model exposes the borrowed model. Valid until Release.
func (h *Handle) Model() decoder.Model {
	return h.model
}

func (h *Handle) Info() decoder.ModelInfo {
	return h.model.Info()
}

// Release returns the borrowed reference.
func (h *Handle) Release() {
	h.mu.Lock()
	h.refs--
	closeNow := h.retired && h.refs == 0
	h.mu.Unlock()
	if closeNow {
		_ = h.model.Close()
	}
}

func (h *Handle) acquire() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

// retire drops the registry's own reference and marks the handle so
// the model is closed once the remaining borrowers release.
func (h *Handle) retire() {
	h.mu.Lock()
	h.retired = true
	h.refs--
	closeNow := h.refs == 0
	h.mu.Unlock()
	if closeNow {
		_ = h.model.Close()
	}
}

// Loader loads a decoding model from a location on disk.
type Loader func(location string) (decoder.Model, error)

// Registry holds at most one current model. No model loaded is a valid
// state; Acquire reports it as KindModelNotLoaded.
type Registry struct {
	mu       sync.Mutex
	current  *Handle
	location string
	loader   Loader
	log      *slog.Logger
}

func NewRegistry(loader Loader, log *slog.Logger) *Registry {
	return &Registry{
		loader: loader,
		log:    log.With(slog.String("component", "model-registry")),
	}
}

// Acquire borrows the current model. The caller must Release when its
// session finishes.
func (r *Registry) Acquire() (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, fault.New(fault.KindModelNotLoaded, "no decoding model is loaded")
	}
	r.current.acquire()
	return r.current, nil
}

// Replace loads the model at location and, only after a fully
// successful load, swaps it in for new sessions. On failure the
// previously active model is untouched. In-flight sessions keep the
// old model until they finish.
func (r *Registry) Replace(location string) error {
	model, err := r.loader(location)
	if err != nil {
		if fault.IsKind(err, fault.KindLoadError) {
			return err
		}
		return fault.Wrap(fault.KindLoadError, err, "load model from %s", location)
	}

	next := &Handle{model: model, refs: 1}

	r.mu.Lock()
	prev := r.current
	r.current = next
	r.location = location
	r.mu.Unlock()

	if prev != nil {
		prev.retire()
	}

	info := model.Info()
	r.log.Info("decoding model replaced",
		slog.String("engine", info.Engine),
		slog.String("location", location))
	return nil
}

// Loaded reports whether a model is currently available.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Info describes the current model, if any.
func (r *Registry) Info() (decoder.ModelInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return decoder.ModelInfo{}, false
	}
	return r.current.Info(), true
}

// Location reports where the current model was loaded from.
func (r *Registry) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Close retires the current model. Borrowers still finish safely.
func (r *Registry) Close() {
	r.mu.Lock()
	prev := r.current
	r.current = nil
	r.location = ""
	r.mu.Unlock()
	if prev != nil {
		prev.retire()
	}
}
