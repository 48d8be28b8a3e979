package worker

import (
	"context"
	"fmt"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// Handler is a pure function from a claimed job to a result map or an
// error. Handlers are synchronous from the Loop's perspective; any
// internal fan-out (Phase B/C's bounded LLM concurrency) is the
// handler's own concern.
type Handler func(ctx context.Context, job *entity.Job) (map[string]any, error)

// Registry maps a job kind to the handler that processes it.
type Registry struct {
	handlers map[valueobject.JobKind]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[valueobject.JobKind]Handler)}
}

// Register associates kind with handler. Panics on duplicate
// registration: that is a wiring bug, not a runtime condition.
func (r *Registry) Register(kind valueobject.JobKind, handler Handler) {
	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("worker: handler already registered for kind %q", kind))
	}
	r.handlers[kind] = handler
}

// Kinds returns the registered job kinds, used by the Loop to build its
// Claim query.
func (r *Registry) Kinds() []valueobject.JobKind {
	kinds := make([]valueobject.JobKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Dispatch looks up and invokes the handler for job.Kind.
func (r *Registry) Dispatch(ctx context.Context, job *entity.Job) (map[string]any, error) {
	h, ok := r.handlers[job.Kind]
	if !ok {
		return nil, fmt.Errorf("worker: no handler registered for kind %q", job.Kind)
	}
	return h(ctx, job)
}
