package lifecycle

import (
	"context"

	"github.com/pkg/errors"
)

// Component is a background worker with explicit start and stop phases, like
// the ban sweeper or the deletion queue.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime brings components up in registration order and winds them down in
// reverse. A failed start rolls back the components already running before
// the error is returned.
type Runtime struct {
	components []Component
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{components: components}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

func (r *Runtime) Start(ctx context.Context) error {
	for i, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			r.unwind(ctx, i)
			return errors.WithMessagef(err, "start component %d", i)
		}
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return r.unwind(ctx, len(r.components))
}

// unwind stops components[0:upTo] in reverse order. Every component gets its
// chance to shut down; the first stop error is the one reported.
func (r *Runtime) unwind(ctx context.Context, upTo int) error {
	var firstErr error
	for i := upTo - 1; i >= 0; i-- {
		component := r.components[i]
		if component == nil {
			continue
		}
		if err := component.Stop(ctx); err != nil && firstErr == nil {
			firstErr = errors.WithMessagef(err, "stop component %d", i)
		}
	}
	return firstErr
}
