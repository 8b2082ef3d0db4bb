package observability

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Checker is a dependency probed by the readiness endpoint.
// Check must honour ctx; it returns nil when the component is usable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

var _ Checker = CheckFunc{}

func NewCheck(name string, fn func(ctx context.Context) error) CheckFunc {
	return CheckFunc{name: name, fn: fn}
}

func (c CheckFunc) Name() string                    { return c.name }
func (c CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// Report is the outcome of one readiness pass.
type Report struct {
	Healthy bool
	// Components maps checker name to "up" or the failure message.
	Components map[string]string
	Failures   map[string]error
}

// RunChecks probes every checker concurrently and waits for all of them.
func RunChecks(ctx context.Context, checkers []Checker) Report {
	rep := Report{
		Healthy:    true,
		Components: make(map[string]string, len(checkers)),
		Failures:   map[string]error{},
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, c := range checkers {
		g.Go(func() error {
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Healthy = false
				rep.Components[c.Name()] = "down: " + err.Error()
				rep.Failures[c.Name()] = err
				return nil
			}
			rep.Components[c.Name()] = "up"
			return nil
		})
	}
	_ = g.Wait()
	return rep
}
