package sentinel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one call.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool { return o.Err == nil }

// Settle runs every call concurrently and waits for all of them. A failing call never
// cancels the others; outcomes are returned in call order.
func Settle[T any](ctx context.Context, calls ...func(context.Context) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			if call == nil {
				return nil
			}
			value, err := call(ctx)
			outcomes[i] = Outcome[T]{Value: value, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
