package scheduler

import (
	"context"
	"sync"
)

// Outcome is the terminal state of a request.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeErrored
)

var outcomeNames = [...]string{
	OutcomeCompleted: "completed",
	OutcomeCancelled: "cancelled",
	OutcomeErrored:   "errored",
}

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Result describes how a request ended. Degraded is set when the final
// visual state was applied without running the primitive.
type Result struct {
	ID       string
	Outcome  Outcome
	Degraded bool
	Err      error
}

// Future resolves exactly once when its request reaches a terminal state.
type Future struct {
	id   string
	done chan struct{}
	once sync.Once
	res  Result
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the request ID the future belongs to.
func (f *Future) ID() string { return f.id }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the result and whether it is available yet.
func (f *Future) Result() (Result, bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the request ends or ctx is done. The error is non-nil
// only for Errored results (the primitive failure) or a done context;
// cancellation and graceful degradation are not errors.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.res.Err
	case <-ctx.Done():
		return Result{ID: f.id}, ctx.Err()
	}
}

func (f *Future) resolve(r Result) {
	f.once.Do(func() {
		r.ID = f.id
		f.res = r
		close(f.done)
	})
}

// Resolved returns a future that already holds r. Layers above the
// scheduler use it for requests they settle themselves.
func Resolved(id string, r Result) *Future {
	f := newFuture(id)
	f.resolve(r)
	return f
}
