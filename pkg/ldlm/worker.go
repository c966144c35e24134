package ldlm

import "context"

// WorkQueue is the injected async work-dispatch interface, the
// Go-native stand-in for a ptlrpcd-style task queue: an injected
// submit(request, on_reply_fn) so replay and async cancel don't
// require a specific threading model.
type WorkQueue interface {
	// Submit schedules fn to run asynchronously. Implementations may run
	// it on a fixed worker pool, a goroutine-per-submit, or inline for
	// tests; callers never assume which.
	Submit(ctx context.Context, fn func(context.Context))
}

// goWorkQueue is the default WorkQueue: one goroutine per submission.
// Good enough for the engine's own tests and the CLI demo; a production
// embedder with stricter concurrency bounds supplies its own.
type goWorkQueue struct{}

// NewGoWorkQueue constructs the default goroutine-per-submit WorkQueue.
func NewGoWorkQueue() WorkQueue { return goWorkQueue{} }

func (goWorkQueue) Submit(ctx context.Context, fn func(context.Context)) {
	go fn(ctx)
}
