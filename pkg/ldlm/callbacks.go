package ldlm

// Callbacks is the capability set a caller installs on a lock at
// enqueue time: a lock carries the triple it needs (completion,
// blocking, glimpse) rather than being driven through interface
// inheritance. Any member may be nil; a nil
// Blocking callback is how FLOCK locks signal "no blocking notification
// path exists client-side" to failedLockCleanup.
type Callbacks struct {
	Completion CompletionFunc
	Blocking   BlockingFunc
	Glimpse    GlimpseFunc
}

// CompletionFunc is invoked once a lock transitions toward GRANTED (or
// fails to). flags carries the reply flags observed at the time of the
// call (BlockedMask bits mean "not granted yet, park"). enqueueFini
// passes a nil data, and the completions built here do not read it: the
// synchronous variant times its own wait, and completionTail feeds that
// delay to the namespace's adaptive-timeout estimator.
type CompletionFunc func(l *Lock, flags Flag, data *CompletionData) StatusCode

// CompletionData carries the observed wait delay back from a completion
// wait so the adaptive estimator can learn from it.
type CompletionData struct {
	Delay float64 // seconds
}

// BlockingFunc is invoked when a conflicting request arrives at the
// server and the server asks the client to yield or cancel the lock.
type BlockingFunc func(l *Lock, desc *BlockDesc)

// BlockDesc describes why a blocking notification fired.
type BlockDesc struct {
	// CancelRequested is true when the server wants the lock cancelled
	// outright rather than merely downgraded.
	CancelRequested bool
}

// GlimpseFunc is invoked when the server wants the lock's current value
// block without revoking the lock itself.
type GlimpseFunc func(l *Lock) (LVB, error)

// NewSyncCompletion returns a CompletionFunc that parks the caller on
// the lock's wait slot until granted or cancelled. ns is used to size
// the completion timeout from the adaptive estimator and the engine's
// configured minimum.
func NewSyncCompletion(ns *Namespace, cfg Config) CompletionFunc {
	return func(l *Lock, flags Flag, data *CompletionData) StatusCode {
		return completionASTSync(ns, cfg, l, flags, data)
	}
}

// NewAsyncCompletion returns a CompletionFunc that never parks: it just
// records observations and returns.
func NewAsyncCompletion() CompletionFunc {
	return func(l *Lock, flags Flag, _ *CompletionData) StatusCode {
		if !flags.Any(BlockedMask) {
			l.wait.wake()
		}
		return StatusOK
	}
}
