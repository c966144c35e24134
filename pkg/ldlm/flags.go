package ldlm

// Flag is a bitset over a lock's lifecycle milestones. The same bits are
// used both as local client state and, for the subset that travels on the
// wire, as reply/request flags.
type Flag uint32

const (
	// FlagReplay marks a request as a post-reconnect replay rather than a
	// fresh enqueue.
	FlagReplay Flag = 1 << iota

	// FlagBlockGranted tells the server the client already believes the
	// lock is granted at its current mode; used only during replay.
	FlagBlockGranted

	// FlagBlockWait tells the server the client is waiting on this lock;
	// used only during replay.
	FlagBlockWait

	// FlagBlockConv tells the server the client's granted mode no longer
	// matches what it requested (a conversion is outstanding); used only
	// during replay.
	FlagBlockConv

	// FlagASTSent means a blocking notification has already been
	// dispatched for this lock; set from enqueue replies that race ahead
	// of the lock's own enqueue completion.
	FlagASTSent

	// FlagLockChanged means the server rewrote the request (mode and/or
	// resource) and the reply must be reconciled against the original.
	FlagLockChanged

	// FlagInheritMask is the set of flags copied verbatim from the
	// enqueue reply into the lock's effective flags.
	FlagInheritMask

	// FlagLocalOnly marks a lock that has no live connection to a server
	// and will never have RPCs issued on its behalf.
	FlagLocalOnly

	// FlagCBPending is set once a blocking/cancel notification has been
	// promised for this lock; one-way — once set, reader/writer counts
	// may only drop.
	FlagCBPending

	// FlagBLAST means a cancel for this lock must travel over the
	// blocking-notification path instead of a plain cancel RPC.
	FlagBLAST

	// FlagCancelOnBlock means "if this lock ever blocks another request,
	// cancel me instead of sending a blocking notification". Locks
	// carrying this flag are not replayable.
	FlagCancelOnBlock

	// FlagWaitNoreproc tells the completion coordinator to skip its
	// prelude and reuse itself purely as a wait primitive for an
	// already-pending lock.
	FlagWaitNoreproc

	// FlagCanceling is set before a lock is ever placed on the bl_ast
	// eviction list; once set, no other path may enlist the lock on any
	// other eviction list.
	FlagCanceling

	// FlagFailed marks a lock the client has given up on locally, whether
	// from a failed enqueue, a completion timeout, or server eviction.
	FlagFailed

	// FlagNoTimeout means the completion wait for this lock blocks
	// indefinitely (but remains interruptible) instead of using the
	// adaptive timeout.
	FlagNoTimeout

	// FlagNoLRU excludes a lock from the unused LRU list even when its
	// reader/writer counts fall to zero.
	FlagNoLRU

	// FlagExcl requests an exclusive grant.
	FlagExcl

	// FlagBLDone marks a lock whose cancellation has completed; used by
	// replay to skip locks it need not resend.
	FlagBLDone

	// FlagAtomicCB is stamped by failedLockCleanup alongside FlagFailed
	// so a racing blocking notification fails fast instead of racing the
	// cleanup path.
	FlagAtomicCB

	// FlagSkipped marks a lock a no-wait LRU pass already examined and
	// declined to cancel, so a subsequent pass in the same scan does not
	// re-examine it.
	FlagSkipped
)

// Has reports whether all bits in mask are set.
func (f Flag) Has(mask Flag) bool { return f&mask == mask }

// Any reports whether any bit in mask is set.
func (f Flag) Any(mask Flag) bool { return f&mask != 0 }

// BlockedMask is the set of reply flags that indicate the lock did not
// grant immediately and the caller must park on completion.
const BlockedMask = FlagBlockGranted | FlagBlockWait | FlagBlockConv

// Mode is the lock mode requested or granted. The concrete bit values are
// not meaningful outside equality comparisons and the zero value, which
// always means "no mode granted".
type Mode uint32

const (
	// ModeNone means no mode is currently granted.
	ModeNone Mode = 0
	// ModePR is a protected-read (shared) mode.
	ModePR Mode = 1 << iota
	// ModePW is a protected-write (exclusive) mode.
	ModePW
	// ModeCR is a concurrent-read mode, compatible with PW.
	ModeCR
	// ModeCW is a concurrent-write mode, compatible with CR.
	ModeCW
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModePR:
		return "PR"
	case ModePW:
		return "PW"
	case ModeCR:
		return "CR"
	case ModeCW:
		return "CW"
	default:
		return "unknown"
	}
}

// CancelFlag controls how the public Cancel entry point and the cancel
// batcher behave for a single call.
type CancelFlag uint32

const (
	// CancelFlagAsync hands the cancel RPC off to the import's worker
	// queue instead of sending it inline.
	CancelFlagAsync CancelFlag = 1 << iota
	// CancelFlagLocal skips the RPC entirely; only local state changes.
	CancelFlagLocal
)
