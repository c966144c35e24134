// Package ldlm implements the client-side request engine of a distributed
// lock manager: enqueue/completion, cancel, LRU eviction, and replay after
// a server reconnect. It does not implement conflict resolution, on-disk
// persistence, or filesystem semantics — those live on the server or in
// the embedding application; this package only drives the wire protocol
// and the client-local state machine of a cached lock.
package ldlm

import (
	"sync"
	"time"
)

// LockType selects the shape of a lock's PolicyData.
type LockType int

const (
	// LockPlain covers a whole resource with no sub-range or bitmask.
	LockPlain LockType = iota
	// LockExtent is a byte-range lock; PolicyData is *ExtentPolicy.
	LockExtent
	// LockInodeBits locks a bitmask of metadata attributes; PolicyData
	// is *InodeBitsPolicy.
	LockInodeBits
	// LockFlock is a POSIX advisory byte-range lock; PolicyData is
	// *FlockPolicy.
	LockFlock
)

func (t LockType) String() string {
	switch t {
	case LockPlain:
		return "plain"
	case LockExtent:
		return "extent"
	case LockInodeBits:
		return "ibits"
	case LockFlock:
		return "flock"
	default:
		return "unknown"
	}
}

// PolicyData is the type-dependent descriptor carried by a lock. Concrete
// types: *ExtentPolicy, *InodeBitsPolicy, *FlockPolicy. LockPlain locks
// carry a nil PolicyData.
type PolicyData interface {
	isPolicyData()
}

// ExtentPolicy describes a byte range [Start, End]. End == ^uint64(0)
// means "to end of file".
type ExtentPolicy struct {
	Start uint64
	End   uint64
}

func (*ExtentPolicy) isPolicyData() {}

// InodeBitsPolicy describes the set of metadata attribute bits a lock
// covers (size, mtime, permissions, …— the bit assignment is the
// embedding application's concern, this package only carries the mask).
type InodeBitsPolicy struct {
	Bits uint64
}

func (*InodeBitsPolicy) isPolicyData() {}

// FlockPolicy describes a POSIX advisory lock range plus the owning pid,
// used to disambiguate cancellation from process exit.
type FlockPolicy struct {
	Pid   int32
	Start uint64
	End   uint64
}

func (*FlockPolicy) isPolicyData() {}

// LVB is a bounded, opaque value block optionally carried by a lock to
// ship a resource's metadata alongside the lock grant.
type LVB []byte

// MaxLVBLen bounds the size of a value block the engine will accept from
// a reply; larger values are a protocol error.
const MaxLVBLen = 4096

// listMembership names the single eviction/resource list a lock may be
// on at any moment. The four candidate lists (granted, waiting,
// unused_lru, bl_ast) plus the replay-only pending_chain are mutually
// exclusive by construction: a Lock stores exactly one of these, never a
// combination, enforced in code rather than by convention.
type listMembership int

const (
	listNone listMembership = iota
	listGranted
	listWaiting
	listUnusedLRU
	listBLAST
	listPendingChain
)

// Lock is the central entity of the engine: a client-side handle on a
// server-granted (or server-pending) lock on some Resource.
//
// Mutation goes through mu, which is the "lock object lock" of the
// three-level locking discipline: namespace lock (coarsest) outer,
// resource lock next, lock object lock innermost. Holding a
// lock's resource lock and its own lock together is the "double lock"
// used by enqueue completion, cancel, and LRU eviction.
type Lock struct {
	mu sync.Mutex

	handle       Handle
	hasRemote    bool
	remote       uint64
	resource     *Resource
	reqMode      Mode
	grantedMode  Mode
	lockType     LockType
	policyData   PolicyData
	flags        Flag
	lvb          LVB
	callbacks    Callbacks
	wait         *waitSlot
	lastActivity time.Time
	lastUsed     time.Time
	readerCount  int
	writerCount  int
	connExport   Import

	membership listMembership
	destroyed  bool

	// refs is the handle-store reference count: one for the caller that
	// created the lock, one more while any HandleStore.Get result is
	// outstanding. It is independent of readerCount/writerCount, which
	// count the embedding application's own holders.
	refs int32
}

// newLock allocates a lock in state CREATED with a single caller
// reference; it is not yet installed into any resource or namespace
// list.
func newLock(res *Resource, reqMode Mode, lockType LockType, policy PolicyData, cb Callbacks, flags Flag, conn Import) *Lock {
	l := &Lock{
		resource:     res,
		reqMode:      reqMode,
		lockType:     lockType,
		policyData:   policy,
		callbacks:    cb,
		flags:        flags,
		connExport:   conn,
		lastActivity: time.Now(),
		wait:         newWaitSlot(),
		refs:         1,
	}
	return l
}

func (l *Lock) remoteHandle() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remote
}

func (l *Lock) addRef() {
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()
}

// dropRef releases one reference. The count is bookkeeping only: reaching
// zero does not remove the lock from a HandleStore, so a lock, destroyed
// or not, stays reachable through its handle.
func (l *Lock) dropRef() {
	l.mu.Lock()
	l.refs--
	l.mu.Unlock()
}

// GrantedMode returns the mode currently granted (ModeNone if none).
func (l *Lock) GrantedMode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.grantedMode
}

// RequestedMode returns the mode the caller originally asked for.
func (l *Lock) RequestedMode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reqMode
}

// Flags returns the lock's current flag bitset.
func (l *Lock) Flags() Flag {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flags
}

func (l *Lock) setFlags(f Flag) {
	l.flags |= f
}

func (l *Lock) clearFlags(f Flag) {
	l.flags &^= f
}

// Handle returns the lock's local handle.
func (l *Lock) Handle() Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

// LVB returns a copy of the lock's current value block, or nil.
func (l *Lock) LVB() LVB {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lvb == nil {
		return nil
	}
	out := make(LVB, len(l.lvb))
	copy(out, l.lvb)
	return out
}

// isUnusedLocked reports whether, under mu, the lock currently qualifies
// for the unused LRU: zero holders, NO_LRU unset, and not mid-cancel.
func (l *Lock) isUnusedLocked() bool {
	return l.readerCount == 0 && l.writerCount == 0 &&
		!l.flags.Has(FlagNoLRU) && !l.flags.Has(FlagCanceling)
}

// AddReader records a new reader holder, pulling the lock off the unused
// LRU if it was idle.
func (l *Lock) AddReader() {
	l.resource.withLockPair(l, func() {
		l.readerCount++
		if l.membership == listUnusedLRU {
			l.resource.ns.removeFromUnused(l)
			l.membership = listNone
		}
	})
}

// AddWriter records a new writer holder, pulling the lock off the unused
// LRU if it was idle.
func (l *Lock) AddWriter() {
	l.resource.withLockPair(l, func() {
		l.writerCount++
		if l.membership == listUnusedLRU {
			l.resource.ns.removeFromUnused(l)
			l.membership = listNone
		}
	})
}

// DropReader removes one reader holder; if the lock becomes idle and is
// eligible it is placed on the namespace unused LRU, stamping last_used.
func (l *Lock) DropReader() {
	l.resource.withLockPair(l, func() {
		if l.readerCount > 0 {
			l.readerCount--
		}
		l.maybeJoinUnusedLocked()
	})
}

// DropWriter removes one writer holder; if the lock becomes idle and is
// eligible it is placed on the namespace unused LRU, stamping last_used.
func (l *Lock) DropWriter() {
	l.resource.withLockPair(l, func() {
		if l.writerCount > 0 {
			l.writerCount--
		}
		l.maybeJoinUnusedLocked()
	})
}

// maybeJoinUnusedLocked must be called with the double lock held.
func (l *Lock) maybeJoinUnusedLocked() {
	if l.membership != listNone && l.membership != listUnusedLRU {
		return
	}
	if l.isUnusedLocked() {
		if l.membership != listUnusedLRU {
			l.lastUsed = time.Now()
			l.resource.ns.pushUnused(l)
			l.membership = listUnusedLRU
		}
	}
}

// unlinkFromResourceLocked removes the lock from whichever of
// resource.granted / resource.waiting it is on. Must be called with the
// lock's resource lock held.
func (l *Lock) unlinkFromResourceLocked() {
	switch l.membership {
	case listGranted:
		l.resource.removeGranted(l)
	case listWaiting:
		l.resource.removeWaiting(l)
	}
	l.membership = listNone
}

// markGrantedLocked moves the lock onto resource.granted at the given
// mode. Must be called holding the double lock.
func (l *Lock) markGrantedLocked(mode Mode) {
	if l.membership == listWaiting {
		l.resource.removeWaiting(l)
	}
	if l.membership != listGranted {
		l.resource.addGranted(l)
		l.membership = listGranted
	}
	l.grantedMode = mode
	l.lastActivity = time.Now()
}

// markWaitingLocked moves the lock onto resource.waiting.
func (l *Lock) markWaitingLocked() {
	if l.membership != listWaiting {
		l.resource.addWaiting(l)
		l.membership = listWaiting
	}
}
