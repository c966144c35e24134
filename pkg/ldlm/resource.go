package ldlm

import "sync"

// ResourceType distinguishes resources that admit a FLOCK lock (no
// client-side blocking callback exists) from ordinary ones.
type ResourceType int

const (
	// ResourceOrdinary covers plain/extent/inode-bits locks.
	ResourceOrdinary ResourceType = iota
	// ResourceFlock covers POSIX advisory locks, which have no blocking
	// callback and are torn down directly by failedLockCleanup.
	ResourceFlock
)

// Resource is a named lock domain: a set of locks currently granted and a
// set currently waiting to be granted. Acquiring a resource's mutex
// together with one of its locks' mutex is the "double lock"; always
// resource then lock, never the reverse.
type Resource struct {
	mu sync.Mutex

	ns       *Namespace
	name     string
	resType  ResourceType
	granted  []*Lock
	waiting  []*Lock
}

// newResource allocates an empty resource bound to ns.
func newResource(ns *Namespace, name string, resType ResourceType) *Resource {
	return &Resource{ns: ns, name: name, resType: resType}
}

// Name returns the resource's name.
func (r *Resource) Name() string { return r.name }

// Type returns the resource's type.
func (r *Resource) Type() ResourceType { return r.resType }

// withLockPair acquires the resource lock and then the given lock's
// object lock ("double lock"), runs fn, and releases both in reverse
// order. Every mutation of membership/flags that must be observed
// atomically by a concurrent resource scan goes through this helper so
// the outer→inner ordering is never violated by a stray caller.
func (r *Resource) withLockPair(l *Lock, fn func()) {
	r.mu.Lock()
	l.mu.Lock()
	fn()
	l.mu.Unlock()
	r.mu.Unlock()
}

func (r *Resource) addGranted(l *Lock) {
	r.granted = append(r.granted, l)
}

func (r *Resource) addWaiting(l *Lock) {
	r.waiting = append(r.waiting, l)
}

func (r *Resource) removeGranted(l *Lock) {
	r.granted = removeLock(r.granted, l)
}

func (r *Resource) removeWaiting(l *Lock) {
	r.waiting = removeLock(r.waiting, l)
}

// Granted returns a snapshot of the resource's granted-lock list.
func (r *Resource) Granted() []*Lock {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Lock, len(r.granted))
	copy(out, r.granted)
	return out
}

// Waiting returns a snapshot of the resource's waiting-lock list.
func (r *Resource) Waiting() []*Lock {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Lock, len(r.waiting))
	copy(out, r.waiting)
	return out
}

func removeLock(list []*Lock, l *Lock) []*Lock {
	for i, cur := range list {
		if cur == l {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// ResourceID names a resource within a namespace. Kept as a small value
// type (rather than a bare string) so callers can carry a resource kind
// alongside its name without an extra parameter threading through every
// enqueue/cancel/replay signature.
type ResourceID struct {
	Name string
	Type ResourceType
}
