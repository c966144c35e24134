package ldlm

import (
	"sync"
	"sync/atomic"
	"time"
)

// ResourceDirectory looks up and creates resources by name within a
// namespace. Modeled as a narrow interface over the namespace/resource
// hash table and its lookups so the lookup strategy stays swappable
// without touching enqueue/cancel/LRU/replay code.
type ResourceDirectory interface {
	// Lookup returns the resource for name, if it exists.
	Lookup(name string) (*Resource, bool)
	// GetOrCreate returns the existing resource for name, or creates one
	// of the given type.
	GetOrCreate(ns *Namespace, name string, resType ResourceType) *Resource
	// Remove drops a resource once it holds no locks.
	Remove(name string)
	// All returns every resource currently tracked.
	All() []*Resource
}

// memResourceDirectory is the default in-memory ResourceDirectory.
type memResourceDirectory struct {
	mu   sync.RWMutex
	byName map[string]*Resource
}

// NewMemResourceDirectory constructs the default in-memory
// ResourceDirectory.
func NewMemResourceDirectory() ResourceDirectory {
	return &memResourceDirectory{byName: make(map[string]*Resource)}
}

func (d *memResourceDirectory) Lookup(name string) (*Resource, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.byName[name]
	return r, ok
}

func (d *memResourceDirectory) GetOrCreate(ns *Namespace, name string, resType ResourceType) *Resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.byName[name]; ok {
		return r
	}
	r := newResource(ns, name, resType)
	d.byName[name] = r
	return r
}

func (d *memResourceDirectory) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byName, name)
}

func (d *memResourceDirectory) All() []*Resource {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Resource, 0, len(d.byName))
	for _, r := range d.byName {
		out = append(out, r)
	}
	return out
}

// Pool is the server-pool feedback view used by lru_resize: a
// server-lock-volume and a server-pool limit, refreshed from reply
// piggyback data. Zero values mean "unsupported or not yet known" and
// must never be treated as a real limit.
type Pool struct {
	SLV   uint64
	Limit uint32
}

// Namespace is a container of resources with an LRU of unused locks and a
// server-pool view. Resources are looked up by name through a
// ResourceDirectory.
type Namespace struct {
	Name string

	poolMu sync.RWMutex
	pool   Pool

	unusedMu   sync.Mutex
	unusedList []*Lock // front = oldest

	resources ResourceDirectory

	MaxUnused int
	MaxAge    time.Duration

	adaptive *adaptiveEstimator
	metrics  *Metrics

	replayInFlight int32

	// supportsLRUResize and supportsCancelSet are the namespace's own view
	// of the connection's capabilities, read by lru.go's policy-selection
	// rule. Both are false unless set directly on the Namespace; nothing
	// in this package copies them from an Import.
	supportsLRUResize bool
	supportsCancelSet bool
}

// NewNamespace constructs a namespace with the given bounds. dir may be
// nil to use the default in-memory ResourceDirectory.
func NewNamespace(name string, maxUnused int, maxAge time.Duration, dir ResourceDirectory, m *Metrics) *Namespace {
	if dir == nil {
		dir = NewMemResourceDirectory()
	}
	return &Namespace{
		Name:      name,
		resources: dir,
		MaxUnused: maxUnused,
		MaxAge:    maxAge,
		adaptive:  newAdaptiveEstimator(),
		metrics:   m,
	}
}

// NrUnused returns the current length of the unused LRU list.
func (ns *Namespace) NrUnused() int {
	ns.unusedMu.Lock()
	defer ns.unusedMu.Unlock()
	return len(ns.unusedList)
}

func (ns *Namespace) pushUnused(l *Lock) {
	ns.unusedMu.Lock()
	ns.unusedList = append(ns.unusedList, l)
	ns.unusedMu.Unlock()
	if ns.metrics != nil {
		ns.metrics.SetUnused(ns.Name, len(ns.unusedList))
	}
}

func (ns *Namespace) removeFromUnused(l *Lock) {
	ns.unusedMu.Lock()
	for i, cur := range ns.unusedList {
		if cur == l {
			ns.unusedList = append(ns.unusedList[:i], ns.unusedList[i+1:]...)
			break
		}
	}
	n := len(ns.unusedList)
	ns.unusedMu.Unlock()
	if ns.metrics != nil {
		ns.metrics.SetUnused(ns.Name, n)
	}
}

// snapshotUnused returns a stable copy of the unused list for scanning.
// prepareLRUList iterates this copy; entries dropped from the real list
// between the snapshot and the per-lock re-check are caught by the
// "still on LRU at same last_used" tie-break in lru.go.
func (ns *Namespace) snapshotUnused() []*Lock {
	ns.unusedMu.Lock()
	defer ns.unusedMu.Unlock()
	out := make([]*Lock, len(ns.unusedList))
	copy(out, ns.unusedList)
	return out
}

// Pool returns the namespace's current server-pool view.
func (ns *Namespace) Pool() Pool {
	ns.poolMu.RLock()
	defer ns.poolMu.RUnlock()
	return ns.pool
}

// UpdatePool stamps slv/limit onto the namespace pool atomically under
// the namespace-wide writer lock. Zero values mean "unsupported/unknown"
// and must be ignored.
func (ns *Namespace) UpdatePool(slv uint64, limit uint32) {
	if slv == 0 || limit == 0 {
		return
	}
	ns.poolMu.Lock()
	ns.pool = Pool{SLV: slv, Limit: limit}
	ns.poolMu.Unlock()
	if ns.metrics != nil {
		ns.metrics.SetPool(ns.Name, slv, limit)
	}
}

// Resources returns the namespace's ResourceDirectory.
func (ns *Namespace) Resources() ResourceDirectory { return ns.resources }

// beginReplay bumps the in-flight replay guard before the namespace is
// walked, so the counter cannot be observed at zero mid-iteration. It
// fails if a replay is already in progress.
func (ns *Namespace) beginReplay() bool {
	return atomic.CompareAndSwapInt32(&ns.replayInFlight, 0, 1)
}

func (ns *Namespace) endReplay() {
	atomic.StoreInt32(&ns.replayInFlight, 0)
}

// ReplayInFlight reports whether a replay pass is currently running.
func (ns *Namespace) ReplayInFlight() bool {
	return atomic.LoadInt32(&ns.replayInFlight) != 0
}

// findByRemote scans every resource's granted and waiting lists for the
// lock currently addressed by the given server-issued remote handle,
// taking a reference on it before returning. Inbound ASTs name a lock
// this way rather than by the caller's local Handle, which the server
// never sees.
func (ns *Namespace) findByRemote(remote uint64) (*Lock, bool) {
	for _, res := range ns.resources.All() {
		for _, l := range append(res.Granted(), res.Waiting()...) {
			if l.remoteHandle() == remote {
				l.addRef()
				return l, true
			}
		}
	}
	return nil, false
}
