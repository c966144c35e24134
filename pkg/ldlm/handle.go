package ldlm

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is an opaque local lock handle: a 64-bit cookie paired with a
// generation. The generation lets a handle store detect a cookie reused
// after a lock's slot was recycled.
type Handle struct {
	Cookie     uint64
	Generation uint64
}

// newLocalCookie derives a 64-bit cookie from a fresh UUID. It is used by
// memHandleStore.Put, the default HandleStore; an embedder that mints
// cookies another way supplies its own HandleStore.
func newLocalCookie() uint64 {
	id := uuid.New()
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}

// HandleStore translates an opaque Handle to a live *Lock; refcounted.
// Kept as a narrow external collaborator so the lookup/refcounting
// strategy stays swappable.
type HandleStore interface {
	// Put registers a new lock under a freshly minted handle.
	Put(l *Lock) Handle
	// Get resolves a handle to its lock, taking a reference. ok is false
	// if the handle is unknown or its generation is stale.
	Get(h Handle) (l *Lock, ok bool)
	// Rehash moves a lock from its current key to a server-issued
	// remote handle, atomically with respect to Get.
	Rehash(old Handle, l *Lock) Handle
	// Release drops the reference taken by Get or Put.
	Release(h Handle)
}

// memHandleStore is the default in-memory HandleStore, a thin refcounted
// map guarded by a single mutex. Good enough for the engine's own tests
// and the CLI demo; a real embedder may swap in something sharded.
type memHandleStore struct {
	mu      sync.Mutex
	byCookie map[uint64]*Lock
	nextGen uint64
}

// NewMemHandleStore constructs the default in-memory HandleStore.
func NewMemHandleStore() HandleStore {
	return &memHandleStore{byCookie: make(map[uint64]*Lock)}
}

func (s *memHandleStore) Put(l *Lock) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookie := newLocalCookie()
	for {
		if _, exists := s.byCookie[cookie]; !exists {
			break
		}
		cookie = newLocalCookie()
	}
	s.nextGen++
	h := Handle{Cookie: cookie, Generation: s.nextGen}
	l.handle = h
	s.byCookie[cookie] = l
	return h
}

func (s *memHandleStore) Get(h Handle) (*Lock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byCookie[h.Cookie]
	if !ok || l.handle.Generation != h.Generation {
		return nil, false
	}
	l.addRef()
	return l, true
}

func (s *memHandleStore) Rehash(old Handle, l *Lock) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byCookie, old.Cookie)
	s.nextGen++
	h := Handle{Cookie: l.remoteHandle(), Generation: s.nextGen}
	l.handle = h
	s.byCookie[h.Cookie] = l
	return h
}

func (s *memHandleStore) Release(h Handle) {
	s.mu.Lock()
	l, ok := s.byCookie[h.Cookie]
	s.mu.Unlock()
	if ok {
		l.dropRef()
	}
}
