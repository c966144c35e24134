package ldlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Resource granted/waiting lists
// ============================================================================

func TestResource_NameAndType(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	r := newResource(ns, "res1", ResourceFlock)
	assert.Equal(t, "res1", r.Name())
	assert.Equal(t, ResourceFlock, r.Type())
}

func TestResource_AddRemoveGranted(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	r := newResource(ns, "res1", ResourceOrdinary)
	l1 := newLock(r, ModePR, LockPlain, nil, Callbacks{}, 0, nil)
	l2 := newLock(r, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	r.addGranted(l1)
	r.addGranted(l2)
	require.Len(t, r.Granted(), 2)

	r.removeGranted(l1)
	got := r.Granted()
	require.Len(t, got, 1)
	assert.Same(t, l2, got[0])
}

func TestResource_AddRemoveWaiting(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	r := newResource(ns, "res1", ResourceOrdinary)
	l := newLock(r, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	r.addWaiting(l)
	require.Len(t, r.Waiting(), 1)

	r.removeWaiting(l)
	assert.Len(t, r.Waiting(), 0)
}

func TestResource_Granted_SnapshotIsolation(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	r := newResource(ns, "res1", ResourceOrdinary)
	l := newLock(r, ModePR, LockPlain, nil, Callbacks{}, 0, nil)
	r.addGranted(l)

	snapshot := r.Granted()
	snapshot[0] = nil

	require.Len(t, r.Granted(), 1)
	assert.NotNil(t, r.Granted()[0], "mutating a snapshot must not affect the resource's own list")
}

func TestRemoveLock_NotPresent_IsNoop(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	r := newResource(ns, "res1", ResourceOrdinary)
	l1 := newLock(r, ModePR, LockPlain, nil, Callbacks{}, 0, nil)
	l2 := newLock(r, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	r.addGranted(l1)
	r.removeGranted(l2)
	assert.Len(t, r.Granted(), 1)
}

func TestResource_WithLockPair_RunsUnderBothLocks(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	r := newResource(ns, "res1", ResourceOrdinary)
	l := newLock(r, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	ran := false
	r.withLockPair(l, func() {
		ran = true
		l.setFlags(FlagCBPending)
	})

	assert.True(t, ran)
	assert.True(t, l.Flags().Has(FlagCBPending))
}

func TestResourceID_Equality(t *testing.T) {
	t.Parallel()

	a := ResourceID{Name: "foo", Type: ResourceOrdinary}
	b := ResourceID{Name: "foo", Type: ResourceOrdinary}
	c := ResourceID{Name: "foo", Type: ResourceFlock}

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
