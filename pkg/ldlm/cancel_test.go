package ldlm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(ns *Namespace) (*Coordinator, *memGateway) {
	gw := NewMemGateway()
	c := NewCoordinator(ns, gw, nil, NewMetrics(nil), DefaultConfig())
	return c, gw
}

// ============================================================================
// cancelLocal
// ============================================================================

func TestCancelLocal_RequiresLiveConnection(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	_, err := c.cancelLocal(l)
	require.Error(t, err)
}

func TestCancelLocal_LocalOnlyResult(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	imp := NewMemImport(ImportOptions{})
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, FlagLocalOnly, imp)

	res.addGranted(l)
	l.membership = listGranted

	result, err := c.cancelLocal(l)
	require.NoError(t, err)
	assert.Equal(t, cancelResultLocalOnly, result)
	assert.Equal(t, listNone, l.membership)
}

func TestCancelLocal_BLASTResult(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	imp := NewMemImport(ImportOptions{})
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, FlagBLAST, imp)
	res.addGranted(l)
	l.membership = listGranted

	result, err := c.cancelLocal(l)
	require.NoError(t, err)
	assert.Equal(t, cancelResultBLAST, result)
}

func TestCancelLocal_InvokesBlockingCallback(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	imp := NewMemImport(ImportOptions{})
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)

	invoked := false
	cb := Callbacks{Blocking: func(l *Lock, desc *BlockDesc) {
		invoked = true
		assert.True(t, desc.CancelRequested)
	}}
	l := newLock(res, ModePR, LockPlain, nil, cb, 0, imp)
	res.addGranted(l)
	l.membership = listGranted

	_, err := c.cancelLocal(l)
	require.NoError(t, err)
	assert.True(t, invoked)
}

// ============================================================================
// Cancel
// ============================================================================

func TestCancel_UnknownHandle(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)

	err := c.Cancel(context.Background(), Handle{Cookie: 0xbad}, 0)
	require.Error(t, err)
	assert.False(t, IsESTALE(err))
}

func TestCancel_AlreadyCancelingAsync_IsNoop(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	imp := NewMemImport(ImportOptions{})
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, FlagCanceling, imp)
	h := c.Handles.Put(l)
	res.addGranted(l)
	l.membership = listGranted

	err := c.Cancel(context.Background(), h, CancelFlagAsync)
	require.NoError(t, err)
}

func TestCancel_LocalFlag_SkipsRPC(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, gw := newTestCoordinator(ns)
	imp := NewMemImport(ImportOptions{})
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)

	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, imp)
	h := c.Handles.Put(l)
	l.mu.Lock()
	l.remote = 1
	l.mu.Unlock()
	h = c.Handles.Rehash(h, l)
	res.addGranted(l)
	l.membership = listGranted
	gw.granted[ResourceID{Name: "res1"}] = []memGrant{{remote: 1, mode: ModePR}}

	err := c.Cancel(context.Background(), h, CancelFlagLocal)
	require.NoError(t, err)

	// The remote-side grant must be untouched since no RPC was sent.
	assert.Len(t, gw.granted[ResourceID{Name: "res1"}], 1)
}

func TestCancel_SendsRPC_RemovesRemoteGrant(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, gw := newTestCoordinator(ns)
	imp := NewMemImport(ImportOptions{})
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	resID := ResourceID{Name: "res1"}

	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, imp)
	h := c.Handles.Put(l)
	l.mu.Lock()
	l.remote = 1
	l.mu.Unlock()
	h = c.Handles.Rehash(h, l)
	res.addGranted(l)
	l.membership = listGranted
	gw.granted[resID] = []memGrant{{remote: 1, mode: ModePR}}

	err := c.Cancel(context.Background(), h, 0)
	require.NoError(t, err)
	assert.Len(t, gw.granted[resID], 0)
}

// ============================================================================
// availHandles
// ============================================================================

func TestAvailHandles_BoundedByPageCeiling(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxReqSize: 1 << 20, PageSize: 4096}
	got := availHandles(cfg, 0)
	want := (4096 - LinkLayerHeadroom) / HandleWireSize
	assert.Equal(t, want, got)
}

func TestAvailHandles_BoundedByMaxReqSize(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxReqSize: 64, PageSize: 1 << 20}
	got := availHandles(cfg, 0)
	assert.Equal(t, 64/HandleWireSize, got)
}

func TestAvailHandles_ZeroWhenReqSizeExceedsCeiling(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxReqSize: 100, PageSize: 1 << 20}
	got := availHandles(cfg, 200)
	assert.Equal(t, 0, got)
}

// ============================================================================
// CancelAsync
// ============================================================================

func TestCancelAsync_NilImportOrEmptyHandles_IsNoop(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)

	c.CancelAsync(nil, []Handle{{Cookie: 1}})
	c.CancelAsync(NewMemImport(ImportOptions{}), nil)
}
