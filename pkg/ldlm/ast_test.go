package ldlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CompletionAST
// ============================================================================

func TestCompletionAST_GrantsAndWakes(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	l.mu.Lock()
	l.remote = 5
	l.setFlags(FlagCBPending)
	l.mu.Unlock()
	res.addWaiting(l)
	l.membership = listWaiting

	before := l.wait.current()

	err := c.CompletionAST(5, ModePR, LVB{9, 9})
	require.NoError(t, err)

	assert.Equal(t, ModePR, l.GrantedMode())
	assert.False(t, l.Flags().Has(FlagCBPending))
	assert.Equal(t, LVB{9, 9}, l.LVB())

	select {
	case <-before:
	default:
		t.Fatal("CompletionAST must wake the parked waiter")
	}
}

func TestCompletionAST_FailedLock_RejectsWithInval(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	l.mu.Lock()
	l.remote = 15
	l.setFlags(FlagLocalOnly | FlagFailed | FlagAtomicCB | FlagCBPending)
	l.mu.Unlock()
	res.addWaiting(l)
	l.membership = listWaiting

	err := c.CompletionAST(15, ModePR, nil)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StatusInval, statusErr.Code)
	assert.Equal(t, ModeNone, l.GrantedMode())
}

func TestCompletionAST_UnknownHandle(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)

	err := c.CompletionAST(999, ModePR, nil)
	require.Error(t, err)
}

// ============================================================================
// BlockingAST
// ============================================================================

func TestBlockingAST_InvokesCallback(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)

	var gotDesc *BlockDesc
	cb := Callbacks{Blocking: func(l *Lock, desc *BlockDesc) { gotDesc = desc }}
	l := newLock(res, ModePR, LockPlain, nil, cb, 0, nil)
	l.mu.Lock()
	l.remote = 6
	l.mu.Unlock()
	res.addGranted(l)
	l.membership = listGranted

	err := c.BlockingAST(6, true)
	require.NoError(t, err)
	require.NotNil(t, gotDesc)
	assert.True(t, gotDesc.CancelRequested)
	assert.True(t, l.Flags().Has(FlagCBPending|FlagBLAST))
}

func TestBlockingAST_FailedLock_RejectsWithInval(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)

	var called bool
	cb := Callbacks{Blocking: func(l *Lock, desc *BlockDesc) { called = true }}
	l := newLock(res, ModePR, LockPlain, nil, cb, 0, nil)
	l.mu.Lock()
	l.remote = 16
	l.setFlags(FlagLocalOnly | FlagFailed | FlagAtomicCB | FlagCBPending)
	l.mu.Unlock()
	res.addGranted(l)
	l.membership = listGranted

	err := c.BlockingAST(16, true)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StatusInval, statusErr.Code)
	assert.False(t, called, "BlockingAST must not invoke the callback on a lock already marked failed")
}

func TestBlockingAST_NoCallback_DoesNotPanic(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceFlock)
	l := newLock(res, ModePR, LockFlock, nil, Callbacks{}, 0, nil)
	l.mu.Lock()
	l.remote = 7
	l.mu.Unlock()
	res.addGranted(l)
	l.membership = listGranted

	err := c.BlockingAST(7, false)
	require.NoError(t, err)
}

// ============================================================================
// GlimpseAST
// ============================================================================

func TestGlimpseAST_InvokesCallback(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)

	cb := Callbacks{Glimpse: func(l *Lock) (LVB, error) { return LVB{1, 2, 3}, nil }}
	l := newLock(res, ModePR, LockPlain, nil, cb, 0, nil)
	l.mu.Lock()
	l.remote = 8
	l.mu.Unlock()
	res.addGranted(l)
	l.membership = listGranted

	lvb, err := c.GlimpseAST(8)
	require.NoError(t, err)
	assert.Equal(t, LVB{1, 2, 3}, lvb)
}

func TestGlimpseAST_FailedLock_RejectsWithInval(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)

	cb := Callbacks{Glimpse: func(l *Lock) (LVB, error) { return LVB{1, 2, 3}, nil }}
	l := newLock(res, ModePR, LockPlain, nil, cb, 0, nil)
	l.mu.Lock()
	l.remote = 17
	l.setFlags(FlagLocalOnly | FlagFailed | FlagAtomicCB | FlagCBPending)
	l.mu.Unlock()
	res.addGranted(l)
	l.membership = listGranted

	lvb, err := c.GlimpseAST(17)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StatusInval, statusErr.Code)
	assert.Nil(t, lvb)
}

func TestGlimpseAST_NoCallback_ReturnsNil(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	c, _ := newTestCoordinator(ns)
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, nil)
	l.mu.Lock()
	l.remote = 9
	l.mu.Unlock()
	res.addGranted(l)
	l.membership = listGranted

	lvb, err := c.GlimpseAST(9)
	require.NoError(t, err)
	assert.Nil(t, lvb)
}
