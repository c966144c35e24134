package ldlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// NewAsyncCompletion
// ============================================================================

func TestNewAsyncCompletion_NotBlocked_Wakes(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, nil)
	before := l.wait.current()

	fn := NewAsyncCompletion()
	status := fn(l, 0, nil)

	assert.Equal(t, StatusOK, status)
	select {
	case <-before:
	default:
		t.Fatal("async completion must wake the wait slot when not blocked")
	}
}

func TestNewAsyncCompletion_Blocked_DoesNotWake(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, nil)
	before := l.wait.current()

	fn := NewAsyncCompletion()
	status := fn(l, FlagBlockWait, nil)

	assert.Equal(t, StatusOK, status)
	select {
	case <-before:
		t.Fatal("async completion must not wake the wait slot while still blocked")
	default:
	}
}

// ============================================================================
// NewSyncCompletion
// ============================================================================

func TestNewSyncCompletion_NotBlocked_ReturnsImmediately(t *testing.T) {
	t.Parallel()

	ns := newTestNamespace()
	res := ns.Resources().GetOrCreate(ns, "res1", ResourceOrdinary)
	l := newLock(res, ModePR, LockPlain, nil, Callbacks{}, 0, nil)

	fn := NewSyncCompletion(ns, DefaultConfig())
	status := fn(l, 0, nil)
	assert.Equal(t, StatusOK, status)
}
