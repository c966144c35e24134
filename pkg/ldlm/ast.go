package ldlm

// CompletionAST is the inbound completion notification a transport
// delivers once the server resolves a previously-blocked request: the
// lock moves onto resource.granted at the mode the server actually
// granted, any LVB carried along is installed, and a parked
// waitForGrantOrCancel caller is woken. A lock already stamped
// FAILED|ATOMIC_CB by failedLockCleanup rejects the notification with
// EINVAL instead of acting on it.
func (c *Coordinator) CompletionAST(remoteHandle uint64, grantedMode Mode, lvb LVB) error {
	l, ok := c.NS.findByRemote(remoteHandle)
	if !ok {
		return NewNoLockError("")
	}
	defer l.dropRef()

	if l.Flags().Any(FlagAtomicCB | FlagFailed) {
		return NewInvalError("completion AST for a lock already marked failed")
	}

	l.resource.withLockPair(l, func() {
		if len(lvb) > 0 {
			l.lvb = append(LVB(nil), lvb...)
		}
		l.markGrantedLocked(grantedMode)
		l.clearFlags(FlagCBPending | FlagBLAST)
	})
	l.wait.wake()
	return nil
}

// BlockingAST is the inbound notification that a conflicting request
// arrived server-side. It stamps CBPENDING|BL_AST and runs the lock's
// own Blocking callback, if it installed one; FLOCK locks have none and
// rely on failedLockCleanup / cancelLocal to unwind instead.
func (c *Coordinator) BlockingAST(remoteHandle uint64, cancelRequested bool) error {
	l, ok := c.NS.findByRemote(remoteHandle)
	if !ok {
		return NewNoLockError("")
	}
	defer l.dropRef()

	if l.Flags().Any(FlagAtomicCB | FlagFailed) {
		return NewInvalError("blocking AST for a lock already marked failed")
	}

	l.mu.Lock()
	l.setFlags(FlagCBPending | FlagBLAST)
	cb := l.callbacks.Blocking
	l.mu.Unlock()

	if cb != nil {
		cb(l, &BlockDesc{CancelRequested: cancelRequested})
	}
	return nil
}

// GlimpseAST is the inbound request for a lock's current value block
// without revoking the lock. A lock with no Glimpse callback installed
// answers with an empty LVB rather than an error — glimpse is always
// advisory.
func (c *Coordinator) GlimpseAST(remoteHandle uint64) (LVB, error) {
	l, ok := c.NS.findByRemote(remoteHandle)
	if !ok {
		return nil, NewNoLockError("")
	}
	defer l.dropRef()

	if l.Flags().Any(FlagAtomicCB | FlagFailed) {
		return nil, NewInvalError("glimpse AST for a lock already marked failed")
	}

	l.mu.Lock()
	cb := l.callbacks.Glimpse
	l.mu.Unlock()

	if cb == nil {
		return nil, nil
	}
	return cb(l)
}
