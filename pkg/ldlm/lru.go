package ldlm

import "time"

// Verdict is a policy's decision for a single lock under LRU scan.
type Verdict int

const (
	// VerdictKeep stops the scan: the policy has decided the cache has
	// evicted enough, or this and every subsequent (older→newer scan
	// order would be wrong, but unused_list is oldest-first so KEEP
	// really does mean "we've reached the point where eviction should
	// stop for this pass").
	VerdictKeep Verdict = iota
	// VerdictCancel means this lock should be added to the eviction
	// batch.
	VerdictCancel
	// VerdictSkip means leave this lock alone but keep scanning.
	VerdictSkip
)

// Policy is the pluggable eviction decision function:
// P(ns, lock, added_so_far, target) → {KEEP, CANCEL, SKIP}.
type Policy func(ns *Namespace, l *Lock, addedSoFar, target int) Verdict

// PolicyFlags selects which named policy cancelLRUPolicy picks, mirroring
// the flag bits a caller passes to cancel_lru.
type PolicyFlags struct {
	NoWait     bool
	Shrink     bool
	LRUR       bool
	Passed     bool
	LRURNoWait bool
	Aged       bool
}

// NoWaitPredicate decides, for the no_wait policy, whether a given lock
// may be cancelled without waiting on a reply: cancel if the resource
// type allows it and the caller's predicate agrees.
type NoWaitPredicate func(l *Lock) bool

func defaultAllowNoWait(l *Lock) bool {
	return l.resource.Type() != ResourceFlock
}

// PolicyDefault is the `default`/`passed` policy: keep once the target
// is reached, cancel everything before that.
func PolicyDefault(ns *Namespace, l *Lock, addedSoFar, target int) Verdict {
	if addedSoFar >= target {
		return VerdictKeep
	}
	return VerdictCancel
}

// PolicyAged additionally keeps a lock that is not yet past max_age.
func PolicyAged(ns *Namespace, l *Lock, addedSoFar, target int) Verdict {
	if addedSoFar >= target {
		return VerdictKeep
	}
	age := time.Since(l.lastUsed)
	if age < ns.MaxAge {
		return VerdictKeep
	}
	return VerdictCancel
}

// PolicyLRUResize implements `lru_resize` (LRUR): keep once target is
// reached, or SLV is not yet known, or the lock's weight (pool limit *
// idle seconds * unused count) is below SLV; cancel once past max_age or
// once the weight reaches SLV. The pool limit stands in for the lock
// volume factor; no separate factor is tracked.
func PolicyLRUResize(ns *Namespace, l *Lock, addedSoFar, target int) Verdict {
	if addedSoFar >= target {
		return VerdictKeep
	}

	pool := ns.Pool()
	if pool.SLV == 0 {
		return VerdictKeep
	}

	age := time.Since(l.lastUsed)
	if age > ns.MaxAge {
		return VerdictCancel
	}

	unused := ns.NrUnused()
	weight := uint64(pool.Limit) * uint64(age.Seconds()) * uint64(unused)
	if weight < pool.SLV {
		return VerdictKeep
	}
	return VerdictCancel
}

// makePolicyNoWait builds the `no_wait` policy: cancel if the resource
// type allows it and pred agrees, else mark the lock SKIPPED so later
// passes in the same no-wait scan don't re-examine it.
func makePolicyNoWait(pred NoWaitPredicate) Policy {
	if pred == nil {
		pred = defaultAllowNoWait
	}
	return func(ns *Namespace, l *Lock, addedSoFar, target int) Verdict {
		if pred(l) {
			return VerdictCancel
		}
		l.mu.Lock()
		l.setFlags(FlagSkipped)
		l.mu.Unlock()
		return VerdictSkip
	}
}

// makePolicyLRURNoWait builds `lrur_no_wait`: propagate lru_resize's
// KEEP verdict, otherwise fall through to no_wait.
func makePolicyLRURNoWait(pred NoWaitPredicate) Policy {
	noWait := makePolicyNoWait(pred)
	return func(ns *Namespace, l *Lock, addedSoFar, target int) Verdict {
		if v := PolicyLRUResize(ns, l, addedSoFar, target); v == VerdictKeep {
			return VerdictKeep
		}
		return noWait(ns, l, addedSoFar, target)
	}
}

// cancelLRUPolicy selects a named policy: NO_WAIT
// wins outright; otherwise, if the namespace's connection supports
// LRU-resize, the first matching flag wins in order SHRINK, LRUR,
// PASSED, LRUR_NO_WAIT; otherwise AGED if set; otherwise `default`.
func cancelLRUPolicy(ns *Namespace, flags PolicyFlags) Policy {
	if flags.NoWait {
		return makePolicyNoWait(nil)
	}

	if ns.supportsLRUResize {
		switch {
		case flags.Shrink:
			return PolicyDefault
		case flags.LRUR:
			return PolicyLRUResize
		case flags.Passed:
			return PolicyDefault
		case flags.LRURNoWait:
			return makePolicyLRURNoWait(nil)
		}
	}

	if flags.Aged {
		return PolicyAged
	}
	return PolicyDefault
}

// lruScanFlags carries the per-call knobs prepareLRUList needs beyond
// target/max: whether this is a no-wait pass, which passes over locks
// that an earlier no-wait pass already marked SKIPPED.
type lruScanFlags struct {
	noWaitPass bool
}

// prepareLRUList runs the eviction scan: raise target to
// hard-cap the cache when LRU-resize is disabled, walk unused_list
// front-to-back skipping SKIPPED/too-fresh/CANCELING locks, query the
// policy outside the namespace lock, and re-validate under the double
// lock before committing a CANCEL verdict. It appends every lock it
// decides to cancel to *out and returns the number added.
//
// The "last_used == now" skip is a one-tick grace heuristic: a lock
// released within the current coarse clock tick (one second) is held
// for at least one more tick, so a lock that just went idle isn't
// immediately evicted by a scan racing its own release.
func prepareLRUList(ns *Namespace, out *[]*Lock, target, max int, policy Policy, flags lruScanFlags) int {
	if !ns.supportsLRUResize && ns.MaxUnused > 0 {
		if unused := ns.NrUnused(); unused > ns.MaxUnused {
			target += unused - ns.MaxUnused
		}
	}

	now := time.Now()
	candidates := ns.snapshotUnused()

	added := 0
	for _, l := range candidates {
		if max > 0 && added >= max {
			break
		}

		l.mu.Lock()
		skipped := l.flags.Has(FlagSkipped) && flags.noWaitPass
		tooFresh := l.lastUsed.Unix() == now.Unix()
		canceling := l.flags.Has(FlagCanceling)
		staleLastUsed := l.lastUsed
		l.mu.Unlock()

		if skipped || tooFresh || canceling {
			continue
		}

		l.addRef()
		verdict := policy(ns, l, added, target)

		switch verdict {
		case VerdictKeep:
			l.dropRef()
			return added
		case VerdictSkip:
			l.dropRef()
			continue
		case VerdictCancel:
			committed := false
			l.resource.withLockPair(l, func() {
				if l.flags.Has(FlagCanceling) {
					return
				}
				if l.membership != listUnusedLRU || !l.lastUsed.Equal(staleLastUsed) {
					return
				}
				l.clearFlags(FlagCancelOnBlock)
				l.setFlags(FlagCBPending | FlagCanceling)
				ns.removeFromUnused(l)
				l.membership = listNone
				committed = true
			})
			l.dropRef()
			if committed {
				*out = append(*out, l)
				added++
			}
		}
	}

	return added
}

// CancelLRU prepares the eviction list and either dispatches the
// cancels inline or, when async is true, hands the batch to the
// import's worker queue.
func (c *Coordinator) CancelLRU(export Import, nr int, policyFlags PolicyFlags, async bool) (int, error) {
	policy := cancelLRUPolicy(c.NS, policyFlags)

	var batch []*Lock
	added := prepareLRUList(c.NS, &batch, nr, nr, policy, lruScanFlags{noWaitPass: policyFlags.NoWait})
	if added == 0 {
		return 0, nil
	}

	handles := make([]Handle, len(batch))
	for i, l := range batch {
		handles[i] = l.Handle()
	}

	policyName := lruPolicyName(policyFlags)
	c.Metrics.ObserveLRUEvicted(c.NS.Name, policyName, added)

	if async {
		c.CancelAsync(export, handles)
		return added, nil
	}

	return added, c.sendCancelBatch(export, handles, 0)
}

func lruPolicyName(flags PolicyFlags) string {
	switch {
	case flags.NoWait:
		return "no_wait"
	case flags.Shrink:
		return "shrink"
	case flags.LRUR:
		return "lru_resize"
	case flags.Passed:
		return "passed"
	case flags.LRURNoWait:
		return "lrur_no_wait"
	case flags.Aged:
		return "aged"
	default:
		return "default"
	}
}
