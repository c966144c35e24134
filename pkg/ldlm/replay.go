package ldlm

import (
	"context"

	"github.com/dittofs/ldlm/internal/logger"
	"go.opentelemetry.io/otel/attribute"
)

// ReplayResult summarizes one Replay pass.
type ReplayResult struct {
	Replayed int
	Skipped  int
}

// Replay runs once after reconnection, before the import resumes
// normal traffic. It asserts no replay is already in
// flight, optionally drains the unused LRU with a no-RPC no_wait pass,
// walks every resource collecting replayable locks, and replays each in
// turn.
func (ns *Namespace) Replay(ctx context.Context, c *Coordinator, export Import, recoveryAbandoned bool) (ReplayResult, error) {
	ctx, span := tracer.Start(ctx, "ldlm.replay")
	defer span.End()
	span.SetAttributes(attribute.String("ldlm.namespace", ns.Name))

	if !ns.beginReplay() {
		return ReplayResult{}, NewInvalError("replay already in flight")
	}
	defer ns.endReplay()

	if recoveryAbandoned {
		return ReplayResult{}, nil
	}

	if c.Config.CancelUnusedBeforeReplay {
		var batch []*Lock
		prepareLRUList(ns, &batch, 0, 0, makePolicyNoWait(nil), lruScanFlags{noWaitPass: true})
		for _, l := range batch {
			c.cancelLocal(l) //nolint:errcheck // local-only drain, no RPC, best effort
		}
	}

	chain := ns.collectReplayable()

	result := ReplayResult{}
	for _, l := range chain {
		replayed, err := replayOne(ctx, c, export, l)
		if err != nil {
			logger.WarnCtx(ctx, "replay failed for lock", logger.Namespace(ns.Name), logger.Resource(l.resource.Name()), logger.Err(err))
		}
		if replayed {
			result.Replayed++
		} else {
			result.Skipped++
		}
		l.dropRef()
	}

	status := StatusLabelOK
	c.Metrics.ObserveReplay(ns.Name, status)
	return result, nil
}

// collectReplayable walks the granted and waiting lists of every
// resource of the namespace and collects into the returned slice every
// lock that is not destroyed and whose flags contain neither FAILED nor
// BL_DONE, taking an extra reference on each. A lock's list membership
// is left unchanged.
func (ns *Namespace) collectReplayable() []*Lock {
	var chain []*Lock
	for _, res := range ns.resources.All() {
		locks := append(res.Granted(), res.Waiting()...)
		for _, l := range locks {
			l.mu.Lock()
			eligible := !l.flags.Has(FlagFailed) && !l.flags.Has(FlagBLDone) && !l.destroyed
			l.mu.Unlock()

			if eligible {
				l.addRef()
				chain = append(chain, l)
			}
		}
	}
	return chain
}

// replayOne handles per-lock replay: skip BL_DONE locks
// outright, cancel-and-skip CANCEL_ON_BLOCK locks (the server will
// already have dropped them), compute the replay flags from the
// client's view of the lock, and send the replay enqueue through the
// gateway's async path, waiting for its reply before returning.
func replayOne(ctx context.Context, c *Coordinator, export Import, l *Lock) (bool, error) {
	flags := l.Flags()

	if flags.Has(FlagBLDone) {
		return false, nil
	}

	if flags.Has(FlagCancelOnBlock) {
		c.cancelLocal(l) //nolint:errcheck // server already dropped this lock
		return false, nil
	}

	replayFlags := replayInterpret(l)

	req := &EnqueueRequest{
		Descriptor: LockDescriptor{
			Resource:   ResourceID{Name: l.resource.Name(), Type: l.resource.Type()},
			ReqMode:    l.RequestedMode(),
			LockType:   l.lockType,
			PolicyData: l.policyData,
			Flags:      replayFlags,
		},
		Handles:    []Handle{l.Handle()},
		ReplayDone: true,
	}

	done := make(chan struct{})
	var sendErr error
	c.Gateway.SendAsync(ctx, req, func(reply *EnqueueReply, err error) {
		defer close(done)
		if err != nil {
			sendErr = err
			if export != nil {
				export.FailImport(export.Generation())
			}
			return
		}
		if reply.Status != StatusOK {
			sendErr = &StatusError{Code: reply.Status, Message: "replay rejected"}
			if export != nil {
				export.FailImport(export.Generation())
			}
			return
		}
		c.Handles.Rehash(l.handle, l)
	})
	<-done

	return sendErr == nil, sendErr
}

// replayInterpret computes the replay flags for a lock from its current
// client-side view: granted-as-requested, granted-but-converting,
// waiting, or a bare replay of a lock on neither resource list.
func replayInterpret(l *Lock) Flag {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.membership == listGranted && l.grantedMode == l.reqMode:
		return FlagReplay | FlagBlockGranted
	case l.membership == listGranted && l.grantedMode != l.reqMode:
		return FlagReplay | FlagBlockConv
	case l.membership == listWaiting:
		return FlagReplay | FlagBlockWait
	default:
		return FlagReplay
	}
}
