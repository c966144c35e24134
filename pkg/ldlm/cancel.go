package ldlm

import (
	"context"
	"time"

	"github.com/dittofs/ldlm/internal/logger"
	"golang.org/x/sync/singleflight"
)

// cancelResult is the three-way outcome of cancelLocal.
type cancelResult int

const (
	cancelResultCanceling cancelResult = iota
	cancelResultLocalOnly
	cancelResultBLAST
)

// cancelGroup coalesces concurrent cancel-RPC flushes for the same
// namespace onto one in-flight send: callers that ask to flush while a
// send is already in-flight for this namespace share its result
// instead of issuing a second RPC for an overlapping batch window.
var cancelGroup singleflight.Group

// cancelLocal performs the local half of a cancel. It requires
// a live connection, sets CBPENDING under the double lock, snapshots
// LOCAL_ONLY/CANCEL_ON_BLOCK, invokes the lock's own cancel path (which
// clears caller-visible state), and unlinks the lock from its resource
// lists.
func (c *Coordinator) cancelLocal(l *Lock) (cancelResult, error) {
	if l.connExport == nil {
		return 0, NewInvalError("cancelLocal requires a live connection")
	}

	var result cancelResult
	l.resource.withLockPair(l, func() {
		l.setFlags(FlagCBPending)

		localOnly := l.flags.Has(FlagLocalOnly) || l.flags.Has(FlagCancelOnBlock)

		if l.callbacks.Blocking != nil {
			l.callbacks.Blocking(l, &BlockDesc{CancelRequested: true})
		}

		l.unlinkFromResourceLocked()
		l.grantedMode = ModeNone

		switch {
		case l.flags.Has(FlagBLAST):
			result = cancelResultBLAST
		case localOnly:
			result = cancelResultLocalOnly
		default:
			result = cancelResultCanceling
		}
	})
	return result, nil
}

// Cancel is the public, atomic-by-flags cancel entry point.
// If the lock is already canceling and the caller asked for an
// async cancel, it returns immediately; a synchronous cancel of an
// already-cancelling lock runs the full path again.
// Otherwise it marks CANCELING, runs cancelLocal, and — unless the
// result was LOCAL_ONLY or the caller passed CancelFlagLocal — enlists
// the lock on a batch and flushes it.
func (c *Coordinator) Cancel(ctx context.Context, h Handle, flags CancelFlag) error {
	l, ok := c.Handles.Get(h)
	if !ok {
		return NewNoLockError("")
	}
	defer c.Handles.Release(h)

	alreadyCanceling := l.Flags().Has(FlagCanceling)
	if alreadyCanceling && flags&CancelFlagAsync != 0 {
		return nil
	}

	l.mu.Lock()
	l.setFlags(FlagCanceling)
	l.mu.Unlock()

	result, err := c.cancelLocal(l)
	if err != nil {
		c.Metrics.ObserveCancel(c.NS.Name, StatusLabelError)
		return err
	}

	l.wait.wake()

	if result == cancelResultLocalOnly || flags&CancelFlagLocal != 0 {
		c.Metrics.ObserveCancel(c.NS.Name, StatusLabelOK)
		return nil
	}

	async := flags&CancelFlagAsync != 0
	err = c.cancelList(ctx, []*Lock{l}, nil, async)
	status := StatusLabelOK
	if err != nil {
		status = StatusLabelError
	}
	c.Metrics.ObserveCancel(c.NS.Name, status)
	return err
}

// cancelList packs the given batch for sending: if req is non-nil, the
// handles are appended to req's handle list (the cancel-set capability
// is not checked here); otherwise they go out as cancel RPCs, one per
// group that fits, inline or, when async is set, through the import's
// worker queue.
func (c *Coordinator) cancelList(ctx context.Context, batch []*Lock, req *EnqueueRequest, async bool) error {
	if len(batch) == 0 {
		return nil
	}

	handles := make([]Handle, len(batch))
	for i, l := range batch {
		handles[i] = l.Handle()
	}

	if req != nil {
		req.Handles = append(req.Handles, handles...)
		return nil
	}

	if async {
		c.CancelAsync(batch[0].connExport, handles)
		return nil
	}

	return c.sendCancelBatch(batch[0].connExport, handles, 0)
}

// sendCancelBatch runs the cancel RPC send loop: allocate
// a request sized for count handles bounded by availHandles, pack and
// send, retry on TIMEOUT while the connection generation is unchanged,
// treat ESTALE as success (the server already forgot), and report other
// errors while still considering the locks cancelled client-side.
func (c *Coordinator) sendCancelBatch(export Import, handles []Handle, attempt int) error {
	if len(handles) == 0 {
		return nil
	}

	key := c.NS.Name
	_, err, _ := cancelGroup.Do(key, func() (interface{}, error) {
		return nil, c.sendCancelBatchOnce(export, handles, attempt)
	})
	return err
}

func (c *Coordinator) sendCancelBatchOnce(export Import, handles []Handle, attempt int) error {
	max := availHandles(c.Config, 0)
	if max <= 0 {
		max = len(handles)
	}

	var generation uint64
	if export != nil {
		generation = export.Generation()
	}

	for offset := 0; offset < len(handles); offset += max {
		end := offset + max
		if end > len(handles) {
			end = len(handles)
		}
		group := handles[offset:end]

		req := &CancelRequest{Handles: group}
		ctx := context.Background()
		reply, err := c.Gateway.SendCancel(ctx, req)

		switch {
		case err != nil && IsESTALE(err):
			logger.Debug("cancel RPC ESTALE, treating as success", logger.Namespace(c.NS.Name))
			continue
		case err != nil && IsTimeout(err):
			if export != nil && export.Generation() == generation {
				time.Sleep(backoffForAttempt(attempt))
				return c.sendCancelBatchOnce(export, handles[offset:], attempt+1)
			}
			return err
		case err != nil:
			return err
		case reply != nil && reply.Status == StatusESTALE:
			continue
		case reply != nil && reply.Status != StatusOK:
			return &StatusError{Code: reply.Status, Message: "cancel RPC failed"}
		}
	}
	return nil
}

func backoffForAttempt(attempt int) time.Duration {
	d := time.Duration(attempt+1) * 50 * time.Millisecond
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

// CancelAsync hands a batch off to the import's worker queue instead of
// sending it inline.
func (c *Coordinator) CancelAsync(export Import, handles []Handle) {
	if export == nil || len(handles) == 0 {
		return
	}
	export.Worker().Submit(context.Background(), func(ctx context.Context) {
		_ = c.sendCancelBatch(export, handles, 0)
	})
}

// availHandles computes A, the number of handles that fit in a single
// request: honoring MAX_REQ_SIZE and a page-minus-512-byte ceiling for
// link-layer headroom.
func availHandles(cfg Config, reqSize int) int {
	maxReq := cfg.MaxReqSize
	pageCeiling := cfg.PageSize - LinkLayerHeadroom
	ceiling := maxReq
	if pageCeiling > 0 && pageCeiling < ceiling {
		ceiling = pageCeiling
	}
	avail := ceiling - reqSize
	if avail <= 0 {
		return 0
	}
	return avail / HandleWireSize
}

// preparePiggyback estimates slots
// A = avail(req) - canceloff, greedily take up to A locks from the LRU
// using the selected policy, and return (up to P=min(A,C) locks to
// piggyback, the remainder to send as a separate cancel batch).
func (c *Coordinator) preparePiggyback(req *EnqueueRequest) (piggyback []Handle, remainder []Handle) {
	canceloff := len(req.Handles)
	a := availHandles(c.Config, 0) - canceloff
	if a <= 0 {
		return nil, nil
	}

	policy := cancelLRUPolicy(c.NS, PolicyFlags{})
	var batch []*Lock
	prepareLRUList(c.NS, &batch, a, a, policy, lruScanFlags{})
	if len(batch) == 0 {
		return nil, nil
	}

	p := len(batch)
	if p > a {
		p = a
	}

	handles := make([]Handle, len(batch))
	for i, l := range batch {
		handles[i] = l.Handle()
	}

	return handles[:p], handles[p:]
}
