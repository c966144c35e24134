package ldlm

import (
	"context"
	"time"

	"github.com/dittofs/ldlm/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/dittofs/ldlm/pkg/ldlm")

// EnqueueInfo is the caller-supplied description of what to request.
type EnqueueInfo struct {
	LockType  LockType
	ReqMode   Mode
	Callbacks Callbacks
}

// Coordinator drives the enqueue/completion, cancel, LRU, and replay
// pipelines for a single namespace. It is the engine's top-level entry
// point; callers construct one per namespace they maintain locks in.
type Coordinator struct {
	NS      *Namespace
	Gateway Gateway
	Handles HandleStore
	Metrics *Metrics
	Config  Config
}

// astBinder is implemented by Gateways that also play the server's role
// (memGateway, for tests and the CLI demo) and need the Coordinator to
// push inbound ASTs back into. A real transport instead wires inbound
// RPCs to CompletionAST/BlockingAST/GlimpseAST (ast.go) however its own
// server dispatch works, so it does not need to implement this.
type astBinder interface {
	Bind(c *Coordinator)
}

// NewCoordinator wires a Coordinator for ns. handles may be nil to use
// the default in-memory HandleStore.
func NewCoordinator(ns *Namespace, gw Gateway, handles HandleStore, m *Metrics, cfg Config) *Coordinator {
	if handles == nil {
		handles = NewMemHandleStore()
	}
	c := &Coordinator{NS: ns, Gateway: gw, Handles: handles, Metrics: m, Config: cfg}
	if b, ok := gw.(astBinder); ok {
		b.Bind(c)
	}
	return c
}

// Enqueue issues a lock request and waits for the RPC reply inline
// before running enqueueFini.
func (c *Coordinator) Enqueue(ctx context.Context, export Import, einfo EnqueueInfo, resID ResourceID, policy PolicyData, flags Flag, lvbLen int) (Handle, Flag, error) {
	ctx, span := tracer.Start(ctx, "ldlm.enqueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("ldlm.namespace", c.NS.Name),
		attribute.String("ldlm.resource", resID.Name),
		attribute.String("ldlm.mode", einfo.ReqMode.String()),
	)

	l, req, _, err := c.prepareEnqueue(export, einfo, resID, policy, flags, lvbLen)
	if err != nil {
		return Handle{}, 0, err
	}

	reply, err := c.Gateway.SendAndWait(ctx, req)
	effFlags, ferr := c.enqueueFini(ctx, export, l, reply, err)
	status := StatusLabelOK
	if ferr != nil {
		status = StatusLabelError
	}
	c.Metrics.ObserveEnqueue(c.NS.Name, einfo.ReqMode, status)
	return l.Handle(), effFlags, ferr
}

// EnqueueAsync hands the prepared request to the gateway's async send
// path and returns immediately; onDone is invoked once the reply (or a
// transport error) arrives and enqueueFini has run. The caller owns
// completion in this mode rather than blocking inline.
func (c *Coordinator) EnqueueAsync(ctx context.Context, export Import, einfo EnqueueInfo, resID ResourceID, policy PolicyData, flags Flag, lvbLen int, onDone func(Handle, Flag, error)) error {
	ctx, span := tracer.Start(ctx, "ldlm.enqueue_async")

	l, req, _, err := c.prepareEnqueue(export, einfo, resID, policy, flags, lvbLen)
	if err != nil {
		span.End()
		return err
	}

	c.Gateway.SendAsync(ctx, req, func(reply *EnqueueReply, rpcErr error) {
		defer span.End()
		effFlags, ferr := c.enqueueFini(ctx, export, l, reply, rpcErr)
		status := StatusLabelOK
		if ferr != nil {
			status = StatusLabelError
		}
		c.Metrics.ObserveEnqueue(c.NS.Name, einfo.ReqMode, status)
		if onDone != nil {
			onDone(l.Handle(), effFlags, ferr)
		}
	})
	return nil
}

// prepareEnqueue rejects a request carrying FlagReplay (replay requests
// are built by Namespace.Replay, not here); otherwise it creates a fresh
// lock, takes the caller's reference, installs
// the policy, binds the connection, and builds the wire request (with
// room reserved for cancel piggyback).
func (c *Coordinator) prepareEnqueue(export Import, einfo EnqueueInfo, resID ResourceID, policy PolicyData, flags Flag, lvbLen int) (*Lock, *EnqueueRequest, Handle, error) {
	if flags.Has(FlagReplay) {
		return nil, nil, Handle{}, NewInvalError("replay enqueue must go through Namespace.Replay")
	}

	if einfo.LockType == LockExtent && policy == nil {
		return nil, nil, Handle{}, NewInvalError("extent lock requires policy data")
	}

	resType := ResourceOrdinary
	if einfo.LockType == LockFlock {
		resType = ResourceFlock
	}
	res := c.NS.resources.GetOrCreate(c.NS, resID.Name, resType)

	l := newLock(res, einfo.ReqMode, einfo.LockType, policy, einfo.Callbacks, flags, export)
	h := c.Handles.Put(l)

	desc := LockDescriptor{
		Resource:   resID,
		ReqMode:    einfo.ReqMode,
		LockType:   einfo.LockType,
		PolicyData: policy,
		Flags:      flags,
		LVBLen:     lvbLen,
	}

	req := &EnqueueRequest{Descriptor: desc, Handles: []Handle{h}}
	if export != nil && export.SupportsCancelSet() {
		piggyback, remainder := c.preparePiggyback(req)
		req.Handles = append(req.Handles, piggyback...)
		if len(remainder) > 0 {
			c.sendCancelBatch(export, remainder, 0)
		}
	}

	return l, req, h, nil
}

// enqueueFini reconciles an enqueue reply with the lock's client-side
// state, in order.
func (c *Coordinator) enqueueFini(ctx context.Context, export Import, l *Lock, reply *EnqueueReply, rpcErr error) (Flag, error) {
	if rpcErr != nil {
		c.failedLockCleanup(l, l.RequestedMode())
		return 0, rpcErr
	}

	// Step 1: LOCK_ABORTED with an LVB present still fills the caller's
	// buffer before falling through to cleanup.
	if reply.Status == StatusLockAborted {
		if len(reply.LVB) > 0 {
			l.mu.Lock()
			l.lvb = append(LVB(nil), reply.LVB...)
			l.mu.Unlock()
		}
		c.failedLockCleanup(l, l.RequestedMode())
		return 0, NewLockAbortedError(l.resource.Name())
	}

	// Step 2: any other non-OK status runs cleanup and returns.
	if reply.Status != StatusOK {
		c.failedLockCleanup(l, l.RequestedMode())
		return 0, &StatusError{Code: reply.Status, Message: "enqueue failed", Resource: l.resource.Name()}
	}

	// Step 3: validate LVB length.
	if len(reply.LVB) > MaxLVBLen {
		c.failedLockCleanup(l, l.RequestedMode())
		return 0, NewProtoError("reply LVB exceeds maximum length")
	}

	// Step 4: record remote handle, rehash under the new key.
	l.mu.Lock()
	l.remote = reply.Handle
	l.hasRemote = true
	l.mu.Unlock()
	c.Handles.Rehash(l.handle, l)

	// Step 5: install effective flags.
	effFlags := (reply.Flags & FlagInheritMask) | reply.Flags

	// Step 6: LOCK_CHANGED means the server rewrote mode and/or
	// resource.
	if reply.Flags.Has(FlagLockChanged) {
		l.mu.Lock()
		if reply.ReqMode != 0 && reply.ReqMode != l.reqMode {
			l.reqMode = reply.ReqMode
		}
		l.mu.Unlock()
		if reply.Resource.Name != "" && reply.Resource.Name != l.resource.Name() {
			newRes := c.NS.resources.GetOrCreate(c.NS, reply.Resource.Name, l.resource.Type())
			l.resource = newRes
		}
	}

	// Step 7: AST_SENT means a blocking notification is already
	// in-flight.
	if reply.Flags.Has(FlagASTSent) {
		l.mu.Lock()
		l.setFlags(FlagCBPending | FlagBLAST)
		l.mu.Unlock()
	}

	// Step 8: copy LVB into the lock under the double lock, unless
	// completion already raced ahead and granted the lock.
	if len(reply.LVB) > 0 {
		l.resource.withLockPair(l, func() {
			if l.grantedMode == ModeNone {
				l.lvb = append(LVB(nil), reply.LVB...)
			}
		})
	}

	c.NS.UpdatePool(reply.Pool.SLV, reply.Pool.Limit)

	// Step 9: install into the namespace and invoke completion once.
	var waitDelay *CompletionData
	start := time.Now()
	if effFlags.Any(BlockedMask) {
		l.resource.withLockPair(l, func() { l.markWaitingLocked() })
	} else {
		l.resource.withLockPair(l, func() { l.markGrantedLocked(reply.ReqMode) })
	}

	var status StatusCode
	if l.callbacks.Completion != nil {
		status = l.callbacks.Completion(l, effFlags, nil)
	} else {
		status = StatusOK
	}
	if effFlags.Any(BlockedMask) {
		waitDelay = &CompletionData{Delay: time.Since(start).Seconds()}
		c.Metrics.ObserveCompletionWait(c.NS.Name, waitDelay.Delay)
	}

	if status != StatusOK {
		c.failedLockCleanup(l, l.RequestedMode())
		return effFlags, &StatusError{Code: status, Message: "completion callback failed", Resource: l.resource.Name()}
	}

	logger.DebugCtx(ctx, "lock enqueued", logger.Namespace(c.NS.Name), logger.Resource(l.resource.Name()), logger.ReqMode(l.reqMode.String()))

	return effFlags, nil
}

// failedLockCleanup handles a failed enqueue: under the
// double lock, if the lock is neither granted nor failed, stamp
// LOCAL_ONLY|FAILED|ATOMIC_CB|CBPENDING so a racing blocking
// notification returns an error to the server without sending a cancel.
// FLOCK locks (no client-side blocking callback) are unlinked and
// destroyed outright; other types are unlinked from their resource and
// their granted mode is cleared.
func (c *Coordinator) failedLockCleanup(l *Lock, _ Mode) {
	l.resource.withLockPair(l, func() {
		if l.grantedMode == ModeNone && !l.flags.Has(FlagFailed) {
			l.setFlags(FlagLocalOnly | FlagFailed | FlagAtomicCB | FlagCBPending)
		}

		if l.lockType == LockFlock {
			l.unlinkFromResourceLocked()
			l.destroyed = true
		} else {
			l.unlinkFromResourceLocked()
			l.grantedMode = ModeNone
		}
	})
	l.wait.wake()
}

// completionASTSync is the synchronous completion callback variant:
// it parks the caller until the lock is granted or cancelled.
func completionASTSync(ns *Namespace, cfg Config, l *Lock, flags Flag, data *CompletionData) StatusCode {
	if flags == FlagWaitNoreproc {
		return waitForGrantOrCancel(ns, cfg, l)
	}

	if !flags.Any(BlockedMask) {
		l.wait.wake()
		return StatusOK
	}

	return waitForGrantOrCancel(ns, cfg, l)
}

func waitForGrantOrCancel(ns *Namespace, cfg Config, l *Lock) StatusCode {
	start := time.Now()

	timeout := time.Duration(0)
	noTimeout := l.Flags().Has(FlagNoTimeout)
	if !noTimeout {
		adaptive := cfg.AdaptiveTimeoutEnabled
		if l.connExport != nil {
			adaptive = adaptive && l.connExport.AdaptiveTimeout()
		}

		t := cfg.EnqueueMinSeconds
		if adaptive {
			if est := ns.adaptive.estimateSeconds() * 3; est > t {
				t = est
			}
		}
		timeout = time.Duration(t * float64(time.Second))
	}

	generation := uint64(0)
	if l.connExport != nil {
		generation = l.connExport.Generation()
	}

	ctx := context.Background()
	granted := l.wait.waitUntil(ctx, timeout, func() bool {
		return isGrantedOrCancelled(l)
	})

	if !granted && !noTimeout {
		if l.connExport != nil {
			l.connExport.FailImport(generation)
		}
		return StatusTimeout
	}

	return completionTail(ns, l, time.Since(start))
}

// isGrantedOrCancelled reports whether the lock has left the pending
// state, either by being granted or by being destroyed/failed/canceled.
func isGrantedOrCancelled(l *Lock) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.destroyed || l.flags.Has(FlagFailed) || l.flags.Has(FlagCanceling) {
		return true
	}
	return l.grantedMode != ModeNone
}

// completionTail runs once a waiter wakes normally: if destroyed/failed
// return IO_ERROR; if cancelled while still pending return INTERRUPTED
// rather than reporting a grant that never happened; otherwise, feed
// the observed delay into the adaptive estimator.
func completionTail(ns *Namespace, l *Lock, waited time.Duration) StatusCode {
	l.mu.Lock()
	destroyed := l.destroyed
	failed := l.flags.Has(FlagFailed)
	canceling := l.flags.Has(FlagCanceling)
	l.mu.Unlock()

	if destroyed || failed {
		return StatusIOError
	}
	if canceling {
		return StatusInterrupted
	}

	ns.adaptive.observe(waited.Seconds())
	return StatusOK
}
