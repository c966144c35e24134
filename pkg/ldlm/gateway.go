package ldlm

import (
	"context"
	"errors"
)

// Wire opcodes used by the engine.
const (
	OpEnqueue    = "ENQUEUE"
	OpCancel     = "CANCEL"
	OpCPCallback = "CP_CALLBACK"
	OpBLCallback = "BL_CALLBACK"
	OpGLCallback = "GL_CALLBACK"
)

// Portals used for cancel traffic.
const (
	PortalCancelRequest = "CANCEL_REQUEST_PORTAL"
	PortalCancelReply   = "CANCEL_REPLY_PORTAL"
)

// Request sizing ceilings. A real gateway honors these when
// packing a request buffer; the engine only computes how many handles
// fit (see cancel.go's availHandles).
const (
	// HandleWireSize is sizeof(handle) on the wire.
	HandleWireSize = 16
	// LinkLayerHeadroom is a page-minus-512-byte ceiling, reserved so
	// link-layer framing never overflows a page.
	LinkLayerHeadroom = 512
)

// ErrShutdown is returned by Gateway methods when the import is
// shutting down and no further RPCs will be sent.
var ErrShutdown = errors.New("ldlm: gateway shutting down")

// LockDescriptor is the wire payload of an enqueue request: the lock's
// resource, mode, type, and policy data, plus the flags the caller is
// requesting.
type LockDescriptor struct {
	Resource   ResourceID
	ReqMode    Mode
	LockType   LockType
	PolicyData PolicyData
	Flags      Flag
	LVBLen     int
}

// EnqueueRequest is the packed request a caller hands to the gateway.
// Handles[0] is the enqueue's own (still-unassigned) handle slot;
// Handles[1:] piggyback cancel handles the caller is letting go of
// alongside this enqueue.
type EnqueueRequest struct {
	Descriptor LockDescriptor
	Handles    []Handle
	ReplayDone bool
}

// EnqueueReply is what the server returns for an enqueue RPC.
type EnqueueReply struct {
	Status     StatusCode
	Handle     uint64
	Flags      Flag
	ReqMode    Mode
	Resource   ResourceID
	LVB        LVB
	Pool       Pool
}

// CancelRequest packs a batch of handles for a single cancel RPC.
type CancelRequest struct {
	Handles []Handle
}

// CancelReply is the result of a cancel RPC.
type CancelReply struct {
	Status StatusCode
}

// Gateway is the RPC transport the engine sends requests through:
// request packing, queuing, and reply dispatch, consumed only through
// this narrow interface.
type Gateway interface {
	// SendAndWait sends req and blocks for the reply.
	SendAndWait(ctx context.Context, req *EnqueueRequest) (*EnqueueReply, error)
	// SendAsync sends req and invokes onReply from whatever goroutine
	// the gateway's reply-dispatch path runs on.
	SendAsync(ctx context.Context, req *EnqueueRequest, onReply func(*EnqueueReply, error))
	// SendCancel sends a cancel RPC and blocks for the reply.
	SendCancel(ctx context.Context, req *CancelRequest) (*CancelReply, error)
	// SendCancelAsync sends a cancel RPC without waiting, via the
	// import's worker queue.
	SendCancelAsync(ctx context.Context, req *CancelRequest, onReply func(*CancelReply, error))
}
