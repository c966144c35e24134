package ldlm

import (
	"context"
	"sync"
)

// memGateway is a self-contained, in-process stand-in for both the wire
// transport and the server it talks to: good enough to drive the engine
// end to end in tests and the CLI demo without a real lock server.
//
// Its conflict matrix is intentionally simplified: ModePW excludes every
// other mode (including another PW); PR/CR/CW are all mutually
// compatible. A real server applies the full Lustre-style matrix plus
// byte-range/inode-bits-aware partial conflicts; this fake only needs to
// exercise the client engine's enqueue/cancel/replay paths, not model
// conflict resolution faithfully.
var _ Gateway = (*memGateway)(nil)

type memGateway struct {
	mu sync.Mutex

	granted map[ResourceID][]memGrant
	waiting map[ResourceID][]memGrant
	next    uint64
	pool    Pool

	coord *Coordinator
}

type memGrant struct {
	remote uint64
	mode   Mode
}

// NewMemGateway constructs a memGateway with a small starting SLV/limit
// pool view so lru_resize has something to react to.
func NewMemGateway() *memGateway {
	return &memGateway{
		granted: make(map[ResourceID][]memGrant),
		waiting: make(map[ResourceID][]memGrant),
		pool:    Pool{SLV: 1000, Limit: 10},
	}
}

// Bind satisfies astBinder: once wired to a Coordinator, cancel and
// promotion events can push CompletionAST back into the engine.
func (g *memGateway) Bind(c *Coordinator) {
	g.mu.Lock()
	g.coord = c
	g.mu.Unlock()
}

func modesConflict(a, b Mode) bool {
	return a == ModePW || b == ModePW
}

func (g *memGateway) conflictsLocked(resID ResourceID, mode Mode) bool {
	for _, gr := range g.granted[resID] {
		if modesConflict(mode, gr.mode) {
			return true
		}
	}
	return false
}

// SendAndWait implements Gateway: grants immediately if compatible,
// otherwise enqueues the request server-side and replies BlockWait; the
// client's own completion wait then parks until a later CompletionAST
// (fired by SendCancel's promotion pass) grants it.
func (g *memGateway) SendAndWait(ctx context.Context, req *EnqueueRequest) (*EnqueueReply, error) {
	resID := req.Descriptor.Resource
	mode := req.Descriptor.ReqMode

	g.mu.Lock()
	if len(req.Handles) > 1 {
		for _, h := range req.Handles[1:] {
			g.cancelRemoteLocked(h.Cookie)
		}
	}

	remote := g.next
	g.next++

	if !g.conflictsLocked(resID, mode) {
		g.granted[resID] = append(g.granted[resID], memGrant{remote: remote, mode: mode})
		pool := g.pool
		g.mu.Unlock()
		return &EnqueueReply{Status: StatusOK, Handle: remote, ReqMode: mode, Resource: resID, Pool: pool}, nil
	}

	g.waiting[resID] = append(g.waiting[resID], memGrant{remote: remote, mode: mode})
	pool := g.pool
	g.mu.Unlock()
	return &EnqueueReply{Status: StatusOK, Handle: remote, Flags: FlagBlockWait, ReqMode: mode, Resource: resID, Pool: pool}, nil
}

// SendAsync implements Gateway by running SendAndWait on a goroutine.
func (g *memGateway) SendAsync(ctx context.Context, req *EnqueueRequest, onReply func(*EnqueueReply, error)) {
	go func() {
		reply, err := g.SendAndWait(ctx, req)
		if onReply != nil {
			onReply(reply, err)
		}
	}()
}

// SendCancel implements Gateway: drops every named handle from whichever
// list holds it and, for a dropped grant, reruns the waiting queue for
// its resource in case the cancel just freed up a compatible waiter.
func (g *memGateway) SendCancel(ctx context.Context, req *CancelRequest) (*CancelReply, error) {
	g.mu.Lock()
	var promotions []memGrant
	for _, h := range req.Handles {
		res, wasGranted := g.cancelRemoteLockedRes(h.Cookie)
		if wasGranted {
			promotions = append(promotions, g.promoteLocked(res)...)
		}
	}
	coord := g.coord
	g.mu.Unlock()

	if coord != nil {
		for _, p := range promotions {
			go coord.CompletionAST(p.remote, p.mode, nil) //nolint:errcheck // best-effort demo push
		}
	}

	return &CancelReply{Status: StatusOK}, nil
}

// SendCancelAsync implements Gateway by running SendCancel on a
// goroutine instead of the caller's.
func (g *memGateway) SendCancelAsync(ctx context.Context, req *CancelRequest, onReply func(*CancelReply, error)) {
	go func() {
		reply, err := g.SendCancel(ctx, req)
		if onReply != nil {
			onReply(reply, err)
		}
	}()
}

// cancelRemoteLocked removes cookie from whichever list holds it,
// without attempting promotion; used for the enqueue-request piggyback
// path, which only needs the handles gone.
func (g *memGateway) cancelRemoteLocked(cookie uint64) {
	g.cancelRemoteLockedRes(cookie)
}

func (g *memGateway) cancelRemoteLockedRes(cookie uint64) (ResourceID, bool) {
	for resID, list := range g.granted {
		for i, gr := range list {
			if gr.remote == cookie {
				g.granted[resID] = append(list[:i:i], list[i+1:]...)
				return resID, true
			}
		}
	}
	for resID, list := range g.waiting {
		for i, gr := range list {
			if gr.remote == cookie {
				g.waiting[resID] = append(list[:i:i], list[i+1:]...)
				return resID, false
			}
		}
	}
	return ResourceID{}, false
}

// promoteLocked grants every waiter for resID compatible with the
// current granted set, FIFO, stopping at the first incompatible one.
func (g *memGateway) promoteLocked(resID ResourceID) []memGrant {
	var granted []memGrant
	for {
		queue := g.waiting[resID]
		if len(queue) == 0 {
			break
		}
		head := queue[0]
		if g.conflictsLocked(resID, head.mode) {
			break
		}
		g.waiting[resID] = queue[1:]
		g.granted[resID] = append(g.granted[resID], head)
		granted = append(granted, head)
	}
	return granted
}
