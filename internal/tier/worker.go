package tier

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/darmie/rayzor/internal/diag"
	"github.com/darmie/rayzor/internal/mir"
)

// promotionRequest is one (function, target tier) unit of work consumed
// by the worker pool (spec.md §4.10 "a work queue of (function
// identifier, target tier) requests").
type promotionRequest struct {
	mod    *mir.Module
	fn     *mir.Function
	state  *FunctionState
	target Tier
}

// workerPool runs promote for every enqueued request with at most
// maxParallel running concurrently, via errgroup.Group.SetLimit — the
// same bounded-fan-out primitive [[internal/codegen]]'s sibling packages
// would reach for, and the one real worker-pool building block present in
// the retrieved dependency graph.
type workerPool struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	work   chan promotionRequest
	fn     func(promotionRequest) error
}

func newWorkerPool(maxParallel int, do func(promotionRequest) error) *workerPool {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	p := &workerPool{
		group:  g,
		ctx:    gctx,
		cancel: cancel,
		work:   make(chan promotionRequest, 64),
		fn:     do,
	}
	go p.dispatch()
	return p
}

// dispatch pulls requests off the queue and hands each to the errgroup,
// which blocks at SetLimit's bound rather than spawning unbounded
// goroutines (spec.md §5 "Optimizer worker threads ... pool size bounded
// by configuration"). It never closes p.work itself — shutdown stops new
// work by canceling p.ctx instead, avoiding a send-on-closed-channel race
// against concurrent enqueue calls.
func (p *workerPool) dispatch() {
	for {
		select {
		case req := <-p.work:
			req := req
			p.group.Go(func() error {
				if err := p.fn(req); err != nil {
					diag.Logf(0, "[tier] promotion of %s to %s failed: %v", req.fn.Name, req.target, err)
				}
				return nil // a failed promotion never aborts the pool (spec.md §4.10, soft failure)
			})
		case <-p.ctx.Done():
			return
		}
	}
}

// enqueue submits req, discarding it silently if the pool has already
// been asked to shut down (spec.md §4.10/§5 "queued work is discarded").
func (p *workerPool) enqueue(req promotionRequest) {
	select {
	case p.work <- req:
	case <-p.ctx.Done():
	}
}

// shutdown stops accepting new work and waits for in-flight compilations
// to finish, per spec.md §4.10's cancellation contract.
func (p *workerPool) shutdown() {
	p.cancel()
	_ = p.group.Wait()
}
