package main

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gofhir/termserver/worker"
)

// router correlates HTTP requests with worker.Pool results. The pool
// exposes one shared Results() channel, so a single background goroutine
// drains it and fans results out to whichever request is waiting on a
// given job id.
type router struct {
	pool *worker.Pool

	mu      sync.Mutex
	waiters map[string]chan *worker.JobResult
}

func newRouter(pool *worker.Pool) *router {
	r := &router{
		pool:    pool,
		waiters: make(map[string]chan *worker.JobResult),
	}
	go r.drain()
	return r
}

func (r *router) drain() {
	for result := range r.pool.Results() {
		r.mu.Lock()
		ch, ok := r.waiters[result.ID]
		if ok {
			delete(r.waiters, result.ID)
		}
		r.mu.Unlock()

		if ok {
			ch <- result
			close(ch)
		}
	}
}

// execute submits req to the pool and waits for its matching result, or
// for ctx to end first (the caller's request timeout/cancellation, since
// Pool itself runs jobs against its own background context).
func (r *router) execute(ctx context.Context, kind worker.OperationKind, params any) (worker.OperationResult, error) {
	id := uuid.NewString()
	ch := make(chan *worker.JobResult, 1)

	r.mu.Lock()
	r.waiters[id] = ch
	r.mu.Unlock()

	if !r.pool.Submit(worker.Job{ID: id, Request: worker.OperationRequest{ID: id, Kind: kind, Params: params}}) {
		r.mu.Lock()
		delete(r.waiters, id)
		r.mu.Unlock()
		return worker.OperationResult{}, errPoolClosed
	}

	select {
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.waiters, id)
		r.mu.Unlock()
		return worker.OperationResult{}, ctx.Err()
	case res := <-ch:
		return res.Result, res.Error
	}
}

type dispatchError string

func (e dispatchError) Error() string { return string(e) }

const errPoolClosed = dispatchError("termserver: worker pool is closed")
