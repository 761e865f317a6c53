package worker

import (
	"context"
	"runtime"
	"strconv"
	"sync"
)

// BatchExecutor provides a simple interface for dispatching many
// operation requests concurrently, e.g. a bulk $validate-code over a
// list of codes.
type BatchExecutor struct {
	execute ExecuteFunc
	workers int
}

// ExecuteFunc is the function signature for executing a single
// OperationRequest.
type ExecuteFunc func(ctx context.Context, req OperationRequest) (OperationResult, error)

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(execute ExecuteFunc, workers int) *BatchExecutor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchExecutor{execute: execute, workers: workers}
}

// ExecuteBatch dispatches multiple requests in parallel, preserving
// input order in the returned results.
func (be *BatchExecutor) ExecuteBatch(ctx context.Context, requests []OperationRequest) *BatchResult {
	if len(requests) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}

	if len(requests) <= 2 {
		return be.executeSequential(ctx, requests)
	}
	return be.executeParallel(ctx, requests)
}

func (be *BatchExecutor) executeSequential(ctx context.Context, requests []OperationRequest) *BatchResult {
	results := make([]*JobResult, 0, len(requests))

	for i, req := range requests {
		select {
		case <-ctx.Done():
			return &BatchResult{Results: results, TotalJobs: len(requests), CompletedJobs: len(results)}
		default:
		}

		result, err := be.execute(ctx, req)
		results = append(results, &JobResult{ID: jobID(req, i), Result: result, Error: err})
	}

	return &BatchResult{Results: results, TotalJobs: len(requests), CompletedJobs: len(results)}
}

func (be *BatchExecutor) executeParallel(ctx context.Context, requests []OperationRequest) *BatchResult {
	numWorkers := be.workers
	if numWorkers > len(requests) {
		numWorkers = len(requests)
	}

	jobs := make(chan indexedRequest, len(requests))
	resultsChan := make(chan *indexedResult, len(requests))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result, err := be.execute(ctx, job.request)
				resultsChan <- &indexedResult{index: job.index, result: result, err: err}
			}
		}()
	}

	go func() {
		for i, req := range requests {
			select {
			case <-ctx.Done():
				break
			case jobs <- indexedRequest{index: i, request: req}:
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*JobResult, len(requests))
	completed := 0
	failed := 0

	for ir := range resultsChan {
		results[ir.index] = &JobResult{ID: jobID(requests[ir.index], ir.index), Result: ir.result, Error: ir.err}
		completed++
		if ir.err != nil {
			failed++
		}
	}

	return &BatchResult{Results: results, TotalJobs: len(requests), CompletedJobs: completed, FailedJobs: failed}
}

func jobID(req OperationRequest, index int) string {
	if req.ID != "" {
		return req.ID
	}
	return strconv.Itoa(index)
}

type indexedRequest struct {
	index   int
	request OperationRequest
}

type indexedResult struct {
	index  int
	result OperationResult
	err    error
}

// ExecuteBatchSimple is a convenience function for batch dispatch.
func ExecuteBatchSimple(ctx context.Context, execute ExecuteFunc, requests []OperationRequest) *BatchResult {
	be := NewBatchExecutor(execute, runtime.NumCPU())
	return be.ExecuteBatch(ctx, requests)
}
