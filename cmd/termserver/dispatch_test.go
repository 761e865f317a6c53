package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/termserver/worker"
)

type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, req worker.OperationRequest) (worker.OperationResult, error) {
	return worker.OperationResult{ID: req.ID, Value: req.Params}, nil
}

func TestRouter_ExecuteCorrelatesResult(t *testing.T) {
	pool := worker.NewPool(echoExecutor{}, 2)
	defer pool.Close()
	rt := newRouter(pool)

	res, err := rt.execute(context.Background(), worker.OpLookup, "payload-a")
	require.NoError(t, err)
	assert.Equal(t, "payload-a", res.Value)
}

func TestRouter_ExecuteConcurrent(t *testing.T) {
	pool := worker.NewPool(echoExecutor{}, 4)
	defer pool.Close()
	rt := newRouter(pool)

	n := 20
	results := make(chan worker.OperationResult, n)
	for i := 0; i < n; i++ {
		payload := i
		go func() {
			res, err := rt.execute(context.Background(), worker.OpLookup, payload)
			assert.NoError(t, err)
			results <- res
		}()
	}

	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		select {
		case res := <-results:
			v, ok := res.Value.(int)
			require.True(t, ok)
			seen[v] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for router results")
		}
	}
	assert.Len(t, seen, n)
}

func TestRouter_ExecuteContextCancelled(t *testing.T) {
	pool := worker.NewPool(echoExecutor{}, 1)
	defer pool.Close()
	rt := newRouter(pool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rt.execute(ctx, worker.OpLookup, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
