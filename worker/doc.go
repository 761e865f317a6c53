// Package worker dispatches terminology operations ($lookup,
// $validate-code, $expand, $subsumes, $translate) across a pool of
// goroutines, one per in-flight operation.
//
// Example usage:
//
//	pool := worker.NewPool(dispatcher, 4)
//	defer pool.Close()
//
//	pool.Submit(worker.Job{
//	    ID: "req-1",
//	    Request: worker.OperationRequest{Kind: worker.OpLookup, Params: params},
//	})
//
//	for result := range pool.Results() {
//	    if result.Error != nil {
//	        // transport/infrastructure failure
//	    }
//	    // inspect result.Result.Issues / result.Result.Value
//	}
package worker
