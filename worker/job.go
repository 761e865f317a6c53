package worker

import termserver "github.com/gofhir/termserver"

// OperationKind names one of the five terminology operations.
type OperationKind string

const (
	OpLookup       OperationKind = "lookup"
	OpValidateCode OperationKind = "validate-code"
	OpExpand       OperationKind = "expand"
	OpSubsumes     OperationKind = "subsumes"
	OpTranslate    OperationKind = "translate"
)

// OperationRequest is one unit of dispatch: a kind plus its
// operation-specific parameters (the concrete *service.LookupParams,
// *service.ExpandParams, etc., built by cmd/termserver from the wire
// Parameters resource).
type OperationRequest struct {
	ID     string
	Kind   OperationKind
	Params any
}

// OperationResult is the outcome of one dispatched OperationRequest.
// Value holds the operation-specific result (e.g. *service.LookupResult);
// Issues carries any diagnostics collected along the way even when Value
// is non-nil (a $expand can both succeed and warn, for instance).
type OperationResult struct {
	ID     string
	Value  any
	Issues []termserver.Issue
}

// Job is a queued OperationRequest.
type Job struct {
	ID      string
	Request OperationRequest
}

// JobResult is the outcome of processing a Job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Result contains the operation result.
	Result OperationResult

	// Error contains any transport/infrastructure error; operation-level
	// failures (not-found, not-supported, ...) are reported as Issues on
	// Result instead, per the error-kind taxonomy's diagnostic/error split.
	Error error

	// Duration is the time taken to execute (in nanoseconds).
	Duration int64
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	Results       []*JobResult
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	TotalDuration int64
}

// HasErrors returns true if any job result carries a transport error or
// an error-severity issue.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		if r.Error != nil {
			return true
		}
		for _, iss := range r.Result.Issues {
			if iss.IsError() {
				return true
			}
		}
	}
	return false
}

// ErrorCount returns the total number of error-severity issues across
// all results.
func (br *BatchResult) ErrorCount() int {
	count := 0
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		for _, iss := range r.Result.Issues {
			if iss.IsError() {
				count++
			}
		}
	}
	return count
}
