package model

import "fmt"

// Outcome tags a Result.
type Outcome int

const (
	// OutcomeSuccess means the server accepted the request.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeFailure means the request did not reach the server or the
	// server rejected it.
	OutcomeFailure
	// OutcomeDeferred means the mutation was buffered pending identity
	// resolution; nothing was transmitted.
	OutcomeDeferred
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one dispatched mutation, delivered to its
// Callback. Transport failures are data, never errors returned to callers.
type Result struct {
	Outcome Outcome

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Body is the raw server response body (success and failure).
	Body []byte

	// Err describes a failure cause when one is known.
	Err error
}

// Callback receives the Result of a dispatched mutation. It may be invoked
// synchronously (Deferred) or from another goroutine (Success/Failure).
type Callback func(Result)

// Success builds a success result.
func Success(status int, body []byte) Result {
	return Result{Outcome: OutcomeSuccess, Status: status, Body: body}
}

// Failure builds a failure result.
func Failure(status int, body []byte, err error) Result {
	return Result{Outcome: OutcomeFailure, Status: status, Body: body, Err: err}
}

// Deferred builds the sentinel result for buffered mutations.
func Deferred() Result {
	return Result{Outcome: OutcomeDeferred}
}

// Code returns the legacy numeric response code:
// 1 success, 0 failure, -1 deferred.
func (r Result) Code() int {
	switch r.Outcome {
	case OutcomeSuccess:
		return 1
	case OutcomeDeferred:
		return -1
	default:
		return 0
	}
}

// IsFailure reports whether the result is a transport/server failure.
func (r Result) IsFailure() bool {
	return r.Outcome == OutcomeFailure
}
