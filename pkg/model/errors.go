package model

import "errors"

// Sentinel error kinds mirroring the taxonomy in spec.md §7: transport
// errors are data (RequestResult.ErrorKind), these three are the
// surfaced-upward failure classes that set the process exit code.
var (
	// ErrConfigInvalid marks client misconfiguration caught before a run
	// starts (invalid URL, invalid scenario shape). Exit code 2.
	ErrConfigInvalid = errors.New("sayl: invalid configuration")

	// ErrCollectionInvalid marks a malformed or empty request source
	// (Postman collection or manual URL).
	ErrCollectionInvalid = errors.New("sayl: invalid request source")

	// ErrRunnerFailed marks a fatal failure in the run loop itself
	// (aggregator failure, resource exhaustion) as opposed to a
	// per-request transport error.
	ErrRunnerFailed = errors.New("sayl: run failed")
)
