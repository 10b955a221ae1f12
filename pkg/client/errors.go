package client

import (
	"errors"
	"fmt"
)

// FailureKind tags the outcome of a failed source fetch.
type FailureKind string

const (
	// KindConfiguration: the endpoint itself is defective (missing unit pin,
	// unparseable URL). Never retried, never reaches the network.
	KindConfiguration FailureKind = "configuration"
	// KindRateLimited: the provider answered 429 on every attempt.
	KindRateLimited FailureKind = "rate_limited"
	// KindUnreachable: timeouts, connection errors, or 5xx on every attempt.
	KindUnreachable FailureKind = "unreachable"
	// KindParse: the body was not valid JSON, or the status made no sense.
	KindParse FailureKind = "parse"
)

// SourceError is the tagged result of a failed fetch. It is a value the
// orchestrator records and moves past, not a control-flow exception.
type SourceError struct {
	Kind     FailureKind
	Endpoint string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from any error chain, or "" when the
// error did not originate here.
func KindOf(err error) FailureKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
