package prusalink

import "errors"

// Domain-specific errors for PrusaLink requests.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnexpectedStatus is returned when the printer answers with a
	// status code the endpoint does not define as success.
	ErrUnexpectedStatus = errors.New("prusalink: unexpected status")

	// ErrRequestFailed is returned when the request could not be completed:
	// the printer is unreachable or the request timed out.
	ErrRequestFailed = errors.New("prusalink: request failed")

	// ErrDecodeFailed is returned when a 200 response body is not valid JSON.
	ErrDecodeFailed = errors.New("prusalink: decode failed")
)
