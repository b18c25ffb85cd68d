package homeassistant

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a fetch attempt failed. The values double
// as log fields and metric labels.
type FailureKind string

const (
	KindTimeout  FailureKind = "timeout"
	KindAuth     FailureKind = "auth_error"
	KindNotFound FailureKind = "not_found"
	KindNetwork  FailureKind = "network_error"
	KindParse    FailureKind = "parse_error"
)

// FetchError is the failure outcome of a single fetch attempt.
type FetchError struct {
	Kind       FailureKind
	Message    string
	StatusCode int   // zero when no HTTP response was received
	Err        error // underlying cause, may be nil
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err. Errors that are not a
// *FetchError classify as network failures, the broadest retryable kind.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

// Retryable reports whether another attempt within the same cycle could
// plausibly succeed. Authorization and unknown-entity failures cannot be
// fixed by retrying.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindNotFound:
		return false
	default:
		return true
	}
}
