package xtream

import "fmt"

// TransportError reports a network-level failure reaching the provider.
type TransportError struct {
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("xtream %s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError reports a non-200 response or a body that did not decode.
type FormatError struct {
	Action string
	Status int
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xtream %s: status %d: %v", e.Action, e.Status, e.Err)
	}
	return fmt.Sprintf("xtream %s: status %d", e.Action, e.Status)
}

func (e *FormatError) Unwrap() error { return e.Err }
