package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruteri/fallback-storage/interfaces"
)

// ConfigurationError is returned when the façade is built without a usable backend list.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "improperly configured: " + e.Reason
}

// BackendConstructionError is returned when a descriptor cannot be turned into
// a backend. Dispatch never falls back past it.
type BackendConstructionError struct {
	Location string
	Err      error
}

func (e *BackendConstructionError) Error() string {
	return fmt.Sprintf("failed to construct backend %s: %v", e.Location, e.Err)
}

func (e *BackendConstructionError) Unwrap() error {
	return e.Err
}

// UnsupportedOperationError is returned when no backend declares the capability.
type UnsupportedOperationError struct {
	Op Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("no backend has the method `%s`", e.Op)
}

// Is makes errors.Is(err, interfaces.ErrUnsupported) hold.
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == interfaces.ErrUnsupported
}

// NegotiationFailedError is returned when name negotiation does not settle
// within the configured number of rounds.
type NegotiationFailedError struct {
	Name   string
	Rounds int
}

func (e *NegotiationFailedError) Error() string {
	return fmt.Sprintf("no available name agreed for %q after %d rounds", e.Name, e.Rounds)
}

// BackendError pairs a backend descriptor with the error it returned.
type BackendError struct {
	Location string
	Err      error
}

// ErrorSet collects per-backend failures for one dispatch cycle, keyed by
// descriptor in first-seen order.
type ErrorSet struct {
	entries []BackendError
}

// Add records err for location, replacing an earlier error for the same location in place.
func (s *ErrorSet) Add(location string, err error) {
	for i := range s.entries {
		if s.entries[i].Location == location {
			s.entries[i].Err = err
			return
		}
	}
	s.entries = append(s.entries, BackendError{Location: location, Err: err})
}

// Len returns the number of failed backends.
func (s *ErrorSet) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the recorded failures in order.
func (s *ErrorSet) Entries() []BackendError {
	out := make([]BackendError, len(s.entries))
	copy(out, s.entries)
	return out
}

// Err synthesizes the final failure: nil for an empty set, the backend's own
// error for a single failure, an AggregateBackendError otherwise.
func (s *ErrorSet) Err(op Operation) error {
	switch len(s.entries) {
	case 0:
		return nil
	case 1:
		return s.entries[0].Err
	default:
		return &AggregateBackendError{Op: op, Errors: s.Entries()}
	}
}

// AggregateBackendError is returned when every queried backend failed.
type AggregateBackendError struct {
	Op     Operation
	Errors []BackendError
}

func (e *AggregateBackendError) Error() string {
	lines := make([]string, 0, len(e.Errors))
	for _, be := range e.Errors {
		lines = append(lines, fmt.Sprintf("%s: %v", be.Location, be.Err))
	}
	return strings.Join(lines, "\n")
}

// Unwrap exposes every backend error to errors.Is and errors.As.
func (e *AggregateBackendError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, be := range e.Errors {
		errs = append(errs, be.Err)
	}
	return errs
}

// IsNotFound reports whether err means the content does not exist in any
// backend that answered.
func IsNotFound(err error) bool {
	var agg *AggregateBackendError
	if errors.As(err, &agg) {
		for _, be := range agg.Errors {
			if !IsNotFound(be.Err) {
				return false
			}
		}
		return len(agg.Errors) > 0
	}
	return errors.Is(err, interfaces.ErrContentNotFound)
}
