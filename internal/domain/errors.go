package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLocation is returned when a series is read for a location
	// that was never accumulated.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrOffsetOutOfRange is returned for timestamps outside the day axis.
	ErrOffsetOutOfRange = errors.New("day offset out of range")

	// ErrMalformedNumber marks a count field that is not an integer.
	ErrMalformedNumber = errors.New("malformed numeric field")

	// ErrEmptyDataset is returned when a required source yields no records.
	ErrEmptyDataset = errors.New("dataset has no records")

	// ErrOrphanCounty is returned when a county is resolved without a state.
	ErrOrphanCounty = errors.New("county without state")
)

// ParseError locates a fatal field error within a tabular source.
type ParseError struct {
	Source string
	Row    int
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s row %d: field %q value %q: %v", e.Source, e.Row, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LiveFailure classifies why a live provider produced no snapshot.
type LiveFailure int

const (
	LiveNetwork LiveFailure = iota + 1
	LiveShape
	LiveEmpty
)

func (f LiveFailure) String() string {
	switch f {
	case LiveNetwork:
		return "network"
	case LiveShape:
		return "shape"
	case LiveEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// LiveError is the only error kind that lets the live feed fall back to
// its secondary provider.
type LiveError struct {
	Provider string
	Kind     LiveFailure
	Err      error
}

func (e *LiveError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("live provider %s: %s failure", e.Provider, e.Kind)
	}
	return fmt.Sprintf("live provider %s: %s failure: %v", e.Provider, e.Kind, e.Err)
}

func (e *LiveError) Unwrap() error { return e.Err }
