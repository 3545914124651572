package errors

import (
	stderrors "errors"
)

// Kind classifies a failure by the pipeline stage that produced it
type Kind int

const (
	KindUnknown Kind = iota
	KindPlanning
	KindDataFetch
	KindNarrative
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindPlanning:
		return "planning"
	case KindDataFetch:
		return "data_fetch"
	case KindNarrative:
		return "narrative"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// FrameTag returns the errorType carried by a chat error frame
func (k Kind) FrameTag() string {
	switch k {
	case KindPlanning:
		return "planning_failure"
	case KindDataFetch:
		return "data_fetch_failure"
	case KindNarrative:
		return "narrative_failure"
	default:
		return "internal_failure"
	}
}

// ErrStatsUnavailable reports that no priced listings exist for a scope
var ErrStatsUnavailable = stderrors.New("no market data for scope")

// ErrLLMUnavailable reports that no language model is configured
var ErrLLMUnavailable = stderrors.New("language model not configured")

// ErrFetchTimeout reports that a background fetch outlived its deadline
var ErrFetchTimeout = stderrors.New("fetch timed out")

// Error is a failure tagged with its Kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates a classified error wrapping cause, which may be nil
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the outermost classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
