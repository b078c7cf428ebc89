package search

import "errors"

// Reasons a strategy produced no usable result. Only ErrNotStructured and
// ErrBackendUnavailable let the Dispatcher fall through to the next strategy.
var (
	ErrNotStructured        = errors.New("search: term is not a structured query")
	ErrUnknownType          = errors.New("search: unknown entity type")
	ErrMalformedStructured  = errors.New("search: malformed structured query")
	ErrTermTooShort         = errors.New("search: term too short")
	ErrBackendUnavailable   = errors.New("search: full-text backend unavailable")
	ErrNoStrategyApplicable = errors.New("search: no search strategy applicable")
)
