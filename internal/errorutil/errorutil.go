package errorutil

import "errors"

// ErrDataIntegrity is the base error for plogs that cannot be decoded or
// attributed, such as a truncated stream or a call depth that skips a level.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrNoResults represents a query that matched no node or frame.
var ErrNoResults = errors.New("no results returned")

// ErrOutOfRange represents a frame selection outside of the log.
var ErrOutOfRange = errors.New("selection out of range")

// IsInputError reports whether err was caused by the plog or the query
// rather than by the tool reading it. Such errors are not worth reporting.
func IsInputError(err error) bool {
	return errors.Is(err, ErrDataIntegrity) ||
		errors.Is(err, ErrNoResults) ||
		errors.Is(err, ErrOutOfRange)
}
