package plog

import (
	"fmt"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
)

var (
	ErrUnknownRecordType     = fmt.Errorf("%w: unknown record type", errorutil.ErrDataIntegrity)
	ErrUnknownExtension      = fmt.Errorf("%w: unknown extension", errorutil.ErrDataIntegrity)
	ErrUnknownNetworkSection = fmt.Errorf("%w: unknown network section", errorutil.ErrDataIntegrity)
	ErrUnboundNodeID         = fmt.Errorf("%w: node id referenced before it was named", errorutil.ErrDataIntegrity)
	ErrNonMonotonicTime      = fmt.Errorf("%w: frame end time went backwards", errorutil.ErrDataIntegrity)
	ErrMissingWellKnownNode  = fmt.Errorf("%w: required node is missing", errorutil.ErrDataIntegrity)
)

// DecodeError locates a decode failure in the stream.
type DecodeError struct {
	// Offset is the position of the record's tag byte.
	Offset int64
	// Frame is the index the open frame would have in Log.Frames, or -1
	// before the first output frame.
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("plog: offset %d, frame %d: %v", e.Offset, e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
