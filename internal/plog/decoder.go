package plog

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/text/encoding/unicode"

	"github.com/NS2CDT/PerfAnalyzer/internal/bytestream"
	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
)

type recordType uint8

// Record types, from the top three bits of a tag byte.
const (
	recordFrame recordType = iota
	recordNameID
	recordCall
	recordCallAndDepthInc
	recordCallDepthDec
	recordNetworkStats
	recordExtended
)

const extensionMarkers = 1

// scratchChunk is the number of records the scratch buffer grows by.
const scratchChunk = 512

// decoder holds the state shared by the record decoders. It is only valid
// for a single pass over one stream.
type decoder struct {
	ctx   context.Context
	r     *bytestream.Reader
	names *nametable.Table

	depth    int32
	maxDepth int32
	// scratch collects the records of the open frame. Index 0 is the
	// sentinel.
	scratch []calltree.CallRecord
	markers []Marker

	open        *Frame
	placeholder bool
	started     bool
	baseline    int64
	prevEnd     int64

	frames  []*Frame
	network NetworkSummary
}

func newDecoder(ctx context.Context, r *bytestream.Reader) *decoder {
	d := &decoder{
		ctx:     ctx,
		r:       r,
		names:   nametable.New(),
		depth:   1,
		scratch: make([]calltree.CallRecord, 1, scratchChunk),
	}
	d.network.init()
	return d
}

// frameIndex is the index the open frame will have, or -1.
func (d *decoder) frameIndex() int {
	if d.open == nil || d.placeholder {
		return -1
	}
	return d.open.Index
}

// run consumes the record stream up to the declared length.
func (d *decoder) run() error {
	for d.r.Remaining() > 0 {
		offset := d.r.Consumed()
		tag, err := d.r.ReadByte()
		if err == nil {
			err = d.record(tag)
		}
		if err != nil {
			return &DecodeError{Offset: offset, Frame: d.frameIndex(), Err: err}
		}
	}
	d.finishFrame()
	return nil
}

func (d *decoder) record(tag byte) error {
	switch t := recordType(tag >> 5); t {
	case recordFrame:
		return decodeFrame(d)
	case recordNameID:
		return decodeName(d, tag)
	case recordCall:
		return decodeCall(d, tag, false)
	case recordCallAndDepthInc:
		return decodeCall(d, tag, true)
	case recordCallDepthDec:
		d.depth = max(d.depth-1, 0)
		return nil
	case recordNetworkStats:
		return decodeNetwork(d)
	case recordExtended:
		return decodeExtended(d, tag)
	default:
		return fmt.Errorf("%w: type %d in tag %#02x", ErrUnknownRecordType, t, tag)
	}
}

// finishFrame moves the open frame's records out of the scratch buffer.
// Records and markers of the placeholder frame are not kept; its markers
// move on to the next frame.
func (d *decoder) finishFrame() {
	defer func() {
		d.scratch = d.scratch[:1]
		d.maxDepth = 0
		d.open = nil
	}()
	if d.open == nil || d.placeholder {
		return
	}

	f := d.open
	f.Calls = make([]calltree.CallRecord, len(d.scratch))
	copy(f.Calls, d.scratch)
	f.MaxDepth = d.maxDepth
	if len(d.markers) > 0 {
		f.Markers = d.markers
		d.markers = nil
	}
	d.frames = append(d.frames, f)
}

func decodeFrame(d *decoder) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.finishFrame()
	d.depth = 1

	end, err := d.r.ReadVarInt64()
	if err != nil {
		return err
	}
	count, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	var sections []uint32
	if count > 0 {
		sections = make([]uint32, count)
		for i := range sections {
			if sections[i], err = d.r.ReadVarInt(); err != nil {
				return err
			}
		}
	}

	if !d.started {
		d.started = true
		d.baseline = int64(end)
		d.open = &Frame{Index: -1, MainThread: -1}
		d.placeholder = true
		return nil
	}

	ts := int64(end) - d.baseline
	if ts < d.prevEnd {
		return fmt.Errorf("%w: %dus after %dus", ErrNonMonotonicTime, ts, d.prevEnd)
	}
	d.open = &Frame{
		Index:      len(d.frames),
		StartTime:  d.prevEnd,
		EndTime:    ts,
		Sections:   sections,
		MainThread: -1,
	}
	d.placeholder = false
	d.prevEnd = ts
	return nil
}

func decodeName(d *decoder, tag byte) error {
	id, err := d.r.ReadNodeID(tag)
	if err != nil {
		return err
	}
	length, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	name, err := d.r.ReadString(unicode.UTF8, int(length))
	if err != nil {
		return err
	}
	return d.names.Bind(nametable.NodeID(id), name)
}

func decodeCall(d *decoder, tag byte, enter bool) error {
	raw, err := d.r.ReadNodeID(tag)
	if err != nil {
		return err
	}
	id := nametable.NodeID(raw)
	if !d.names.Has(id) {
		return fmt.Errorf("%w: %d", ErrUnboundNodeID, id)
	}
	count, err := d.r.ReadVarInt()
	if err != nil {
		return err
	}
	time, err := d.r.ReadVarInt()
	if err != nil {
		return err
	}

	if len(d.scratch) == cap(d.scratch) {
		d.scratch = slices.Grow(d.scratch, scratchChunk)
	}
	d.scratch = append(d.scratch, calltree.CallRecord{
		ID:        id,
		Depth:     d.depth,
		CallCount: max(count, 1),
		Time:      time,
	})
	d.maxDepth = max(d.maxDepth, d.depth)
	if enter {
		d.depth++
	}
	return nil
}

func decodeExtended(d *decoder, tag byte) error {
	b, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	switch ext := uint32(b)<<4 | uint32(tag&0x0f); ext {
	case extensionMarkers:
		return decodeMarkers(d)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownExtension, ext)
	}
}

func decodeMarkers(d *decoder) error {
	count, err := d.r.ReadVarInt()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var m Marker
		kind, err := d.r.ReadVarInt()
		if err != nil {
			return err
		}
		m.Kind = MarkerKind(kind)
		if m.ThreadID, err = d.r.ReadByte(); err != nil {
			return err
		}
		if m.UserValue, err = d.r.ReadVarInt(); err != nil {
			return err
		}
		label, err := d.r.ReadVarInt()
		if err != nil {
			return err
		}
		if label != 0 {
			m.LabelID = nametable.NodeID(label)
			m.Label, _ = d.names.Name(m.LabelID)
		}
		ts, err := d.r.ReadVarInt64()
		if err != nil {
			return err
		}
		m.Timestamp = int64(ts) - d.baseline
		d.markers = append(d.markers, m)
	}
	return nil
}

// readStringID reads a varint name id and resolves it.
func (d *decoder) readStringID() (string, error) {
	raw, err := d.r.ReadVarInt()
	if err != nil {
		return "", err
	}
	name, ok := d.names.Name(nametable.NodeID(raw))
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnboundNodeID, raw)
	}
	return name, nil
}

// readVarInts fills dst with consecutive varints.
func (d *decoder) readVarInts(dst []uint64) error {
	for i := range dst {
		v, err := d.r.ReadVarInt64()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func (d *decoder) skipVarInts(n uint64) error {
	for ; n > 0; n-- {
		if err := d.r.SkipVarInt(); err != nil {
			return err
		}
	}
	return nil
}
