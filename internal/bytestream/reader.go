// Package bytestream implements the buffered little-endian reader used to
// decode plog files.
//
// A Reader owns one fixed-size window over a sequential source of known
// length. Every read is served from that window; when a value straddles the
// end of the window the unread tail is moved to the front and the window is
// refilled, so the result is identical to reading the value from a fully
// buffered source.
package bytestream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dennwc/varint"
	"golang.org/x/text/encoding"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
)

// DefaultBufferSize is the size of the read window.
const DefaultBufferSize = 1 << 20

// MinBufferSize is the smallest window able to hold any fixed-width value
// plus a full 64-bit varint.
const MinBufferSize = 16

var (
	// ErrTruncatedStream is returned when a refill produced fewer bytes than
	// the current read needs.
	ErrTruncatedStream = fmt.Errorf("%w: truncated stream", errorutil.ErrDataIntegrity)
	// ErrVarIntOverflow is returned for varints longer than 64 bits.
	ErrVarIntOverflow = fmt.Errorf("%w: varint overflows 64 bits", errorutil.ErrDataIntegrity)
	// ErrClosed is returned by reads on a closed Reader.
	ErrClosed = errors.New("bytestream: reader is closed")
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, DefaultBufferSize)
		return &b
	},
}

type (
	// Reader is a buffered reader over a length-known byte source.
	Reader struct {
		src    io.Reader
		size   int64
		buf    []byte
		pooled *[]byte
		pos    int
		limit  int
		// base is the number of source bytes consumed before buf[0].
		base int64
		ctx  context.Context
	}

	// Option configures a Reader.
	Option func(*Reader)
)

// WithBufferSize overrides the window size. Values below MinBufferSize are
// raised to it.
func WithBufferSize(n int) Option {
	return func(r *Reader) {
		if n < MinBufferSize {
			n = MinBufferSize
		}
		if n != DefaultBufferSize {
			r.buf = make([]byte, n)
		}
	}
}

// WithContext makes every refill check ctx first, so a long decode can be
// cancelled between windows.
func WithContext(ctx context.Context) Option {
	return func(r *Reader) {
		r.ctx = ctx
	}
}

// NewReader returns a Reader over the first size bytes of src. The Reader
// never reads past size even if src holds more data.
func NewReader(src io.Reader, size int64, opts ...Option) *Reader {
	r := &Reader{
		src:  io.LimitReader(src, size),
		size: size,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.buf == nil {
		r.pooled = bufferPool.Get().(*[]byte)
		r.buf = *r.pooled
	}
	return r
}

// Close releases the read window. It does not close the underlying source.
func (r *Reader) Close() error {
	if r.pooled != nil {
		bufferPool.Put(r.pooled)
		r.pooled = nil
	}
	r.buf = nil
	r.pos, r.limit = 0, 0
	return nil
}

// Size returns the declared length of the source.
func (r *Reader) Size() int64 {
	return r.size
}

// Consumed returns the number of bytes handed out to callers so far.
func (r *Reader) Consumed() int64 {
	return r.base + int64(r.pos)
}

// Remaining returns the number of declared bytes not consumed yet.
func (r *Reader) Remaining() int64 {
	return r.size - r.Consumed()
}

// Buffered returns the number of bytes readable without a refill.
func (r *Reader) Buffered() int {
	return r.limit - r.pos
}

// fill moves the unread tail of the window to the front and reads from the
// source until at least min bytes are available.
func (r *Reader) fill(min int) error {
	if r.buf == nil {
		return ErrClosed
	}
	if r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			return err
		}
	}
	n := copy(r.buf, r.buf[r.pos:r.limit])
	r.base += int64(r.pos)
	r.pos, r.limit = 0, n

	read, err := io.ReadAtLeast(r.src, r.buf[n:], min-n)
	r.limit += read
	if r.limit >= min {
		return nil
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("bytestream: read at offset %d: %w", r.Consumed(), err)
	}
	return fmt.Errorf("%w: expected a minimum of %d bytes at offset %d but got %d", ErrTruncatedStream, min, r.Consumed(), r.limit)
}

func (r *Reader) ensure(n int) error {
	if r.limit-r.pos >= n {
		return nil
	}
	return r.fill(n)
}

// ReadByte implements io.ByteReader.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= r.limit {
		if err := r.fill(1); err != nil {
			return 0, err
		}
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadUint8 reads one unsigned byte.
func (r *Reader) ReadUint8() (uint8, error) {
	return r.ReadByte()
}

// ReadInt8 reads one signed byte.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.ensure(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadInt16 reads a little-endian int16.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.ensure(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.ensure(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadInt64 reads a little-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadVarInt64 reads an unsigned base-128 varint: the low 7 bits of each byte
// are payload and bit 7 flags a continuation byte.
func (r *Reader) ReadVarInt64() (uint64, error) {
	if r.limit-r.pos >= binary.MaxVarintLen64 {
		v, n := varint.Uvarint(r.buf[r.pos:r.limit])
		if n <= 0 {
			return 0, fmt.Errorf("%w at offset %d", ErrVarIntOverflow, r.Consumed())
		}
		r.pos += n
		return v, nil
	}
	return r.readVarIntSlow()
}

// ReadVarInt reads a varint holding a 32-bit value. Bits above 32 are
// discarded.
func (r *Reader) ReadVarInt() (uint32, error) {
	v, err := r.ReadVarInt64()
	return uint32(v), err
}

// readVarIntSlow decodes byte by byte so a varint can straddle a refill.
func (r *Reader) readVarIntSlow() (uint64, error) {
	var v uint64
	for shift := uint(0); ; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift == 63 && b > 1 {
			return 0, fmt.Errorf("%w at offset %d", ErrVarIntOverflow, r.Consumed())
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		if shift >= 63 {
			return 0, fmt.Errorf("%w at offset %d", ErrVarIntOverflow, r.Consumed())
		}
	}
}

// SkipVarInt consumes a varint without decoding it.
func (r *Reader) SkipVarInt() error {
	for i := 0; i < binary.MaxVarintLen64; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b&0x80 == 0 {
			return nil
		}
	}
	return fmt.Errorf("%w at offset %d", ErrVarIntOverflow, r.Consumed())
}

// ReadNodeID decodes the compact node id that borrows spare bits from a
// record tag: the low nibble of tag supplies bits 8-11, the next byte bits
// 0-7, and when bit 0x10 of tag is set one more byte supplies bits 12-19.
func (r *Reader) ReadNodeID(tag byte) (uint32, error) {
	if r.limit-r.pos >= 2 {
		bot := uint32(r.buf[r.pos])
		r.pos++
		var top uint32
		if tag&0x10 != 0 {
			top = uint32(r.buf[r.pos])
			r.pos++
		}
		return top<<12 | uint32(tag&0x0f)<<8 | bot, nil
	}

	bot, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	var top byte
	if tag&0x10 != 0 {
		if top, err = r.ReadByte(); err != nil {
			return 0, err
		}
	}
	return uint32(top)<<12 | uint32(tag&0x0f)<<8 | uint32(bot), nil
}

// ReadBytes returns the next n bytes in a newly allocated slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("bytestream: negative read length %d", n)
	}
	out := make([]byte, n)
	if r.buf == nil {
		return nil, ErrClosed
	}
	copied := copy(out, r.buf[r.pos:r.limit])
	r.pos += copied
	rest := n - copied
	if rest == 0 {
		return out, nil
	}
	if rest <= len(r.buf) {
		if err := r.fill(rest); err != nil {
			return nil, err
		}
		r.pos += copy(out[copied:], r.buf[r.pos:r.pos+rest])
		return out, nil
	}

	// Larger than the window: the window is empty, read straight into out.
	r.base += int64(r.pos)
	r.pos, r.limit = 0, 0
	read, err := io.ReadFull(r.src, out[copied:])
	r.base += int64(read)
	if read < rest {
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("bytestream: read at offset %d: %w", r.Consumed(), err)
		}
		return nil, fmt.Errorf("%w: expected %d bytes at offset %d but got %d", ErrTruncatedStream, rest, r.Consumed(), read)
	}
	return out, nil
}

// ReadString reads length bytes and decodes them with enc. A nil enc
// returns the bytes unchanged.
func (r *Reader) ReadString(enc encoding.Encoding, length int) (string, error) {
	var raw []byte
	if length >= 0 && r.limit-r.pos >= length {
		raw = r.buf[r.pos : r.pos+length]
		r.pos += length
	} else {
		var err error
		if raw, err = r.ReadBytes(length); err != nil {
			return "", err
		}
	}
	if enc == nil {
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("bytestream: decode string at offset %d: %w", r.Consumed(), err)
	}
	return string(decoded), nil
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) error {
	for n > 0 {
		if r.pos >= r.limit {
			if err := r.fill(1); err != nil {
				return err
			}
		}
		k := int64(r.limit - r.pos)
		if k > n {
			k = n
		}
		r.pos += int(k)
		n -= k
	}
	return nil
}
