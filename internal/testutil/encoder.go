package testutil

import (
	"bytes"
	"encoding/binary"
)

// Record types as they appear in the top three bits of a plog tag byte.
const (
	TagFrame byte = iota
	TagNameID
	TagCall
	TagCallAndDepthInc
	TagCallDepthDec
	TagNetworkStats
	TagExtended
)

// MarkerRecord is one entry of an extended markers section.
type MarkerRecord struct {
	Kind      uint32
	ThreadID  uint8
	UserValue uint32
	LabelID   uint32
	Timestamp uint64
}

// Encoder writes synthetic plog streams for tests. It only covers what the
// decoder needs to be exercised and performs no validation.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder writes the plog header.
func NewEncoder(version byte, costPerCall uint64) *Encoder {
	e := &Encoder{}
	e.Byte(version)
	e.VarInt(costPerCall)
	return e
}

func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) Len() int {
	return e.buf.Len()
}

func (e *Encoder) Byte(b byte) *Encoder {
	e.buf.WriteByte(b)
	return e
}

func (e *Encoder) VarInt(v uint64) *Encoder {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	e.buf.Write(tmp[:n])
	return e
}

// Tagged writes a tag byte for recordType followed by id in the compact node
// id form.
func (e *Encoder) Tagged(recordType byte, id uint32) *Encoder {
	tag := recordType<<5 | byte(id>>8)&0x0f
	extra := id > 0xfff
	if extra {
		tag |= 0x10
	}
	e.buf.WriteByte(tag)
	e.buf.WriteByte(byte(id))
	if extra {
		e.buf.WriteByte(byte(id >> 12))
	}
	return e
}

func (e *Encoder) Name(id uint32, name string) *Encoder {
	e.Tagged(TagNameID, id)
	e.buf.WriteByte(byte(len(name)))
	e.buf.WriteString(name)
	return e
}

func (e *Encoder) Frame(endTime uint64, sections ...uint32) *Encoder {
	e.buf.WriteByte(TagFrame << 5)
	e.VarInt(endTime)
	e.buf.WriteByte(byte(len(sections)))
	for _, s := range sections {
		e.VarInt(uint64(s))
	}
	return e
}

// Call writes a leaf call at the current depth.
func (e *Encoder) Call(id, count, time uint32) *Encoder {
	e.Tagged(TagCall, id)
	e.VarInt(uint64(count))
	e.VarInt(uint64(time))
	return e
}

// Enter writes a call whose following records are its children.
func (e *Encoder) Enter(id, count, time uint32) *Encoder {
	e.Tagged(TagCallAndDepthInc, id)
	e.VarInt(uint64(count))
	e.VarInt(uint64(time))
	return e
}

// Leave closes the most recent Enter.
func (e *Encoder) Leave() *Encoder {
	e.buf.WriteByte(TagCallDepthDec << 5)
	return e
}

// Extended writes an extension header for extension id ext.
func (e *Encoder) Extended(ext uint32) *Encoder {
	e.buf.WriteByte(TagExtended<<5 | byte(ext)&0x0f)
	e.buf.WriteByte(byte(ext >> 4))
	return e
}

// Markers writes an extended markers section using extension id ext.
func (e *Encoder) Markers(ext uint32, markers ...MarkerRecord) *Encoder {
	e.Extended(ext)
	e.VarInt(uint64(len(markers)))
	for _, m := range markers {
		e.VarInt(uint64(m.Kind))
		e.buf.WriteByte(m.ThreadID)
		e.VarInt(uint64(m.UserValue))
		e.VarInt(uint64(m.LabelID))
		e.VarInt(m.Timestamp)
	}
	return e
}

// NetworkStats writes the network record tag. The body is written with
// StringID and VarInt calls and must end with the id of "network-end".
func (e *Encoder) NetworkStats() *Encoder {
	e.buf.WriteByte(TagNetworkStats << 5)
	return e
}

// StringID writes a reference to a bound name.
func (e *Encoder) StringID(id uint32) *Encoder {
	return e.VarInt(uint64(id))
}

// VarInts writes each value as a varint.
func (e *Encoder) VarInts(vs ...uint64) *Encoder {
	for _, v := range vs {
		e.VarInt(v)
	}
	return e
}
