package plog

import (
	"fmt"
	"strings"
)

const (
	networkEnd  = "network-end"
	classEnd    = "class-end"
	clientNode  = "client-"
	classNode   = "class-"
	messageNode = "message-"
)

// NetworkMessageStats totals one network message type.
type NetworkMessageStats struct {
	Count     uint64 `json:"count"`
	Bytes     uint64 `json:"bytes"`
	SentCount uint64 `json:"sent_count"`
	SentBytes uint64 `json:"sent_bytes"`
}

// NetworkClassStats totals the replication cost of one entity class.
type NetworkClassStats struct {
	Count        uint64 `json:"count"`
	OverheadBits uint64 `json:"overhead_bits"`
	TotalBits    uint64 `json:"total_bits"`
	BaselineBits uint64 `json:"baseline_bits"`
	DiffBits     uint64 `json:"diff_bits"`
	Fields       uint64 `json:"fields"`
}

// NetworkSummary aggregates the network statistics blocks of a log. None of
// it takes part in time attribution.
type NetworkSummary struct {
	Blocks         int                            `json:"blocks"`
	Clients        int                            `json:"clients"`
	SnapshotBytes  uint64                         `json:"snapshot_bytes"`
	BytesSent      uint64                         `json:"bytes_sent"`
	VoiceBytesSent uint64                         `json:"voice_bytes_sent"`
	Classes        map[string]NetworkClassStats   `json:"classes"`
	Messages       map[string]NetworkMessageStats `json:"messages"`
}

func (s *NetworkSummary) init() {
	s.Classes = make(map[string]NetworkClassStats)
	s.Messages = make(map[string]NetworkMessageStats)
}

// decodeNetwork reads one statistics block up to its network-end name.
func decodeNetwork(d *decoder) error {
	d.network.Blocks++
	for {
		name, err := d.readStringID()
		if err != nil {
			return err
		}
		switch {
		case name == networkEnd:
			return nil
		case strings.HasPrefix(name, clientNode):
			err = decodeNetworkClient(d)
		case strings.HasPrefix(name, classNode):
			err = decodeNetworkClass(d, name)
		case strings.HasPrefix(name, messageNode):
			err = decodeNetworkMessage(d, name)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownNetworkSection, name)
		}
		if err != nil {
			return err
		}
	}
}

func decodeNetworkClient(d *decoder) error {
	var v [4]uint64
	if err := d.readVarInts(v[:]); err != nil {
		return err
	}
	d.network.Clients++
	d.network.SnapshotBytes += v[0]
	// v[1] is the time spent building the snapshot.
	d.network.BytesSent += v[2]
	d.network.VoiceBytesSent += v[3]
	return nil
}

func decodeNetworkMessage(d *decoder, name string) error {
	var v [4]uint64
	if err := d.readVarInts(v[:]); err != nil {
		return err
	}
	m := d.network.Messages[name]
	m.Count += v[0]
	m.Bytes += v[1]
	m.SentCount += v[2]
	m.SentBytes += v[3]
	d.network.Messages[name] = m
	return nil
}

func decodeNetworkClass(d *decoder, name string) error {
	var v [4]uint64
	if err := d.readVarInts(v[:]); err != nil {
		return err
	}
	c := d.network.Classes[name]
	c.Count++
	c.OverheadBits += v[0]
	c.TotalBits += v[1]
	c.BaselineBits += v[2]
	c.DiffBits += v[3]

	for {
		field, err := d.readStringID()
		if err != nil {
			return err
		}
		if field == classEnd {
			break
		}
		if err := decodeNetworkField(d); err != nil {
			return err
		}
		c.Fields++
	}
	d.network.Classes[name] = c
	return nil
}

// decodeNetworkField skips a field's bit counts and its optional delta
// statistics table.
func decodeNetworkField(d *decoder) error {
	if err := d.skipVarInts(4); err != nil {
		return err
	}
	lines, err := d.r.ReadVarInt64()
	if err != nil {
		return err
	}
	if lines == 0 {
		return nil
	}

	if err := d.r.SkipVarInt(); err != nil {
		return err
	}
	for i := uint64(0); i < lines; i++ {
		length, err := d.r.ReadVarInt64()
		if err != nil {
			return err
		}
		if err := d.skipVarInts(length); err != nil {
			return err
		}
	}
	deltas, err := d.r.ReadVarInt64()
	if err != nil {
		return err
	}
	for i := uint64(0); i < deltas; i++ {
		if err := d.skipVarInts(3 + 4*lines); err != nil {
			return err
		}
	}
	return nil
}
