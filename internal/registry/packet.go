package registry

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
)

// CellKey addresses one spatial cell in one dimension.
type CellKey struct {
	Cell geo.CellPos
	Dim  geo.Dimension
}

// KeyOf returns the cell a shape message is anchored in.
func KeyOf(msg proto.ShapeMessage) CellKey {
	return CellKey{Cell: geo.CellOf(msg.Location), Dim: msg.Dimension}
}

func hashCellKey(k CellKey) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(k.Cell.X))
	binary.LittleEndian.PutUint32(buf[4:], uint32(k.Cell.Z))
	binary.LittleEndian.PutUint32(buf[8:], uint32(k.Dim))
	return xxhash.Sum64(buf[:])
}

// Packet is a native shape message owned by the registry. The registry
// mutates it in place; everyone else reads snapshots.
type Packet struct {
	mu  sync.RWMutex
	msg proto.ShapeMessage
}

// NewPacket takes ownership of a copy of msg.
func NewPacket(msg proto.ShapeMessage) *Packet {
	return &Packet{msg: msg.Clone()}
}

// Snapshot returns a copy safe to hand to another goroutine.
func (p *Packet) Snapshot() proto.ShapeMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.msg.Clone()
}

// NetworkID returns the id viewers know this shape by.
func (p *Packet) NetworkID() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.msg.NetworkID
}

// Retracted reports whether the packet has been tombstoned.
func (p *Packet) Retracted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.msg.Retracted()
}

// Key returns the packet's current cell.
func (p *Packet) Key() CellKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return KeyOf(p.msg)
}

func (p *Packet) translate(delta geo.Vec3) (before, after CellKey, snap proto.ShapeMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	before = KeyOf(p.msg)
	p.msg.Translate(delta)
	return before, KeyOf(p.msg), p.msg.Clone()
}

func (p *Packet) tombstone() proto.ShapeMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msg.Tombstone()
	return p.msg.Clone()
}
