package registry

import (
	"cmp"
	"slices"
	"weak"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/shard"
)

// cellEntry lists the packets one handle has anchored in a cell. refs never
// keep a packet alive; the registry entry is the only owner.
type cellEntry struct {
	id   ids.GeoId
	refs []weak.Pointer[Packet]
}

// bucket is kept sorted by handle.
type bucket []cellEntry

func (b bucket) find(id ids.GeoId) (int, bool) {
	return slices.BinarySearchFunc(b, id, func(e cellEntry, target ids.GeoId) int {
		return cmp.Compare(e.id, target)
	})
}

// add appends refs to id's entry, creating it in order if needed.
func (b *bucket) add(id ids.GeoId, refs ...weak.Pointer[Packet]) {
	i, ok := b.find(id)
	if ok {
		(*b)[i].refs = append((*b)[i].refs, refs...)
		return
	}
	*b = slices.Insert(*b, i, cellEntry{id: id, refs: append([]weak.Pointer[Packet](nil), refs...)})
}

// replace sets id's refs, removing the entry when refs is empty.
func (b *bucket) replace(id ids.GeoId, refs []weak.Pointer[Packet]) {
	i, ok := b.find(id)
	switch {
	case ok && len(refs) == 0:
		*b = slices.Delete(*b, i, i+1)
	case ok:
		(*b)[i].refs = refs
	case len(refs) > 0:
		*b = slices.Insert(*b, i, cellEntry{id: id, refs: refs})
	}
}

// take removes id's entry and returns its refs.
func (b *bucket) take(id ids.GeoId) []weak.Pointer[Packet] {
	i, ok := b.find(id)
	if !ok {
		return nil
	}
	refs := (*b)[i].refs
	*b = slices.Delete(*b, i, i+1)
	return refs
}

// collect upgrades every ref, returning snapshots of live packets and
// compacting away dead refs and empty entries.
func (b *bucket) collect() (live []proto.ShapeMessage, pruned int) {
	entries := (*b)[:0]
	for _, e := range *b {
		refs := e.refs[:0]
		for _, ref := range e.refs {
			p := ref.Value()
			if p == nil {
				pruned++
				continue
			}
			snap := p.Snapshot()
			if snap.Retracted() {
				pruned++
				continue
			}
			live = append(live, snap)
			refs = append(refs, ref)
		}
		if len(refs) == 0 {
			continue
		}
		e.refs = refs
		entries = append(entries, e)
	}
	clear((*b)[len(entries):])
	*b = entries
	return live, pruned
}

// spatialIndex maps cells to the handles anchored there.
type spatialIndex struct {
	cells *shard.Map[CellKey, bucket]
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{cells: shard.New[CellKey, bucket](hashCellKey)}
}

func (x *spatialIndex) insert(key CellKey, id ids.GeoId, p *Packet) {
	ref := weak.Make(p)
	x.cells.Upsert(key, func(b *bucket, _ bool) {
		b.add(id, ref)
	})
}

func (x *spatialIndex) remove(key CellKey, id ids.GeoId) {
	x.cells.EraseIf(key, func(b *bucket) bool {
		b.take(id)
		return len(*b) == 0
	})
}

func (x *spatialIndex) replace(key CellKey, id ids.GeoId, refs []weak.Pointer[Packet]) {
	if len(refs) == 0 {
		x.remove(key, id)
		return
	}
	x.cells.Upsert(key, func(b *bucket, _ bool) {
		b.replace(id, refs)
	})
}

// relabel moves the entries of every id in from onto to within one cell.
func (x *spatialIndex) relabel(key CellKey, from []ids.GeoId, to ids.GeoId) {
	x.cells.Modify(key, func(b *bucket) {
		var moved []weak.Pointer[Packet]
		for _, id := range from {
			moved = append(moved, b.take(id)...)
		}
		if len(moved) > 0 {
			b.add(to, moved...)
		}
	})
}

func (x *spatialIndex) collect(key CellKey) (live []proto.ShapeMessage, pruned int) {
	x.cells.EraseIf(key, func(b *bucket) bool {
		live, pruned = b.collect()
		return len(*b) == 0
	})
	return live, pruned
}

// handles lists the handles indexed in one cell, in order.
func (x *spatialIndex) handles(key CellKey) []ids.GeoId {
	var out []ids.GeoId
	x.cells.Modify(key, func(b *bucket) {
		out = make([]ids.GeoId, len(*b))
		for i, e := range *b {
			out[i] = e.id
		}
	})
	return out
}
