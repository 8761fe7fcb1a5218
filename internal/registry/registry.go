// Package registry owns every live annotation handle and the spatial index
// used to backfill viewers when a cell becomes visible to them.
//
// Two sharded maps hold all state: handle -> entry and (cell, dimension) ->
// handles anchored there. Operations that touch both always lock the handle
// shard first and update the index before releasing it, so a cell delivery
// never observes an index entry whose handle was relabelled or moved but
// not yet reindexed. The cell-delivery path only takes index locks.
package registry

import (
	"context"
	"sync/atomic"
	"weak"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/shard"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/sim"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging/geometry"
)

const (
	metricHandles       = "registry_handles"
	metricRemovedTotal  = "registry_removed_total"
	metricMergedTotal   = "registry_merged_total"
	metricShiftedTotal  = "registry_shifted_total"
	metricBackfillSent  = "registry_backfill_sent_total"
	metricBackfillPrune = "registry_backfill_pruned_total"
	metricRefreshSent   = "registry_refresh_sent_total"
)

// EffectBackend owns effect-backed handles. The registry tracks them for
// merge and removal bookkeeping and delegates everything else.
type EffectBackend interface {
	// Merge folds several effect handles into one group handle.
	Merge(ctx context.Context, handles []ids.GeoId) ids.GeoId
	// Remove drops bookkeeping for a handle; the effects expire on their own.
	Remove(ctx context.Context, handle ids.GeoId) bool
	// Shift translates and re-sends a handle's effects.
	Shift(ctx context.Context, handle ids.GeoId, delta geo.Vec3) bool
}

// Deps wires the registry to its collaborators.
type Deps struct {
	IDs       *ids.Allocator
	Host      transport.Host
	Executor  sim.Executor
	Effects   EffectBackend
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

type entry struct {
	packets []*Packet
	// effect marks handles whose id belongs to the effect backend.
	effect bool
}

// Registry maps handles to the messages that implement them.
type Registry struct {
	entries *shard.Map[ids.GeoId, entry]
	index   *spatialIndex

	ids       *ids.Allocator
	host      transport.Host
	exec      sim.Executor
	effects   EffectBackend
	publisher logging.Publisher
	metrics   telemetry.Metrics

	tick atomic.Uint64
}

// New constructs an empty registry. A nil Executor runs sends inline.
func New(deps Deps) *Registry {
	r := &Registry{
		entries:   shard.New[ids.GeoId, entry](shard.Uint64[ids.GeoId]),
		index:     newSpatialIndex(),
		ids:       deps.IDs,
		host:      deps.Host,
		exec:      deps.Executor,
		effects:   deps.Effects,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
	}
	if r.ids == nil {
		r.ids = ids.NewAllocator()
	}
	if r.exec == nil {
		r.exec = sim.Immediate{}
	}
	return r
}

// IDs exposes the allocator shared with the backends.
func (r *Registry) IDs() *ids.Allocator {
	return r.ids
}

// AddPacket assigns msg a network id, registers it under that id and
// broadcasts it to viewers near its anchor. The returned handle equals the
// network id.
func (r *Registry) AddPacket(ctx context.Context, msg proto.ShapeMessage) ids.GeoId {
	id := r.ids.NextMessage()
	msg.NetworkID = uint64(id)
	p := NewPacket(msg)
	key := KeyOf(msg)

	r.entries.Upsert(id, func(e *entry, _ bool) {
		e.packets = append(e.packets, p)
		r.index.insert(key, id, p)
	})
	r.addMetric(metricHandles, 1)

	snap := p.Snapshot()
	r.exec.Execute(ctx, func(context.Context) {
		r.host.SendShape(snap)
	})
	return id
}

// AddEffect records an effect-backed handle so it can take part in merge
// and remove.
func (r *Registry) AddEffect(id ids.GeoId) bool {
	if !id.Valid() {
		return false
	}
	if r.entries.Insert(id, entry{effect: true}) {
		r.addMetric(metricHandles, 1)
		return true
	}
	return false
}

// Contains reports whether id is live.
func (r *Registry) Contains(id ids.GeoId) bool {
	_, ok := r.entries.Load(id)
	return ok
}

// Messages returns snapshots of the messages owned by id.
func (r *Registry) Messages(id ids.GeoId) []proto.ShapeMessage {
	var out []proto.ShapeMessage
	r.entries.Modify(id, func(e *entry) {
		out = make([]proto.ShapeMessage, 0, len(e.packets))
		for _, p := range e.packets {
			out = append(out, p.Snapshot())
		}
	})
	return out
}

// Remove retracts id. Native messages are tombstoned and re-sent to every
// viewer; effect handles are dropped from the effect backend. It returns
// false for the invalid handle and for handles that are not live.
func (r *Registry) Remove(ctx context.Context, id ids.GeoId) bool {
	if !id.Valid() {
		r.traceInvalid(ctx, "remove", id)
		return false
	}
	var (
		packets []*Packet
		effect  bool
	)
	removed := r.entries.EraseIf(id, func(e *entry) bool {
		packets = e.packets
		effect = e.effect
		seen := make(map[CellKey]struct{}, len(e.packets))
		for _, p := range e.packets {
			key := p.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			r.index.remove(key, id)
		}
		return true
	})
	if !removed {
		r.traceInvalid(ctx, "remove", id)
		return false
	}

	if len(packets) > 0 {
		snaps := make([]proto.ShapeMessage, len(packets))
		for i, p := range packets {
			snaps[i] = p.tombstone()
		}
		r.exec.Execute(ctx, func(context.Context) {
			for _, snap := range snaps {
				r.host.SendShapeToAll(snap)
			}
		})
	}
	if effect && r.effects != nil {
		r.effects.Remove(ctx, id)
	}

	r.addMetric(metricRemovedTotal, 1)
	r.storeHandles()
	geometry.Removed(ctx, r.publisher, r.tick.Load(), shapeRef(id), geometry.RemovedPayload{
		Messages: len(packets),
		Effect:   effect,
	}, nil)
	return true
}

// Merge folds handles into one new handle owning the union of their
// messages. Inputs are consumed. Nothing is re-sent: viewers keep the same
// network ids. It returns the invalid handle when nothing live was given.
func (r *Registry) Merge(ctx context.Context, handles []ids.GeoId) ids.GeoId {
	if len(handles) == 0 {
		return ids.Invalid
	}
	var (
		packets []*Packet
		effects []ids.GeoId
		relabel = make(map[CellKey][]ids.GeoId)
		inputs  int
	)
	for _, id := range handles {
		if !id.Valid() {
			continue
		}
		r.entries.EraseIf(id, func(e *entry) bool {
			inputs++
			packets = append(packets, e.packets...)
			if e.effect {
				effects = append(effects, id)
			}
			for _, p := range e.packets {
				key := p.Key()
				olds := relabel[key]
				if len(olds) == 0 || olds[len(olds)-1] != id {
					relabel[key] = append(olds, id)
				}
			}
			return true
		})
	}
	if len(packets) == 0 && len(effects) == 0 {
		return ids.Invalid
	}

	newID := ids.Invalid
	if len(effects) > 0 && r.effects != nil {
		newID = r.effects.Merge(ctx, effects)
	}
	effectBacked := newID.Valid()
	if !newID.Valid() {
		if len(packets) == 0 {
			return ids.Invalid
		}
		newID = r.ids.NextMessage()
	}

	r.entries.Upsert(newID, func(e *entry, _ bool) {
		e.packets = append(e.packets, packets...)
		e.effect = e.effect || effectBacked
		for key, olds := range relabel {
			r.index.relabel(key, olds, newID)
		}
	})

	r.addMetric(metricMergedTotal, 1)
	r.storeHandles()
	geometry.Merged(ctx, r.publisher, r.tick.Load(), shapeRef(newID), geometry.MergedPayload{
		Inputs:   inputs,
		Messages: len(packets),
		Effects:  len(effects),
	}, nil)
	return newID
}

// Shift translates every message owned by id by delta, reindexes messages
// that changed cell and re-sends them. It returns false when id is not live.
func (r *Registry) Shift(ctx context.Context, id ids.GeoId, delta geo.Vec3) bool {
	if !id.Valid() {
		r.traceInvalid(ctx, "shift", id)
		return false
	}
	var (
		snaps  []proto.ShapeMessage
		effect bool
	)
	ok := r.entries.Modify(id, func(e *entry) {
		effect = e.effect
		snaps = make([]proto.ShapeMessage, 0, len(e.packets))
		before := make(map[CellKey]struct{}, len(e.packets))
		after := make(map[CellKey][]weak.Pointer[Packet], len(e.packets))
		moved := false
		for _, p := range e.packets {
			from, to, snap := p.translate(delta)
			before[from] = struct{}{}
			after[to] = append(after[to], weak.Make(p))
			snaps = append(snaps, snap)
			if from != to {
				moved = true
			}
		}
		if !moved {
			return
		}
		for key := range before {
			if _, kept := after[key]; !kept {
				r.index.remove(key, id)
			}
		}
		for key, refs := range after {
			r.index.replace(key, id, refs)
		}
	})
	if !ok {
		r.traceInvalid(ctx, "shift", id)
		return false
	}

	if len(snaps) > 0 {
		r.exec.Execute(ctx, func(context.Context) {
			for _, snap := range snaps {
				r.host.SendShape(snap)
			}
		})
	}
	if effect && r.effects != nil {
		r.effects.Shift(ctx, id, delta)
	}
	r.addMetric(metricShiftedTotal, 1)
	return true
}

// CellDelivered re-sends every live message anchored in cell to viewer. It
// runs on the caller's goroutine and prunes expired references it meets.
func (r *Registry) CellDelivered(viewer transport.Viewer, cell geo.CellPos, dim geo.Dimension) {
	live, pruned := r.index.collect(CellKey{Cell: cell, Dim: dim})
	for _, msg := range live {
		r.host.SendShapeTo(viewer, msg)
	}
	if len(live) == 0 && pruned == 0 {
		return
	}
	r.addMetric(metricBackfillSent, uint64(len(live)))
	r.addMetric(metricBackfillPrune, uint64(pruned))

	actor := logging.EntityRef{Kind: logging.EntityKindViewer}
	if viewer != nil {
		actor.ID = viewer.ID()
	}
	geometry.Backfill(context.Background(), r.publisher, r.tick.Load(), actor, geometry.BackfillPayload{
		CellX:     cell.X,
		CellZ:     cell.Z,
		Dimension: int32(dim),
		Sent:      len(live),
		Pruned:    pruned,
	}, nil)
}

// Refresh re-sends the native messages stored in a rotating subset of
// shards: perTick shards per tick, so every message goes out once every
// shard.Count/perTick ticks. It is advisory: viewers already hold these
// shapes.
func (r *Registry) Refresh(ctx context.Context, tick uint64, perTick int) int {
	r.tick.Store(tick)
	if perTick <= 0 {
		return 0
	}
	if perTick > shard.Count {
		perTick = shard.Count
	}
	rounds := uint64(shard.Count / perTick)
	start := int(tick%rounds) * perTick

	var snaps []proto.ShapeMessage
	for i := start; i < start+perTick && i < shard.Count; i++ {
		r.entries.RangeShard(i, func(_ ids.GeoId, e *entry) bool {
			for _, p := range e.packets {
				snaps = append(snaps, p.Snapshot())
			}
			return false
		})
	}
	if len(snaps) == 0 {
		return 0
	}
	r.exec.Execute(ctx, func(context.Context) {
		for _, snap := range snaps {
			r.host.SendShape(snap)
		}
	})
	r.addMetric(metricRefreshSent, uint64(len(snaps)))
	return len(snaps)
}

// Clear retracts every live handle and returns how many were removed.
func (r *Registry) Clear(ctx context.Context) int {
	var live []ids.GeoId
	r.entries.Range(func(id ids.GeoId, _ *entry) bool {
		live = append(live, id)
		return false
	})
	n := 0
	for _, id := range live {
		if r.Remove(ctx, id) {
			n++
		}
	}
	return n
}

// Stats is a point-in-time summary.
type Stats struct {
	Handles int `json:"handles"`
	Cells   int `json:"cells"`
}

// Stats counts live handles and indexed cells.
func (r *Registry) Stats() Stats {
	return Stats{Handles: r.entries.Len(), Cells: r.index.cells.Len()}
}

// Handles lists the handles indexed in a cell, in ascending order.
func (r *Registry) Handles(cell geo.CellPos, dim geo.Dimension) []ids.GeoId {
	return r.index.handles(CellKey{Cell: cell, Dim: dim})
}

func (r *Registry) traceInvalid(ctx context.Context, op string, id ids.GeoId) {
	geometry.InvalidHandle(ctx, r.publisher, r.tick.Load(), geometry.InvalidHandlePayload{
		Operation: op,
		Handle:    uint64(id),
	}, nil)
}

func (r *Registry) storeHandles() {
	if r.metrics == nil {
		return
	}
	r.metrics.Store(metricHandles, uint64(r.entries.Len()))
}

func (r *Registry) addMetric(key string, delta uint64) {
	if r.metrics == nil {
		return
	}
	r.metrics.Add(key, delta)
}

func shapeRef(id ids.GeoId) logging.EntityRef {
	return logging.EntityRef{ID: id.String(), Kind: logging.EntityKindShape}
}
