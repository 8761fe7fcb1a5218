// Package particle renders annotations as self-expiring client effects.
//
// Effects cannot be retracted. The spawner keeps the invocation for every
// live handle and re-sends a rotating slice of them each tick; an effect's
// lifetime covers one full rotation, so a removed handle simply stops being
// refreshed and fades out.
package particle

import (
	"context"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/shard"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/sim"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport"
)

const (
	metricEffects     = "particle_effects"
	metricGroups      = "particle_groups"
	metricResentTotal = "particle_resent_total"
)

// Deps wires a spawner.
type Deps struct {
	IDs      *ids.Allocator
	Host     transport.Host
	Executor sim.Executor
	Config   *config.Store
	Metrics  telemetry.Metrics
}

// Spawner owns effect-backed handles. A handle names either a single effect
// or a group of effects produced by Merge.
type Spawner struct {
	effects *shard.Map[ids.GeoId, proto.EffectMessage]
	groups  *shard.Map[ids.GeoId, []ids.GeoId]

	ids     *ids.Allocator
	host    transport.Host
	exec    sim.Executor
	config  *config.Store
	metrics telemetry.Metrics
}

// NewSpawner constructs an empty spawner. A nil Executor sends inline.
func NewSpawner(deps Deps) *Spawner {
	s := &Spawner{
		effects: shard.New[ids.GeoId, proto.EffectMessage](shard.Uint64[ids.GeoId]),
		groups:  shard.New[ids.GeoId, []ids.GeoId](shard.Uint64[ids.GeoId]),
		ids:     deps.IDs,
		host:    deps.Host,
		exec:    deps.Executor,
		config:  deps.Config,
		metrics: deps.Metrics,
	}
	if s.ids == nil {
		s.ids = ids.NewAllocator()
	}
	if s.exec == nil {
		s.exec = sim.Immediate{}
	}
	return s
}

func sizeVar(x, y float32) []float32 {
	return []float32{x * 0.5, y * 0.5}
}

func tintVar(c geo.Color) []float32 {
	return []float32{c.R, c.G, c.B, c.A}
}

// Point spawns a round effect at pos. radius <= 0 uses the configured
// default.
func (s *Spawner) Point(ctx context.Context, dim geo.Dimension, pos geo.Vec3, color geo.Color, radius float32) ids.GeoId {
	cfg := s.config.Load()
	if radius <= 0 {
		radius = cfg.Particle.DefaultPointRadius
	}
	return s.spawn(ctx, cfg, proto.EffectMessage{
		Name:      proto.PointEffect(color),
		Location:  pos,
		Dimension: dim,
		Variables: map[string][]float32{
			proto.VarSize: sizeVar(radius, radius),
			proto.VarTint: tintVar(color),
		},
	})
}

// Line spawns a stretched effect centred between begin and end. It returns
// the invalid handle when the endpoints coincide. thickness <= 0 uses the
// configured default.
func (s *Spawner) Line(ctx context.Context, dim geo.Dimension, begin, end geo.Vec3, color geo.Color, thickness float32) ids.GeoId {
	if begin == end {
		return ids.Invalid
	}
	cfg := s.config.Load()
	if thickness <= 0 {
		thickness = cfg.Particle.DefaultThickness
	}
	dir := end.Sub(begin).Normal()
	return s.spawn(ctx, cfg, proto.EffectMessage{
		Name:      proto.LineEffect(color),
		Location:  geo.Lerp(begin, end, 0.5),
		Dimension: dim,
		Variables: map[string][]float32{
			proto.VarSize:      sizeVar(begin.DistanceTo(end), thickness),
			proto.VarTint:      tintVar(color),
			proto.VarDirection: {dir.X, dir.Y, dir.Z},
		},
	})
}

func (s *Spawner) spawn(ctx context.Context, cfg config.Config, msg proto.EffectMessage) ids.GeoId {
	msg.Variables[proto.VarLifetime] = []float32{cfg.LifetimeSeconds()}
	id := s.ids.NextEffect()
	s.effects.Insert(id, msg)
	s.storeMetric(metricEffects, uint64(s.effects.Len()))
	if !cfg.Particle.DelayUpdate {
		s.send(ctx, []proto.EffectMessage{msg.Clone()})
	}
	return id
}

func (s *Spawner) send(ctx context.Context, msgs []proto.EffectMessage) {
	if len(msgs) == 0 || s.host == nil {
		return
	}
	s.exec.Execute(ctx, func(context.Context) {
		for _, msg := range msgs {
			s.host.SendEffect(msg)
		}
	})
}

// Remove stops refreshing handle and every effect it groups.
func (s *Spawner) Remove(_ context.Context, handle ids.GeoId) bool {
	if !handle.Valid() {
		return false
	}
	var members []ids.GeoId
	if s.groups.EraseIf(handle, func(g *[]ids.GeoId) bool {
		members = *g
		return true
	}) {
		for _, id := range members {
			s.effects.EraseIf(id, func(*proto.EffectMessage) bool { return true })
		}
		s.storeCounts()
		return true
	}
	removed := s.effects.EraseIf(handle, func(*proto.EffectMessage) bool { return true })
	if removed {
		s.storeCounts()
	}
	return removed
}

// Merge folds handles into one group handle. Group inputs are flattened so
// a group never contains another group. Merge of an empty list returns the
// invalid handle.
func (s *Spawner) Merge(_ context.Context, handles []ids.GeoId) ids.GeoId {
	var members []ids.GeoId
	for _, h := range handles {
		if !h.Valid() {
			continue
		}
		if !s.groups.EraseIf(h, func(g *[]ids.GeoId) bool {
			members = append(members, *g...)
			return true
		}) {
			members = append(members, h)
		}
	}
	if len(members) == 0 {
		return ids.Invalid
	}
	id := s.ids.NextEffect()
	s.groups.Insert(id, members)
	s.storeCounts()
	return id
}

// Shift moves every effect under handle by delta and re-sends it unless
// updates are delayed.
func (s *Spawner) Shift(ctx context.Context, handle ids.GeoId, delta geo.Vec3) bool {
	if !handle.Valid() {
		return false
	}
	var moved []proto.EffectMessage
	translate := func(id ids.GeoId) bool {
		return s.effects.Modify(id, func(msg *proto.EffectMessage) {
			msg.Translate(delta)
			moved = append(moved, msg.Clone())
		})
	}

	var members []ids.GeoId
	grouped := s.groups.Modify(handle, func(g *[]ids.GeoId) {
		members = append(members, *g...)
	})
	if grouped {
		for _, id := range members {
			translate(id)
		}
	} else if !translate(handle) {
		return false
	}

	if !s.config.Load().Particle.DelayUpdate {
		s.send(ctx, moved)
	}
	return true
}

// Contains reports whether handle names a live effect or group.
func (s *Spawner) Contains(handle ids.GeoId) bool {
	if _, ok := s.groups.Load(handle); ok {
		return true
	}
	_, ok := s.effects.Load(handle)
	return ok
}

// Effects returns copies of the effects behind handle.
func (s *Spawner) Effects(handle ids.GeoId) []proto.EffectMessage {
	if members, ok := s.groups.Load(handle); ok {
		out := make([]proto.EffectMessage, 0, len(members))
		for _, id := range members {
			if msg, ok := s.effects.Load(id); ok {
				out = append(out, msg.Clone())
			}
		}
		return out
	}
	if msg, ok := s.effects.Load(handle); ok {
		return []proto.EffectMessage{msg.Clone()}
	}
	return nil
}

// Len counts live effects.
func (s *Spawner) Len() int {
	return s.effects.Len()
}

// Tick re-sends the effects stored in TablePerTick shards, advancing
// through all shards once per rotation. It must run every tick: effects
// that miss their refresh expire on the client.
func (s *Spawner) Tick(ctx context.Context, tick uint64) {
	per := s.config.Load().Particle.TablePerTick
	if per <= 0 || per > shard.Count {
		return
	}
	start := int(tick%uint64(shard.Count/per)) * per

	var batch []proto.EffectMessage
	for i := start; i < start+per; i++ {
		s.effects.RangeShard(i, func(_ ids.GeoId, msg *proto.EffectMessage) bool {
			batch = append(batch, msg.Clone())
			return false
		})
	}
	if len(batch) == 0 {
		return
	}
	s.send(ctx, batch)
	if s.metrics != nil {
		s.metrics.Add(metricResentTotal, uint64(len(batch)))
	}
}

// Clear forgets every effect and group.
func (s *Spawner) Clear() {
	s.groups.Clear()
	s.effects.Clear()
	s.storeCounts()
}

func (s *Spawner) storeCounts() {
	s.storeMetric(metricEffects, uint64(s.effects.Len()))
	s.storeMetric(metricGroups, uint64(s.groups.Len()))
}

func (s *Spawner) storeMetric(key string, value uint64) {
	if s.metrics == nil {
		return
	}
	s.metrics.Store(key, value)
}
