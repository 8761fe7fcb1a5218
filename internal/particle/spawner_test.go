package particle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/shard"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport/transporttest"
)

func newSpawner(t *testing.T, mutate func(*config.Config)) (*Spawner, *transporttest.Recorder) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	host := transporttest.NewRecorder()
	return NewSpawner(Deps{Host: host, Config: config.NewStore(cfg)}), host
}

func TestLineEffectVariables(t *testing.T) {
	s, host := newSpawner(t, nil)
	id := s.Line(context.Background(), 1, geo.V3(0, 0, 0), geo.V3(4, 0, 0), geo.Color{R: 1, A: 0.5}, 0)
	require.True(t, id.Valid())

	sent := host.Of(transporttest.KindEffect)
	require.Len(t, sent, 1)
	msg := sent[0].Effect
	assert.Equal(t, proto.EffectBlendLine, msg.Name)
	assert.Equal(t, geo.V3(2, 0, 0), msg.Location)
	assert.Equal(t, geo.Dimension(1), msg.Dimension)
	assert.Equal(t, []float32{2, 0.045}, msg.Variables[proto.VarSize])
	assert.Equal(t, []float32{1, 0, 0}, msg.Variables[proto.VarDirection])
	assert.Equal(t, []float32{1, 0, 0, 0.5}, msg.Variables[proto.VarTint])

	lifetime, ok := msg.Float(proto.VarLifetime)
	require.True(t, ok)
	assert.InDelta(t, 1.65, lifetime, 1e-5)
}

func TestLineRejectsCoincidentEndpoints(t *testing.T) {
	s, host := newSpawner(t, nil)
	p := geo.V3(1, 2, 3)
	assert.Equal(t, ids.Invalid, s.Line(context.Background(), 0, p, p, geo.White, 0))
	assert.Empty(t, host.Deliveries())
}

func TestPointUsesDefaultRadius(t *testing.T) {
	s, host := newSpawner(t, nil)
	s.Point(context.Background(), 0, geo.V3(0, 1, 0), geo.White, 0)
	sent := host.Of(transporttest.KindEffect)
	require.Len(t, sent, 1)
	assert.Equal(t, proto.EffectPoint, sent[0].Effect.Name)
	assert.InDeltaSlice(t, []float32{0.15, 0.15}, sent[0].Effect.Variables[proto.VarSize], 1e-6)
}

func TestDelayUpdateSkipsImmediateSend(t *testing.T) {
	s, host := newSpawner(t, func(c *config.Config) { c.Particle.DelayUpdate = true })
	ctx := context.Background()
	id := s.Point(ctx, 0, geo.V3(0, 0, 0), geo.White, 1)
	require.True(t, s.Shift(ctx, id, geo.V3(1, 0, 0)))
	assert.Empty(t, host.Deliveries())

	for tick := uint64(0); tick < shard.Count/2; tick++ {
		s.Tick(ctx, tick)
	}
	sent := host.Of(transporttest.KindEffect)
	require.Len(t, sent, 1)
	assert.Equal(t, geo.V3(1, 0, 0), sent[0].Effect.Location)
}

func TestMergeFlattensGroups(t *testing.T) {
	s, _ := newSpawner(t, nil)
	ctx := context.Background()
	a := s.Point(ctx, 0, geo.V3(0, 0, 0), geo.White, 1)
	b := s.Point(ctx, 0, geo.V3(1, 0, 0), geo.White, 1)
	c := s.Point(ctx, 0, geo.V3(2, 0, 0), geo.White, 1)

	assert.Equal(t, ids.Invalid, s.Merge(ctx, nil))

	ab := s.Merge(ctx, []ids.GeoId{a, b})
	abc := s.Merge(ctx, []ids.GeoId{ab, c})
	require.True(t, abc.Valid())
	assert.False(t, s.Contains(ab))
	assert.Len(t, s.Effects(abc), 3)

	require.True(t, s.Remove(ctx, abc))
	assert.False(t, s.Remove(ctx, abc))
	assert.Zero(t, s.Len())
}

func TestShiftGroupResendsMembers(t *testing.T) {
	s, host := newSpawner(t, nil)
	ctx := context.Background()
	a := s.Line(ctx, 0, geo.V3(0, 0, 0), geo.V3(2, 0, 0), geo.White, 0)
	b := s.Line(ctx, 0, geo.V3(0, 0, 0), geo.V3(0, 2, 0), geo.White, 0)
	g := s.Merge(ctx, []ids.GeoId{a, b})
	host.Reset()

	require.True(t, s.Shift(ctx, g, geo.V3(0, 0, 5)))
	sent := host.Of(transporttest.KindEffect)
	require.Len(t, sent, 2)
	for _, d := range sent {
		assert.Equal(t, float32(5), d.Effect.Location.Z)
	}
	assert.False(t, s.Shift(ctx, ids.Invalid, geo.V3(1, 0, 0)))
	assert.False(t, s.Shift(ctx, 9999, geo.V3(1, 0, 0)))
}

func TestTickRotationVisitsEveryEffectOnce(t *testing.T) {
	s, host := newSpawner(t, func(c *config.Config) { c.Particle.TablePerTick = 4 })
	ctx := context.Background()
	const count = 300
	for i := range count {
		s.Point(ctx, 0, geo.V3(float32(i), 0, 0), geo.White, 1)
	}
	host.Reset()

	for tick := uint64(0); tick < shard.Count/4; tick++ {
		s.Tick(ctx, tick)
	}
	assert.Len(t, host.Of(transporttest.KindEffect), count)

	host.Reset()
	for tick := uint64(16); tick < 32; tick++ {
		s.Tick(ctx, tick)
	}
	assert.Len(t, host.Of(transporttest.KindEffect), count)
}
