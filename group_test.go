package bsci

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/shard"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/sim"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport/transporttest"
)

func newGroup(t *testing.T, mutate func(*config.Config)) (*Group, *transporttest.Recorder) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	host := transporttest.NewRecorder()
	g := New(Deps{Host: host, Executor: sim.Immediate{}, Config: config.NewStore(cfg)})
	t.Cleanup(func() { g.Close(context.Background()) })
	return g, host
}

func countType(ds []transporttest.Delivery, typ proto.ShapeType) int {
	n := 0
	for _, d := range ds {
		if d.Shape.Type == typ {
			n++
		}
	}
	return n
}

func TestLongLineSplitsAndRetractsTogether(t *testing.T) {
	g, host := newGroup(t, nil)
	ctx := context.Background()

	id := g.Draw(ctx, Line{Begin: geo.V3(0, 0, 0), End: geo.V3(200, 0, 0)})
	require.True(t, id.Valid())
	sent := host.Of(transporttest.KindShape)
	require.Len(t, sent, 5)
	for _, d := range sent {
		assert.InDelta(t, 40, d.Shape.Location.DistanceTo(d.Shape.Line.End), 1e-3)
		assert.Equal(t, geo.White, d.Shape.Color)
	}
	assert.Equal(t, geo.V3(200, 0, 0), sent[4].Shape.Line.End)

	require.True(t, g.Remove(ctx, id))
	assert.False(t, g.Remove(ctx, id))
	assert.Len(t, host.Of(transporttest.KindShapeToAll), 5)
}

func TestDegenerateRequests(t *testing.T) {
	g, host := newGroup(t, nil)
	ctx := context.Background()
	p := geo.V3(1, 2, 3)

	assert.Equal(t, InvalidGeoId, g.Draw(ctx, Line{Begin: p, End: p}))
	assert.Equal(t, InvalidGeoId, g.Draw(ctx, Arrow{Begin: p, End: p}))
	assert.Equal(t, InvalidGeoId, g.Draw(ctx, Circle{Center: p, Radius: 0}))
	assert.Equal(t, InvalidGeoId, g.Draw(ctx, Polyline{Points: []geo.Vec3{p}}))
	assert.Equal(t, InvalidGeoId, g.Draw(ctx, nil))
	assert.Empty(t, host.Deliveries())

	for _, native := range []bool{true, false} {
		g, host := newGroup(t, func(c *config.Config) { c.DebugDraw.UseNativeBox = native })
		assert.Equal(t, InvalidGeoId, g.Draw(ctx, Box{Bounds: geo.Box(p, p)}), "native=%v", native)
		assert.Empty(t, host.Deliveries(), "native=%v", native)
	}

	// A flat box is still drawable.
	assert.True(t, g.Draw(ctx, Box{Bounds: geo.Box(p, geo.V3(3, 2, 5))}).Valid())
}

func TestBoxRoutes(t *testing.T) {
	t.Run("native", func(t *testing.T) {
		g, host := newGroup(t, nil)
		g.Draw(context.Background(), Box{Bounds: geo.Box(geo.V3(0, 0, 0), geo.V3(2, 2, 2))})
		sent := host.Of(transporttest.KindShape)
		require.Len(t, sent, 1)
		assert.Equal(t, proto.ShapeBox, sent[0].Shape.Type)
	})
	t.Run("too large for one message", func(t *testing.T) {
		g, host := newGroup(t, nil)
		g.Draw(context.Background(), Box{Bounds: geo.Box(geo.V3(0, 0, 0), geo.V3(30, 30, 30))})
		assert.Equal(t, 12, countType(host.Of(transporttest.KindShape), proto.ShapeLine))
	})
	t.Run("thick", func(t *testing.T) {
		g, host := newGroup(t, nil)
		id := g.Draw(context.Background(), Box{Bounds: geo.Box(geo.V3(0, 0, 0), geo.V3(1, 1, 1)), Thickness: 0.2})
		require.True(t, id.Valid())
		assert.Empty(t, host.Of(transporttest.KindShape))
		assert.Len(t, host.Of(transporttest.KindEffect), 12)
		assert.Equal(t, 12, g.Stats().Effects)

		require.True(t, g.Remove(context.Background(), id))
		assert.Zero(t, g.Stats().Effects)
	})
}

func TestBoxShiftRoundTripWithoutNativeBox(t *testing.T) {
	g, host := newGroup(t, func(c *config.Config) { c.DebugDraw.UseNativeBox = false })
	ctx := context.Background()
	delta := geo.V3(5, -2, 40)

	id := g.Draw(ctx, Box{Bounds: geo.Box(geo.V3(0, 0, 0), geo.V3(4, 4, 4)), Color: geo.Blue})
	created := host.Of(transporttest.KindShape)
	require.Len(t, created, 12)
	origin := make(map[uint64]geo.Vec3, len(created))
	for _, d := range created {
		origin[d.Shape.NetworkID] = d.Shape.Location
	}

	require.True(t, g.Shift(ctx, id, delta))
	require.True(t, g.Remove(ctx, id))

	retracted := host.Of(transporttest.KindShapeToAll)
	require.Len(t, retracted, 12)
	for _, d := range retracted {
		assert.Equal(t, origin[d.Shape.NetworkID].Add(delta), d.Shape.Location)
	}
}

func TestCircleTessellatesWhenNativeDisabled(t *testing.T) {
	g, host := newGroup(t, func(c *config.Config) { c.DebugDraw.UseNativeCircle = false })
	id := g.Draw(context.Background(), Circle{Center: geo.V3(0, 64, 0), Normal: geo.Up, Radius: 10})
	require.True(t, id.Valid())
	assert.Equal(t, 105, countType(host.Of(transporttest.KindShape), proto.ShapeLine))
}

func TestCircleAndSphereNative(t *testing.T) {
	g, host := newGroup(t, nil)
	ctx := context.Background()
	g.Draw(ctx, Circle{Center: geo.V3(0, 64, 0), Normal: geo.V3(0, 2, 0), Radius: 10})
	g.Draw(ctx, Sphere{Center: geo.V3(0, 64, 0), Radius: 3})

	sent := host.Of(transporttest.KindShape)
	require.Len(t, sent, 2)
	assert.Equal(t, proto.ShapeCircle, sent[0].Shape.Type)
	assert.Equal(t, geo.Up, *sent[0].Shape.Rotation)
	assert.Equal(t, proto.ShapeSphere, sent[1].Shape.Type)

	host.Reset()
	g.Draw(ctx, Sphere{Center: geo.V3(0, 64, 0), Radius: 60})
	assert.Equal(t, 0, countType(host.Of(transporttest.KindShape), proto.ShapeSphere))
	assert.NotEmpty(t, host.Of(transporttest.KindShape))
}

func TestLongArrowEndsWithHead(t *testing.T) {
	g, host := newGroup(t, nil)
	head := float32(2)
	id := g.Draw(context.Background(), Arrow{Begin: geo.V3(0, 0, 0), End: geo.V3(0, 0, 100), HeadLength: &head})
	require.True(t, id.Valid())

	sent := host.Of(transporttest.KindShape)
	require.Len(t, sent, 3)
	assert.Equal(t, proto.ShapeLine, sent[0].Shape.Type)
	assert.Equal(t, proto.ShapeLine, sent[1].Shape.Type)
	assert.Equal(t, proto.ShapeArrow, sent[2].Shape.Type)
	assert.Equal(t, geo.V3(0, 0, 100), sent[2].Shape.Arrow.End)
	assert.Equal(t, float32(2), *sent[2].Shape.Arrow.HeadLength)
}

func TestArrowTessellatedWhenNativeDisabled(t *testing.T) {
	g, host := newGroup(t, func(c *config.Config) { c.DebugDraw.UseNativeArrow = false })
	g.Draw(context.Background(), Arrow{Begin: geo.V3(0, 0, 0), End: geo.V3(0, 0, 10)})
	assert.Equal(t, 9, countType(host.Of(transporttest.KindShape), proto.ShapeLine))
}

func TestPointAndThickLineUseEffects(t *testing.T) {
	g, host := newGroup(t, nil)
	ctx := context.Background()
	p := g.Draw(ctx, Point{Pos: geo.V3(1, 1, 1), Color: geo.Color{R: 1, A: 0.4}})
	l := g.Draw(ctx, Line{Begin: geo.V3(0, 0, 0), End: geo.V3(0, 3, 0), Thickness: 0.3})

	effects := host.Of(transporttest.KindEffect)
	require.Len(t, effects, 2)
	assert.Equal(t, proto.EffectBlendPoint, effects[0].Effect.Name)
	assert.Equal(t, proto.EffectLine, effects[1].Effect.Name)

	merged := g.Merge(ctx, []GeoId{p, l})
	require.True(t, merged.Valid())
	assert.False(t, g.Contains(p))
	require.True(t, g.Shift(ctx, merged, geo.V3(0, 10, 0)))
	assert.Len(t, host.Of(transporttest.KindEffect), 4)
	require.True(t, g.Remove(ctx, merged))
	assert.Zero(t, g.Stats().Effects)
}

func TestTextIsNative(t *testing.T) {
	g, host := newGroup(t, nil)
	g.Draw(context.Background(), Text{Pos: geo.V3(0, 70, 0), Text: "hello"})
	sent := host.Of(transporttest.KindShape)
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Shape.Text.Text)
}

func TestBackfillOnCellDelivery(t *testing.T) {
	g, host := newGroup(t, nil)
	ctx := context.Background()
	id := g.Draw(ctx, Line{Begin: geo.V3(3, 64, 3), End: geo.V3(5, 64, 7)})
	viewer := transporttest.Viewer("late")

	host.Deliver(viewer, geo.CellPos{}, 0)
	got := host.Of(transporttest.KindShapeTo)
	require.Len(t, got, 1)
	assert.Equal(t, "late", got[0].Viewer)

	require.True(t, g.Remove(ctx, id))
	host.Reset()
	host.Deliver(viewer, geo.CellPos{}, 0)
	assert.Empty(t, host.Of(transporttest.KindShapeTo))
}

func TestTickRefreshesEffectsAndNative(t *testing.T) {
	g, host := newGroup(t, nil)
	ctx := context.Background()
	g.Draw(ctx, Point{Pos: geo.V3(0, 0, 0)})
	g.Draw(ctx, Line{Begin: geo.V3(0, 0, 0), End: geo.V3(1, 0, 0)})
	host.Reset()

	for tick := uint64(0); tick < shard.Count/2; tick++ {
		g.Tick(ctx, tick)
	}
	assert.Len(t, host.Of(transporttest.KindEffect), 1)
	assert.Len(t, host.Of(transporttest.KindShape), 1)
}

func TestAttachRunsOnLoop(t *testing.T) {
	g, host := newGroup(t, func(c *config.Config) { c.Particle.TablePerTick = 64 })
	loop := sim.NewLoop(sim.LoopConfig{TickRate: 20}, sim.LoopDeps{})
	detach := g.Attach(loop)
	g.Draw(context.Background(), Point{Pos: geo.V3(0, 0, 0)})
	host.Reset()

	loop.Step(context.Background())
	assert.Len(t, host.Of(transporttest.KindEffect), 1)

	detach()
	loop.Step(context.Background())
	assert.Len(t, host.Of(transporttest.KindEffect), 1)
}

func TestCloseInvalidatesHandles(t *testing.T) {
	g, host := newGroup(t, nil)
	ctx := context.Background()
	id := g.Draw(ctx, Text{Pos: geo.V3(0, 0, 0), Text: "x"})
	require.Equal(t, 1, host.Listeners())

	g.Close(ctx)
	g.Close(ctx)
	assert.Zero(t, host.Listeners())
	assert.Len(t, host.Of(transporttest.KindShapeToAll), 1)
	assert.False(t, g.Contains(id))
	assert.False(t, g.Remove(ctx, id))
	assert.Equal(t, InvalidGeoId, g.Draw(ctx, Text{Text: "y"}))
}

func TestRemoveRetractsWhenTaskQueueIsFull(t *testing.T) {
	host := transporttest.NewRecorder()
	loop := sim.NewLoop(sim.LoopConfig{TickRate: 20, QueueCapacity: 1}, sim.LoopDeps{})
	g := New(Deps{Host: host, Executor: loop, Config: config.NewStore(config.Default())})
	ctx := context.Background()

	id := g.Draw(ctx, Line{Begin: geo.V3(0, 0, 0), End: geo.V3(1, 0, 0)})
	require.True(t, id.Valid())
	require.True(t, g.Remove(ctx, id))
	assert.Empty(t, host.Deliveries())

	loop.Step(ctx)
	assert.Len(t, host.Of(transporttest.KindShape), 1)
	tombstones := host.Of(transporttest.KindShapeToAll)
	require.Len(t, tombstones, 1)
	assert.True(t, tombstones[0].Shape.Retracted())
	assert.False(t, g.Contains(id))
}

func TestCloseRetractsConcurrentDraws(t *testing.T) {
	host := transporttest.NewRecorder()
	g := New(Deps{Host: host, Executor: sim.Immediate{}, Config: config.NewStore(config.Default())})
	ctx := context.Background()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < 50; i++ {
				x := float32(w*100 + i)
				g.Draw(ctx, Line{Begin: geo.V3(x, 0, 0), End: geo.V3(x, 1, 0)})
			}
		}(w)
	}
	close(start)
	g.Close(ctx)
	wg.Wait()

	assert.Zero(t, g.Stats().Handles)
	assert.Equal(t, len(host.Of(transporttest.KindShape)), len(host.Of(transporttest.KindShapeToAll)))
}
