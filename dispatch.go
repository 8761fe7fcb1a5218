package bsci

import (
	"context"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/tessellate"
)

// ShapeSink renders a single straight segment. The dispatcher picks one of
// two sinks per segment: effect-backed or message-backed.
type ShapeSink interface {
	Line(ctx context.Context, dim geo.Dimension, begin, end geo.Vec3, color geo.Color, thickness float32) ids.GeoId
}

// effectSink spawns an effect and tracks its handle so it can be merged and
// removed alongside native shapes.
type effectSink struct{ g *Group }

func (s effectSink) Line(ctx context.Context, dim geo.Dimension, begin, end geo.Vec3, color geo.Color, thickness float32) ids.GeoId {
	return s.g.trackEffect(s.g.particles.Line(ctx, dim, begin, end, color, thickness))
}

// messageSink emits native lines, splitting any line longer than the
// display radius so no single message spans more than two cells.
type messageSink struct{ g *Group }

func (s messageSink) Line(ctx context.Context, dim geo.Dimension, begin, end geo.Vec3, color geo.Color, thickness float32) ids.GeoId {
	radius := s.g.config.Load().DebugDraw.DisplayRadius
	pieces := tessellate.Split(begin, end, radius)
	parts := make([]ids.GeoId, 0, len(pieces))
	for _, seg := range pieces {
		parts = append(parts, s.g.drawer.Line(ctx, dim, seg.Begin, seg.End, color, thickness))
	}
	return s.g.combine(ctx, parts)
}

func (g *Group) lineSink(cfg config.Config, thickness float32) ShapeSink {
	if thickness > 0 || !cfg.DebugDraw.UseNativeLine {
		return effectSink{g}
	}
	return messageSink{g}
}

func limitsOf(cfg config.Config) tessellate.Limits {
	return tessellate.Limits{
		MaxCircleSegments: cfg.Particle.MaxCircleSegments,
		MinCircleSpacing:  cfg.Particle.MinCircleSpacing,
		MaxSphereCells:    cfg.Particle.MaxSphereCells,
		MinSphereSpacing:  cfg.Particle.MinSphereSpacing,
	}
}

// segments draws every segment through the sink chosen for thickness and
// merges the results.
func (g *Group) segments(ctx context.Context, cfg config.Config, dim geo.Dimension, segs []tessellate.Segment, color geo.Color, thickness float32) ids.GeoId {
	sink := g.lineSink(cfg, thickness)
	parts := make([]ids.GeoId, 0, len(segs))
	for _, seg := range segs {
		parts = append(parts, sink.Line(ctx, dim, seg.Begin, seg.End, color, thickness))
	}
	return g.combine(ctx, parts)
}

func (s Point) draw(ctx context.Context, g *Group) ids.GeoId {
	return g.trackEffect(g.particles.Point(ctx, s.Dim, s.Pos, colorOrWhite(s.Color), s.Radius))
}

func (s Line) draw(ctx context.Context, g *Group) ids.GeoId {
	if s.Begin == s.End {
		return ids.Invalid
	}
	cfg := g.config.Load()
	return g.lineSink(cfg, s.Thickness).Line(ctx, s.Dim, s.Begin, s.End, colorOrWhite(s.Color), s.Thickness)
}

func (s Polyline) draw(ctx context.Context, g *Group) ids.GeoId {
	cfg := g.config.Load()
	return g.segments(ctx, cfg, s.Dim, tessellate.Polyline(s.Points), colorOrWhite(s.Color), s.Thickness)
}

func (s Box) draw(ctx context.Context, g *Group) ids.GeoId {
	cfg := g.config.Load()
	color := colorOrWhite(s.Color)
	radius := cfg.DebugDraw.DisplayRadius
	box := geo.Box(s.Bounds.Min, s.Bounds.Max)
	if box.Extent() == geo.Zero {
		return ids.Invalid
	}
	if s.Thickness > 0 || !cfg.DebugDraw.UseNativeBox || box.Extent().LengthSqr() >= radius*radius {
		return g.segments(ctx, cfg, s.Dim, tessellate.Box(box), color, s.Thickness)
	}
	return g.drawer.Box(ctx, s.Dim, box, color)
}

func (s Circle) draw(ctx context.Context, g *Group) ids.GeoId {
	if s.Radius <= 0 {
		return ids.Invalid
	}
	cfg := g.config.Load()
	color := colorOrWhite(s.Color)
	normal := s.Normal.Normal()
	if normal == geo.Zero {
		normal = geo.Up
	}
	if s.Thickness > 0 || !cfg.DebugDraw.UseNativeCircle || s.Radius > cfg.DebugDraw.DisplayRadius {
		return g.segments(ctx, cfg, s.Dim, tessellate.Circle(s.Center, normal, s.Radius, limitsOf(cfg)), color, s.Thickness)
	}
	return g.drawer.Circle(ctx, s.Dim, s.Center, normal, s.Radius, color)
}

func (s Cylinder) draw(ctx context.Context, g *Group) ids.GeoId {
	if s.Radius <= 0 || s.Top == s.Bottom {
		return ids.Invalid
	}
	cfg := g.config.Load()
	return g.segments(ctx, cfg, s.Dim, tessellate.Cylinder(s.Top, s.Bottom, s.Radius, limitsOf(cfg)), colorOrWhite(s.Color), s.Thickness)
}

func (s Sphere) draw(ctx context.Context, g *Group) ids.GeoId {
	if s.Radius <= 0 {
		return ids.Invalid
	}
	cfg := g.config.Load()
	color := colorOrWhite(s.Color)
	if s.Thickness > 0 || !cfg.DebugDraw.UseNativeSphere || s.Radius > cfg.DebugDraw.DisplayRadius {
		return g.segments(ctx, cfg, s.Dim, tessellate.Sphere(s.Center, s.Radius, limitsOf(cfg)), color, s.Thickness)
	}
	return g.drawer.Sphere(ctx, s.Dim, s.Center, s.Radius, color)
}

func (s Arrow) draw(ctx context.Context, g *Group) ids.GeoId {
	if s.Begin == s.End {
		return ids.Invalid
	}
	cfg := g.config.Load()
	color := colorOrWhite(s.Color)
	if s.Thickness > 0 || !cfg.DebugDraw.UseNativeArrow {
		var headLength, headRadius float32
		if s.HeadLength != nil {
			headLength = *s.HeadLength
		}
		if s.HeadRadius != nil {
			headRadius = *s.HeadRadius
		}
		segs := tessellate.Arrow(s.Begin, s.End, headLength, headRadius, int(cfg.DebugDraw.ArrowSegments))
		return g.segments(ctx, cfg, s.Dim, segs, color, s.Thickness)
	}

	// Leading pieces are plain lines; only the last one carries the head.
	pieces := tessellate.Split(s.Begin, s.End, cfg.DebugDraw.DisplayRadius)
	parts := make([]ids.GeoId, 0, len(pieces))
	for i, seg := range pieces {
		if i == len(pieces)-1 {
			parts = append(parts, g.drawer.Arrow(ctx, s.Dim, seg.Begin, seg.End, color, s.HeadLength, s.HeadRadius))
			continue
		}
		parts = append(parts, g.drawer.Line(ctx, s.Dim, seg.Begin, seg.End, color, 0))
	}
	return g.combine(ctx, parts)
}

func (s Text) draw(ctx context.Context, g *Group) ids.GeoId {
	return g.drawer.Text(ctx, s.Dim, s.Pos, s.Text, colorOrWhite(s.Color), s.Scale)
}
