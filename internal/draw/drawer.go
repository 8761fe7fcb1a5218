// Package draw builds native shape messages: persistent, retractable
// shapes the client renders itself. Every message is handed to a Registrar,
// which assigns its network id, broadcasts it and remembers it for
// backfill.
package draw

import (
	"context"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
)

// Registrar stores and broadcasts a native message, returning its handle.
type Registrar interface {
	AddPacket(ctx context.Context, msg proto.ShapeMessage) ids.GeoId
}

// Drawer emits one native message per call. It never splits or
// tessellates; callers decide whether a shape fits in a single message.
type Drawer struct {
	reg    Registrar
	config *config.Store
}

// NewDrawer returns a drawer registering messages with reg.
func NewDrawer(reg Registrar, cfg *config.Store) *Drawer {
	return &Drawer{reg: reg, config: cfg}
}

func (d *Drawer) add(ctx context.Context, msg proto.ShapeMessage) ids.GeoId {
	if d == nil || d.reg == nil {
		return ids.Invalid
	}
	return d.reg.AddPacket(ctx, msg)
}

// Line draws a single native line. Thickness is not supported by the
// client and is ignored.
func (d *Drawer) Line(ctx context.Context, dim geo.Dimension, begin, end geo.Vec3, color geo.Color, _ float32) ids.GeoId {
	if begin == end {
		return ids.Invalid
	}
	return d.add(ctx, proto.ShapeMessage{
		Type:      proto.ShapeLine,
		Location:  begin,
		Color:     color,
		Dimension: dim,
		Line:      &proto.LinePayload{End: end},
	})
}

// Box draws an axis-aligned box anchored at its minimum corner.
func (d *Drawer) Box(ctx context.Context, dim geo.Dimension, box geo.AABB, color geo.Color) ids.GeoId {
	return d.add(ctx, proto.ShapeMessage{
		Type:      proto.ShapeBox,
		Location:  box.Min,
		Color:     color,
		Dimension: dim,
		Box:       &proto.BoxPayload{Bound: box.Extent()},
	})
}

// Circle draws a ring around normal. The client reads the normal from the
// rotation field and the radius from the scale.
func (d *Drawer) Circle(ctx context.Context, dim geo.Dimension, center, normal geo.Vec3, radius float32, color geo.Color) ids.GeoId {
	n := normal
	return d.add(ctx, proto.ShapeMessage{
		Type:      proto.ShapeCircle,
		Location:  center,
		Rotation:  &n,
		Scale:     &radius,
		Color:     color,
		Dimension: dim,
	})
}

// Sphere draws a wire sphere, optionally with a fixed segment count from
// the configuration.
func (d *Drawer) Sphere(ctx context.Context, dim geo.Dimension, center geo.Vec3, radius float32, color geo.Color) ids.GeoId {
	msg := proto.ShapeMessage{
		Type:      proto.ShapeSphere,
		Location:  center,
		Scale:     &radius,
		Color:     color,
		Dimension: dim,
	}
	if segments := d.config.Load().DebugDraw.SphereSegments; segments > 0 {
		msg.Sphere = &proto.SpherePayload{Segments: segments}
	}
	return d.add(ctx, msg)
}

// Arrow draws a single native arrow. Nil head dimensions use the client
// defaults.
func (d *Drawer) Arrow(ctx context.Context, dim geo.Dimension, begin, end geo.Vec3, color geo.Color, headLength, headRadius *float32) ids.GeoId {
	if begin == end {
		return ids.Invalid
	}
	payload := &proto.ArrowPayload{End: end}
	if headLength != nil {
		v := *headLength
		payload.HeadLength = &v
	}
	if headRadius != nil {
		v := *headRadius
		payload.HeadRadius = &v
	}
	if segments := d.config.Load().DebugDraw.ArrowSegments; segments > 0 {
		payload.Segments = &segments
	}
	return d.add(ctx, proto.ShapeMessage{
		Type:      proto.ShapeArrow,
		Location:  begin,
		Color:     color,
		Dimension: dim,
		Arrow:     payload,
	})
}

// Text draws a floating label. A nil scale uses the client default.
func (d *Drawer) Text(ctx context.Context, dim geo.Dimension, pos geo.Vec3, text string, color geo.Color, scale *float32) ids.GeoId {
	msg := proto.ShapeMessage{
		Type:      proto.ShapeText,
		Location:  pos,
		Color:     color,
		Dimension: dim,
		Text:      &proto.TextPayload{Text: text},
	}
	if scale != nil {
		v := *scale
		msg.Scale = &v
	}
	return d.add(ctx, msg)
}
