// Package bsci draws transient geometric annotations for connected viewers.
//
// A Group turns shape requests into native shape messages or client
// effects, hands back one opaque handle per request and keeps enough state
// to re-deliver every live shape when a viewer starts seeing its cell, to
// translate it and to retract it.
//
//	g := bsci.New(bsci.Deps{Host: hub, Executor: loop})
//	defer g.Close(ctx)
//	id := g.Draw(ctx, bsci.Box{Bounds: geo.Box(a, b), Color: geo.Red})
//	g.Shift(ctx, id, geo.V3(0, 1, 0))
//	g.Remove(ctx, id)
package bsci

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/draw"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/particle"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/registry"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/sim"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
)

// GeoId re-exports the handle type so callers need only this package.
type GeoId = ids.GeoId

// InvalidGeoId is returned whenever nothing was drawn.
const InvalidGeoId = ids.Invalid

// Deps wires a Group to its host. Host is required; everything else has a
// usable default.
type Deps struct {
	Host      transport.Host
	Executor  sim.Executor
	Config    *config.Store
	IDs       *ids.Allocator
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
}

// Group owns every handle it issues. Handles from one group mean nothing to
// another; closing the group invalidates all of them.
type Group struct {
	config    *config.Store
	registry  *registry.Registry
	particles *particle.Spawner
	drawer    *draw.Drawer
	metrics   telemetry.Metrics
	logger    telemetry.Logger

	// lifeMu orders Draw and Merge against Close: Close takes it
	// exclusively to flip closed, so nothing registers after Clear.
	lifeMu     sync.RWMutex
	closeOnce  sync.Once
	closed     atomic.Bool
	unregister func()
}

// New constructs a group and subscribes it to the host's cell deliveries.
func New(deps Deps) *Group {
	if deps.Config == nil {
		deps.Config = config.NewStore(config.Default())
	}
	if deps.IDs == nil {
		deps.IDs = ids.NewAllocator()
	}
	if deps.Executor == nil {
		deps.Executor = sim.Immediate{}
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.Discard
	}

	particles := particle.NewSpawner(particle.Deps{
		IDs:      deps.IDs,
		Host:     deps.Host,
		Executor: deps.Executor,
		Config:   deps.Config,
		Metrics:  deps.Metrics,
	})
	reg := registry.New(registry.Deps{
		IDs:       deps.IDs,
		Host:      deps.Host,
		Executor:  deps.Executor,
		Effects:   particles,
		Publisher: deps.Publisher,
		Metrics:   deps.Metrics,
	})
	g := &Group{
		config:    deps.Config,
		registry:  reg,
		particles: particles,
		drawer:    draw.NewDrawer(reg, deps.Config),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if deps.Host != nil {
		g.unregister = deps.Host.OnCellDelivered(reg)
	}
	return g
}

// Draw renders shape and returns its handle, or InvalidGeoId when the
// request is degenerate or the group is closed.
func (g *Group) Draw(ctx context.Context, shape Shape) GeoId {
	if g == nil || shape == nil {
		return ids.Invalid
	}
	g.lifeMu.RLock()
	defer g.lifeMu.RUnlock()
	if g.closed.Load() {
		return ids.Invalid
	}
	id := shape.draw(ctx, g)
	if id.Valid() && g.metrics != nil {
		g.metrics.Add("draw_"+shape.kind()+"_total", 1)
	}
	return id
}

// Remove retracts id. It returns true exactly once per handle.
func (g *Group) Remove(ctx context.Context, id GeoId) bool {
	if g == nil || g.closed.Load() {
		return false
	}
	return g.registry.Remove(ctx, id)
}

// Merge consumes handles and returns one handle owning all of their shapes.
// Nothing is re-sent to viewers.
func (g *Group) Merge(ctx context.Context, handles []GeoId) GeoId {
	if g == nil {
		return ids.Invalid
	}
	g.lifeMu.RLock()
	defer g.lifeMu.RUnlock()
	if g.closed.Load() {
		return ids.Invalid
	}
	return g.registry.Merge(ctx, handles)
}

// Shift translates every shape under id by delta.
func (g *Group) Shift(ctx context.Context, id GeoId, delta geo.Vec3) bool {
	if g == nil || g.closed.Load() {
		return false
	}
	return g.registry.Shift(ctx, id, delta)
}

// Contains reports whether id is live.
func (g *Group) Contains(id GeoId) bool {
	if g == nil || g.closed.Load() {
		return false
	}
	return g.registry.Contains(id)
}

// Tick runs one round of periodic re-delivery: effects always, native
// shapes when RefreshNative is enabled. It must be called on the executor
// context.
func (g *Group) Tick(ctx context.Context, tick uint64) {
	g.tickEffects(ctx, tick)
	g.refreshNative(ctx, tick)
}

func (g *Group) tickEffects(ctx context.Context, tick uint64) {
	if g == nil || g.closed.Load() {
		return
	}
	g.particles.Tick(ctx, tick)
}

func (g *Group) refreshNative(ctx context.Context, tick uint64) {
	if g == nil || g.closed.Load() {
		return
	}
	cfg := g.config.Load()
	if !cfg.DebugDraw.RefreshNative {
		return
	}
	g.registry.Refresh(ctx, tick, cfg.Particle.TablePerTick)
}

// Attach registers the group's periodic work with loop. Effect refresh is
// required every tick; native refresh is advisory and yields to an
// overrunning loop.
func (g *Group) Attach(loop *sim.Loop) (detach func()) {
	removeEffects := loop.AddTicker(sim.TickerFunc(g.tickEffects), false)
	removeNative := loop.AddTicker(sim.TickerFunc(g.refreshNative), true)
	return func() {
		removeEffects()
		removeNative()
	}
}

// Stats summarises live state.
type Stats struct {
	Handles int `json:"handles"`
	Cells   int `json:"cells"`
	Effects int `json:"effects"`
}

// Stats reports live handle, cell and effect counts.
func (g *Group) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	rs := g.registry.Stats()
	return Stats{Handles: rs.Handles, Cells: rs.Cells, Effects: g.particles.Len()}
}

// Close detaches from the host and retracts every live handle. It is safe
// to call more than once.
func (g *Group) Close(ctx context.Context) {
	if g == nil {
		return
	}
	g.closeOnce.Do(func() {
		g.lifeMu.Lock()
		g.closed.Store(true)
		g.lifeMu.Unlock()
		if g.unregister != nil {
			g.unregister()
		}
		n := g.registry.Clear(ctx)
		g.particles.Clear()
		g.logger.Printf("geometry group closed, retracted %d handles", n)
	})
}

// trackEffect records an effect handle in the registry so it can take part
// in merge and remove.
func (g *Group) trackEffect(id ids.GeoId) ids.GeoId {
	if id.Valid() {
		g.registry.AddEffect(id)
	}
	return id
}

// combine folds the valid parts of a composite shape into one handle.
func (g *Group) combine(ctx context.Context, parts []ids.GeoId) ids.GeoId {
	valid := parts[:0]
	for _, id := range parts {
		if id.Valid() {
			valid = append(valid, id)
		}
	}
	switch len(valid) {
	case 0:
		return ids.Invalid
	case 1:
		return valid[0]
	}
	return g.registry.Merge(ctx, valid)
}
