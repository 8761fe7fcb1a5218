// Package config holds every tunable of the annotation server.
package config

import "strings"

// ParticleConfig tunes the effect backend and the tessellator.
type ParticleConfig struct {
	MaxCircleSegments  int     `json:"maxCircleSegments" toml:"max_circle_segments" yaml:"max_circle_segments"`
	MinCircleSpacing   float32 `json:"minCircleSpacing" toml:"min_circle_spacing" yaml:"min_circle_spacing"`
	MaxSphereCells     int     `json:"maxSphereCells" toml:"max_sphere_cells" yaml:"max_sphere_cells"`
	MinSphereSpacing   float32 `json:"minSphereSpacing" toml:"min_sphere_spacing" yaml:"min_sphere_spacing"`
	ExtraTime          float32 `json:"extraTime" toml:"extra_time" yaml:"extra_time"`
	TablePerTick       int     `json:"tablePerTick" toml:"table_per_tick" yaml:"table_per_tick"`
	DefaultThickness   float32 `json:"defaultThickness" toml:"default_thickness" yaml:"default_thickness"`
	DefaultPointRadius float32 `json:"defaultPointRadius" toml:"default_point_radius" yaml:"default_point_radius"`
	// DelayUpdate skips the immediate send of new or moved effects; they
	// appear on the next periodic re-delivery instead.
	DelayUpdate bool `json:"delayUpdate" toml:"delay_update" yaml:"delay_update"`
}

// DebugDrawConfig chooses between native shape messages and tessellated
// effects.
type DebugDrawConfig struct {
	UseNativeLine   bool `json:"useNativeLine" toml:"use_native_line" yaml:"use_native_line"`
	UseNativeBox    bool `json:"useNativeBox" toml:"use_native_box" yaml:"use_native_box"`
	UseNativeCircle bool `json:"useNativeCircle" toml:"use_native_circle" yaml:"use_native_circle"`
	UseNativeSphere bool `json:"useNativeSphere" toml:"use_native_sphere" yaml:"use_native_sphere"`
	UseNativeArrow  bool `json:"useNativeArrow" toml:"use_native_arrow" yaml:"use_native_arrow"`
	// Zero leaves the segment count to the client.
	SphereSegments uint8 `json:"sphereSegments" toml:"sphere_segments" yaml:"sphere_segments"`
	ArrowSegments  uint8 `json:"arrowSegments" toml:"arrow_segments" yaml:"arrow_segments"`
	// RefreshNative periodically re-sends native shapes as well as effects.
	RefreshNative bool `json:"refreshNative" toml:"refresh_native" yaml:"refresh_native"`
	// DisplayRadius bounds the span of a single native message.
	DisplayRadius float32 `json:"displayRadius" toml:"display_radius" yaml:"display_radius"`
}

// ServerConfig tunes the reference host.
type ServerConfig struct {
	Addr         string `json:"addr" toml:"addr" yaml:"addr"`
	TickRate     int    `json:"tickRate" toml:"tick_rate" yaml:"tick_rate"`
	ViewDistance int    `json:"viewDistance" toml:"view_distance" yaml:"view_distance"`
	RedisAddr    string `json:"redisAddr" toml:"redis_addr" yaml:"redis_addr"`
	RedisChannel string `json:"redisChannel" toml:"redis_channel" yaml:"redis_channel"`
}

// LoggingConfig selects event sinks.
type LoggingConfig struct {
	MinimumSeverity string   `json:"minimumSeverity" toml:"minimum_severity" yaml:"minimum_severity"`
	Sinks           []string `json:"sinks" toml:"sinks" yaml:"sinks"`
	JSONPath        string   `json:"jsonPath" toml:"json_path" yaml:"json_path"`
	// Categories maps an event category to its own minimum severity.
	Categories map[string]string `json:"categories,omitempty" toml:"categories,omitempty" yaml:"categories,omitempty"`
}

// Config is the full configuration file.
type Config struct {
	Version   int             `json:"version" toml:"version" yaml:"version"`
	Particle  ParticleConfig  `json:"particle" toml:"particle" yaml:"particle"`
	DebugDraw DebugDrawConfig `json:"debugDraw" toml:"debug_draw" yaml:"debug_draw"`
	Server    ServerConfig    `json:"server" toml:"server" yaml:"server"`
	Logging   LoggingConfig   `json:"logging" toml:"logging" yaml:"logging"`
}

// CurrentVersion is written into freshly generated files.
const CurrentVersion = 1

// Default returns the shipped configuration.
func Default() Config {
	return Config{
		Version: CurrentVersion,
		Particle: ParticleConfig{
			MaxCircleSegments:  128,
			MinCircleSpacing:   0.6,
			MaxSphereCells:     10,
			MinSphereSpacing:   0.6,
			ExtraTime:          0.05,
			TablePerTick:       2,
			DefaultThickness:   0.09,
			DefaultPointRadius: 0.3,
		},
		DebugDraw: DebugDrawConfig{
			UseNativeLine:   true,
			UseNativeBox:    true,
			UseNativeCircle: true,
			UseNativeSphere: true,
			UseNativeArrow:  true,
			RefreshNative:   true,
			DisplayRadius:   48,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			TickRate:     20,
			ViewDistance: 4,
			RedisChannel: "bsci",
		},
		Logging: LoggingConfig{
			MinimumSeverity: "info",
			Sinks:           []string{"console"},
		},
	}
}

// Normalized returns a copy with out-of-range values replaced by defaults.
func (c Config) Normalized() Config {
	def := Default()
	out := c
	if out.Version == 0 {
		out.Version = CurrentVersion
	}

	p := &out.Particle
	if p.MaxCircleSegments < 7 {
		p.MaxCircleSegments = def.Particle.MaxCircleSegments
	}
	if p.MinCircleSpacing <= 0 {
		p.MinCircleSpacing = def.Particle.MinCircleSpacing
	}
	if p.MaxSphereCells < 2 {
		p.MaxSphereCells = def.Particle.MaxSphereCells
	}
	if p.MinSphereSpacing <= 0 {
		p.MinSphereSpacing = def.Particle.MinSphereSpacing
	}
	if p.ExtraTime < 0 {
		p.ExtraTime = def.Particle.ExtraTime
	}
	p.TablePerTick = normalizeTablePerTick(p.TablePerTick)
	if p.DefaultThickness <= 0 {
		p.DefaultThickness = def.Particle.DefaultThickness
	}
	if p.DefaultPointRadius <= 0 {
		p.DefaultPointRadius = def.Particle.DefaultPointRadius
	}

	if out.DebugDraw.DisplayRadius <= 0 {
		out.DebugDraw.DisplayRadius = def.DebugDraw.DisplayRadius
	}

	s := &out.Server
	s.Addr = strings.TrimSpace(s.Addr)
	if s.Addr == "" {
		s.Addr = def.Server.Addr
	}
	if s.TickRate <= 0 {
		s.TickRate = def.Server.TickRate
	}
	if s.ViewDistance < 0 {
		s.ViewDistance = def.Server.ViewDistance
	}
	if strings.TrimSpace(s.RedisChannel) == "" {
		s.RedisChannel = def.Server.RedisChannel
	}

	if strings.TrimSpace(out.Logging.MinimumSeverity) == "" {
		out.Logging.MinimumSeverity = def.Logging.MinimumSeverity
	}
	if len(out.Logging.Sinks) == 0 {
		out.Logging.Sinks = append([]string(nil), def.Logging.Sinks...)
	}
	return out
}

// normalizeTablePerTick rounds n down to a divisor of 64 so the refresh
// rotation covers every shard exactly once.
func normalizeTablePerTick(n int) int {
	if n <= 0 {
		return 2
	}
	if n >= 64 {
		return 64
	}
	d := 1
	for d*2 <= n {
		d *= 2
	}
	return d
}

// LifetimeSeconds is how long an effect stays visible on the client. It
// covers one full refresh rotation plus ExtraTime.
func (c Config) LifetimeSeconds() float32 {
	per := normalizeTablePerTick(c.Particle.TablePerTick)
	rate := c.Server.TickRate
	if rate <= 0 {
		rate = Default().Server.TickRate
	}
	rotation := (64.0 / float64(rate)) / float64(per)
	return c.Particle.ExtraTime + float32(rotation)
}
