package proto

import "github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"

// Effect identifiers understood by the client resource pack. The blend
// variants render with alpha blending.
const (
	EffectLine       = "bsci:line"
	EffectBlendLine  = "bsci:blend_line"
	EffectPoint      = "bsci:point"
	EffectBlendPoint = "bsci:blend_point"
)

// Effect variable names.
const (
	VarSize      = "variable.bsci_particle_size"
	VarTint      = "variable.bsci_particle_tint"
	VarDirection = "variable.bsci_particle_direction"
	VarLifetime  = "variable.bsci_particle_lifetime"
)

// LineEffect picks the line effect for a colour.
func LineEffect(c geo.Color) string {
	if c.Opaque() {
		return EffectLine
	}
	return EffectBlendLine
}

// PointEffect picks the point effect for a colour.
func PointEffect(c geo.Color) string {
	if c.Opaque() {
		return EffectPoint
	}
	return EffectBlendPoint
}

// EffectMessage is a fire-and-forget particle invocation. The client expires
// it after its lifetime variable elapses.
type EffectMessage struct {
	Name      string               `json:"name"`
	Location  geo.Vec3             `json:"location"`
	Dimension geo.Dimension        `json:"dimension"`
	Variables map[string][]float32 `json:"variables"`
}

// Clone copies the variable map.
func (m EffectMessage) Clone() EffectMessage {
	out := m
	if m.Variables != nil {
		out.Variables = make(map[string][]float32, len(m.Variables))
		for k, v := range m.Variables {
			out.Variables[k] = append([]float32(nil), v...)
		}
	}
	return out
}

// Translate moves the effect anchor.
func (m *EffectMessage) Translate(delta geo.Vec3) {
	m.Location = m.Location.Add(delta)
}

// Float returns the first component of a scalar variable.
func (m EffectMessage) Float(name string) (float32, bool) {
	v, ok := m.Variables[name]
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}
