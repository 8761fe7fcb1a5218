// Package ids allocates GeoIds from two disjoint ranges.
//
// Effect-backed handles count up from 1; native message handles count down
// from the top of the range. A message handle doubles as the network id the
// client uses to replace or retract that shape.
package ids

import (
	"math"
	"strconv"
	"sync/atomic"
)

// GeoId is an opaque handle for drawn geometry. The zero value is invalid.
type GeoId uint64

// Invalid is returned whenever nothing was drawn.
const Invalid GeoId = 0

func (id GeoId) Valid() bool {
	return id != Invalid
}

func (id GeoId) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Allocator hands out handles. It is safe for concurrent use and never
// reuses a value for the lifetime of the process.
type Allocator struct {
	effect  atomic.Uint64
	message atomic.Uint64
}

// NewAllocator returns an allocator with both counters at their origin.
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.message.Store(math.MaxUint64)
	return a
}

// NextEffect returns the next ascending handle, starting at 1.
func (a *Allocator) NextEffect() GeoId {
	return GeoId(a.effect.Add(1))
}

// NextMessage returns the next descending handle, starting at MaxUint64.
func (a *Allocator) NextMessage() GeoId {
	// Add(MaxUint64) is a wrapping decrement; the pre-decrement value is
	// the one handed out.
	return GeoId(a.message.Add(math.MaxUint64) + 1)
}
