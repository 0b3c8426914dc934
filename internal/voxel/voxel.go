// Package voxel implements the atomic cell of the simulation: solid
// and fluid mass, a viscosity tag, and the settle/unsettle rules that
// drive the cellular automaton (spec §3.1, §4.2).
package voxel

import "math"

const (
	// Vmax is the per-voxel volume ceiling. Transient values up to 255
	// are allowed between kernel writes; Settle re-clamps to Vmax.
	Vmax uint8 = 127

	// NeighbourCount is the number of face neighbours of a voxel
	// (±X, ±Y, ±Z, with Y = up).
	NeighbourCount = 6

	// Epsilon is the dust threshold: fluid at or below this level, with
	// no overflow, is eliminated by Settle.
	Epsilon uint8 = NeighbourCount - 1

	// NoViscosity marks "no fluid type".
	NoViscosity uint8 = 0
)

// Voxel is the smallest addressable simulation cell.
type Voxel struct {
	Solid         uint8
	Fluid         uint8
	Viscosity     uint8
	SettleCounter uint16
	Settled       bool
	// Valid is false for the sentinel cell returned when a neighbour
	// resolves outside the grid (border/no-block edge). An invalid
	// voxel behaves like a wall: zero-filled, never compatible.
	Valid bool
}

// Invalid returns the sentinel "no such cell" voxel used at grid edges
// and outside the border frame. It reads as settled so that a real
// voxel walled in by grid edges is correctly judged to be at rest
// (edges behave like static walls, never like still-active neighbours).
func Invalid() Voxel {
	return Voxel{Settled: true}
}

// CurrentVolume is solid+fluid as a plain int sum, not clamped: during
// transient overflow it can exceed 255.
func (v Voxel) CurrentVolume() int {
	return int(v.Solid) + int(v.Fluid)
}

// ExcessVolume is how far current volume exceeds Vmax, or zero.
func (v Voxel) ExcessVolume() int {
	if cv := v.CurrentVolume(); cv > int(Vmax) {
		return cv - int(Vmax)
	}
	return 0
}

// FreeVolume is how much room is left up to Vmax, or zero.
func (v Voxel) FreeVolume() int {
	if cv := v.CurrentVolume(); cv < int(Vmax) {
		return int(Vmax) - cv
	}
	return 0
}

// HasFluid reports whether the voxel currently carries any fluid.
func (v Voxel) HasFluid() bool { return v.Fluid > 0 }

// IsFull reports whether the voxel has no free volume left, i.e. it is
// packed solid+fluid up to (or past) Vmax. Used by the component
// tracker to decide support and outlet eligibility.
func (v Voxel) IsFull() bool { return v.CurrentVolume() >= int(Vmax) }

// IsSettledTerrain reports the terminal terrain case the kernel skips
// outright: fully solid, no fluid, settled.
func (v Voxel) IsSettledTerrain() bool {
	return v.Settled && v.Solid == Vmax && v.Fluid == 0
}

// HasCompatibleViscosity reports whether fluid may flow between v and
// other: true iff other is a real cell and either side carries no
// fluid type or both carry the same one.
func (v Voxel) HasCompatibleViscosity(other Voxel) bool {
	if !other.Valid {
		return false
	}
	return v.Viscosity == NoViscosity || other.Viscosity == NoViscosity || v.Viscosity == other.Viscosity
}

func clampU8(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

func clampU8Vmax(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > int(Vmax) {
		return Vmax
	}
	return uint8(x)
}

// Unsettle saturating-adds |delta| into the settle counter (clamped to
// u16 max) and clears Settled. A zero delta is a no-op on the counter
// but still clears Settled — callers only call this when something
// actually changed.
func (v *Voxel) Unsettle(delta int32) {
	if delta < 0 {
		delta = -delta
	}
	sum := int64(v.SettleCounter) + int64(delta)
	if sum > math.MaxUint16 {
		sum = math.MaxUint16
	}
	v.SettleCounter = uint16(sum)
	v.Settled = false
}

// DecreaseSettle integrates "no activity observed" evidence: pure air
// or an already-exhausted counter settles immediately; otherwise the
// counter drains by the voxel's viscosity (0 treated as the fastest
// possible rate, u8::MAX) each call, saturating at zero and calling
// Settle once it bottoms out.
func (v *Voxel) DecreaseSettle() {
	isAir := v.Solid == 0 && v.Fluid == 0
	if v.SettleCounter == 0 || isAir {
		v.Settle()
		return
	}
	rate := v.Viscosity
	if rate == 0 {
		rate = math.MaxUint8
	}
	if uint16(rate) >= v.SettleCounter {
		v.SettleCounter = 0
	} else {
		v.SettleCounter -= uint16(rate)
	}
	if v.SettleCounter == 0 {
		v.Settle()
	}
}

// Settle normalizes the voxel to its at-rest invariants: dust
// elimination, clamp fluid to Vmax-solid, zero the counter, mark
// settled.
func (v *Voxel) Settle() {
	if v.Fluid <= Epsilon && v.ExcessVolume() == 0 {
		v.Fluid = 0
		v.Viscosity = NoViscosity
	}
	maxFluid := int(Vmax) - int(v.Solid)
	if maxFluid < 0 {
		maxFluid = 0
	}
	if int(v.Fluid) > maxFluid {
		v.Fluid = uint8(maxFluid)
	}
	if v.Fluid == 0 {
		v.Viscosity = NoViscosity
	}
	v.SettleCounter = 0
	v.Settled = true
}
