// Package component tracks connected regions of settled fluid ("fluid
// components"): compact per-row segment storage, outlet bookkeeping,
// and the two-pass volume-preserving equalization that gives water its
// flat free surface while deliberately leaving lava staircased (spec
// §3.4, §4.6).
//
// Axis convention: components address voxels by their horizontal
// (X,Z) row and run segments along Y, the vertical/gravity axis —
// consistent with the kernel's Y = up.
package component

import (
	"github.com/annel0/mmo-game/internal/vec"
)

const (
	// MinComponentSize is the minimum voxel count for a settled region
	// to become (or remain) a tracked component.
	MinComponentSize = 15

	// MinComponentLifetime is how long a component must exist before it
	// becomes eligible for per-tick updates or removal.
	MinComponentLifetime = 0.5 // seconds

	// MaxViscosityNotEqualize marks the lava/water boundary: components
	// at or below this viscosity keep their staircase and are never
	// equalized.
	MaxViscosityNotEqualize uint8 = 20
)

// RowKey addresses one (X,Z) column a component has segments in.
type RowKey struct {
	X, Z int
}

// Segment is one maximal run of settled fluid voxels along Y within a
// row, [YMin, YMax] inclusive.
type Segment struct {
	YMin, YMax int
}

// VoxelCount is the number of voxels the segment spans.
func (s Segment) VoxelCount() int { return s.YMax - s.YMin + 1 }

// Contains reports whether y falls within the segment.
func (s Segment) Contains(y int) bool { return y >= s.YMin && y <= s.YMax }

// Intersects reports whether two segments touch or overlap — touching
// runs are considered mergeable, matching the "disjoint and
// non-adjacent" invariant on stored segments.
func (s Segment) Intersects(o Segment) bool {
	return s.YMin <= o.YMax+1 && o.YMin <= s.YMax+1
}

// AABB is an inclusive axis-aligned bounding box in world voxel space.
type AABB struct {
	Min, Max vec.Vec3
}

// Encapsulate grows the box to include p. The box must already hold at
// least one point (every constructor below seeds Min/Max together) —
// it does not special-case an empty box.
func (b *AABB) Encapsulate(p vec.Vec3) {
	if p.X < b.Min.X {
		b.Min.X = p.X
	}
	if p.Y < b.Min.Y {
		b.Min.Y = p.Y
	}
	if p.Z < b.Min.Z {
		b.Min.Z = p.Z
	}
	if p.X > b.Max.X {
		b.Max.X = p.X
	}
	if p.Y > b.Max.Y {
		b.Max.Y = p.Y
	}
	if p.Z > b.Max.Z {
		b.Max.Z = p.Z
	}
}

// Intersects reports whether two boxes overlap or touch.
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X <= o.Max.X+1 && o.Min.X <= b.Max.X+1 &&
		b.Min.Y <= o.Max.Y+1 && o.Min.Y <= b.Max.Y+1 &&
		b.Min.Z <= o.Max.Z+1 && o.Min.Z <= b.Max.Z+1
}

// Contains reports whether p falls within the box.
func (b AABB) Contains(p vec.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Component is a connected region of settled, same-viscosity fluid
// voxels (spec §3.4).
type Component struct {
	ID        int
	Viscosity uint8

	Segments map[RowKey][]Segment
	Outlets  map[vec.Vec3]struct{}
	Bounds   AABB

	Count        int
	WaterLevel   int
	Lifetime     float64
	SettleCounter uint16
	Settled      bool
	ToRebuild    bool
	Rebuilding   bool
}

// newComponent seeds a component with a single voxel.
func newComponent(id int, seed vec.Vec3, viscosity uint8) *Component {
	c := &Component{
		ID:        id,
		Viscosity: viscosity,
		Segments:  make(map[RowKey][]Segment),
		Outlets:   make(map[vec.Vec3]struct{}),
		Count:     1,
		WaterLevel: seed.Y,
	}
	key := RowKey{X: seed.X, Z: seed.Z}
	c.Segments[key] = []Segment{{YMin: seed.Y, YMax: seed.Y}}
	c.Bounds = AABB{Min: seed, Max: seed}
	c.unsettle(uint16(viscosity) + 1)
	return c
}

// unsettle saturating-adds delta into the settle counter and clears
// Settled, mirroring voxel.Voxel.Unsettle at the component granularity.
func (c *Component) unsettle(delta uint16) {
	sum := uint32(c.SettleCounter) + uint32(delta)
	if sum > 0xFFFF {
		sum = 0xFFFF
	}
	c.SettleCounter = uint16(sum)
	c.Settled = false
}

// decreaseSettle subtracts viscosity (or 255 when viscosity is 0, the
// fastest possible rate) from the counter, saturating at zero. Once
// zero, the component is marked settled, rebuilding clears, and the
// bounds are recomputed exactly from the current segment set.
func (c *Component) decreaseSettle() {
	if c.SettleCounter == 0 {
		c.finishSettling()
		return
	}
	rate := uint16(c.Viscosity)
	if rate == 0 {
		rate = 255
	}
	if rate >= c.SettleCounter {
		c.SettleCounter = 0
	} else {
		c.SettleCounter -= rate
	}
	if c.SettleCounter == 0 {
		c.finishSettling()
	}
}

func (c *Component) finishSettling() {
	c.Settled = true
	c.Rebuilding = false
	c.recomputeBounds()
}

func (c *Component) recomputeBounds() {
	var b AABB
	first := true
	for row, segs := range c.Segments {
		for _, s := range segs {
			lo := vec.Vec3{X: row.X, Y: s.YMin, Z: row.Z}
			hi := vec.Vec3{X: row.X, Y: s.YMax, Z: row.Z}
			if first {
				b = AABB{Min: lo, Max: hi}
				first = false
				continue
			}
			b.Encapsulate(lo)
			b.Encapsulate(hi)
		}
	}
	if !first {
		c.Bounds = b
	}
}

// recount recomputes Count from the segment map after a structural
// edit (truncation, merge, seed cleanup).
func (c *Component) recount() {
	n := 0
	for _, segs := range c.Segments {
		for _, s := range segs {
			n += s.VoxelCount()
		}
	}
	c.Count = n
}

// containsVoxel reports whether p is claimed by this component.
func (c *Component) containsVoxel(p vec.Vec3) bool {
	if !c.Bounds.Contains(p) {
		return false
	}
	for _, s := range c.Segments[RowKey{X: p.X, Z: p.Z}] {
		if s.Contains(p.Y) {
			return true
		}
	}
	return false
}

// toUpdate reports the per-tick update eligibility test (§4.6.1).
func (c *Component) toUpdate() bool {
	return !c.Settled && c.Lifetime > MinComponentLifetime && c.Count >= MinComponentSize
}

// toRemove reports the removal test (§4.6.1 maintenance bullet).
func (c *Component) toRemove() bool {
	if c.Lifetime <= MinComponentLifetime {
		return false
	}
	if len(c.Segments) == 0 {
		return true
	}
	return !c.Rebuilding && c.Count < MinComponentSize
}
