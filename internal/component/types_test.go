package component

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/mmo-game/internal/vec"
)

func TestSegmentIntersectsAdjacent(t *testing.T) {
	a := Segment{YMin: 0, YMax: 4}
	b := Segment{YMin: 5, YMax: 9}
	c := Segment{YMin: 6, YMax: 9}

	assert.True(t, a.Intersects(b), "touching runs must be considered mergeable")
	assert.False(t, a.Intersects(c))
}

func TestSegmentVoxelCountAndContains(t *testing.T) {
	s := Segment{YMin: 3, YMax: 7}
	assert.Equal(t, 5, s.VoxelCount())
	assert.True(t, s.Contains(3))
	assert.True(t, s.Contains(7))
	assert.False(t, s.Contains(8))
}

func TestAABBEncapsulateGrowsBox(t *testing.T) {
	b := AABB{Min: vec.Vec3{X: 1, Y: 1, Z: 1}, Max: vec.Vec3{X: 1, Y: 1, Z: 1}}
	b.Encapsulate(vec.Vec3{X: -2, Y: 5, Z: 1})
	assert.Equal(t, vec.Vec3{X: -2, Y: 1, Z: 1}, b.Min)
	assert.Equal(t, vec.Vec3{X: 1, Y: 5, Z: 1}, b.Max)
}

func TestAABBIntersectsTouching(t *testing.T) {
	a := AABB{Min: vec.Vec3{X: 0, Y: 0, Z: 0}, Max: vec.Vec3{X: 2, Y: 2, Z: 2}}
	touching := AABB{Min: vec.Vec3{X: 3, Y: 0, Z: 0}, Max: vec.Vec3{X: 4, Y: 2, Z: 2}}
	apart := AABB{Min: vec.Vec3{X: 5, Y: 0, Z: 0}, Max: vec.Vec3{X: 6, Y: 2, Z: 2}}

	assert.True(t, a.Intersects(touching))
	assert.False(t, a.Intersects(apart))
}

func TestAABBContains(t *testing.T) {
	b := AABB{Min: vec.Vec3{X: 0, Y: 0, Z: 0}, Max: vec.Vec3{X: 4, Y: 4, Z: 4}}
	assert.True(t, b.Contains(vec.Vec3{X: 2, Y: 2, Z: 2}))
	assert.False(t, b.Contains(vec.Vec3{X: 5, Y: 2, Z: 2}))
}

func TestNewComponentSeedsSingleVoxel(t *testing.T) {
	seed := vec.Vec3{X: 10, Y: 20, Z: 30}
	c := newComponent(1, seed, 5)

	assert.Equal(t, 1, c.Count)
	assert.Equal(t, 20, c.WaterLevel)
	assert.False(t, c.Settled)
	assert.True(t, c.containsVoxel(seed))
	assert.False(t, c.containsVoxel(vec.Vec3{X: 10, Y: 21, Z: 30}))
}

func TestComponentDecreaseSettleZeroViscosityIsFastest(t *testing.T) {
	c := newComponent(1, vec.Vec3{}, 0)
	c.SettleCounter = 10
	c.decreaseSettle()
	assert.True(t, c.Settled)
	assert.Equal(t, uint16(0), c.SettleCounter)
}

func TestComponentDecreaseSettleDrainsByViscosity(t *testing.T) {
	c := newComponent(1, vec.Vec3{}, 10)
	c.SettleCounter = 25
	c.decreaseSettle()
	assert.False(t, c.Settled)
	assert.Equal(t, uint16(15), c.SettleCounter)
}

func TestComponentRecountAfterSegmentTruncation(t *testing.T) {
	c := newComponent(1, vec.Vec3{X: 0, Y: 0, Z: 0}, 5)
	row := RowKey{X: 0, Z: 0}
	c.Segments[row] = []Segment{{YMin: 0, YMax: 3}}
	c.recount()
	assert.Equal(t, 4, c.Count)
}

func TestComponentRecomputeBoundsFromSegments(t *testing.T) {
	c := newComponent(1, vec.Vec3{X: 0, Y: 0, Z: 0}, 5)
	c.Segments = map[RowKey][]Segment{
		{X: 0, Z: 0}: {{YMin: 0, YMax: 2}},
		{X: 3, Z: 3}: {{YMin: 1, YMax: 1}},
	}
	c.recomputeBounds()
	assert.Equal(t, vec.Vec3{X: 0, Y: 0, Z: 0}, c.Bounds.Min)
	assert.Equal(t, vec.Vec3{X: 3, Y: 2, Z: 3}, c.Bounds.Max)
}

func TestComponentToUpdateRequiresLifetimeAndSize(t *testing.T) {
	c := newComponent(1, vec.Vec3{}, 5)
	c.Settled = false
	assert.False(t, c.toUpdate(), "too young to be eligible")

	c.Lifetime = MinComponentLifetime + 0.1
	assert.False(t, c.toUpdate(), "below MinComponentSize")

	c.Count = MinComponentSize
	assert.True(t, c.toUpdate())
}

func TestComponentToRemove(t *testing.T) {
	c := newComponent(1, vec.Vec3{}, 5)
	c.Lifetime = MinComponentLifetime + 0.1
	c.Count = 1

	assert.True(t, c.toRemove(), "below MinComponentSize and not rebuilding")

	c.Rebuilding = true
	assert.False(t, c.toRemove(), "a rebuilding component is never removed for being small")

	c.Rebuilding = false
	c.Segments = map[RowKey][]Segment{}
	assert.True(t, c.toRemove(), "no segments left at all")
}
