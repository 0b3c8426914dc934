package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

// TestEqualizeLevelsTwoOutletsTowardTheMean hand-computes the expected
// give/take result for two outlets straddling the mean surface height,
// matching equalize's exact arithmetic.
func TestEqualizeLevelsTwoOutletsTowardTheMean(t *testing.T) {
	g, blk, m := newManagerFixture(t)

	low := vec.Vec3{X: 0, Y: 3, Z: 0}
	high := vec.Vec3{X: 1, Y: 5, Z: 0}
	setVoxel(t, g, blk, low, voxel.Voxel{Fluid: 20, Viscosity: 5, Settled: true, Valid: true})
	setVoxel(t, g, blk, high, voxel.Voxel{Fluid: 100, Viscosity: 5, Settled: true, Valid: true})

	c := newComponent(1, low, 5)
	outlets := map[vec.Vec3]struct{}{low: {}, high: {}}

	m.equalize(c, outlets)

	lowOut, _, _, _, ok := m.worldVoxel(low)
	require.True(t, ok)
	highOut, _, _, _, ok := m.worldVoxel(high)
	require.True(t, ok)

	assert.Equal(t, uint8(21), lowOut.Fluid, "the below-average outlet should gain fluid toward the mean")
	assert.Equal(t, uint8(99), highOut.Fluid, "the above-average outlet should give up fluid toward the mean")
}

// TestEqualizeNoOpOnEmptyOutlets confirms the early return.
func TestEqualizeNoOpOnEmptyOutlets(t *testing.T) {
	_, _, m := newManagerFixture(t)
	c := newComponent(1, vec.Vec3{}, 5)
	assert.NotPanics(t, func() { m.equalize(c, map[vec.Vec3]struct{}{}) })
}

// TestEqualizeLeavesBalancedOutletsUntouched checks that when the give
// pass and take pass exactly cancel, fluid already at target is left
// alone (no spurious write, no infinite give with nothing to take).
func TestEqualizeLeavesBalancedOutletsUntouched(t *testing.T) {
	g, blk, m := newManagerFixture(t)

	a := vec.Vec3{X: 0, Y: 4, Z: 0}
	b := vec.Vec3{X: 1, Y: 4, Z: 0}
	setVoxel(t, g, blk, a, voxel.Voxel{Fluid: 50, Viscosity: 5, Settled: true, Valid: true})
	setVoxel(t, g, blk, b, voxel.Voxel{Fluid: 50, Viscosity: 5, Settled: true, Valid: true})

	c := newComponent(1, a, 5)
	outlets := map[vec.Vec3]struct{}{a: {}, b: {}}

	m.equalize(c, outlets)

	outA, _, _, _, _ := m.worldVoxel(a)
	outB, _, _, _, _ := m.worldVoxel(b)
	assert.Equal(t, uint8(50), outA.Fluid)
	assert.Equal(t, uint8(50), outB.Fluid)
}
