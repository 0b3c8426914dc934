package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

// TestTryAddToExistingComponentClaimsRowNeighbour exercises the second
// (row-adjacent) pass of tryAddToExistingComponent: a candidate voxel in
// a different row that touches an existing component's segment in a
// neighbouring row gets folded in rather than left for seeding.
func TestTryAddToExistingComponentClaimsRowNeighbour(t *testing.T) {
	g, blk, m := newManagerFixture(t)

	seedPos := vec.Vec3{X: 2, Y: 1, Z: 2}
	c := newComponent(1, seedPos, 5)
	m.components[c.ID] = c
	m.nextID = c.ID + 1

	candidatePos := vec.Vec3{X: 3, Y: 1, Z: 2}
	setVoxel(t, g, blk, candidatePos, voxel.Voxel{Fluid: 40, Viscosity: 5, Settled: true, Valid: true})

	claimed := m.tryAddToExistingComponent(refFor(t, g, candidatePos))
	require.True(t, claimed)

	row := RowKey{X: candidatePos.X, Z: candidatePos.Z}
	segs := c.Segments[row]
	require.Len(t, segs, 1)
	assert.True(t, segs[0].Contains(candidatePos.Y))

	found, ok := m.GetComponent(candidatePos)
	assert.True(t, ok)
	assert.Equal(t, c.ID, found.ID)
}

// TestTryAddToExistingComponentRejectsMismatchedViscosity checks that a
// candidate voxel of a different fluid type is never folded into an
// existing component even when spatially touching.
func TestTryAddToExistingComponentRejectsMismatchedViscosity(t *testing.T) {
	g, blk, m := newManagerFixture(t)

	seedPos := vec.Vec3{X: 2, Y: 1, Z: 2}
	c := newComponent(1, seedPos, 5) // lava-class (<= MaxViscosityNotEqualize)
	m.components[c.ID] = c
	m.nextID = c.ID + 1

	candidatePos := vec.Vec3{X: 3, Y: 1, Z: 2}
	setVoxel(t, g, blk, candidatePos, voxel.Voxel{Fluid: 40, Viscosity: 200, Settled: true, Valid: true}) // water-class

	claimed := m.tryAddToExistingComponent(refFor(t, g, candidatePos))
	assert.False(t, claimed)
	assert.Empty(t, c.Segments[RowKey{X: candidatePos.X, Z: candidatePos.Z}])
}

// TestTryAddToExistingComponentDropsStaleIntakeEntry checks the early
// return for a voxel that no longer qualifies (unsettled or dry) by the
// time maintenance gets to it — it must report true (drop, don't
// re-queue) without touching any component.
func TestTryAddToExistingComponentDropsStaleIntakeEntry(t *testing.T) {
	g, blk, m := newManagerFixture(t)
	pos := vec.Vec3{X: 1, Y: 1, Z: 1}
	setVoxel(t, g, blk, pos, voxel.Voxel{Fluid: 0, Settled: false, Valid: true})

	assert.True(t, m.tryAddToExistingComponent(refFor(t, g, pos)))
}

// TestMergeSegmentCombinesTouchingRuns checks the plain segment-folding
// helper used throughout the claim/merge paths.
func TestMergeSegmentCombinesTouchingRuns(t *testing.T) {
	segs := []Segment{{YMin: 0, YMax: 2}, {YMin: 10, YMax: 12}}
	out := mergeSegment(segs, Segment{YMin: 3, YMax: 4})

	require.Len(t, out, 2)
	var touched bool
	for _, s := range out {
		if s.YMin == 0 && s.YMax == 4 {
			touched = true
		}
	}
	assert.True(t, touched, "the [0,2] run should have absorbed the touching [3,4] segment")
}

// TestCheckMergeWithPeersLockedAbsorbsSmallerComponent checks that two
// touching same-viscosity components merge, with the larger absorbing
// the smaller.
func TestCheckMergeWithPeersLockedAbsorbsSmallerComponent(t *testing.T) {
	_, _, m := newManagerFixture(t)

	big := newComponent(1, vec.Vec3{X: 0, Y: 1, Z: 0}, 5)
	big.Segments[RowKey{X: 0, Z: 0}] = []Segment{{YMin: 1, YMax: 1}, {YMin: 2, YMax: 2}}
	big.recount()
	big.recomputeBounds()

	small := newComponent(2, vec.Vec3{X: 1, Y: 1, Z: 0}, 5)
	m.components[big.ID] = big
	m.components[small.ID] = small
	m.nextID = 3

	m.checkMergeWithPeersLocked(big)

	assert.Len(t, m.components, 1)
	survivor, ok := m.components[big.ID]
	require.True(t, ok)
	assert.Contains(t, survivor.Segments, RowKey{X: 1, Z: 0})
}

// TestCheckMergeWithPeersLockedRebuildingAlwaysWins checks the explicit
// carve-out: a rebuilding component absorbs a larger non-rebuilding
// peer, regardless of relative size.
func TestCheckMergeWithPeersLockedRebuildingAlwaysWins(t *testing.T) {
	_, _, m := newManagerFixture(t)

	small := newComponent(1, vec.Vec3{X: 0, Y: 1, Z: 0}, 5)
	small.Rebuilding = true

	big := newComponent(2, vec.Vec3{X: 1, Y: 1, Z: 0}, 5)
	big.Segments[RowKey{X: 1, Z: 0}] = []Segment{{YMin: 1, YMax: 1}, {YMin: 2, YMax: 2}, {YMin: 3, YMax: 3}}
	big.recount()
	big.recomputeBounds()

	m.components[small.ID] = small
	m.components[big.ID] = big
	m.nextID = 3

	m.checkMergeWithPeersLocked(small)

	require.Len(t, m.components, 1)
	survivor, ok := m.components[small.ID]
	require.True(t, ok)
	assert.True(t, survivor.Rebuilding)
}
