package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

func newManagerFixture(t *testing.T) (*grid.Grid, *fluidsim.Block, *Manager) {
	t.Helper()
	g, err := grid.New(1, 1, 1, 8, 1)
	require.NoError(t, err)
	blk, err := fluidsim.NewBlock(0, vec.Vec3{}, g)
	require.NoError(t, err)
	m := NewManager(g, []*fluidsim.Block{blk})
	return g, blk, m
}

func setVoxel(t *testing.T, g *grid.Grid, blk *fluidsim.Block, pos vec.Vec3, v voxel.Voxel) {
	t.Helper()
	_, chunkID, voxelID, ok := g.WorldToLocal(pos)
	require.True(t, ok)
	idx := g.VoxelIndexInBlock(chunkID, voxelID)
	blk.ReadBuffer()[idx] = v
}

func refFor(t *testing.T, g *grid.Grid, pos vec.Vec3) fluidsim.VoxelRef {
	t.Helper()
	blockID, chunkID, voxelID, ok := g.WorldToLocal(pos)
	require.True(t, ok)
	return fluidsim.VoxelRef{Block: blockID, Chunk: chunkID, Voxel: voxelID}
}

// TestSeedNewComponentFromIntakeAboveThreshold checks that once the
// intake queue exceeds MinComponentSize, maintenance seeds exactly one
// new component from it and that component is then resolvable via
// GetComponent at its seed position.
func TestSeedNewComponentFromIntakeAboveThreshold(t *testing.T) {
	g, blk, m := newManagerFixture(t)

	var refs []fluidsim.VoxelRef
	for x := 0; x < 4; x++ {
		for z := 0; z < 5; z++ {
			pos := vec.Vec3{X: x, Y: 1, Z: z}
			setVoxel(t, g, blk, pos, voxel.Voxel{Fluid: 50, Viscosity: 5, Settled: true, Valid: true})
			refs = append(refs, refFor(t, g, pos))
		}
	}
	require.Greater(t, len(refs), MinComponentSize)

	m.EnqueueSettled(refs)
	m.maintenance()

	require.Len(t, m.components, 1)
	var c *Component
	for _, comp := range m.components {
		c = comp
	}
	found, ok := m.GetComponent(c.Bounds.Min)
	assert.True(t, ok)
	assert.Equal(t, c.ID, found.ID)
}

// TestManagerStatsReportsIntakeDepth exercises the observability
// accessor without needing a full tick.
func TestManagerStatsReportsIntakeDepth(t *testing.T) {
	g, _, m := newManagerFixture(t)
	m.EnqueueSettled([]fluidsim.VoxelRef{refFor(t, g, vec.Vec3{X: 1, Y: 1, Z: 1})})

	components, intake := m.Stats()
	assert.Equal(t, 0, components)
	assert.Equal(t, 1, intake)
}

// TestGetComponentIsNilCacheSafe confirms an unattached manager (no
// QueryCache) doesn't panic when resolving a lookup — the cache path
// must be nil-safe throughout.
func TestGetComponentIsNilCacheSafe(t *testing.T) {
	_, _, m := newManagerFixture(t)
	assert.NotPanics(t, func() {
		_, ok := m.GetComponent(vec.Vec3{X: 0, Y: 0, Z: 0})
		assert.False(t, ok)
	})
}
