package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/vec"
)

// TestHeightmapTerrainProducesSettledGroundAndOpenAir exercises the
// reproducible-fixture generator scenario tests are built on top of.
func TestHeightmapTerrainProducesSettledGroundAndOpenAir(t *testing.T) {
	g, err := grid.New(1, 1, 1, 8, 1)
	require.NoError(t, err)
	blk, err := fluidsim.NewBlock(0, vec.Vec3{}, g)
	require.NoError(t, err)

	HeightmapTerrain(g, blk, 42, 2, 1.5)

	_, chunkID, voxelID, ok := g.WorldToLocal(vec.Vec3{X: 0, Y: 0, Z: 0})
	require.True(t, ok)
	ground := blk.ReadBuffer()[g.VoxelIndexInBlock(chunkID, voxelID)]
	assert.True(t, ground.IsSettledTerrain())

	_, chunkID, voxelID, ok = g.WorldToLocal(vec.Vec3{X: 0, Y: 7, Z: 0})
	require.True(t, ok)
	sky := blk.ReadBuffer()[g.VoxelIndexInBlock(chunkID, voxelID)]
	assert.False(t, sky.IsSettledTerrain())
	assert.True(t, sky.Valid)
}

// TestFloodSourceMarksColumnUnsettled checks that a dropped source
// column is written with fluid and its chunk is queued for the next
// tick's plan.
func TestFloodSourceMarksColumnUnsettled(t *testing.T) {
	g, err := grid.New(1, 1, 1, 8, 1)
	require.NoError(t, err)
	blk, err := fluidsim.NewBlock(0, vec.Vec3{}, g)
	require.NoError(t, err)
	HeightmapTerrain(g, blk, 1, 2, 0)

	FloodSource(g, blk, 4, 6, 4, 2, 20)

	_, chunkID, voxelID, ok := g.WorldToLocal(vec.Vec3{X: 4, Y: 6, Z: 4})
	require.True(t, ok)
	top := blk.ReadBuffer()[g.VoxelIndexInBlock(chunkID, voxelID)]
	assert.Equal(t, uint8(20), top.Viscosity)
	assert.True(t, top.HasFluid())
	assert.True(t, blk.HasWork())
}
