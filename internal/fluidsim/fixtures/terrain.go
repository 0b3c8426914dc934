// Package fixtures builds small, reproducible worlds for scenario
// tests: a heightmap-based terrain fill plus helpers to drop a fluid
// source onto it, in place of hand-writing every voxel a scenario
// needs.
package fixtures

import (
	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/util"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

// HeightmapTerrain fills every voxel of blk from a Perlin heightmap:
// solid, settled ground up to the sampled height, valid air above.
// amplitude and baseHeight are in voxel units.
func HeightmapTerrain(g *grid.Grid, blk *fluidsim.Block, seed int64, baseHeight int, amplitude float64) {
	util.InitPerlinNoise(seed)

	read := blk.ReadBuffer()
	write := blk.WriteBuffer()
	for chunkID := 0; chunkID < g.BlockChunk; chunkID++ {
		for voxelID := 0; voxelID < g.ChunkVox; voxelID++ {
			pos := g.LocalToWorld(blk.ID, chunkID, voxelID)
			idx := g.VoxelIndexInBlock(chunkID, voxelID)

			h := baseHeight + int(util.PerlinNoise2D(float64(pos.X), float64(pos.Z), seed)*amplitude)
			var v voxel.Voxel
			if pos.Y <= h {
				v = voxel.Voxel{Solid: voxel.Vmax, Settled: true, Valid: true}
			} else {
				v = voxel.Voxel{Valid: true}
			}
			read[idx] = v
			write[idx] = v
		}
	}
}

// FloodSource sets one column of the world to a source of fluid at the
// given viscosity, unsettled so the scheduler picks it up on the next
// plan. depth is how many voxels tall the column is, measured down
// from topY inclusive.
func FloodSource(g *grid.Grid, blk *fluidsim.Block, x, topY, z, depth int, viscosity uint8) {
	read := blk.ReadBuffer()
	write := blk.WriteBuffer()
	for y := topY - depth + 1; y <= topY; y++ {
		blockID, chunkID, voxelID, ok := g.WorldToLocal(vec.Vec3{X: x, Y: y, Z: z})
		if !ok || blockID != blk.ID {
			continue
		}
		idx := g.VoxelIndexInBlock(chunkID, voxelID)
		v := voxel.Voxel{Fluid: voxel.Vmax, Viscosity: viscosity, Valid: true}
		read[idx] = v
		write[idx] = v
		blk.Unsettle(chunkID)
	}
}
