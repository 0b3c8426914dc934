package fluidsim

import (
	"math"

	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/voxel"
)

// Step names one of the three passes the scheduler runs, in order,
// over every unsettled chunk each tick (spec §4.4).
type Step int

const (
	StepUp Step = iota
	StepDown
	StepSideways
)

// RunStep is the simulation kernel: it reads b's current read buffer
// (and neighbour blocks' bound views) and writes b's write buffer,
// appending to ChunksToUnsettle/VoxelsToProcess as voxels change.
func RunStep(g *grid.Grid, b *Block, step Step) {
	read := b.ReadBuffer()
	write := b.WriteBuffer()
	copy(write, read)

	for _, chunkID := range b.ChunksToSimulate {
		runChunk(g, b, chunkID, step, read, write)
	}
}

func runChunk(g *grid.Grid, b *Block, chunkID int, step Step, read, write []voxel.Voxel) {
	for voxelID := 0; voxelID < g.ChunkVox; voxelID++ {
		idx := g.VoxelIndexInBlock(chunkID, voxelID)
		self := read[idx]
		if self.IsSettledTerrain() {
			continue
		}

		var neighbours [6]voxel.Voxel
		for _, d := range grid.All {
			res := g.Neighbour(chunkID, voxelID, d)
			if res.CrossedBlock {
				neighbours[d] = b.NeighbourVoxel(int(d), res.Chunk, res.Voxel, g)
			} else {
				neighbours[d] = read[g.VoxelIndexInBlock(res.Chunk, res.Voxel)]
			}
		}

		if self.Settled {
			allSettled := true
			for _, d := range grid.All {
				if !neighbours[d].Settled {
					allSettled = false
					break
				}
			}
			if allSettled {
				continue
			}
		}

		var transfer float64
		var newViscosity uint8
		switch step {
		case StepUp:
			transfer, newViscosity = stepUp(self, neighbours[grid.Up], neighbours[grid.Down])
		case StepDown:
			transfer, newViscosity = stepDown(self, neighbours[grid.Up], neighbours[grid.Down])
		case StepSideways:
			transfer, newViscosity = stepSideways(self, neighbours)
		}

		wv := self
		delta := roundToInt(transfer)
		newFluid := clampInt(int(self.Fluid)+delta, 0, 255)
		diff := newFluid - int(self.Fluid)
		wv.Fluid = uint8(newFluid)
		if !wv.HasFluid() {
			wv.Viscosity = voxel.NoViscosity
		} else if delta != 0 {
			// Only adopt the step's reported viscosity when fluid actually
			// moved: an air neighbour with no fluid of its own reports
			// NoViscosity even on a zero-transfer step, which would
			// otherwise stomp self's real viscosity while its fluid is
			// untouched.
			wv.Viscosity = newViscosity
		}

		if diff != 0 {
			wv.Unsettle(int32(diff))
		} else if step == StepSideways {
			falling := neighbours[grid.Up].HasFluid() && !neighbours[grid.Down].Settled
			if !wv.Settled && !falling {
				wv.DecreaseSettle()
				if wv.Settled && wv.HasFluid() {
					b.VoxelsToProcess = append(b.VoxelsToProcess, VoxelRef{Block: b.ID, Chunk: chunkID, Voxel: voxelID})
				}
			}
		}

		write[idx] = wv
		if !wv.Settled {
			b.MarkChunkUnsettled(chunkID)
		}
	}
}

// stepUp pushes excess volume up into the neighbour above and pulls
// the excess volume of the neighbour below up into this voxel.
func stepUp(self, top, bottom voxel.Voxel) (transfer float64, newViscosity uint8) {
	if !self.HasCompatibleViscosity(bottom) {
		return 0, self.Viscosity
	}
	pull := float64(bottom.ExcessVolume())
	var push float64
	if self.HasCompatibleViscosity(top) {
		push = float64(self.ExcessVolume())
	}
	return pull - push, bottom.Viscosity
}

// stepDown is gravity: give as much as fits below, take as much as
// fits from above.
func stepDown(self, top, bottom voxel.Voxel) (transfer float64, newViscosity uint8) {
	if !self.HasCompatibleViscosity(top) {
		return 0, self.Viscosity
	}
	var out float64
	if self.HasCompatibleViscosity(bottom) {
		out = math.Min(float64(self.Fluid), float64(bottom.FreeVolume()))
	}
	in := math.Min(float64(top.Fluid), float64(self.FreeVolume()))
	return in - out, top.Viscosity
}

// stepSideways levels fluid across the four horizontal neighbours,
// scaling each pairwise exchange by viscosity and snapping tiny
// nonzero exchanges to +-1 so low-viscosity fluids keep making
// forward progress.
func stepSideways(self voxel.Voxel, neighbours [6]voxel.Voxel) (transfer float64, newViscosity uint8) {
	const share = 1.0 / float64(voxel.NeighbourCount-1)
	total := 0.0
	arriving := uint8(0)

	for _, d := range []grid.Dir{grid.Forward, grid.Backward, grid.Right, grid.Left} {
		nb := neighbours[d]
		if !self.HasCompatibleViscosity(nb) {
			continue
		}
		diff := (float64(self.CurrentVolume()) - float64(nb.CurrentVolume())) * share
		out := clampF(diff, 0, float64(self.Fluid)*share)
		in := clampF(-diff, 0, float64(nb.Fluid)*share)
		net := in - out

		rate := self.Viscosity
		if rate == 0 {
			rate = nb.Viscosity
		}
		scale := float64(rate) / 255.0
		scaled := net * scale
		if scaled != 0 && math.Abs(scaled) < scale {
			if scaled > 0 {
				scaled = 1
			} else {
				scaled = -1
			}
		}
		if in > 0 && nb.Viscosity != 0 {
			arriving = nb.Viscosity
		}
		total += scaled
	}

	newViscosity = self.Viscosity
	if newViscosity == 0 && arriving != 0 {
		newViscosity = arriving
	}
	return total, newViscosity
}

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func roundToInt(x float64) int {
	if x >= 0 {
		return int(math.Floor(x + 0.5))
	}
	return -int(math.Floor(-x + 0.5))
}
