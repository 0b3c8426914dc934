package component

import (
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

// equalize is the two-pass volume-preserving surface leveling run when
// a component's outlet spread is large enough and its fluid is not
// lava-class (§4.6.1.d). Give pass raises below-average outlets toward
// the mean and banks the volume added; Take pass withdraws that banked
// volume from above-average outlets, so total fluid is conserved to
// within rounding.
func (m *Manager) equalize(c *Component, outlets map[vec.Vec3]struct{}) {
	if len(outlets) == 0 {
		return
	}
	type outletState struct {
		pos   vec.Vec3
		level int
		fluid uint8
	}
	states := make([]outletState, 0, len(outlets))
	sum := 0
	for pos := range outlets {
		v, _, _, _, ok := m.worldVoxel(pos)
		if !ok {
			continue
		}
		states = append(states, outletState{pos: pos, level: pos.Y, fluid: v.Fluid})
		sum += pos.Y
	}
	if len(states) == 0 {
		return
	}
	avg := float64(sum) / float64(len(states))

	var balance float64
	newFluid := make(map[vec.Vec3]uint8, len(states))

	// Give pass: outlets below the average level move fluid toward the
	// mean, and any positive delta is banked for the take pass.
	for _, s := range states {
		if float64(s.level) >= avg {
			continue
		}
		target := clampF(avg-(float64(s.level)-float64(s.fluid)), 0, float64(voxel.Vmax))
		diff := target - float64(s.fluid)
		if diff >= 0 {
			balance += diff
			newFluid[s.pos] = uint8(target)
		}
	}

	// Take pass: mirror above the average, withdrawing from the banked
	// balance until it is depleted.
	for _, s := range states {
		if float64(s.level) < avg || balance <= 0 {
			continue
		}
		target := clampF(avg-(float64(s.level)-float64(s.fluid)), 0, float64(voxel.Vmax))
		diff := float64(s.fluid) - target
		if diff < 0 {
			continue
		}
		if diff > balance {
			diff = balance
		}
		balance -= diff
		newFluid[s.pos] = uint8(float64(s.fluid) - diff)
	}

	for pos, f := range newFluid {
		v, blk, chunkID, voxelID, ok := m.worldVoxel(pos)
		if !ok {
			continue
		}
		if v.Fluid == f {
			continue
		}
		v.Fluid = f
		if f == 0 {
			bottom := vec.Vec3{X: pos.X, Y: pos.Y - 1, Z: pos.Z}
			if bv, bblk, bChunk, bVoxel, ok := m.worldVoxel(bottom); ok && bv.Settled {
				delete(outlets, pos)
				outlets[bottom] = struct{}{}
				bv.Unsettle(int32(c.Viscosity) + 1)
				m.writeVoxel(bblk, bChunk, bVoxel, bv)
			}
		}
		v.Unsettle(int32(c.Viscosity) + 1)
		m.writeVoxel(blk, chunkID, voxelID, v)
	}
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
