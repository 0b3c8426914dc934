// Package engine wires the grid, block scheduler, component manager,
// and pending-writes queue behind the minimal external façade the rest
// of the application drives the fluid simulation through (spec §6).
package engine

import "github.com/annel0/mmo-game/internal/fluiderr"

// FluidType names one registered fluid: its viscosity byte and a
// human label for logs/config.
type FluidType struct {
	Viscosity uint8
	Label     string
}

// Config is the engine's "init" parameters (§6).
type Config struct {
	BlocksX, BlocksY, BlocksZ int
	ChunkSide                 int // K
	BlockSide                 int // M
	VoxelSizeMeters           float32
	FluidTypes                []FluidType
	Workers                   int // scheduler worker pool size, 0 = NumCPU
}

func (c Config) validate() error {
	if c.BlocksX <= 0 || c.BlocksY <= 0 || c.BlocksZ <= 0 {
		return fluiderr.New(fluiderr.InvalidConfig, "engine.Config", nil)
	}
	if c.VoxelSizeMeters <= 0 {
		return fluiderr.New(fluiderr.InvalidConfig, "engine.Config", nil)
	}
	return nil
}

// ViscosityFor resolves a fluid label to its registered viscosity.
func (c Config) ViscosityFor(label string) (uint8, error) {
	for _, ft := range c.FluidTypes {
		if ft.Label == label {
			return ft.Viscosity, nil
		}
	}
	return 0, fluiderr.New(fluiderr.InvalidConfig, "engine.ViscosityFor", nil)
}
