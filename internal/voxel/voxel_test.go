package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleDustElimination(t *testing.T) {
	v := Voxel{Fluid: Epsilon, Settled: false}
	v.Settle()
	assert.Equal(t, uint8(0), v.Fluid, "fluid at or below the dust threshold with no overflow must be eliminated")
	assert.Equal(t, NoViscosity, v.Viscosity)
	assert.True(t, v.Settled)
}

func TestSettleClampsToFreeVolume(t *testing.T) {
	v := Voxel{Solid: 100, Fluid: 60, Viscosity: 10}
	v.Settle()
	assert.Equal(t, Vmax-100, v.Fluid)
}

func TestSettlePreservesFluidAboveDustThreshold(t *testing.T) {
	v := Voxel{Fluid: Epsilon + 1, Viscosity: 5}
	v.Settle()
	assert.Equal(t, Epsilon+1, v.Fluid)
	assert.Equal(t, uint8(5), v.Viscosity)
}

func TestUnsettleSaturates(t *testing.T) {
	v := Voxel{SettleCounter: 65530, Settled: true}
	v.Unsettle(100)
	assert.Equal(t, uint16(65535), v.SettleCounter)
	assert.False(t, v.Settled)
}

func TestUnsettleNegativeDeltaTakesAbsoluteValue(t *testing.T) {
	v := Voxel{}
	v.Unsettle(-5)
	assert.Equal(t, uint16(5), v.SettleCounter)
}

func TestDecreaseSettleAirSettlesImmediately(t *testing.T) {
	v := Voxel{SettleCounter: 40}
	v.DecreaseSettle()
	require.True(t, v.Settled)
	assert.Equal(t, uint16(0), v.SettleCounter)
}

func TestDecreaseSettleDrainsByViscosity(t *testing.T) {
	v := Voxel{Fluid: 50, Viscosity: 10, SettleCounter: 25}
	v.DecreaseSettle()
	assert.False(t, v.Settled)
	assert.Equal(t, uint16(15), v.SettleCounter)
}

func TestDecreaseSettleZeroViscosityIsFastest(t *testing.T) {
	v := Voxel{Fluid: 50, Viscosity: 0, SettleCounter: 10}
	v.DecreaseSettle()
	assert.True(t, v.Settled)
}

func TestHasCompatibleViscosity(t *testing.T) {
	water := Voxel{Valid: true, Viscosity: 5}
	lava := Voxel{Valid: true, Viscosity: 200}
	air := Voxel{Valid: true, Viscosity: NoViscosity}
	invalid := Voxel{Valid: false}

	assert.True(t, water.HasCompatibleViscosity(air))
	assert.True(t, air.HasCompatibleViscosity(lava))
	assert.False(t, water.HasCompatibleViscosity(lava))
	assert.False(t, water.HasCompatibleViscosity(invalid))
}

func TestIsFullAndVolumeHelpers(t *testing.T) {
	v := Voxel{Solid: 100, Fluid: 27}
	assert.True(t, v.IsFull())
	assert.Equal(t, 0, v.FreeVolume())
	assert.Equal(t, 0, v.ExcessVolume())

	overflow := Voxel{Solid: 100, Fluid: 40}
	assert.Equal(t, 13, overflow.ExcessVolume())
}

func TestInvalidVoxelReadsSettled(t *testing.T) {
	inv := Invalid()
	assert.True(t, inv.Settled)
	assert.False(t, inv.Valid)
	assert.False(t, inv.HasFluid())
}

func TestIsSettledTerrain(t *testing.T) {
	terrain := Voxel{Solid: Vmax, Settled: true}
	assert.True(t, terrain.IsSettledTerrain())

	wetTerrain := Voxel{Solid: Vmax, Fluid: 1, Settled: true}
	assert.False(t, wetTerrain.IsSettledTerrain())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := Voxel{Solid: 42, Fluid: 17, Viscosity: 9, SettleCounter: 4200, Settled: true, Valid: true}
	buf := make([]byte, EncodedSize)
	v.Encode(buf)
	got := Decode(buf)
	assert.Equal(t, v, got)
}
