package voxel

// EncodedSize is the persisted byte width of one voxel: solid, fluid,
// viscosity, settle_counter (u16), flags (u8) — spec §6.
const EncodedSize = 6

const (
	flagSettled = 1 << 0
	flagValid   = 1 << 1
)

// Encode writes the persisted 6-byte layout for v into dst[:6].
func (v Voxel) Encode(dst []byte) {
	_ = dst[EncodedSize-1] // bounds check hint
	dst[0] = v.Solid
	dst[1] = v.Fluid
	dst[2] = v.Viscosity
	dst[3] = byte(v.SettleCounter)
	dst[4] = byte(v.SettleCounter >> 8)
	var flags byte
	if v.Settled {
		flags |= flagSettled
	}
	if v.Valid {
		flags |= flagValid
	}
	dst[5] = flags
}

// Decode reads the persisted 6-byte layout from src[:6].
func Decode(src []byte) Voxel {
	_ = src[EncodedSize-1]
	flags := src[5]
	return Voxel{
		Solid:         src[0],
		Fluid:         src[1],
		Viscosity:     src[2],
		SettleCounter: uint16(src[3]) | uint16(src[4])<<8,
		Settled:       flags&flagSettled != 0,
		Valid:         flags&flagValid != 0,
	}
}
