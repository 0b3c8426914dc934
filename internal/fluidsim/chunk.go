package fluidsim

import "github.com/annel0/mmo-game/internal/vec"

// Chunk is bookkeeping only — voxel storage lives in the owning
// block's packed array (spec §3.2). A chunk is unsettled iff its id is
// present in its block's UnsettledChunks set.
type Chunk struct {
	ID       int
	BlockID  int
	WorldPos vec.Vec3 // world-space origin of the chunk, cached at Init
}
