package fluidsim

import (
	"sync"

	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/voxel"
)

// EditKind names one of the external write operations the façade
// queues for the next tick's pre-tick drain (spec §5, §6).
type EditKind int

const (
	EditFluid EditKind = iota
	EditTerrain
)

// Edit is a single queued external write, keyed by the voxel it
// targets. Later writes to the same voxel overwrite earlier ones —
// last-write-wins, applied once per tick.
type Edit struct {
	Kind      EditKind
	Add       bool
	Viscosity uint8 // fluid type to place, EditFluid+Add only
}

// PendingWrites is the queued-edit map external callers write into and
// the engine drains once per tick, ahead of scheduling. It never
// blocks a writer on the simulation.
type PendingWrites struct {
	mu      sync.Mutex
	pending map[VoxelRef]Edit
}

// NewPendingWrites returns an empty queue.
func NewPendingWrites() *PendingWrites {
	return &PendingWrites{pending: make(map[VoxelRef]Edit)}
}

// Queue records (or overwrites) the edit for a voxel.
func (p *PendingWrites) Queue(ref VoxelRef, e Edit) {
	p.mu.Lock()
	p.pending[ref] = e
	p.mu.Unlock()
}

// Drain atomically hands off and clears the queue for the caller to
// apply.
func (p *PendingWrites) Drain() map[VoxelRef]Edit {
	p.mu.Lock()
	taken := p.pending
	p.pending = make(map[VoxelRef]Edit)
	p.mu.Unlock()
	return taken
}

// Apply merges one edit into a block's read buffer (the authoritative
// state between ticks) and unsettles the owning chunk so the kernel
// re-examines it next tick.
func Apply(g *grid.Grid, b *Block, chunkID, voxelID int, e Edit) {
	read := b.ReadBuffer()
	idx := g.VoxelIndexInBlock(chunkID, voxelID)
	v := read[idx]
	switch e.Kind {
	case EditFluid:
		if e.Add {
			v.Fluid = voxel.Vmax
			v.Viscosity = e.Viscosity
		} else {
			v.Fluid = 0
			v.Viscosity = voxel.NoViscosity
		}
	case EditTerrain:
		if e.Add {
			v.Solid = voxel.Vmax
		} else {
			v.Solid = 0
		}
	}
	v.Unsettle(int32(voxel.Vmax))
	read[idx] = v
	b.MarkChunkUnsettled(chunkID)
	b.Unsettle(chunkID)
}
