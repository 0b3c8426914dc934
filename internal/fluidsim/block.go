package fluidsim

import (
	"fmt"
	"sync"

	"github.com/annel0/mmo-game/internal/fluiderr"
	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

// VoxelRef is a globally-stable (block,chunk,voxel) index triple. Both
// the block sim data and the component manager address voxels this
// way instead of holding pointers into a buffer that gets swapped out
// from under them (design notes §9).
type VoxelRef struct {
	Block int
	Chunk int
	Voxel int
}

// Block owns a contiguous double-buffered voxel array and is the unit
// of simulation parallelism: one task per (block, step) per tick
// (spec §3.3, §4.3).
type Block struct {
	ID     int
	Coord  vec.Vec3
	Chunks []Chunk

	bufs    [2][]voxel.Voxel
	readIdx int // which of bufs[] is currently "read"; flipped under the tick barrier, never read concurrently with a flip

	mu              sync.Mutex
	UnsettledChunks map[int]struct{} // incoming dirty set, mutated concurrently (§5)
	lastPlan        map[int]struct{} // previous tick's ChunksToSimulate, for settle-diffing

	ChunksToSimulate []int // frozen plan for the current tick
	ChunksToUnsettle []int // built by the kernel this tick
	unsettleSeen     map[int]struct{}
	VoxelsToProcess  []VoxelRef // settled-fluid voxels produced this tick, for the component manager
	SettledChunks    []int      // chunks that stopped being unsettled since last tick (mesh-refresh candidates)

	Neighbours     [6]*Block       // nil = no block at this edge (treated as a wall)
	neighbourViews [6][]voxel.Voxel // rebound each step by the scheduler
	Active         bool             // true while this block still has work
}

// allocateVoxels makes a buffer of size n, converting an allocation
// panic (out of memory) into a ResourceExhausted error instead of
// crashing the process.
func allocateVoxels(n int) (buf []voxel.Voxel, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fluiderr.New(fluiderr.ResourceExhausted, "fluidsim.allocateVoxels", fmt.Errorf("%v", r))
		}
	}()
	return make([]voxel.Voxel, n), nil
}

// NewBlock allocates a block's double buffer and per-block chunk
// bookkeeping for the given grid.
func NewBlock(id int, coord vec.Vec3, g *grid.Grid) (*Block, error) {
	bufA, err := allocateVoxels(g.BlockVox)
	if err != nil {
		return nil, err
	}
	bufB, err := allocateVoxels(g.BlockVox)
	if err != nil {
		return nil, err
	}
	b := &Block{
		ID:              id,
		Coord:           coord,
		Chunks:          make([]Chunk, g.BlockChunk),
		bufs:            [2][]voxel.Voxel{bufA, bufB},
		UnsettledChunks: make(map[int]struct{}),
		lastPlan:        make(map[int]struct{}),
		unsettleSeen:    make(map[int]struct{}),
	}
	for c := 0; c < g.BlockChunk; c++ {
		b.Chunks[c] = Chunk{ID: c, BlockID: id}
	}
	return b, nil
}

// ReadBuffer is the buffer readers (this tick's kernel step, or a
// neighbour block resolving a cross-block read) see. Stable during a
// step; only changes at a barrier-protected swap.
func (b *Block) ReadBuffer() []voxel.Voxel { return b.bufs[b.readIdx] }

// WriteBuffer is the buffer only this block's own step task mutates.
func (b *Block) WriteBuffer() []voxel.Voxel { return b.bufs[1-b.readIdx] }

// SwapBuffers flips which buffer is "read" so the next step observes
// what this step just wrote. Called by the scheduler under the
// per-step barrier — never concurrently with a reader.
func (b *Block) SwapBuffers() { b.readIdx = 1 - b.readIdx }

// SetNeighbourView rebinds the read-only view of a neighbour block for
// the upcoming step: whichever buffer that neighbour will be reading
// this step (or its static buffer, if it has no active job).
func (b *Block) SetNeighbourView(dir int, view []voxel.Voxel) {
	b.neighbourViews[dir] = view
}

// NeighbourVoxel resolves the voxel one step across a block boundary
// in direction dir, using the currently-bound neighbour view. Returns
// an invalid sentinel voxel if there is no neighbour block there.
func (b *Block) NeighbourVoxel(dir int, chunkID, voxelID int, g *grid.Grid) voxel.Voxel {
	view := b.neighbourViews[dir]
	if view == nil {
		return voxel.Invalid()
	}
	idx := g.VoxelIndexInBlock(chunkID, voxelID)
	if idx < 0 || idx >= len(view) {
		return voxel.Invalid()
	}
	return view[idx]
}

// Unsettle idempotently adds chunkID to the incoming dirty set. Safe
// to call concurrently with the block's own maintenance pass (§5).
func (b *Block) Unsettle(chunkID int) {
	b.mu.Lock()
	b.UnsettledChunks[chunkID] = struct{}{}
	b.mu.Unlock()
}

// HasWork reports whether the block has any unsettled chunk pending.
func (b *Block) HasWork() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.UnsettledChunks) > 0
}

// Plan freezes the current incoming dirty set into ChunksToSimulate
// for this tick, clears the incoming set, and computes SettledChunks:
// chunks that were being simulated last tick but did not reappear in
// the new incoming set, i.e. just came to rest (spec §4.3 step 1).
func (b *Block) Plan() {
	b.mu.Lock()
	newPlan := make(map[int]struct{}, len(b.UnsettledChunks))
	planList := make([]int, 0, len(b.UnsettledChunks))
	for id := range b.UnsettledChunks {
		newPlan[id] = struct{}{}
		planList = append(planList, id)
	}
	b.UnsettledChunks = make(map[int]struct{})
	b.mu.Unlock()

	settled := make([]int, 0)
	for id := range b.lastPlan {
		if _, still := newPlan[id]; !still {
			settled = append(settled, id)
		}
	}

	b.ChunksToSimulate = planList
	b.SettledChunks = settled
	b.lastPlan = newPlan
	b.ChunksToUnsettle = b.ChunksToUnsettle[:0]
	b.unsettleSeen = make(map[int]struct{})
	b.VoxelsToProcess = b.VoxelsToProcess[:0]
}

// MarkChunkUnsettled records that a chunk produced at least one
// non-settled write this tick, once per chunk.
func (b *Block) MarkChunkUnsettled(chunkID int) {
	if _, seen := b.unsettleSeen[chunkID]; seen {
		return
	}
	b.unsettleSeen[chunkID] = struct{}{}
	b.ChunksToUnsettle = append(b.ChunksToUnsettle, chunkID)
}

// ApplyMaintenance folds this tick's ChunksToUnsettle into the
// incoming dirty set (so they get re-simulated next tick).
func (b *Block) ApplyMaintenance() {
	b.mu.Lock()
	for _, id := range b.ChunksToUnsettle {
		b.UnsettledChunks[id] = struct{}{}
	}
	b.mu.Unlock()
}
