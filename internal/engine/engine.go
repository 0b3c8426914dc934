package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/annel0/mmo-game/internal/component"
	"github.com/annel0/mmo-game/internal/eventbus"
	"github.com/annel0/mmo-game/internal/fluiderr"
	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/storage"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

var tracer = otel.Tracer("fluidsim.engine")

// dirDelta mirrors grid's face-direction convention (Y up) at block
// granularity, for wiring neighbour block pointers at Init.
var dirDelta = [6][3]int{
	{0, 1, 0},  // Up
	{0, -1, 0}, // Down
	{0, 0, 1},  // Forward
	{0, 0, -1}, // Backward
	{1, 0, 0},  // Right
	{-1, 0, 0}, // Left
}

// Engine is the fluid simulation façade (spec §6): it owns the grid,
// every block, the step-barrier scheduler, the component manager, and
// the queue of external edits awaiting the next tick's drain.
type Engine struct {
	cfg    Config
	grid   *grid.Grid
	blocks []*fluidsim.Block

	scheduler *fluidsim.Scheduler
	manager   *component.Manager
	pending   *fluidsim.PendingWrites

	busy atomic.Bool
	wg   sync.WaitGroup

	metrics *metrics
}

// New allocates blocks/chunks/voxels, wires neighbour pointers, and
// starts the scheduler's worker pool (the "init" operation, §6).
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g, err := grid.New(cfg.BlocksX, cfg.BlocksY, cfg.BlocksZ, cfg.ChunkSide, cfg.BlockSide)
	if err != nil {
		return nil, err
	}

	blocks := make([]*fluidsim.Block, g.BlockCount())
	for bz := 0; bz < cfg.BlocksZ; bz++ {
		for by := 0; by < cfg.BlocksY; by++ {
			for bx := 0; bx < cfg.BlocksX; bx++ {
				id := g.BlockIndex(bx, by, bz)
				blk, err := fluidsim.NewBlock(id, vec.Vec3{X: bx, Y: by, Z: bz}, g)
				if err != nil {
					return nil, err
				}
				blocks[id] = blk
			}
		}
	}
	for _, blk := range blocks {
		bx, by, bz := blk.Coord.X, blk.Coord.Y, blk.Coord.Z
		for dir := 0; dir < 6; dir++ {
			d := dirDelta[dir]
			nid := g.BlockIndex(bx+d[0], by+d[1], bz+d[2])
			if nid >= 0 {
				blk.Neighbours[dir] = blocks[nid]
			}
		}
	}

	e := &Engine{
		cfg:       cfg,
		grid:      g,
		blocks:    blocks,
		scheduler: fluidsim.NewScheduler(g, blocks, cfg.Workers),
		manager:   component.NewManager(g, blocks),
		pending:   fluidsim.NewPendingWrites(),
		metrics:   newMetrics(),
	}
	return e, nil
}

// GetVoxel is a read-only snapshot, safe between ticks. Positions
// outside the addressable grid but within the one-voxel sentinel
// border return the documented zero-filled, invalid voxel rather than
// an error (spec §7).
func (e *Engine) GetVoxel(pos vec.Vec3) voxel.Voxel {
	blockID, chunkID, voxelID, ok := e.grid.WorldToLocal(pos)
	if !ok {
		return voxel.Invalid()
	}
	idx := e.grid.VoxelIndexInBlock(chunkID, voxelID)
	return e.blocks[blockID].ReadBuffer()[idx]
}

// GetVoxelByIndices is the API-level indexed read: an out-of-range
// index triple is an error, not a documented invalid voxel.
func (e *Engine) GetVoxelByIndices(blockID, chunkID, voxelID int) (voxel.Voxel, error) {
	if blockID < 0 || blockID >= len(e.blocks) {
		return voxel.Voxel{}, fluiderr.New(fluiderr.OutOfBounds, "engine.GetVoxelByIndices", nil)
	}
	if chunkID < 0 || chunkID >= e.cfg.BlockSide*e.cfg.BlockSide*e.cfg.BlockSide {
		return voxel.Voxel{}, fluiderr.New(fluiderr.OutOfBounds, "engine.GetVoxelByIndices", nil)
	}
	if voxelID < 0 || voxelID >= e.cfg.ChunkSide*e.cfg.ChunkSide*e.cfg.ChunkSide {
		return voxel.Voxel{}, fluiderr.New(fluiderr.OutOfBounds, "engine.GetVoxelByIndices", nil)
	}
	idx := e.grid.VoxelIndexInBlock(chunkID, voxelID)
	return e.blocks[blockID].ReadBuffer()[idx], nil
}

// ModifyFluid queues an edit that adds a source of fluid of the given
// type, or removes whatever fluid is there, applied on the next
// pre-tick drain (spec §6).
func (e *Engine) ModifyFluid(pos vec.Vec3, add bool, fluidLabel string) error {
	var viscosity uint8
	if add {
		v, err := e.cfg.ViscosityFor(fluidLabel)
		if err != nil {
			return err
		}
		viscosity = v
	}
	ref, err := e.refFor(pos)
	if err != nil {
		return err
	}
	e.pending.Queue(ref, fluidsim.Edit{Kind: fluidsim.EditFluid, Add: add, Viscosity: viscosity})
	return nil
}

// ModifyTerrain queues a solid add/remove edit. add=false is
// equivalent to RemoveTerrain, kept as a symmetric counterpart to
// ModifyFluid's add/remove pairing.
func (e *Engine) ModifyTerrain(pos vec.Vec3, add bool) error {
	ref, err := e.refFor(pos)
	if err != nil {
		return err
	}
	e.pending.Queue(ref, fluidsim.Edit{Kind: fluidsim.EditTerrain, Add: add})
	return nil
}

// RemoveTerrain queues full removal of solid at pos.
func (e *Engine) RemoveTerrain(pos vec.Vec3) error {
	return e.ModifyTerrain(pos, false)
}

func (e *Engine) refFor(pos vec.Vec3) (fluidsim.VoxelRef, error) {
	blockID, chunkID, voxelID, ok := e.grid.WorldToLocal(pos)
	if !ok {
		return fluidsim.VoxelRef{}, fluiderr.New(fluiderr.OutOfBounds, "engine.refFor", nil)
	}
	return fluidsim.VoxelRef{Block: blockID, Chunk: chunkID, Voxel: voxelID}, nil
}

// UnsettleChunk idempotently marks a chunk dirty, applied immediately
// (not queued — safe to call concurrently, §4.3, §6).
func (e *Engine) UnsettleChunk(blockID, chunkID int) error {
	if blockID < 0 || blockID >= len(e.blocks) {
		return fluiderr.New(fluiderr.OutOfBounds, "engine.UnsettleChunk", nil)
	}
	e.blocks[blockID].Unsettle(chunkID)
	return nil
}

// Tick drives §4.5. If the previous tick's jobs have not yet drained,
// it returns immediately — the caller is never blocked.
func (e *Engine) Tick(dt float64) {
	if !e.busy.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.busy.Store(false)
		e.runTick(dt)
	}()
}

// WaitUntilQuiescent is the only blocking call in the façade: it
// drains any tick in flight. Callers use it before external writes
// they need reflected deterministically, and before teardown.
func (e *Engine) WaitUntilQuiescent() {
	e.wg.Wait()
}

func (e *Engine) runTick(dt float64) {
	ctx, span := tracer.Start(context.Background(), "fluidsim.tick")
	defer span.End()
	start := time.Now()
	defer func() {
		e.metrics.tickDuration.Observe(time.Since(start).Seconds())
	}()

	if e.scheduler.ResourceExhausted() {
		logging.LogWarn("fluidsim: tick skipped, host memory pressure above threshold")
		return
	}

	e.applyPending(ctx)
	e.publishSettledMeshes(ctx)

	active := e.scheduler.ActiveBlocks()
	e.metrics.activeBlocks.Set(float64(len(active)))
	e.scheduler.RunTickSteps(active)

	settled := 0
	for _, blk := range active {
		e.manager.EnqueueSettled(blk.VoxelsToProcess)
		settled += len(blk.VoxelsToProcess)
	}
	e.metrics.voxelsProcessed.Add(float64(settled))

	e.manager.RunTick(dt)
	components, intake := e.manager.Stats()
	e.metrics.activeComponents.Set(float64(components))
	e.metrics.settleQueueDepth.Set(float64(intake))
}

// applyPending drains the queued external writes into their blocks'
// authoritative read buffers ahead of scheduling (§4.5 step 2).
func (e *Engine) applyPending(_ context.Context) {
	edits := e.pending.Drain()
	for ref, edit := range edits {
		fluidsim.Apply(e.grid, e.blocks[ref.Block], ref.Chunk, ref.Voxel, edit)
	}
}

// publishSettledMeshes announces the chunks that came to rest during
// the previous tick, read here before this tick's Plan() overwrites
// SettledChunks with the next diff (§4.3 step 1, §4.5).
func (e *Engine) publishSettledMeshes(ctx context.Context) {
	for _, blk := range e.blocks {
		for _, chunkID := range blk.SettledChunks {
			ev := &eventbus.Envelope{
				ID:        uuid.NewString(),
				Timestamp: time.Now(),
				Source:    "fluidsim.engine",
				EventType: "chunk.settled",
				Version:   1,
				Priority:  1,
				Payload:   []byte(fmt.Sprintf(`{"block":%d,"chunk":%d}`, blk.ID, chunkID)),
			}
			_ = eventbus.Publish(ctx, ev)
		}
	}
}

// AttachComponentCache wires an optional front cache in front of the
// component manager's lookup path (SPEC_FULL.md §2, backed by Redis in
// production, entirely optional — nil-safe throughout).
func (e *Engine) AttachComponentCache(qc *component.QueryCache) {
	e.manager.AttachCache(qc)
}

// Checkpoint persists every block's current read buffer to store. It
// takes no simulation lock: callers wanting a consistent snapshot
// should call WaitUntilQuiescent first.
func (e *Engine) Checkpoint(store *storage.WorldStorage) error {
	for _, blk := range e.blocks {
		if err := store.SaveBlock(blk); err != nil {
			return err
		}
	}
	return nil
}

// ArchiveSnapshot writes every block's current read buffer to a cold
// MongoDB archive under checkpointID, in addition to (not instead of)
// the authoritative BadgerDB store Checkpoint writes to. Intended to be
// called right alongside Checkpoint on the same cadence, when a
// SnapshotArchive is configured.
func (e *Engine) ArchiveSnapshot(archive *storage.SnapshotArchive, checkpointID string) error {
	return archive.Archive(checkpointID, e.blocks)
}

// Restore loads every block's persisted snapshot from store, if
// present, back into its read buffer. Intended to run once at startup,
// before the scheduler's worker pool has any tick in flight.
func (e *Engine) Restore(store *storage.WorldStorage) error {
	for _, blk := range e.blocks {
		if err := store.RestoreBlock(blk); err != nil {
			return err
		}
	}
	return nil
}

// Component looks up the fluid component owning pos, if any.
func (e *Engine) Component(pos vec.Vec3) (*component.Component, bool) {
	return e.manager.GetComponent(pos)
}
