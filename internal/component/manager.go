package component

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/mmo-game/internal/eventbus"
	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

// MaxVoxelsPerIteration bounds how much of the intake set one
// maintenance pass drains, so a burst of newly-settled voxels cannot
// stall a tick (§4.6.1, sized to K^3 by convention).
const MaxVoxelsPerIteration = 512

// Manager tracks every fluid component in the world: assignment of
// newly-settled voxels, per-component surface equalization, and the
// merge/split/rebuild lifecycle (spec §3.4, §4.6).
type Manager struct {
	Grid   *grid.Grid
	Blocks []*fluidsim.Block

	mu         sync.Mutex
	intake     map[fluidsim.VoxelRef]struct{}
	components map[int]*Component
	nextID     int
	cache      *QueryCache
}

// NewManager returns an empty manager bound to the given grid/blocks.
func NewManager(g *grid.Grid, blocks []*fluidsim.Block) *Manager {
	return &Manager{
		Grid:       g,
		Blocks:     blocks,
		intake:     make(map[fluidsim.VoxelRef]struct{}),
		components: make(map[int]*Component),
	}
}

// EnqueueSettled is called by each block's maintenance task with the
// voxels it just settled to fluid this tick. Thread-safe.
func (m *Manager) EnqueueSettled(refs []fluidsim.VoxelRef) {
	if len(refs) == 0 {
		return
	}
	m.mu.Lock()
	for _, r := range refs {
		m.intake[r] = struct{}{}
	}
	m.mu.Unlock()
}

// GetComponent resolves the component owning the voxel at pos, if any:
// a coarse AABB test against every component followed by a segment
// lookup in the voxel's row (§4.6). The cache round-trip and the scan
// itself only ever hold mu long enough to touch the maps — never
// across a network call — so a slow or unreachable cache backend
// cannot stall EnqueueSettled's block-maintenance intake path.
func (m *Manager) GetComponent(pos vec.Vec3) (*Component, bool) {
	m.mu.Lock()
	qc := m.cache
	m.mu.Unlock()

	if id, ok := qc.lookupID(context.Background(), pos); ok {
		m.mu.Lock()
		c, known := m.components[id]
		m.mu.Unlock()
		if known && c.containsVoxel(pos) {
			return c, true
		}
	}

	m.mu.Lock()
	var found *Component
	for _, c := range m.components {
		if c.containsVoxel(pos) {
			found = c
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return nil, false
	}
	qc.store(context.Background(), pos, found.ID)
	return found, true
}

// MarkForRebuild schedules c for cleanup-and-reinit on the next
// maintenance pass.
func (m *Manager) MarkForRebuild(c *Component) {
	m.mu.Lock()
	c.ToRebuild = true
	m.mu.Unlock()
}

// Stats reports the current component count and intake queue depth,
// for observability.
func (m *Manager) Stats() (components, intake int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.components), len(m.intake)
}

func (m *Manager) worldVoxel(pos vec.Vec3) (v voxel.Voxel, blk *fluidsim.Block, chunkID, voxelID int, ok bool) {
	blockID, cID, vID, ok2 := m.Grid.WorldToLocal(pos)
	if !ok2 {
		return voxel.Voxel{}, nil, 0, 0, false
	}
	blk = m.Blocks[blockID]
	idx := m.Grid.VoxelIndexInBlock(cID, vID)
	return blk.ReadBuffer()[idx], blk, cID, vID, true
}

// writeVoxel commits an out-of-kernel edit (component bookkeeping)
// into a block's authoritative buffer and unsettles the owning chunk.
// It only ever calls the mutex-protected Unsettle — MarkChunkUnsettled
// is single-writer-per-tick kernel bookkeeping and must not be called
// from concurrent component-update goroutines sharing a block.
func (m *Manager) writeVoxel(blk *fluidsim.Block, chunkID, voxelID int, v voxel.Voxel) {
	idx := m.Grid.VoxelIndexInBlock(chunkID, voxelID)
	blk.ReadBuffer()[idx] = v
	blk.Unsettle(chunkID)
}

// RunTick runs one component-manager tick: a per-component update job
// for every eligible component (in parallel, barrier-joined), then a
// single maintenance job draining the intake set (spec §4.5, §4.6).
func (m *Manager) RunTick(dt float64) {
	m.mu.Lock()
	for _, c := range m.components {
		c.Lifetime += dt
	}
	eligible := make([]*Component, 0, len(m.components))
	for _, c := range m.components {
		if c.toUpdate() {
			eligible = append(eligible, c)
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(eligible))
	for _, c := range eligible {
		c := c
		go func() {
			defer wg.Done()
			m.updateComponent(c)
		}()
	}
	wg.Wait()

	m.maintenance()
}

// updateComponent is one component's per-tick job (§4.6.1): validate
// segments, refresh outlets and water level, equalize if warranted,
// then integrate the settle counter.
func (m *Manager) updateComponent(c *Component) {
	countBefore := c.Count
	m.validateSegments(c)
	outlets := m.collectOutlets(c)
	c.Outlets = outlets
	c.WaterLevel = m.updateWaterLevel(c, outlets)

	spread := m.outletSpread(outlets)
	if spread >= int(voxel.Vmax)/2 && c.Viscosity > MaxViscosityNotEqualize {
		m.equalize(c, outlets)
	}

	if c.Count != countBefore {
		delta := c.Count - countBefore
		if delta < 0 {
			delta = -delta
		}
		c.unsettle(uint16(delta) * uint16(c.Viscosity))
	} else {
		c.decreaseSettle()
	}
}

// validateSegments walks every segment bottom-to-top, truncating at
// the first voxel that fails the "still fluid and supported" test
// (§4.6.1.a).
func (m *Manager) validateSegments(c *Component) {
	for row, segs := range c.Segments {
		kept := segs[:0]
		for _, s := range segs {
			lastGood := s.YMin - 1
			for y := s.YMin; y <= s.YMax; y++ {
				pos := vec.Vec3{X: row.X, Y: y, Z: row.Z}
				v, blk, chunkID, voxelID, ok := m.worldVoxel(pos)
				if !ok || !m.isValidMember(pos, v) {
					if blk != nil && v.Valid {
						v.Unsettle(int32(c.Viscosity) + 1)
						m.writeVoxel(blk, chunkID, voxelID, v)
					}
					break
				}
				lastGood = y
			}
			if lastGood < s.YMin {
				c.Count -= s.VoxelCount()
				continue
			}
			if lastGood < s.YMax {
				c.Count -= s.YMax - lastGood
				s.YMax = lastGood
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(c.Segments, row)
		} else {
			c.Segments[row] = kept
		}
	}
}

// isValidMember is the per-voxel membership test: settled, carrying
// fluid, and resting on a full, settled support voxel.
func (m *Manager) isValidMember(pos vec.Vec3, v voxel.Voxel) bool {
	if !v.Settled || !v.HasFluid() {
		return false
	}
	below, _, _, _, ok := m.worldVoxel(vec.Vec3{X: pos.X, Y: pos.Y - 1, Z: pos.Z})
	if !ok {
		return false
	}
	return below.Settled && below.IsFull()
}

// collectOutlets scans only the top two Y-levels of each segment for
// outlet candidates (§4.6.1.b).
func (m *Manager) collectOutlets(c *Component) map[vec.Vec3]struct{} {
	outlets := make(map[vec.Vec3]struct{})
	for row, segs := range c.Segments {
		for _, s := range segs {
			for y := s.YMax - 1; y <= s.YMax; y++ {
				if y < s.YMin {
					continue
				}
				pos := vec.Vec3{X: row.X, Y: y, Z: row.Z}
				v, _, _, _, ok := m.worldVoxel(pos)
				if !ok {
					continue
				}
				if !v.IsFull() {
					outlets[pos] = struct{}{}
					continue
				}
				top := vec.Vec3{X: row.X, Y: y + 1, Z: row.Z}
				tv, _, _, _, ok := m.worldVoxel(top)
				if ok && v.HasCompatibleViscosity(tv) && !tv.IsFull() {
					outlets[top] = struct{}{}
				}
			}
		}
	}
	for pos := range outlets {
		v, _, _, _, ok := m.worldVoxel(pos)
		if !ok {
			delete(outlets, pos)
			continue
		}
		belowFull := false
		if bv, _, _, _, ok := m.worldVoxel(vec.Vec3{X: pos.X, Y: pos.Y - 1, Z: pos.Z}); ok {
			belowFull = bv.IsFull()
		}
		if v.IsFull() && pos.Y < c.WaterLevel {
			delete(outlets, pos)
		} else if !v.HasFluid() && pos.Y > c.WaterLevel && !belowFull {
			delete(outlets, pos)
		}
	}
	return outlets
}

func (m *Manager) updateWaterLevel(c *Component, outlets map[vec.Vec3]struct{}) int {
	if len(outlets) == 0 {
		return c.WaterLevel + 1
	}
	min := 0
	first := true
	for pos := range outlets {
		if first || pos.Y < min {
			min = pos.Y
			first = false
		}
	}
	return min
}

func (m *Manager) outletSpread(outlets map[vec.Vec3]struct{}) int {
	if len(outlets) == 0 {
		return 0
	}
	min, max := 0, 0
	first := true
	for pos := range outlets {
		if first {
			min, max = pos.Y, pos.Y
			first = false
			continue
		}
		if pos.Y < min {
			min = pos.Y
		}
		if pos.Y > max {
			max = pos.Y
		}
	}
	return max - min
}

// publish fires a best-effort simulation event; failures are logged,
// never propagated (component bookkeeping must not depend on the bus).
func (m *Manager) publish(eventType string, componentID int, extra map[string]any) {
	payload := map[string]any{"component_id": componentID}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    "fluidsim.component",
		EventType: eventType,
		Version:   1,
		Priority:  3,
		Payload:   body,
	}
	if err := eventbus.Publish(context.Background(), ev); err != nil {
		logging.LogDebug("component: publish %s failed: %v", eventType, err)
	}
}
