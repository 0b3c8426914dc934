package component

import (
	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/voxel"
)

// rowNeighbours are the eight row-adjacent (X,Z) offsets used by the
// cross-row intake pass (§4.6.1, maintenance bullet, second pass).
var rowNeighbours = [8]struct{ DX, DZ int }{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// maintenance is the component manager's per-tick maintenance job:
// drain the intake set, opportunistically seed one new component, and
// process removal/rebuild requests (§4.6.1).
func (m *Manager) maintenance() {
	m.mu.Lock()
	refs := make([]fluidsim.VoxelRef, 0, len(m.intake))
	for r := range m.intake {
		refs = append(refs, r)
	}
	m.mu.Unlock()

	if len(refs) > MaxVoxelsPerIteration {
		refs = refs[:MaxVoxelsPerIteration]
	}

	remaining := make([]fluidsim.VoxelRef, 0, len(refs))
	for _, ref := range refs {
		if m.tryAddToExistingComponent(ref) {
			m.mu.Lock()
			delete(m.intake, ref)
			m.mu.Unlock()
		} else {
			remaining = append(remaining, ref)
		}
	}

	m.mu.Lock()
	intakeSize := len(m.intake)
	m.mu.Unlock()
	if intakeSize > MinComponentSize {
		m.seedNewComponent(remaining)
	}

	m.mu.Lock()
	for id, c := range m.components {
		switch {
		case c.toRemove():
			m.invalidateCache(c)
			m.removeComponentLocked(c)
			delete(m.components, id)
			m.publish("component.removed", id, nil)
		case c.ToRebuild:
			m.invalidateCache(c)
			m.rebuildComponentLocked(c)
			m.publish("component.rebuilt", id, nil)
		}
	}
	m.mu.Unlock()
}

// tryAddToExistingComponent attempts to claim ref for a component: a
// same-row pass first, then a row-adjacent pass. Returns false to
// leave the voxel queued for a later tick.
func (m *Manager) tryAddToExistingComponent(ref fluidsim.VoxelRef) bool {
	pos := m.Grid.LocalToWorld(ref.Block, ref.Chunk, ref.Voxel)
	v, blk, chunkID, voxelID, ok := m.worldVoxel(pos)
	if !ok || !v.Settled || !v.HasFluid() {
		return true // stale/invalid entry, drop it
	}
	row := RowKey{X: pos.X, Z: pos.Z}
	candidate := Segment{YMin: pos.Y, YMax: pos.Y}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.components {
		if c.Viscosity != v.Viscosity {
			continue
		}
		if !c.Bounds.Intersects(AABB{Min: pos, Max: pos}) {
			continue
		}
		for _, s := range c.Segments[row] {
			if s.Intersects(candidate) {
				m.mergeSegmentIntoRow(c, row, candidate)
				m.claim(c, blk, chunkID, voxelID, pos, v)
				m.mergeTouchingLocked(c)
				return true
			}
		}
	}

	for _, off := range rowNeighbours {
		nrow := RowKey{X: pos.X + off.DX, Z: pos.Z + off.DZ}
		for _, c := range m.components {
			if c.Viscosity != v.Viscosity {
				continue
			}
			for _, s := range c.Segments[nrow] {
				if s.Intersects(Segment{YMin: pos.Y - 1, YMax: pos.Y + 1}) {
					c.Segments[row] = mergeSegment(c.Segments[row], candidate)
					m.claim(c, blk, chunkID, voxelID, pos, v)
					m.mergeTouchingLocked(c)
					return true
				}
			}
		}
	}
	return false
}

func (m *Manager) claim(c *Component, blk *fluidsim.Block, chunkID, voxelID int, pos vec.Vec3, v voxel.Voxel) {
	c.Count++
	c.Bounds.Encapsulate(pos)
	v.Unsettle(int32(c.Viscosity) + 1)
	m.writeVoxel(blk, chunkID, voxelID, v)
}

func (m *Manager) mergeSegmentIntoRow(c *Component, row RowKey, s Segment) {
	c.Segments[row] = mergeSegment(c.Segments[row], s)
}

// mergeSegment folds s into segs, combining any run it now touches.
func mergeSegment(segs []Segment, s Segment) []Segment {
	out := make([]Segment, 0, len(segs)+1)
	merged := s
	for _, existing := range segs {
		if existing.Intersects(merged) {
			if existing.YMin < merged.YMin {
				merged.YMin = existing.YMin
			}
			if existing.YMax > merged.YMax {
				merged.YMax = existing.YMax
			}
			continue
		}
		out = append(out, existing)
	}
	out = append(out, merged)
	return out
}

// mergeTouchingLocked repeatedly folds any pair of touching segments
// within each of c's rows until none remain (fixes up transitive
// intersections created by mergeSegment). Caller holds m.mu.
func (m *Manager) mergeTouchingLocked(c *Component) {
	for row, segs := range c.Segments {
		changed := true
		for changed {
			changed = false
			for i := 0; i < len(segs); i++ {
				for j := i + 1; j < len(segs); j++ {
					if segs[i].Intersects(segs[j]) {
						segs[i] = mergeTwo(segs[i], segs[j])
						segs = append(segs[:j], segs[j+1:]...)
						changed = true
						break
					}
				}
				if changed {
					break
				}
			}
		}
		c.Segments[row] = segs
	}
	m.checkMergeWithPeersLocked(c)
}

func mergeTwo(a, b Segment) Segment {
	if b.YMin < a.YMin {
		a.YMin = b.YMin
	}
	if b.YMax > a.YMax {
		a.YMax = b.YMax
	}
	return a
}

// checkMergeWithPeersLocked absorbs any other component of equal
// viscosity now touching c by bounds and row-adjacent segments. The
// larger component (by Count) eats the smaller; a rebuilding component
// always eats a non-rebuilding peer regardless of size — an explicit
// design decision the source asserts without qualification (§9).
func (m *Manager) checkMergeWithPeersLocked(c *Component) {
	for _, other := range m.components {
		if other == c || other.Viscosity != c.Viscosity {
			continue
		}
		if !c.Bounds.Intersects(other.Bounds) || !m.rowsTouch(c, other) {
			continue
		}
		absorbInto, absorbFrom := c, other
		if !c.Rebuilding && other.Rebuilding {
			absorbInto, absorbFrom = other, c
		} else if c.Rebuilding == other.Rebuilding && other.Count > c.Count {
			absorbInto, absorbFrom = other, c
		}
		m.absorb(absorbInto, absorbFrom)
		delete(m.components, absorbFrom.ID)
		m.publish("component.merged", absorbInto.ID, map[string]any{"absorbed": absorbFrom.ID})
		if absorbInto == other {
			return
		}
	}
}

func (m *Manager) rowsTouch(a, b *Component) bool {
	for row, segs := range a.Segments {
		for _, off := range append([]struct{ DX, DZ int }{{0, 0}}, rowNeighbours[:]...) {
			nrow := RowKey{X: row.X + off.DX, Z: row.Z + off.DZ}
			bsegs, ok := b.Segments[nrow]
			if !ok {
				continue
			}
			for _, s := range segs {
				for _, bs := range bsegs {
					if s.Intersects(Segment{YMin: bs.YMin - 1, YMax: bs.YMax + 1}) {
						return true
					}
				}
			}
		}
	}
	return false
}

func (m *Manager) absorb(dst, src *Component) {
	for row, segs := range src.Segments {
		for _, s := range segs {
			dst.Segments[row] = mergeSegment(dst.Segments[row], s)
		}
	}
	dst.recount()
	dst.recomputeBounds()
	dst.unsettle(uint16(src.Count) * uint16(dst.Viscosity))
}

// seedNewComponent tries to start exactly one new component this tick
// from an intake voxel that has no existing component beneath it.
func (m *Manager) seedNewComponent(candidates []fluidsim.VoxelRef) {
	for _, ref := range candidates {
		pos := m.Grid.LocalToWorld(ref.Block, ref.Chunk, ref.Voxel)
		v, blk, chunkID, voxelID, ok := m.worldVoxel(pos)
		if !ok || !v.Settled || !v.HasFluid() {
			continue
		}
		if m.hasComponentBelow(pos) {
			continue
		}

		m.mu.Lock()
		id := m.nextID
		m.nextID++
		c := newComponent(id, pos, v.Viscosity)
		m.components[id] = c
		delete(m.intake, ref)
		m.mergeTouchingLocked(c)
		m.mu.Unlock()

		m.claim(c, blk, chunkID, voxelID, pos, v)
		m.publish("component.created", id, nil)
		return
	}
}

func (m *Manager) hasComponentBelow(pos vec.Vec3) bool {
	for y := pos.Y - 1; y >= 0; y-- {
		below := vec.Vec3{X: pos.X, Y: y, Z: pos.Z}
		v, _, _, _, ok := m.worldVoxel(below)
		if !ok || v.Solid == 0 && v.Fluid == 0 {
			break
		}
		if _, found := m.GetComponent(below); found {
			return true
		}
	}
	return false
}

// removeComponentLocked unsettles every voxel the component still
// claims so the kernel re-integrates them and, once they resettle,
// they flow back through the intake set unowned. Caller holds m.mu.
func (m *Manager) removeComponentLocked(c *Component) {
	m.forEachMemberLocked(c, func(pos vec.Vec3, blk *fluidsim.Block, chunkID, voxelID int) {
		v, _, _, _, ok := m.worldVoxel(pos)
		if !ok {
			return
		}
		v.Unsettle(1)
		m.writeVoxel(blk, chunkID, voxelID, v)
	})
}

// rebuildComponentLocked keeps one seed voxel, unsettles the rest so
// they re-enter the intake set, and clears ToRebuild. Caller holds
// m.mu.
func (m *Manager) rebuildComponentLocked(c *Component) {
	var seedRow RowKey
	var seed Segment
	found := false
	for row, segs := range c.Segments {
		if len(segs) > 0 {
			seedRow, seed = row, segs[0]
			seed.YMax = seed.YMin
			found = true
			break
		}
	}

	m.forEachMemberLocked(c, func(pos vec.Vec3, blk *fluidsim.Block, chunkID, voxelID int) {
		if found && pos.X == seedRow.X && pos.Z == seedRow.Z && pos.Y == seed.YMin {
			return
		}
		v, _, _, _, ok := m.worldVoxel(pos)
		if !ok {
			return
		}
		v.Unsettle(1)
		m.writeVoxel(blk, chunkID, voxelID, v)
	})

	c.Segments = make(map[RowKey][]Segment)
	if found {
		c.Segments[seedRow] = []Segment{seed}
	}
	c.recount()
	c.recomputeBounds()
	c.Outlets = make(map[vec.Vec3]struct{})
	c.ToRebuild = false
	c.Rebuilding = true
	c.unsettle(uint16(c.Viscosity) + 1)
}

func (m *Manager) forEachMemberLocked(c *Component, fn func(pos vec.Vec3, blk *fluidsim.Block, chunkID, voxelID int)) {
	for row, segs := range c.Segments {
		for _, s := range segs {
			for y := s.YMin; y <= s.YMax; y++ {
				pos := vec.Vec3{X: row.X, Y: y, Z: row.Z}
				blockID, chunkID, voxelID, ok := m.Grid.WorldToLocal(pos)
				if !ok {
					continue
				}
				fn(pos, m.Blocks[blockID], chunkID, voxelID)
			}
		}
	}
}
