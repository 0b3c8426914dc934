// Package grid implements block/chunk/voxel addressing: resolving
// neighbours across chunk and block boundaries, and converting between
// world positions and (block, chunk, voxel) index triples (spec §4.1).
package grid

import (
	"github.com/annel0/mmo-game/internal/fluiderr"
	"github.com/annel0/mmo-game/internal/vec"
)

// Dir names one of the six face directions. Y is up.
type Dir int

const (
	Up Dir = iota
	Down
	Forward  // +Z
	Backward // -Z
	Right    // +X
	Left     // -X
)

// All lists the six directions in a fixed, stable order matching
// voxel.NeighbourCount.
var All = [6]Dir{Up, Down, Forward, Backward, Right, Left}

func (d Dir) delta() vec.Vec3 {
	switch d {
	case Up:
		return vec.Vec3{Y: 1}
	case Down:
		return vec.Vec3{Y: -1}
	case Forward:
		return vec.Vec3{Z: 1}
	case Backward:
		return vec.Vec3{Z: -1}
	case Right:
		return vec.Vec3{X: 1}
	case Left:
		return vec.Vec3{X: -1}
	}
	return vec.Vec3{}
}

// Opposite returns the reverse direction, used when resolving which
// face of a neighbour block corresponds to this block's own.
func (d Dir) Opposite() Dir {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Forward:
		return Backward
	case Backward:
		return Forward
	case Right:
		return Left
	case Left:
		return Right
	}
	return d
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func bitsFor(n int) int {
	b := 0
	for (1 << b) < n {
		b++
	}
	return b
}

// Grid holds the addressing constants for a world: chunk side K
// (voxels), block side M (chunks), and the block-grid extent in
// blocks. K and M must be powers of two.
type Grid struct {
	K, M       int
	kBits      int
	mBits      int
	BlocksX    int
	BlocksY    int
	BlocksZ    int
	ChunkVox   int // K^3
	BlockChunk int // M^3
	BlockVox   int // (K*M)^3
	side       int // K*M, block side in voxels
}

// New validates K and M and builds addressing metadata for a
// BlocksX x BlocksY x BlocksZ arrangement of blocks. BlocksX/Y/Z need
// not be powers of two — only the per-block chunk/voxel geometry does.
func New(blocksX, blocksY, blocksZ, k, m int) (*Grid, error) {
	if blocksX <= 0 || blocksY <= 0 || blocksZ <= 0 {
		return nil, fluiderr.New(fluiderr.InvalidConfig, "grid.New", nil)
	}
	if !isPowerOfTwo(k) || !isPowerOfTwo(m) {
		return nil, fluiderr.New(fluiderr.InvalidConfig, "grid.New", nil)
	}
	side := k * m
	return &Grid{
		K: k, M: m,
		kBits:      bitsFor(k),
		mBits:      bitsFor(m),
		BlocksX:    blocksX,
		BlocksY:    blocksY,
		BlocksZ:    blocksZ,
		ChunkVox:   k * k * k,
		BlockChunk: m * m * m,
		BlockVox:   side * side * side,
		side:       side,
	}, nil
}

// BlockCount is the total number of blocks in the grid.
func (g *Grid) BlockCount() int { return g.BlocksX * g.BlocksY * g.BlocksZ }

// BlockIndex flattens a block coordinate into a linear block id, or
// -1 if out of range.
func (g *Grid) BlockIndex(bx, by, bz int) int {
	if bx < 0 || bx >= g.BlocksX || by < 0 || by >= g.BlocksY || bz < 0 || bz >= g.BlocksZ {
		return -1
	}
	return (bz*g.BlocksY+by)*g.BlocksX + bx
}

// BlockCoord recovers the (bx,by,bz) block coordinate from a linear id.
func (g *Grid) BlockCoord(blockID int) (bx, by, bz int) {
	bx = blockID % g.BlocksX
	rest := blockID / g.BlocksX
	by = rest % g.BlocksY
	bz = rest / g.BlocksY
	return
}

// chunkCoord splits a chunk id (0..M^3) into (cx,cy,cz) each in [0,M).
func (g *Grid) chunkCoord(chunkID int) (cx, cy, cz int) {
	mask := g.M - 1
	cx = chunkID & mask
	cy = (chunkID >> g.mBits) & mask
	cz = chunkID >> (2 * g.mBits)
	return
}

// voxelCoord splits a voxel id (0..K^3) into (lx,ly,lz) each in [0,K).
func (g *Grid) voxelCoord(voxelID int) (lx, ly, lz int) {
	mask := g.K - 1
	lx = voxelID & mask
	ly = (voxelID >> g.kBits) & mask
	lz = voxelID >> (2 * g.kBits)
	return
}

func (g *Grid) voxelID(lx, ly, lz int) int {
	return (lz*g.K+ly)*g.K + lx
}

// NeighbourResult is what Neighbour resolves: local (chunk,voxel) ids
// valid in the target block's own addressing space, plus whether that
// target is a different block than the one the query started in.
type NeighbourResult struct {
	Chunk        int
	Voxel        int
	CrossedBlock bool
}

// Neighbour resolves the neighbouring cell of (chunkID, voxelID) in
// direction dir. It is branch-light and safe at chunk edges (switches
// to the cross-chunk offset) and at block edges (sets CrossedBlock and
// returns indices as if the neighbour block existed — the caller
// combines CrossedBlock with the block-neighbour pointer to find the
// actual block, or discovers there is none).
func (g *Grid) Neighbour(chunkID, voxelID int, dir Dir) NeighbourResult {
	d := dir.delta()
	lx, ly, lz := g.voxelCoord(voxelID)
	nlx, nly, nlz := lx+d.X, ly+d.Y, lz+d.Z

	cx, cy, cz := g.chunkCoord(chunkID)
	ncx, ncy, ncz := cx, cy, cz
	crossedBlock := false

	adjustAxis := func(nl *int, c *int, nc *int) {
		if *nl < 0 {
			*nl += g.K
			*nc = *c - 1
		} else if *nl >= g.K {
			*nl -= g.K
			*nc = *c + 1
		}
		if *nc < 0 {
			*nc += g.M
			crossedBlock = true
		} else if *nc >= g.M {
			*nc -= g.M
			crossedBlock = true
		}
	}
	adjustAxis(&nlx, &cx, &ncx)
	adjustAxis(&nly, &cy, &ncy)
	adjustAxis(&nlz, &cz, &ncz)

	return NeighbourResult{
		Chunk:        g.packChunk(ncx, ncy, ncz),
		Voxel:        g.voxelID(nlx, nly, nlz),
		CrossedBlock: crossedBlock,
	}
}

func (g *Grid) packChunk(cx, cy, cz int) int {
	return (cz*g.M+cy)*g.M + cx
}

// NeighbourSlow is semantically identical to Neighbour but computed
// with division/modulo instead of shifts/masks. It exists for grid
// constants supplied at runtime that a caller has not pre-verified as
// powers of two (K, M are still required to be powers of two by New;
// this variant is the documented fallback path the design notes call
// for when that has not yet been validated, e.g. tooling operating on
// serialized grids from an unknown source).
func (g *Grid) NeighbourSlow(chunkID, voxelID int, dir Dir) NeighbourResult {
	d := dir.delta()
	lz := voxelID / (g.K * g.K)
	ly := (voxelID / g.K) % g.K
	lx := voxelID % g.K
	nlx, nly, nlz := lx+d.X, ly+d.Y, lz+d.Z

	cz := chunkID / (g.M * g.M)
	cy := (chunkID / g.M) % g.M
	cx := chunkID % g.M
	ncx, ncy, ncz := cx, cy, cz
	crossedBlock := false

	adjustAxis := func(nl *int, c *int, nc *int) {
		if *nl < 0 {
			*nl += g.K
			*nc = *c - 1
		} else if *nl >= g.K {
			*nl -= g.K
			*nc = *c + 1
		}
		if *nc < 0 {
			*nc += g.M
			crossedBlock = true
		} else if *nc >= g.M {
			*nc -= g.M
			crossedBlock = true
		}
	}
	adjustAxis(&nlx, &cx, &ncx)
	adjustAxis(&nly, &cy, &ncy)
	adjustAxis(&nlz, &cz, &ncz)

	return NeighbourResult{
		Chunk:        (ncz*g.M+ncy)*g.M + ncx,
		Voxel:        (nlz*g.K+nly)*g.K + nlx,
		CrossedBlock: crossedBlock,
	}
}

// VoxelIndexInBlock flattens a (chunk, voxel) pair into the linear
// index of the block's read/write buffer.
func (g *Grid) VoxelIndexInBlock(chunkID, voxelID int) int {
	cx, cy, cz := g.chunkCoord(chunkID)
	lx, ly, lz := g.voxelCoord(voxelID)
	bx, by, bz := cx*g.K+lx, cy*g.K+ly, cz*g.K+lz
	return (bz*g.side+by)*g.side + bx
}

// WorldToLocal converts a world voxel position into the block
// coordinate it falls in plus the (chunk, voxel) ids within that
// block. ok is false if pos falls outside the block grid.
func (g *Grid) WorldToLocal(pos vec.Vec3) (blockID, chunkID, voxelID int, ok bool) {
	if pos.X < 0 || pos.Y < 0 || pos.Z < 0 {
		return 0, 0, 0, false
	}
	bx, rx := pos.X>>(g.kBits+g.mBits), pos.X&(g.side-1)
	by, ry := pos.Y>>(g.kBits+g.mBits), pos.Y&(g.side-1)
	bz, rz := pos.Z>>(g.kBits+g.mBits), pos.Z&(g.side-1)
	blockID = g.BlockIndex(bx, by, bz)
	if blockID < 0 {
		return 0, 0, 0, false
	}
	cx, cy, cz := rx>>g.kBits, ry>>g.kBits, rz>>g.kBits
	lx, ly, lz := rx&(g.K-1), ry&(g.K-1), rz&(g.K-1)
	return blockID, g.packChunk(cx, cy, cz), g.voxelID(lx, ly, lz), true
}

// WorldToLocalSlow is the division/modulo twin of WorldToLocal.
func (g *Grid) WorldToLocalSlow(pos vec.Vec3) (blockID, chunkID, voxelID int, ok bool) {
	if pos.X < 0 || pos.Y < 0 || pos.Z < 0 {
		return 0, 0, 0, false
	}
	bx, rx := pos.X/g.side, pos.X%g.side
	by, ry := pos.Y/g.side, pos.Y%g.side
	bz, rz := pos.Z/g.side, pos.Z%g.side
	blockID = g.BlockIndex(bx, by, bz)
	if blockID < 0 {
		return 0, 0, 0, false
	}
	cx, cy, cz := rx/g.K, ry/g.K, rz/g.K
	lx, ly, lz := rx%g.K, ry%g.K, rz%g.K
	return blockID, g.packChunk(cx, cy, cz), (lz*g.K+ly)*g.K + lx, true
}

// LocalToWorld is the inverse of WorldToLocal: the world-space origin
// (minimum corner) of the given (block,chunk,voxel) cell.
func (g *Grid) LocalToWorld(blockID, chunkID, voxelID int) vec.Vec3 {
	bx, by, bz := g.BlockCoord(blockID)
	cx, cy, cz := g.chunkCoord(chunkID)
	lx, ly, lz := g.voxelCoord(voxelID)
	return vec.Vec3{
		X: bx*g.side + cx*g.K + lx,
		Y: by*g.side + cy*g.K + ly,
		Z: bz*g.side + cz*g.K + lz,
	}
}

// IsBorder reports whether pos falls in the one-voxel-thick sentinel
// frame just outside the addressable block grid. Such positions are
// never real cells and must not raise OutOfBounds — callers get a
// documented invalid, zero-filled voxel instead.
func (g *Grid) IsBorder(pos vec.Vec3) bool {
	maxX, maxY, maxZ := g.BlocksX*g.side, g.BlocksY*g.side, g.BlocksZ*g.side
	inBorder := func(v, max int) bool { return v == -1 || v == max }
	within := func(v, max int) bool { return v >= -1 && v <= max }
	if !within(pos.X, maxX) || !within(pos.Y, maxY) || !within(pos.Z, maxZ) {
		return false
	}
	return inBorder(pos.X, maxX) || inBorder(pos.Y, maxY) || inBorder(pos.Z, maxZ)
}
