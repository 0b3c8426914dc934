package component

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/annel0/mmo-game/internal/cache"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/vec"
)

// QueryCache fronts GetComponent lookups with a distributed cache
// mapping a voxel position to the id of the component that last owned
// it, so repeated queries for the same voxel across engine replicas
// skip the linear per-component bounds/segment scan. It is optional: a
// Manager with no cache attached just runs the scan every call.
type QueryCache struct {
	repo cache.CacheRepo
	ttl  time.Duration
}

// NewQueryCache wraps an already-connected cache.CacheRepo (typically
// a *cache.RedisCache) for component lookups.
func NewQueryCache(repo cache.CacheRepo, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &QueryCache{repo: repo, ttl: ttl}
}

// AttachCache installs a query cache in front of GetComponent.
func (m *Manager) AttachCache(qc *QueryCache) {
	m.mu.Lock()
	m.cache = qc
	m.mu.Unlock()
}

func voxelCacheKey(pos vec.Vec3) string {
	return fmt.Sprintf("component:voxel:%d:%d:%d", pos.X, pos.Y, pos.Z)
}

// lookupID returns the cached component id owning pos, if any.
func (qc *QueryCache) lookupID(ctx context.Context, pos vec.Vec3) (int, bool) {
	if qc == nil {
		return 0, false
	}
	raw, err := qc.repo.Get(ctx, voxelCacheKey(pos))
	if err != nil || raw == nil {
		return 0, false
	}
	id, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, false
	}
	return id, true
}

func (qc *QueryCache) store(ctx context.Context, pos vec.Vec3, id int) {
	if qc == nil {
		return
	}
	if err := qc.repo.Set(ctx, voxelCacheKey(pos), []byte(strconv.Itoa(id)), qc.ttl); err != nil {
		logging.LogDebug("component: query cache set failed: %v", err)
	}
}

// invalidateCache drops any cached voxel->component mapping for id's
// current members, called when a component is removed or rebuilt.
func (m *Manager) invalidateCache(c *Component) {
	if m.cache == nil {
		return
	}
	ctx := context.Background()
	for row, segs := range c.Segments {
		for _, s := range segs {
			for y := s.YMin; y <= s.YMax; y++ {
				_ = m.cache.repo.Delete(ctx, voxelCacheKey(vec.Vec3{X: row.X, Y: y, Z: row.Z}))
			}
		}
	}
}
