package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/voxel"
)

// WorldStorage is the out-of-core snapshot store for the fluid engine.
// It is deliberately outside the simulation core: it consumes the
// core's exposed 6-byte voxel layout (voxel.Encode/Decode) and the
// core's own read buffers, never simulation internals.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewWorldStorage opens (or creates) a BadgerDB snapshot store rooted
// at dataPath/world.
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening voxel snapshot store: %w", err)
	}

	return &WorldStorage{db: db, dbPath: dbPath, isReady: true}, nil
}

// Close closes the underlying database.
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	if !ws.isReady {
		return nil
	}
	ws.isReady = false
	return ws.db.Close()
}

func blockKey(blockID int) []byte {
	return []byte(fmt.Sprintf("block:%d", blockID))
}

// SaveBlock persists a block's current read buffer as a flat run of
// 6-byte voxel records (spec §6 persisted layout).
func (ws *WorldStorage) SaveBlock(blk *fluidsim.Block) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if !ws.isReady {
		return fmt.Errorf("voxel snapshot store not ready")
	}

	buf := blk.ReadBuffer()
	data := make([]byte, len(buf)*voxel.EncodedSize)
	for i, v := range buf {
		v.Encode(data[i*voxel.EncodedSize : (i+1)*voxel.EncodedSize])
	}

	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(blk.ID), data)
	})
}

// LoadBlock reads a persisted snapshot back into voxels, or returns
// (nil, nil) if the block was never saved.
func (ws *WorldStorage) LoadBlock(blockID, voxelCount int) ([]voxel.Voxel, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if !ws.isReady {
		return nil, fmt.Errorf("voxel snapshot store not ready")
	}

	var data []byte
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(blockID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading voxel snapshot: %w", err)
	}
	if len(data) != voxelCount*voxel.EncodedSize {
		return nil, fmt.Errorf("voxel snapshot for block %d has %d bytes, want %d", blockID, len(data), voxelCount*voxel.EncodedSize)
	}

	out := make([]voxel.Voxel, voxelCount)
	for i := range out {
		out[i] = voxel.Decode(data[i*voxel.EncodedSize : (i+1)*voxel.EncodedSize])
	}
	return out, nil
}

// RestoreBlock loads a persisted snapshot directly into blk's read
// buffer, if one exists.
func (ws *WorldStorage) RestoreBlock(blk *fluidsim.Block) error {
	buf := blk.ReadBuffer()
	restored, err := ws.LoadBlock(blk.ID, len(buf))
	if err != nil {
		return err
	}
	if restored == nil {
		return nil
	}
	copy(buf, restored)
	return nil
}
