package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/annel0/mmo-game/internal/fluidsim"
	"github.com/annel0/mmo-game/internal/voxel"
)

// SnapshotArchive is a cold, historical store of full-world checkpoints
// on top of MongoDB, distinct from WorldStorage's single latest-state
// BadgerDB record: every archived checkpoint keeps its own document, so
// past world states remain queryable after being superseded.
type SnapshotArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// snapshotDoc is one block's voxel payload for a single checkpoint.
type snapshotDoc struct {
	CheckpointID string    `bson:"checkpoint_id"`
	BlockID      int       `bson:"block_id"`
	Timestamp    time.Time `bson:"timestamp"`
	Voxels       []byte    `bson:"voxels"`
}

// NewSnapshotArchive connects to uri and ensures the target collection
// and its lookup index exist.
func NewSnapshotArchive(uri, database string) (*SnapshotArchive, error) {
	if database == "" {
		database = "fluidsim"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	coll := client.Database(database).Collection("snapshots")
	idx := mongo.IndexModel{
		Keys: bson.D{{Key: "checkpoint_id", Value: 1}, {Key: "block_id", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}

	return &SnapshotArchive{client: client, collection: coll, ctxTimeout: 10 * time.Second}, nil
}

// Archive persists a full checkpoint of every block's current read
// buffer under a single checkpointID, one document per block. It is
// called through Engine.ArchiveSnapshot, which cmd/server runs next to
// every Engine.Checkpoint.
func (a *SnapshotArchive) Archive(checkpointID string, blocks []*fluidsim.Block) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.ctxTimeout)
	defer cancel()

	now := time.Now()
	docs := make([]interface{}, len(blocks))
	for i, blk := range blocks {
		buf := blk.ReadBuffer()
		data := make([]byte, len(buf)*voxel.EncodedSize)
		for j, v := range buf {
			v.Encode(data[j*voxel.EncodedSize : (j+1)*voxel.EncodedSize])
		}
		docs[i] = snapshotDoc{
			CheckpointID: checkpointID,
			BlockID:      blk.ID,
			Timestamp:    now,
			Voxels:       data,
		}
	}
	_, err := a.collection.InsertMany(ctx, docs)
	return err
}

// Load retrieves a previously archived checkpoint's blocks, keyed by
// block ID, or an empty map if checkpointID was never archived.
func (a *SnapshotArchive) Load(checkpointID string) (map[int][]voxel.Voxel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.ctxTimeout)
	defer cancel()

	cur, err := a.collection.Find(ctx, bson.M{"checkpoint_id": checkpointID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[int][]voxel.Voxel)
	for cur.Next(ctx) {
		var doc snapshotDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		voxels := make([]voxel.Voxel, len(doc.Voxels)/voxel.EncodedSize)
		for i := range voxels {
			voxels[i] = voxel.Decode(doc.Voxels[i*voxel.EncodedSize : (i+1)*voxel.EncodedSize])
		}
		out[doc.BlockID] = voxels
	}
	return out, cur.Err()
}

// Prune deletes archived checkpoints older than before, bounding
// storage growth for long-running worlds.
func (a *SnapshotArchive) Prune(before time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.ctxTimeout)
	defer cancel()
	_, err := a.collection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": before}})
	return err
}

// Close disconnects the underlying Mongo client.
func (a *SnapshotArchive) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}
