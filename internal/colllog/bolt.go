package colllog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/optimystic/internal/block"
)

var (
	bucketMeta       = []byte("meta")
	bucketChunks     = []byte("chunks")
	bucketCheckpoint = []byte("checkpoint")
)

// BoltStore implements Store using bbolt, following the same
// bucket-per-concern layout as internal/blockstore.BoltStore: one
// top-level bucket per concern, nested per collection id.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database rooted at
// dataDir/colllog.db.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "colllog.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("colllog: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMeta, bucketChunks, bucketCheckpoint} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) collectionBucket(tx *bolt.Tx, root []byte, collectionId string, create bool) (*bolt.Bucket, error) {
	rb := tx.Bucket(root)
	if create {
		return rb.CreateBucketIfNotExists([]byte(collectionId))
	}
	return rb.Bucket([]byte(collectionId)), nil
}

func (s *BoltStore) GetMeta(_ context.Context, collectionId string) (Meta, bool, error) {
	var meta Meta
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(collectionId))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &meta)
	})
	return meta, found, err
}

func (s *BoltStore) SaveMeta(_ context.Context, collectionId string, meta Meta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(collectionId), data)
	})
}

func (s *BoltStore) GetChunk(_ context.Context, collectionId string, index int) (*Chunk, bool, error) {
	var chunk *Chunk
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := s.collectionBucket(tx, bucketChunks, collectionId, false)
		if err != nil || b == nil {
			return err
		}
		data := b.Get(chunkKey(index))
		if data == nil {
			return nil
		}
		found = true
		chunk = &Chunk{}
		return json.Unmarshal(data, chunk)
	})
	return chunk, found, err
}

func (s *BoltStore) SaveChunk(_ context.Context, collectionId string, index int, chunk *Chunk) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.collectionBucket(tx, bucketChunks, collectionId, true)
		if err != nil {
			return err
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		return b.Put(chunkKey(index), data)
	})
}

func (s *BoltStore) GetCheckpoint(_ context.Context, collectionId string) (*CheckpointEntry, block.Revision, bool, error) {
	var cp *CheckpointEntry
	var rev block.Revision
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCheckpoint).Get([]byte(collectionId))
		if data == nil {
			return nil
		}
		var stored struct {
			Entry CheckpointEntry `json:"entry"`
			Rev   block.Revision  `json:"rev"`
		}
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		found = true
		cp = &stored.Entry
		rev = stored.Rev
		return nil
	})
	return cp, rev, found, err
}

func (s *BoltStore) SaveCheckpoint(_ context.Context, collectionId string, cp *CheckpointEntry, rev block.Revision) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		stored := struct {
			Entry CheckpointEntry `json:"entry"`
			Rev   block.Revision  `json:"rev"`
		}{Entry: *cp, Rev: rev}
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketCheckpoint).Put([]byte(collectionId), data)
	})
}

func chunkKey(index int) []byte {
	return []byte(fmt.Sprintf("%020d", index))
}
