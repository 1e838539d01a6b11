package blockstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/optimystic/internal/block"
)

var (
	bucketMetadata      = []byte("metadata")
	bucketRevisions     = []byte("revisions")
	bucketCommitted     = []byte("committed")
	bucketPending       = []byte("pending")
	bucketMaterialized  = []byte("materialized")
)

// BoltStore implements Store using bbolt: one top-level bucket per
// concern, keyed by block id, with a nested bucket per block holding
// that concern's entries — a bucket-per-entity layout scaled from one
// row per entity to one nested bucket per block id.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database rooted at
// dataDir/blocks.db with the bucket layout this store needs.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "blocks.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMetadata, bucketRevisions, bucketCommitted, bucketPending, bucketMaterialized} {
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

func (s *BoltStore) blockBucket(tx *bolt.Tx, root []byte, id block.Id, create bool) (*bolt.Bucket, error) {
	rb := tx.Bucket(root)
	if create {
		return rb.CreateBucketIfNotExists([]byte(id))
	}
	b := rb.Bucket([]byte(id))
	if b == nil {
		return nil, nil
	}
	return b, nil
}

func (s *BoltStore) GetMetadata(_ context.Context, id block.Id) (Metadata, bool, error) {
	var md Metadata
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMetadata).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &md)
	})
	return md, found, err
}

func (s *BoltStore) SetMetadata(_ context.Context, id block.Id, md Metadata) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(md)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMetadata).Put([]byte(id), data)
	})
}

func (s *BoltStore) GetRevisionAction(_ context.Context, id block.Id, rev block.Revision) (block.ActionId, bool, error) {
	var actionId block.ActionId
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := s.blockBucket(tx, bucketRevisions, id, false)
		if err != nil || b == nil {
			return err
		}
		data := b.Get(revKey(rev))
		if data == nil {
			return nil
		}
		found = true
		actionId = block.ActionId(data)
		return nil
	})
	return actionId, found, err
}

func (s *BoltStore) SaveRevision(_ context.Context, id block.Id, rev block.Revision, actionId block.ActionId) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.blockBucket(tx, bucketRevisions, id, true)
		if err != nil {
			return err
		}
		return b.Put(revKey(rev), []byte(actionId))
	})
}

func (s *BoltStore) GetTransaction(_ context.Context, id block.Id, actionId block.ActionId) (block.Transform, bool, error) {
	return getTransform(s.db, bucketCommitted, id, actionId)
}

func (s *BoltStore) SaveCommittedTransform(_ context.Context, id block.Id, actionId block.ActionId, t block.Transform) error {
	return putTransform(s.db, bucketCommitted, id, actionId, t)
}

func (s *BoltStore) GetPendingTransaction(_ context.Context, id block.Id, actionId block.ActionId) (block.Transform, bool, error) {
	return getTransform(s.db, bucketPending, id, actionId)
}

func (s *BoltStore) SavePendingTransaction(_ context.Context, id block.Id, actionId block.ActionId, t block.Transform) error {
	return putTransform(s.db, bucketPending, id, actionId, t)
}

func (s *BoltStore) DeletePendingTransaction(_ context.Context, id block.Id, actionId block.ActionId) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := s.blockBucket(tx, bucketPending, id, false)
		if err != nil || b == nil {
			return err
		}
		return b.Delete([]byte(actionId))
	})
}

func (s *BoltStore) ListPendingTransactions(_ context.Context, id block.Id) (map[block.ActionId]block.Transform, error) {
	out := make(map[block.ActionId]block.Transform)
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := s.blockBucket(tx, bucketPending, id, false)
		if err != nil || b == nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var t block.Transform
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			out[block.ActionId(k)] = t
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) GetMaterialization(_ context.Context, id block.Id, actionId block.ActionId) (*block.Block, bool, error) {
	var b *block.Block
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := s.blockBucket(tx, bucketMaterialized, id, false)
		if err != nil || bucket == nil {
			return err
		}
		data := bucket.Get([]byte(actionId))
		if data == nil {
			return nil
		}
		found = true
		b = &block.Block{}
		return json.Unmarshal(data, b)
	})
	return b, found, err
}

func (s *BoltStore) SaveMaterializedBlock(_ context.Context, id block.Id, actionId block.ActionId, b *block.Block) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := s.blockBucket(tx, bucketMaterialized, id, true)
		if err != nil {
			return err
		}
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(actionId), data)
	})
}

// ApplyArchive writes a restored range's transforms, materializations,
// and revision index in a single bbolt transaction, then extends the
// local range list — an atomic all-or-nothing restore (§4.3).
func (s *BoltStore) ApplyArchive(_ context.Context, id block.Id, archive *Archive) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		revBucket, err := s.blockBucket(tx, bucketRevisions, id, true)
		if err != nil {
			return err
		}
		for rev, actionId := range archive.Revisions {
			if err := revBucket.Put(revKey(rev), []byte(actionId)); err != nil {
				return err
			}
		}

		committedBucket, err := s.blockBucket(tx, bucketCommitted, id, true)
		if err != nil {
			return err
		}
		for actionId, t := range archive.Transforms {
			data, err := json.Marshal(t)
			if err != nil {
				return err
			}
			if err := committedBucket.Put([]byte(actionId), data); err != nil {
				return err
			}
		}

		matBucket, err := s.blockBucket(tx, bucketMaterialized, id, true)
		if err != nil {
			return err
		}
		for actionId, b := range archive.Materializations {
			data, err := json.Marshal(b)
			if err != nil {
				return err
			}
			if err := matBucket.Put([]byte(actionId), data); err != nil {
				return err
			}
		}

		mdBucket := tx.Bucket(bucketMetadata)
		var md Metadata
		if data := mdBucket.Get([]byte(id)); data != nil {
			if err := json.Unmarshal(data, &md); err != nil {
				return err
			}
		}
		md.Ranges = mergeRanges(append(md.Ranges, archive.Range))
		data, err := json.Marshal(md)
		if err != nil {
			return err
		}
		return mdBucket.Put([]byte(id), data)
	})
}

func getTransform(db *bolt.DB, root []byte, id block.Id, actionId block.ActionId) (block.Transform, bool, error) {
	var t block.Transform
	var found bool
	err := db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(root)
		bucket := rb.Bucket([]byte(id))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(actionId))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &t)
	})
	return t, found, err
}

func putTransform(db *bolt.DB, root []byte, id block.Id, actionId block.ActionId, t block.Transform) error {
	return db.Update(func(tx *bolt.Tx) error {
		rb := tx.Bucket(root)
		bucket, err := rb.CreateBucketIfNotExists([]byte(id))
		if err != nil {
			return err
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(actionId), data)
	})
}

func revKey(rev block.Revision) []byte {
	return []byte(fmt.Sprintf("%020d", int64(rev)))
}
