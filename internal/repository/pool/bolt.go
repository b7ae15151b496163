package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
)

// BoltRepo stores each pool as one bbolt bucket keyed by zero-padded ordinal.
type BoltRepo struct {
	db  *bbolt.DB
	dim int
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string, dim int) (*BoltRepo, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &BoltRepo{db: db, dim: dim}, nil
}

func bucketName(poolID string) []byte {
	return []byte("pool:" + poolID)
}

// Ping checks that the database file is usable.
func (r *BoltRepo) Ping(_ context.Context) error {
	return r.db.View(func(*bbolt.Tx) error { return nil })
}

// Close releases the file lock.
func (r *BoltRepo) Close() error {
	return r.db.Close()
}

// SelectAll returns every record of the pool. A missing pool is empty.
func (r *BoltRepo) SelectAll(_ context.Context, poolID string) ([]record.Record, error) {
	var out []record.Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(poolID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			ordinal, err := parseOrdinal(string(k))
			if err != nil {
				return nil //nolint:nilerr // foreign key, not a record
			}
			out = append(out, decodeRecord(ordinal, v))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("select pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
	}
	return out, nil
}

// Replace recreates the pool bucket and fills it in a single transaction.
func (r *BoltRepo) Replace(ctx context.Context, poolID string, records []record.Record) error {
	if err := validateRecords(records, r.dim); err != nil {
		return err
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		name := bucketName(poolID)
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(ordinalField(rec.Ordinal())), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
	}
	return nil
}

// DeleteAll removes the pool bucket.
func (r *BoltRepo) DeleteAll(_ context.Context, poolID string) error {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketName(poolID)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete pool %s: %w: %w", poolID, domain.ErrStoreFailure, err)
	}
	return nil
}
