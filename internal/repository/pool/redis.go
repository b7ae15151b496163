package pool

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kailas-cloud/shortlist/internal/domain"
	"github.com/kailas-cloud/shortlist/internal/domain/record"
)

// hsetChunk bounds the field count of a single HSET.
const hsetChunk = 256

// hashStore is the consumer interface for the Redis/Valkey pool (ISP).
type hashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Rename(ctx context.Context, src, dst string) error
}

// RedisRepo stores each pool as one hash: field = zero-padded ordinal,
// value = JSON record. Replacement writes a staging hash and RENAMEs it
// over the live key, so readers see either the old or the new pool.
type RedisRepo struct {
	store     hashStore
	keyPrefix string
	dim       int
}

// NewRedisRepo creates a Redis/Valkey pool repository.
func NewRedisRepo(s hashStore, keyPrefix string, dim int) *RedisRepo {
	return &RedisRepo{store: s, keyPrefix: keyPrefix, dim: dim}
}

func (r *RedisRepo) poolKey(poolID string) string {
	return r.keyPrefix + "pool:" + poolID
}

func (r *RedisRepo) stagingKey(poolID string) string {
	return r.keyPrefix + "staging:" + poolID + ":" + uuid.NewString()
}

// SelectAll returns every record of the pool. A missing pool is empty.
func (r *RedisRepo) SelectAll(ctx context.Context, poolID string) ([]record.Record, error) {
	key := r.poolKey(poolID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w: %w", key, domain.ErrStoreFailure, err)
	}

	out := make([]record.Record, 0, len(m))
	for field, raw := range m {
		ordinal, err := parseOrdinal(field)
		if err != nil {
			continue
		}
		out = append(out, decodeRecord(ordinal, []byte(raw)))
	}
	return out, nil
}

// Replace swaps the pool contents for records in one step.
func (r *RedisRepo) Replace(ctx context.Context, poolID string, records []record.Record) error {
	if err := validateRecords(records, r.dim); err != nil {
		return err
	}

	key := r.poolKey(poolID)
	if len(records) == 0 {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("del %s: %w: %w", key, domain.ErrStoreFailure, err)
		}
		return nil
	}

	staging := r.stagingKey(poolID)
	if err := r.writeStaging(ctx, staging, records); err != nil {
		r.dropStaging(staging)
		return err
	}
	if err := r.store.Rename(ctx, staging, key); err != nil {
		r.dropStaging(staging)
		return fmt.Errorf("rename %s: %w: %w", staging, domain.ErrStoreFailure, err)
	}
	return nil
}

func (r *RedisRepo) writeStaging(ctx context.Context, staging string, records []record.Record) error {
	fields := make(map[string]string, min(len(records), hsetChunk))
	flush := func() error {
		if err := r.store.HSet(ctx, staging, fields); err != nil {
			return fmt.Errorf("hset %s: %w: %w", staging, domain.ErrStoreFailure, err)
		}
		clear(fields)
		return nil
	}

	for _, rec := range records {
		data, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStoreFailure, err)
		}
		fields[ordinalField(rec.Ordinal())] = string(data)
		if len(fields) == hsetChunk {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if len(fields) > 0 {
		return flush()
	}
	return nil
}

// dropStaging is best effort: it runs on a fresh context since the caller's may be done.
func (r *RedisRepo) dropStaging(staging string) {
	_ = r.store.Del(context.Background(), staging)
}

// DeleteAll removes the pool.
func (r *RedisRepo) DeleteAll(ctx context.Context, poolID string) error {
	key := r.poolKey(poolID)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w: %w", key, domain.ErrStoreFailure, err)
	}
	return nil
}
