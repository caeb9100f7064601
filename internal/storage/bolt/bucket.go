package bolt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goodtune/screenguard/internal/storage"
	"go.etcd.io/bbolt"
)

// bucket is a typed view of one bbolt bucket holding JSON-encoded T values.
type bucket[T any] struct {
	db   *bbolt.DB
	name []byte
}

func newBucket[T any](db *bbolt.DB, name string) bucket[T] {
	return bucket[T]{db: db, name: []byte(name)}
}

func (b bucket[T]) view(ctx context.Context, fn func(*bbolt.Bucket) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		bkt := tx.Bucket(b.name)
		if bkt == nil {
			return fmt.Errorf("bucket %s missing", b.name)
		}
		return fn(bkt)
	})
}

func (b bucket[T]) update(ctx context.Context, fn func(*bbolt.Bucket) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		bkt := tx.Bucket(b.name)
		if bkt == nil {
			return fmt.Errorf("bucket %s missing", b.name)
		}
		return fn(bkt)
	})
}

// all decodes every value in key order.
func (b bucket[T]) all(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	err := b.view(ctx, func(bkt *bbolt.Bucket) error {
		return bkt.ForEach(func(_, v []byte) error {
			item, err := decode[T](v)
			if err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (b bucket[T]) get(ctx context.Context, key string) (*T, error) {
	var item *T
	err := b.view(ctx, func(bkt *bbolt.Bucket) error {
		v := bkt.Get([]byte(key))
		if v == nil {
			return storage.ErrNotFound
		}
		decoded, err := decode[T](v)
		if err != nil {
			return err
		}
		item = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (b bucket[T]) put(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", b.name, err)
	}
	return b.update(ctx, func(bkt *bbolt.Bucket) error {
		return bkt.Put([]byte(key), data)
	})
}

// remove deletes key, returning storage.ErrNotFound when it is absent.
func (b bucket[T]) remove(ctx context.Context, key string) error {
	return b.update(ctx, func(bkt *bbolt.Bucket) error {
		if bkt.Get([]byte(key)) == nil {
			return storage.ErrNotFound
		}
		return bkt.Delete([]byte(key))
	})
}

// deleteKeys removes the keys selected by match. Keys are collected before
// deleting because bbolt cursors skip entries when deleting mid-iteration.
func deleteKeys(bkt *bbolt.Bucket, match func(k []byte) bool) (int, error) {
	var keys [][]byte
	c := bkt.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if match(k) {
			keys = append(keys, append([]byte(nil), k...))
		}
	}
	for _, k := range keys {
		if err := bkt.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode record: %w", err)
	}
	return v, nil
}
