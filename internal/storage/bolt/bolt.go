// Package bolt persists the tabwarden state record in a local bbolt file.
// Each top-level field of the record lives under its own key so that older
// files missing newly introduced fields can be backfilled on load.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/tabwarden/tabwarden/internal/storage"
)

const (
	bucketState = "state"

	keySettings     = "settings"
	keyTimeTracking = "time_tracking"
	keyTimeoutState = "timeout_state"
	keyLastSync     = "last_sync"
	keyGameStats    = "game_stats"
)

// Store implements storage.Store backed by a bbolt database file.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens (creating if needed) the bolt-backed store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w (%w)", err, storage.ErrUnavailable)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketState)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketState, err)
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the full state record. Missing keys fall back to documented
// defaults; duplicate tracking records are merged before the data is handed
// to callers.
func (s *Store) Load(ctx context.Context) (storage.Data, error) {
	data := storage.Default(s.now())

	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketState))
		if b == nil {
			return fmt.Errorf("state bucket missing: %w", storage.ErrUnavailable)
		}

		if err := loadKey(b, keySettings, &data.Settings); err != nil {
			return err
		}
		if err := loadKey(b, keyTimeTracking, &data.TimeTracking); err != nil {
			return err
		}
		if err := loadKey(b, keyTimeoutState, &data.TimeoutState); err != nil {
			return err
		}
		if err := loadKey(b, keyLastSync, &data.LastSync); err != nil {
			return err
		}
		return loadKey(b, keyGameStats, &data.GameStats)
	})
	if err != nil {
		return storage.Data{}, err
	}

	data.Normalize()
	return data, nil
}

// Save replaces the full state record in a single transaction.
func (s *Store) Save(ctx context.Context, data storage.Data) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketState))
		if b == nil {
			return fmt.Errorf("state bucket missing: %w", storage.ErrUnavailable)
		}

		if err := saveKey(b, keySettings, data.Settings); err != nil {
			return err
		}
		if err := saveKey(b, keyTimeTracking, data.TimeTracking); err != nil {
			return err
		}
		if err := saveKey(b, keyTimeoutState, data.TimeoutState); err != nil {
			return err
		}
		if err := saveKey(b, keyLastSync, data.LastSync); err != nil {
			return err
		}
		if data.GameStats == nil {
			return nil
		}
		return saveKey(b, keyGameStats, data.GameStats)
	})
}

// Initialize ensures defaults exist and backfills fields added after the
// data was first written. Calling it twice leaves the state unchanged.
func (s *Store) Initialize(ctx context.Context) error {
	data, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return s.Save(ctx, data)
}

func loadKey(b *bbolt.Bucket, key string, out any) error {
	value := b.Get([]byte(key))
	if value == nil {
		return nil
	}
	if err := json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

func saveKey(b *bbolt.Bucket, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
