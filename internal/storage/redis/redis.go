// Package redis persists the tabwarden state record in a Redis hash. Field
// names mirror the bolt backend's keys so either backend can be restored
// from an export of the other.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tabwarden/tabwarden/internal/storage"
)

const stateKey = "tabwarden:state"

const (
	fieldSettings     = "settings"
	fieldTimeTracking = "time_tracking"
	fieldTimeoutState = "timeout_state"
	fieldLastSync     = "last_sync"
	fieldGameStats    = "game_stats"
)

// Config holds connection settings for the Redis backend.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store implements storage.Store backed by Redis.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// Open connects to Redis and verifies the connection with a ping.
func Open(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w (%w)", err, storage.ErrUnavailable)
	}

	return &Store{client: client, now: time.Now}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Load reads the full state record, falling back to documented defaults for
// missing fields.
func (s *Store) Load(ctx context.Context) (storage.Data, error) {
	fields, err := s.client.HGetAll(ctx, stateKey).Result()
	if err != nil {
		return storage.Data{}, fmt.Errorf("read state hash: %w (%w)", err, storage.ErrUnavailable)
	}

	data := storage.Default(s.now())

	if err := loadField(fields, fieldSettings, &data.Settings); err != nil {
		return storage.Data{}, err
	}
	if err := loadField(fields, fieldTimeTracking, &data.TimeTracking); err != nil {
		return storage.Data{}, err
	}
	if err := loadField(fields, fieldTimeoutState, &data.TimeoutState); err != nil {
		return storage.Data{}, err
	}
	if err := loadField(fields, fieldLastSync, &data.LastSync); err != nil {
		return storage.Data{}, err
	}
	if err := loadField(fields, fieldGameStats, &data.GameStats); err != nil {
		return storage.Data{}, err
	}

	data.Normalize()
	return data, nil
}

// Save replaces the full state record.
func (s *Store) Save(ctx context.Context, data storage.Data) error {
	values := map[string]any{}

	for field, v := range map[string]any{
		fieldSettings:     data.Settings,
		fieldTimeTracking: data.TimeTracking,
		fieldTimeoutState: data.TimeoutState,
		fieldLastSync:     data.LastSync,
	} {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", field, err)
		}
		values[field] = string(encoded)
	}

	if data.GameStats != nil {
		encoded, err := json.Marshal(data.GameStats)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", fieldGameStats, err)
		}
		values[fieldGameStats] = string(encoded)
	}

	if err := s.client.HSet(ctx, stateKey, values).Err(); err != nil {
		return fmt.Errorf("write state hash: %w (%w)", err, storage.ErrUnavailable)
	}
	return nil
}

// Initialize ensures defaults exist and backfills missing fields without
// discarding existing data.
func (s *Store) Initialize(ctx context.Context) error {
	data, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return s.Save(ctx, data)
}

func loadField(fields map[string]string, field string, out any) error {
	raw, ok := fields[field]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return nil
}
