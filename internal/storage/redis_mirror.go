package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediadl/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisMirror stores job snapshots in Redis so they outlive eviction
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMirror connects to Redis and verifies the connection
func NewRedisMirror(ctx context.Context, cfg *model.RedisConfig) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisMirror{client: client, ttl: time.Duration(cfg.TTL) * time.Second}, nil
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

// Save writes the job snapshot with the configured TTL
func (m *RedisMirror) Save(ctx context.Context, job model.JobStatus) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, jobKey(job.ID), data, m.ttl).Err()
}

// Load returns the stored snapshot, or nil when the key is missing
func (m *RedisMirror) Load(ctx context.Context, id string) (*model.JobStatus, error) {
	val, err := m.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job model.JobStatus
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Close closes the Redis client
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
