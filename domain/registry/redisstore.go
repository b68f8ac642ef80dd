package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a PersistentStore backed by a Redis (or Redis-protocol
// compatible) instance external to this service -- the durable tier the
// registry falls back to on a local+cache miss. Worker definitions are
// stored as JSON strings under "worker-def:<id>" and a CID index at
// "worker-cid:<cid>" pointing back to the worker id; active workers are
// tracked in the "worker-active" set.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func defKey(workerID string) string { return "worker-def:" + workerID }
func cidKey(cid string) string      { return "worker-cid:" + cid }

const activeSetKey = "worker-active"

// Put stores a worker definition and indexes it by CID and active-set
// membership. Not part of the PersistentStore interface the registry
// consumes -- this is the write side a deployment system would call.
func (s *RedisStore) Put(ctx context.Context, def WorkerDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, defKey(def.WorkerID), data, 0)
	if def.CodeCID != "" {
		pipe.Set(ctx, cidKey(def.CodeCID), def.WorkerID, 0)
	}
	pipe.SAdd(ctx, activeSetKey, def.WorkerID)
	_, err = pipe.Exec(ctx)
	return err
}

// Get implements PersistentStore.
func (s *RedisStore) Get(ctx context.Context, workerID string) (*WorkerDefinition, error) {
	raw, err := s.client.Get(ctx, defKey(workerID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", workerID, err)
	}
	var def WorkerDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// GetByCID implements PersistentStore.
func (s *RedisStore) GetByCID(ctx context.Context, cid string) (*WorkerDefinition, error) {
	workerID, err := s.client.Get(ctx, cidKey(cid)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis resolve cid %s: %w", cid, err)
	}
	return s.Get(ctx, workerID)
}

// ListActive implements PersistentStore.
func (s *RedisStore) ListActive(ctx context.Context) ([]WorkerDefinition, error) {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list active: %w", err)
	}
	defs := make([]WorkerDefinition, 0, len(ids))
	for _, id := range ids {
		def, err := s.Get(ctx, id)
		if err != nil || def == nil {
			continue
		}
		defs = append(defs, *def)
	}
	return defs, nil
}
