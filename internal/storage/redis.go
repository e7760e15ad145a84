package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/actor"
	"github.com/redis/go-redis/v9"
)

const (
	npcKeyPrefix      = "npc:"
	npcIDsKey         = "npc:ids"
	npcNextIDKey      = "npc:next_id"
	npcLocationPrefix = "npc:location:"

	// optimistic transactions are retried this many times on WATCH conflicts
	maxTxRetries = 5
)

// RedisStorage implements NPCRepository on Redis. Each NPC is a JSON document
// at npc:{id}; npc:ids and npc:location:{tag} sets act as indexes.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements NPCRepository interface
var _ NPCRepository = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis-backed repository from a redis:// URL
func NewRedisStorage(redisURL string, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisStorage{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

func npcKey(id int64) string {
	return npcKeyPrefix + strconv.FormatInt(id, 10)
}

func locationKey(location string) string {
	return npcLocationPrefix + location
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return Wrap("ping", fmt.Errorf("redis ping failed: %w", err))
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Read operations

func (r *RedisStorage) GetByID(ctx context.Context, id int64) (*actor.NPC, error) {
	data, err := r.client.Get(ctx, npcKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load NPC", "id", id, "error", err)
		return nil, Wrap("get", err)
	}
	npc, err := decodeNPC(data)
	if err != nil {
		return nil, Wrap("get", err)
	}
	return npc, nil
}

func (r *RedisStorage) GetAll(ctx context.Context) ([]actor.NPC, error) {
	return r.loadSet(ctx, "list", npcIDsKey)
}

func (r *RedisStorage) GetByLocation(ctx context.Context, location string) ([]actor.NPC, error) {
	return r.loadSet(ctx, "list_by_location", locationKey(location))
}

// loadSet resolves every id in an index set to its record. Ids whose record
// vanished between the two reads are skipped.
func (r *RedisStorage) loadSet(ctx context.Context, op, setKey string) ([]actor.NPC, error) {
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		r.logger.Error("Failed to read NPC index", "key", setKey, "error", err)
		return nil, Wrap(op, err)
	}
	npcs := make([]actor.NPC, 0, len(ids))
	if len(ids) == 0 {
		return npcs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = npcKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		r.logger.Error("Failed to load NPCs", "key", setKey, "error", err)
		return nil, Wrap(op, err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			r.logger.Warn("NPC index references missing record", "key", keys[i])
			continue
		}
		npc, err := decodeNPC(s)
		if err != nil {
			return nil, Wrap(op, err)
		}
		npcs = append(npcs, *npc)
	}
	sort.Slice(npcs, func(i, j int) bool { return npcs[i].ID < npcs[j].ID })
	return npcs, nil
}

// Write operations

func (r *RedisStorage) Create(ctx context.Context, create actor.NPCCreate) (*actor.NPC, error) {
	if err := CheckHealth(create.Health); err != nil {
		return nil, Wrap("create", err)
	}

	id, err := r.client.Incr(ctx, npcNextIDKey).Result()
	if err != nil {
		r.logger.Error("Failed to allocate NPC id", "error", err)
		return nil, Wrap("create", err)
	}

	npc := create.NPC(id)
	data, err := json.Marshal(npc)
	if err != nil {
		return nil, Wrap("create", fmt.Errorf("failed to marshal NPC: %w", err))
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, npcKey(id), data, 0)
		pipe.SAdd(ctx, npcIDsKey, id)
		if npc.Location != nil {
			pipe.SAdd(ctx, locationKey(*npc.Location), id)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save NPC", "id", id, "error", err)
		return nil, Wrap("create", err)
	}
	return npc, nil
}

func (r *RedisStorage) Update(ctx context.Context, update actor.NPCUpdate) (*actor.NPC, error) {
	return r.mutate(ctx, "update", update.ID, update.Apply)
}

func (r *RedisStorage) SetLocation(ctx context.Context, id int64, location string) (*actor.NPC, error) {
	return r.mutate(ctx, "set_location", id, func(n *actor.NPC) {
		loc := location
		n.Location = &loc
	})
}

func (r *RedisStorage) SetHealth(ctx context.Context, id int64, health int) (*actor.NPC, error) {
	return r.mutate(ctx, "set_health", id, func(n *actor.NPC) {
		n.Health = health
	})
}

func (r *RedisStorage) Delete(ctx context.Context, id int64) (bool, error) {
	key := npcKey(id)
	deleted := false

	err := r.withRetry(ctx, key, func(tx *redis.Tx) error {
		current, err := r.readTx(ctx, tx, key)
		if err != nil || current == nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, npcIDsKey, id)
			if current.Location != nil {
				pipe.SRem(ctx, locationKey(*current.Location), id)
			}
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	})
	if err != nil {
		r.logger.Error("Failed to delete NPC", "id", id, "error", err)
		return false, Wrap("delete", err)
	}
	return deleted, nil
}

// mutate runs a WATCH/MULTI read-modify-write on one record and keeps the
// location index in step. Returns nil if the record doesn't exist.
func (r *RedisStorage) mutate(ctx context.Context, op string, id int64, apply func(*actor.NPC)) (*actor.NPC, error) {
	key := npcKey(id)
	var result *actor.NPC

	err := r.withRetry(ctx, key, func(tx *redis.Tx) error {
		current, err := r.readTx(ctx, tx, key)
		if err != nil || current == nil {
			return err
		}
		oldLocation := current.Location

		updated := current.Clone()
		apply(updated)
		if err := CheckHealth(updated.Health); err != nil {
			return err
		}
		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("failed to marshal NPC: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if !sameLocation(oldLocation, updated.Location) {
				if oldLocation != nil {
					pipe.SRem(ctx, locationKey(*oldLocation), id)
				}
				if updated.Location != nil {
					pipe.SAdd(ctx, locationKey(*updated.Location), id)
				}
			}
			return nil
		})
		if err == nil {
			result = updated
		}
		return err
	})
	if err != nil {
		r.logger.Error("Failed to update NPC", "id", id, "op", op, "error", err)
		return nil, Wrap(op, err)
	}
	return result, nil
}

func (r *RedisStorage) withRetry(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.Debug("Redis transaction conflict, retrying", "key", key, "attempt", i+1)
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %s failed after %d attempts", key, maxTxRetries)
}

func (r *RedisStorage) readTx(ctx context.Context, tx *redis.Tx, key string) (*actor.NPC, error) {
	data, err := tx.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeNPC(data)
}

func decodeNPC(data string) (*actor.NPC, error) {
	var npc actor.NPC
	if err := json.Unmarshal([]byte(data), &npc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal NPC: %w", err)
	}
	if npc.Dialogue == nil {
		npc.Dialogue = []string{}
	}
	return &npc, nil
}

func sameLocation(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
