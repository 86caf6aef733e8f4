package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"SigForge/internal/domain/models"
)

// RedisActiveIndex enforces at most one ACTIVE signal per
// (strategy, asset) across instances. The atomicity of SetNX is what
// makes the claim an atomic check-and-insert.
type RedisActiveIndex struct {
	client *redis.Client
	prefix string
}

func NewRedisActiveIndex(client *redis.Client, prefix string) *RedisActiveIndex {
	if prefix == "" {
		prefix = "sigforge"
	}
	return &RedisActiveIndex{client: client, prefix: prefix}
}

func (r *RedisActiveIndex) key(strategyID, asset string) string {
	return fmt.Sprintf("%s:active:%s:%s", r.prefix, strategyID, asset)
}

func (r *RedisActiveIndex) Claim(ctx context.Context, sig *models.Signal) (bool, error) {
	b, err := json.Marshal(sig)
	if err != nil {
		return false, fmt.Errorf("marshal signal: %w", err)
	}
	// TTL matches the hard validity window so a crashed resolver cannot
	// leave a pair blocked forever.
	ttl := sig.ExpiresAt.Sub(sig.CreatedAt)
	ok, err := r.client.SetNX(ctx, r.key(sig.StrategyID, sig.Asset), b, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", sig.StrategyID, sig.Asset, err)
	}
	return ok, nil
}

func (r *RedisActiveIndex) List(ctx context.Context) ([]*models.Signal, error) {
	pattern := fmt.Sprintf("%s:active:*", r.prefix)
	var out []*models.Signal
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		b, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", iter.Val(), err)
		}
		var sig models.Signal
		if err := json.Unmarshal(b, &sig); err != nil {
			continue
		}
		out = append(out, &sig)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan active: %w", err)
	}
	return out, nil
}

func (r *RedisActiveIndex) Release(ctx context.Context, strategyID, asset string) error {
	if err := r.client.Del(ctx, r.key(strategyID, asset)).Err(); err != nil {
		return fmt.Errorf("release %s/%s: %w", strategyID, asset, err)
	}
	return nil
}

func (r *RedisActiveIndex) Count(ctx context.Context) (int, error) {
	pattern := fmt.Sprintf("%s:active:*", r.prefix)
	n := 0
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

func (r *RedisActiveIndex) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:active:*", r.prefix)
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("clear %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// RedisSnapshotStore keeps the last evaluation and consensus results.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSnapshotStore(client *redis.Client, prefix string) *RedisSnapshotStore {
	if prefix == "" {
		prefix = "sigforge"
	}
	return &RedisSnapshotStore{client: client, prefix: prefix}
}

func (r *RedisSnapshotStore) SaveEvaluation(ctx context.Context, s *models.EvaluationSnapshot) error {
	return r.save(ctx, r.prefix+":snapshot:evaluation", s)
}

func (r *RedisSnapshotStore) LoadEvaluation(ctx context.Context) (*models.EvaluationSnapshot, error) {
	var s models.EvaluationSnapshot
	ok, err := r.load(ctx, r.prefix+":snapshot:evaluation", &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (r *RedisSnapshotStore) SaveConsensus(ctx context.Context, res *models.ConsensusResult) error {
	return r.save(ctx, r.prefix+":snapshot:consensus", res)
}

func (r *RedisSnapshotStore) LoadConsensus(ctx context.Context) (*models.ConsensusResult, error) {
	var res models.ConsensusResult
	ok, err := r.load(ctx, r.prefix+":snapshot:consensus", &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

func (r *RedisSnapshotStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx,
		r.prefix+":snapshot:evaluation",
		r.prefix+":snapshot:consensus",
	).Err()
}

func (r *RedisSnapshotStore) save(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

func (r *RedisSnapshotStore) load(ctx context.Context, key string, v interface{}) (bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return true, nil
}
