package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/config"
)

// RedisRunStore keeps each run as a JSON document with a TTL and indexes run IDs in
// a sorted set scored by start time.
type RedisRunStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisRunStore(client *redis.Client, prefix string, ttl time.Duration) *RedisRunStore {
	return &RedisRunStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisRunStore) runKey(id string) string {
	return s.prefix + "run:" + id
}

func (s *RedisRunStore) indexKey() string {
	return s.prefix + "runs"
}

func (s *RedisRunStore) SaveRun(ctx context.Context, run *core.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}

	id := run.ID.String()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(id), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(run.StartedAt.UnixMilli()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save run %s: %w", id, err)
	}
	return nil
}

func (s *RedisRunStore) GetRun(ctx context.Context, id uuid.UUID) (*core.Run, error) {
	data, err := s.client.Get(ctx, s.runKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	var run core.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns reads the index newest first. Without a state filter only the requested
// window is loaded, and total counts indexed runs, so it may include runs that expired
// outside that window. A state filter needs every document and walks the whole index.
// Entries whose documents have expired are pruned either way.
func (s *RedisRunStore) ListRuns(ctx context.Context, filter core.RunFilter) ([]*core.Run, int, error) {
	if filter.State == nil {
		return s.listPage(ctx, filter)
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list run index: %w", err)
	}
	runs, expired, err := s.load(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	if err := s.prune(ctx, expired); err != nil {
		return nil, 0, err
	}

	matched := make([]*core.Run, 0, len(runs))
	for _, run := range runs {
		if run.State == *filter.State {
			matched = append(matched, run)
		}
	}
	sortNewestFirst(matched)
	return paginate(matched, filter), len(matched), nil
}

func (s *RedisRunStore) listPage(ctx context.Context, filter core.RunFilter) ([]*core.Run, int, error) {
	total, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("count run index: %w", err)
	}

	start := int64(max(filter.Offset, 0))
	stop := int64(-1)
	if filter.Limit > 0 {
		stop = start + int64(filter.Limit) - 1
	}

	runs := []*core.Run{}
	for pos := start; pos < total; {
		ids, err := s.client.ZRevRange(ctx, s.indexKey(), pos, stop).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("list run index: %w", err)
		}
		page, expired, err := s.load(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, page...)
		if len(expired) == 0 {
			break
		}
		if err := s.prune(ctx, expired); err != nil {
			return nil, 0, err
		}
		// Pruned entries shift the rest of the index into the window.
		total -= int64(len(expired))
		pos = start + int64(len(runs))
	}
	return runs, int(total), nil
}

// load fetches the documents for ids in one MGET. IDs without a document are
// returned as expired.
func (s *RedisRunStore) load(ctx context.Context, ids []string) ([]*core.Run, []any, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("load runs: %w", err)
	}

	var (
		runs    []*core.Run
		expired []any
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var run core.Run
		if err := json.Unmarshal([]byte(raw), &run); err != nil {
			return nil, nil, fmt.Errorf("unmarshal run %s: %w", ids[i], err)
		}
		runs = append(runs, &run)
	}
	return runs, expired, nil
}

func (s *RedisRunStore) prune(ctx context.Context, expired []any) error {
	if len(expired) == 0 {
		return nil
	}
	if err := s.client.ZRem(ctx, s.indexKey(), expired...).Err(); err != nil {
		return fmt.Errorf("prune run index: %w", err)
	}
	return nil
}

func (s *RedisRunStore) Close() error {
	return s.client.Close()
}
