package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/config"
)

func newTestRedisStore(t *testing.T) (*RedisRunStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(config.RedisConfig{Addr: mr.Addr()})
	store := NewRedisRunStore(client, "test:", time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisRunStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) core.RunStore {
		store, _ := newTestRedisStore(t)
		return store
	})
}

func TestRedisRunStore_KeysAndTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	run := &core.Run{ID: uuid.New(), State: core.RunStatePolling, StartedAt: time.Now()}

	require.NoError(t, store.SaveRun(context.Background(), run))

	key := "test:run:" + run.ID.String()
	require.True(t, mr.Exists(key))
	require.Equal(t, time.Hour, mr.TTL(key))

	members, err := mr.ZMembers("test:runs")
	require.NoError(t, err)
	require.Equal(t, []string{run.ID.String()}, members)
}

func TestRedisRunStore_PrunesExpiredRuns(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	expired := &core.Run{ID: uuid.New(), State: core.RunStateSucceeded, StartedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.SaveRun(ctx, expired))
	mr.FastForward(2 * time.Hour)

	live := &core.Run{ID: uuid.New(), State: core.RunStateSucceeded, StartedAt: time.Now()}
	require.NoError(t, store.SaveRun(ctx, live))

	runs, total, err := store.ListRuns(ctx, core.RunFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, live.ID, runs[0].ID)

	members, err := mr.ZMembers("test:runs")
	require.NoError(t, err)
	require.Equal(t, []string{live.ID.String()}, members)
}

func TestRedisRunStore_PageRefillsAfterPruning(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	base := time.Now()

	var all []*core.Run
	for i := range 5 {
		run := &core.Run{ID: uuid.New(), State: core.RunStateSucceeded, StartedAt: base.Add(time.Duration(i) * time.Second)}
		all = append(all, run)
		require.NoError(t, store.SaveRun(ctx, run))
	}
	// Expire the second newest and a run outside the first page.
	mr.Del("test:run:" + all[3].ID.String())
	mr.Del("test:run:" + all[0].ID.String())

	page, total, err := store.ListRuns(ctx, core.RunFilter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{all[4].ID, all[2].ID}, ids(page))
	require.Equal(t, 4, total)

	members, err := mr.ZMembers("test:runs")
	require.NoError(t, err)
	require.Len(t, members, 4)
	require.NotContains(t, members, all[3].ID.String())
	require.Contains(t, members, all[0].ID.String(), "entries outside the page are left alone")

	page, total, err = store.ListRuns(ctx, core.RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{all[1].ID}, ids(page))
	require.Equal(t, 3, total)

	page, total, err = store.ListRuns(ctx, core.RunFilter{Limit: 2, Offset: 5})
	require.NoError(t, err)
	require.Empty(t, page)
	require.Equal(t, 3, total)
}

func TestRedisRunStore_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := NewRedisRunStore(client, "test:", time.Hour)
	mr.Close()

	err := store.SaveRun(context.Background(), &core.Run{ID: uuid.New()})
	require.Error(t, err)

	_, err = store.GetRun(context.Background(), uuid.New())
	require.Error(t, err)
	require.NotErrorIs(t, err, core.ErrRunNotFound)
}
