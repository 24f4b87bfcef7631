package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(id, owner, path string) *model.Rule {
	return &model.Rule{
		ID:           id,
		Owner:        owner,
		Path:         path,
		Method:       model.MethodGet,
		StatusCode:   200,
		ContentType:  "application/json",
		ResponseBody: "ok",
		ResponseType: model.ResponseTypeStatic,
		Status:       model.RuleStatusActive,
		Version:      1,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestMemoryStorageCreateAndConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	r := testRule("r1", "u1", "/a")
	require.NoError(t, s.CreateRule(ctx, r, model.NewHistoryEntry(model.HistoryActionCreate, nil, r, "u1", "")))

	dup := testRule("r2", "u1", "/a")
	err := s.CreateRule(ctx, dup, model.NewHistoryEntry(model.HistoryActionCreate, nil, dup, "u1", ""))
	var ce *model.ConflictError
	require.True(t, errors.As(err, &ce))

	// same route for another owner is a different key
	other := testRule("r3", "u2", "/a")
	require.NoError(t, s.CreateRule(ctx, other, model.NewHistoryEntry(model.HistoryActionCreate, nil, other, "u2", "")))

	found, err := s.FindByRouteKey(ctx, "u1", "/a", model.MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "r1", found.ID)

	missing, err := s.FindByRouteKey(ctx, "u1", "/b", model.MethodGet)
	require.NoError(t, err)
	assert.Nil(t, missing)

	owned, err := s.ListRulesByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	all, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	history, err := s.ListHistory(ctx, "r2")
	require.NoError(t, err)
	assert.Empty(t, history, "failed create leaves no history")
}

func TestMemoryStorageFindActiveByRoute(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	base := time.Now().UTC()

	older := testRule("r1", "u1", "/users/:id")
	older.CreatedAt = base
	newer := testRule("r2", "u2", "/users/{uid}")
	newer.CreatedAt = base.Add(time.Second)
	inactive := testRule("r3", "u3", "/users/:x")
	inactive.CreatedAt = base.Add(2 * time.Second)
	inactive.Status = model.RuleStatusInactive
	otherMethod := testRule("r4", "u4", "/users/:id")
	otherMethod.CreatedAt = base.Add(3 * time.Second)
	otherMethod.Method = model.MethodPost
	for _, r := range []*model.Rule{older, newer, inactive, otherMethod} {
		require.NoError(t, s.CreateRule(ctx, r, nil))
	}

	found, err := s.FindActiveByRoute(ctx, "/users/:id", "get", "")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "r2", found.ID, "latest created active rule wins")

	found, err = s.FindActiveByRoute(ctx, "/users/:id", model.MethodGet, "r2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "r1", found.ID)

	found, err = s.FindActiveByRoute(ctx, "/users/me", model.MethodGet, "")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryStorageUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	r := testRule("r1", "u1", "/a")
	require.NoError(t, s.CreateRule(ctx, r, model.NewHistoryEntry(model.HistoryActionCreate, nil, r, "u1", "")))
	blocker := testRule("r2", "u1", "/b")
	require.NoError(t, s.CreateRule(ctx, blocker, model.NewHistoryEntry(model.HistoryActionCreate, nil, blocker, "u1", "")))

	moved := r.Clone()
	moved.Path = "/b"
	moved.Version = 2
	err := s.UpdateRule(ctx, moved, model.NewHistoryEntry(model.HistoryActionUpdate, r, moved, "u1", ""))
	var ce *model.ConflictError
	require.True(t, errors.As(err, &ce))

	moved.Path = "/c"
	require.NoError(t, s.UpdateRule(ctx, moved, model.NewHistoryEntry(model.HistoryActionUpdate, r, moved, "u1", "")))

	old, err := s.FindByRouteKey(ctx, "u1", "/a", model.MethodGet)
	require.NoError(t, err)
	assert.Nil(t, old, "old route key is released")

	stale := r.Clone()
	stale.Version = 2
	assert.ErrorIs(t, s.UpdateRule(ctx, stale, nil), ErrStaleVersion)

	ghost := testRule("nope", "u1", "/z")
	ghost.Version = 2
	var ne *model.NotFoundError
	assert.True(t, errors.As(s.UpdateRule(ctx, ghost, nil), &ne))

	history, err := s.ListHistory(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, 2, history[1].Version)
}

func TestMemoryStorageDeleteKeepsHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	r := testRule("r1", "u1", "/a")
	require.NoError(t, s.CreateRule(ctx, r, model.NewHistoryEntry(model.HistoryActionCreate, nil, r, "u1", "")))
	require.NoError(t, s.DeleteRule(ctx, "r1", model.NewHistoryEntry(model.HistoryActionDelete, r, nil, "u1", "")))

	_, err := s.GetRule(ctx, "r1")
	var ne *model.NotFoundError
	assert.True(t, errors.As(err, &ne))
	assert.True(t, errors.As(s.DeleteRule(ctx, "r1", nil), &ne))

	history, err := s.ListHistory(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.HistoryActionDelete, history[1].Action)

	// the route key is free again
	again := testRule("r2", "u1", "/a")
	assert.NoError(t, s.CreateRule(ctx, again, nil))
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	r := testRule("r1", "u1", "/a")
	require.NoError(t, s.CreateRule(ctx, r, nil))
	r.ResponseBody = "mutated after create"

	got, err := s.GetRule(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.ResponseBody)

	got.ResponseBody = "mutated after get"
	again, _ := s.GetRule(ctx, "r1")
	assert.Equal(t, "ok", again.ResponseBody)
}

func TestMemoryStorageIncrementUsageConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.CreateRule(ctx, testRule("r1", "u1", "/a"), nil))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementUsage(ctx, "r1", time.Now()))
		}()
	}
	wg.Wait()

	got, err := s.GetRule(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.UsageCount)
	assert.NotNil(t, got.LastUsed)
}

func TestMemoryStorageRequestLogs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveRequestLog(ctx, &model.RequestLog{RuleID: "r1", ResponseStatus: 200 + i}))
	}
	require.NoError(t, s.SaveRequestLog(ctx, &model.RequestLog{RuleID: "r2"}))

	logs, err := s.ListRequestLogs(ctx, "r1", 3)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, 204, logs[0].ResponseStatus, "newest first")

	all, err := s.ListRequestLogs(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
