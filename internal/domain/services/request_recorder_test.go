package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	model "fake_api_server/internal/domain/model/mock_rule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRecorder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.cfg.RequestLogConfig.MaxBodyBytes = 8

	rec, cleanup, err := NewRequestRecorder(env.cfg, env.mem, env.repo, env.metrics)
	require.NoError(t, err)
	defer cleanup()

	rule, err := env.service.CreateRule(ctx, "alice", staticRule("/logged", "POST", "x"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec.Record(&model.RequestLog{
			RuleID:         rule.ID,
			Method:         "POST",
			Path:           "/logged",
			Body:           strings.Repeat("b", 20),
			ResponseStatus: 200,
			Timestamp:      time.Now().UTC(),
		})
	}

	require.Eventually(t, func() bool {
		logs, err := rec.ListRequestLogs(ctx, "alice", rule.ID, 10)
		return err == nil && len(logs) == 3
	}, 2*time.Second, 10*time.Millisecond)

	logs, err := rec.ListRequestLogs(ctx, "alice", rule.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "bbbbbbbb", logs[0].Body)

	require.Eventually(t, func() bool {
		got, err := env.mem.GetRule(ctx, rule.ID)
		return err == nil && got.UsageCount == 3 && got.LastUsed != nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err = rec.ListRequestLogs(ctx, "bob", rule.ID, 10)
	var ne *model.NotFoundError
	assert.True(t, errors.As(err, &ne), "expected NotFoundError, got %v", err)
}

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		max  int
		want string
	}{
		{name: "unlimited", body: "héllo", max: 0, want: "héllo"},
		{name: "short enough", body: "abc", max: 8, want: "abc"},
		{name: "ascii", body: "abcdef", max: 4, want: "abcd"},
		{name: "inside two byte rune", body: "héllo", max: 2, want: "h"},
		{name: "after two byte rune", body: "héllo", max: 3, want: "hé"},
		{name: "inside cjk rune", body: "你好世界", max: 5, want: "你"},
		{name: "cjk boundary", body: "你好世界", max: 6, want: "你好"},
		{name: "first rune too long", body: "世界", max: 2, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateBody(tt.body, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestDispatchIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rule, err := env.service.CreateRule(ctx, "alice", staticRule("/items/:id", "GET", "x"))
	require.NoError(t, err)

	env.do("GET", "/items/9?verbose=1", "", map[string]string{"User-Agent": "test-agent"})

	logs := env.recorder.all()
	require.Len(t, logs, 1)
	assert.Equal(t, rule.ID, logs[0].RuleID)
	assert.Equal(t, "/items/9", logs[0].Path)
	assert.Equal(t, "verbose=1", logs[0].Query)
	assert.Equal(t, "test-agent", logs[0].UserAgent)
	assert.Equal(t, "alice", logs[0].UserID)
}
