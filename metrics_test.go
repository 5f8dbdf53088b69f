package ftsync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	m := &BasicMetricsCollector{}

	m.RecordFlush("posts", 3, 2*time.Millisecond, nil)
	m.RecordFlush("posts", 0, 4*time.Millisecond, errors.New("fail"))
	m.RecordSearch("posts", 5, time.Millisecond, nil)
	m.RecordSearch("posts", 0, time.Millisecond, errors.New("parse"))
	m.RecordBackfill("posts", 10, time.Second, nil)
	m.RecordBackfill("posts", 0, time.Second, errors.New("boom"))

	// Pending is the sum of the latest value per table.
	m.RecordPending("posts", 2)
	m.RecordPending("tags", 3)
	m.RecordPending("posts", 1)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.FlushCount)
	assert.Equal(t, int64(1), stats.FlushErrors)
	assert.Equal(t, int64(3), stats.FlushDocs)
	assert.Equal(t, int64(3*time.Millisecond), stats.FlushAvgNanos)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(5), stats.SearchHits)
	assert.Equal(t, int64(2), stats.BackfillCount)
	assert.Equal(t, int64(10), stats.BackfillDocs)
	assert.Equal(t, int64(1), stats.BackfillErrors)
	assert.Equal(t, int64(4), stats.Pending)

	var noop MetricsCollector = NoopMetricsCollector{}
	noop.RecordFlush("posts", 1, 0, nil)
	noop.RecordPending("posts", 1)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	l.LogRegister(ctx, "posts", []string{"title"}, nil)
	assert.Contains(t, buf.String(), `"msg":"table registered"`)
	assert.Contains(t, buf.String(), `"fields":["title"]`)

	buf.Reset()
	l.LogFlush(ctx, "posts", 2, 1, 1, errors.New("disk full"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"error":"disk full"`)

	buf.Reset()
	l.WithTable("tags").LogStale(ctx, "tx-1", time.Minute, 2)
	assert.Contains(t, buf.String(), `"table":"tags"`)
	assert.Contains(t, buf.String(), `"tx":"tx-1"`)

	buf.Reset()
	l.LogSearch(ctx, "posts", "love", 3, nil)
	l.LogBackfill(ctx, "posts", 7, time.Second, nil)
	assert.Contains(t, buf.String(), `"hits":3`)
	assert.Contains(t, buf.String(), `"docs":7`)

	// The noop logger discards everything.
	NoopLogger().LogRegister(ctx, "posts", nil, errors.New("ignored"))
}
