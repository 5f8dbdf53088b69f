package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFlush("posts", 3, 10*time.Millisecond, nil)
	c.RecordFlush("posts", 5, 10*time.Millisecond, errors.New("fail"))
	c.RecordBackfill("posts", 7, time.Second, nil)
	c.RecordSearch("posts", 4, time.Millisecond, nil)
	c.RecordPending("posts", 2)
	c.RecordPending("tags", 1)
	c.RecordPending("posts", 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.docs.WithLabelValues("posts", "flush")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.docs.WithLabelValues("posts", "backfill")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backfills.WithLabelValues("posts", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.pending.WithLabelValues("posts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pending.WithLabelValues("tags")))

	// flush success + flush error + backfill + search
	assert.Equal(t, 4, testutil.CollectAndCount(c.latency))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ftsync_pending_batches")
	assert.Contains(t, names, "ftsync_search_hits")
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}
