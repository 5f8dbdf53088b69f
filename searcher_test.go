package ftsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSearcher_QueryCache(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		cached bool
	}{
		{name: "disabled", size: 0},
		{name: "negative", size: -1},
		{name: "bounded", size: 2, cached: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := applyOptions([]Option{WithQueryCacheSize(tt.size)})
			sub := newTestSubscription(t, nil, opts)

			s, err := newSearcher(sub, nil, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.cached, s.cache != nil)

			for _, text := range []string{"alpha", "beta", "gamma", "alpha"} {
				_, err := s.Parse(text, OperatorAnd)
				require.NoError(t, err)
			}
			if tt.cached {
				// Eviction keeps the cache at its configured size.
				assert.Equal(t, tt.size, s.cache.Len())
			}
		})
	}
}
