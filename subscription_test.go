package ftsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ftsync/internal/resource"
	"github.com/hupe1980/ftsync/lexical"
	"github.com/hupe1980/ftsync/model"
)

// newTestSubscription registers a posts subscription backed by an
// in-memory index.
func newTestSubscription(t *testing.T, registry *Registry, opts options) *Subscription {
	t.Helper()
	table := postsTable(model.SearchableNames("title", "body"))
	schema, searchable, err := mapSchema(table)
	require.NoError(t, err)

	indexes := newIndexStore(opts, resource.NewController(resource.Config{}))
	idx, err := indexes.Open(context.Background(), table.Name, schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = indexes.CloseAll() })

	sub := newSubscription(table, idx, indexes, searchable, opts)
	if registry != nil {
		require.True(t, registry.add(sub))
	}
	return sub
}

func doc(id, title string) lexical.Document {
	return lexical.Document{"id": id, "title": title}
}

func TestBatch_Collapse(t *testing.T) {
	tests := []struct {
		name    string
		changes []change
		want    change
	}{
		{"new then modified", []change{{changeNew, doc("1", "a")}, {changeModified, doc("1", "b")}}, change{changeModified, doc("1", "b")}},
		{"modified then new", []change{{changeModified, doc("1", "a")}, {changeNew, doc("1", "b")}}, change{changeModified, doc("1", "a")}},
		{"new then deleted", []change{{changeNew, doc("1", "a")}, {changeDeleted, nil}}, change{changeDeleted, nil}},
		{"deleted then new", []change{{changeDeleted, nil}, {changeNew, doc("1", "b")}}, change{changeDeleted, nil}},
		{"deleted then modified", []change{{changeDeleted, nil}, {changeModified, doc("1", "b")}}, change{changeDeleted, nil}},
		{"modified twice", []change{{changeModified, doc("1", "a")}, {changeModified, doc("1", "b")}}, change{changeModified, doc("1", "b")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBatch()
			for _, c := range tt.changes {
				b.add("1", c)
			}
			assert.Equal(t, []string{"1"}, b.keys)
			assert.Equal(t, tt.want, b.changes["1"])
		})
	}
}

func TestBatch_KeyOrderAndCounts(t *testing.T) {
	b := newBatch()
	b.add("2", change{changeNew, doc("2", "x")})
	b.add("1", change{changeDeleted, nil})
	b.add("3", change{changeModified, doc("3", "y")})
	b.add("2", change{changeModified, doc("2", "z")})

	assert.Equal(t, []string{"2", "1", "3"}, b.keys)
	upserts, deletes := b.counts()
	assert.Equal(t, 2, upserts)
	assert.Equal(t, 1, deletes)

	assert.Equal(t, "new", changeNew.String())
	assert.Equal(t, "modified", changeModified.String())
	assert.Equal(t, "deleted", changeDeleted.String())
}

func TestSubscription_FlushAppliesDeletesFirst(t *testing.T) {
	sub := newTestSubscription(t, nil, applyOptions(nil))
	ctx := context.Background()

	// A batch that deletes and re-adds the same key must leave it present.
	first := newBatch()
	first.add("1", change{changeNew, doc("1", "old")})
	sub.enqueue(first)
	require.NoError(t, sub.flush(ctx))

	second := newBatch()
	second.add("2", change{changeNew, doc("2", "fresh")})
	second.add("1", change{changeDeleted, nil})
	sub.enqueue(second)
	third := newBatch()
	third.add("1", change{changeNew, doc("1", "back")})
	sub.enqueue(third)
	assert.Equal(t, 2, sub.Pending())

	require.NoError(t, sub.flush(ctx))
	assert.Zero(t, sub.Pending())
	assert.Equal(t, 2, sub.Index().DocCount())

	d, ok := sub.Index().Document("1")
	require.True(t, ok)
	assert.Equal(t, "back", d["title"])

	// Flushing with nothing pending is a no-op.
	require.NoError(t, sub.flush(ctx))
}

func TestSubscription_Accessors(t *testing.T) {
	sub := newTestSubscription(t, nil, applyOptions(nil))
	assert.Equal(t, "posts", sub.Table())
	assert.Equal(t, []string{"id"}, sub.PrimaryKey())
	assert.Equal(t, []string{"title", "body"}, sub.Fields())
	assert.Equal(t, []string{"body", "id", "title"}, sub.Schema().FieldNames())

	key, c, err := sub.classify(testRow{table: "posts", values: map[string]any{"id": 3, "title": "t", "created": "x"}}, changeModified)
	require.NoError(t, err)
	assert.Equal(t, "3", key)
	assert.Equal(t, change{changeModified, lexical.Document{"id": "3", "title": "t"}}, c)

	_, c, err = sub.classify(testRow{table: "posts", values: map[string]any{"id": 3}}, changeDeleted)
	require.NoError(t, err)
	assert.Nil(t, c.doc)
}

func TestRegistry(t *testing.T) {
	r := newRegistry()
	sub := newTestSubscription(t, r, applyOptions(nil))

	got, ok := r.Lookup("posts")
	require.True(t, ok)
	assert.Same(t, sub, got)
	assert.False(t, r.add(sub))
	assert.Equal(t, []string{"posts"}, r.Tables())
	assert.Len(t, r.all(), 1)

	r.remove("posts")
	_, ok = r.Lookup("posts")
	assert.False(t, ok)
	assert.Empty(t, r.Tables())
}
