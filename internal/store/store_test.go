package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T, opts ...Option) DocumentStore

func memoryFactory(t *testing.T, opts ...Option) DocumentStore {
	return NewMemoryStore(opts...)
}

func sqliteFactory(t *testing.T, opts ...Option) DocumentStore {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "documents.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, memoryFactory)
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, sqliteFactory)
}

func runStoreSuite(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("insert and get resolve sentinels", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, "stories", Document{
			"title":     "The Lighthouse",
			"views":     0,
			"likes":     Inc(2),
			"featured":  false,
			"createdAt": ServerTimestamp,
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		snap, err := s.Get(ctx, "stories", id)
		require.NoError(t, err)
		assert.Equal(t, id, snap.ID)
		assert.Equal(t, "The Lighthouse", snap.Data.String("title"))
		assert.Equal(t, int64(0), snap.Data.Int("views"))
		assert.Equal(t, int64(2), snap.Data.Int("likes"))
		assert.False(t, snap.Data.Bool("featured"))
		assert.False(t, snap.Data.Time("createdAt").IsZero())
	})

	t.Run("get missing document", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "stories", "nope")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("update merges fields and applies increments", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, "stories", Document{
			"title":        "Dust",
			"chapterCount": 1,
			"updatedAt":    ServerTimestamp,
		})
		require.NoError(t, err)
		before, err := s.Get(ctx, "stories", id)
		require.NoError(t, err)

		err = s.Update(ctx, "stories", id, Document{
			"chapterCount": Inc(1),
			"prompt":       "What happens next?",
			"updatedAt":    ServerTimestamp,
		})
		require.NoError(t, err)

		after, err := s.Get(ctx, "stories", id)
		require.NoError(t, err)
		assert.Equal(t, "Dust", after.Data.String("title"))
		assert.Equal(t, int64(2), after.Data.Int("chapterCount"))
		assert.Equal(t, "What happens next?", after.Data.String("prompt"))
		assert.True(t, after.Data.Time("updatedAt").After(before.Data.Time("updatedAt")))
	})

	t.Run("update missing document", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, "stories", "missing", Document{"likes": Inc(1)})
		assert.True(t, IsNotFound(err))
		err = s.Increment(ctx, "stories", "missing", "likes", 1)
		assert.True(t, IsNotFound(err))
	})

	t.Run("increment is atomic", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, "stories", Document{"likes": 0})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Increment(ctx, "stories", id, "likes", 1))
			}()
		}
		wg.Wait()

		snap, err := s.Get(ctx, "stories", id)
		require.NoError(t, err)
		assert.Equal(t, int64(25), snap.Data.Int("likes"))
	})

	t.Run("create fails when id exists", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, "contributors", "a", Document{"author": "Ann", "createdAt": ServerTimestamp}))
		err := s.Create(ctx, "contributors", "a", Document{"author": "Ann"})
		assert.True(t, IsAlreadyExists(err))

		snap, err := s.Get(ctx, "contributors", "a")
		require.NoError(t, err)
		assert.Equal(t, "Ann", snap.Data.String("author"))
	})

	t.Run("query filters orders and limits", func(t *testing.T) {
		s := newStore(t)
		seed := []Document{
			{"title": "alpha", "genre": "fantasy", "status": "active", "views": 5},
			{"title": "beta", "genre": "horror", "status": "active", "views": 9},
			{"title": "gamma", "genre": "fantasy", "status": "hidden", "views": 7},
			{"title": "alps", "genre": "fantasy", "status": "active", "views": 1},
			{"title": "untracked", "genre": "fantasy", "status": "active"},
		}
		for _, d := range seed {
			_, err := s.Insert(ctx, "stories", d)
			require.NoError(t, err)
		}

		snaps, err := s.Query(ctx, "stories", Query{Filters: []Filter{Where("status", OpEqual, "active")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta", "alps", "untracked"}, titles(snaps))

		snaps, err = s.Query(ctx, "stories", Query{
			Filters: []Filter{Where("status", OpEqual, "active"), Where("genre", OpEqual, "fantasy")},
			OrderBy: Order("views", Desc),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "alps"}, titles(snaps))

		snaps, err = s.Query(ctx, "stories", Query{OrderBy: Order("views", Asc), Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"alps", "alpha"}, titles(snaps))

		snaps, err = s.Query(ctx, "stories", Query{
			Filters: []Filter{
				Where("title", OpGreaterOrEqual, "al"),
				Where("title", OpLess, "al\uf8ff"),
			},
			OrderBy: Order("title", Asc),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "alps"}, titles(snaps))
	})

	t.Run("query by boolean and time", func(t *testing.T) {
		s := newStore(t)
		start := time.Now().Add(-time.Hour)
		_, err := s.Insert(ctx, "stories", Document{"title": "a", "featured": true, "createdAt": ServerTimestamp})
		require.NoError(t, err)
		_, err = s.Insert(ctx, "stories", Document{"title": "b", "featured": false, "createdAt": ServerTimestamp})
		require.NoError(t, err)

		snaps, err := s.Query(ctx, "stories", Query{Filters: []Filter{Where("featured", OpEqual, true)}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, titles(snaps))

		snaps, err = s.Query(ctx, "stories", Query{
			Filters: []Filter{Where("createdAt", OpGreaterOrEqual, start)},
			OrderBy: Order("createdAt", Desc),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, titles(snaps))
	})

	t.Run("query rejects bad field names", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Query(ctx, "stories", Query{Filters: []Filter{Where("x') OR 1=1 --", OpEqual, 1)}})
		require.Error(t, err)
		assert.Equal(t, CodeInvalidArgument, CodeOf(err))
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("composite index enforcement", func(t *testing.T) {
		indexes := NewIndexSet()
		s := newStore(t, WithIndexes(indexes))
		_, err := s.Insert(ctx, "stories", Document{"status": "active", "views": 3})
		require.NoError(t, err)

		composite := Query{
			Filters: []Filter{Where("status", OpEqual, "active")},
			OrderBy: Order("views", Desc),
		}
		_, err = s.Query(ctx, "stories", composite)
		require.Error(t, err)
		assert.Equal(t, CodeFailedPrecondition, CodeOf(err))

		snaps, err := s.Query(ctx, "stories", Query{Filters: []Filter{Where("status", OpEqual, "active")}, Limit: 50})
		require.NoError(t, err)
		assert.Len(t, snaps, 1)

		indexes.Add("stories", "views", "status")
		snaps, err = s.Query(ctx, "stories", composite)
		require.NoError(t, err)
		assert.Len(t, snaps, 1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Insert(cctx, "stories", Document{"title": "x"})
		require.Error(t, err)
		assert.Equal(t, CodeAborted, CodeOf(err))
	})
}

func titles(snaps []Snapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Data.String("title"))
	}
	return out
}

func TestServerClockNeverGoesBackwards(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := newServerClock(func() time.Time { return fixed })

	first := clock.Now()
	second := clock.Now()
	assert.Equal(t, fixed, first)
	assert.True(t, second.After(first))
}

func TestQueryFieldsCompositeDetection(t *testing.T) {
	tests := []struct {
		name      string
		q         Query
		composite bool
	}{
		{"single equality", Query{Filters: []Filter{Where("status", OpEqual, "active")}}, false},
		{"two equalities", Query{Filters: []Filter{Where("status", OpEqual, "active"), Where("genre", OpEqual, "horror")}}, false},
		{"order on filtered field", Query{Filters: []Filter{Where("views", OpGreaterOrEqual, 1)}, OrderBy: Order("views", Desc)}, false},
		{"equality plus order", Query{Filters: []Filter{Where("status", OpEqual, "active")}, OrderBy: Order("createdAt", Desc)}, true},
		{"equality plus range", Query{Filters: []Filter{Where("status", OpEqual, "active"), Where("titleLower", OpLess, "b")}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, composite := queryFields(tt.q)
			assert.Equal(t, tt.composite, composite)
		})
	}
}
