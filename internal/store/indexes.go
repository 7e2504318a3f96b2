package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// IndexSet emulates Firestore's composite-index requirement for local
// backends. A query that orders by one field and filters on another, or that
// combines a range filter with any other field, needs its field combination
// registered first.
type IndexSet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewIndexSet() *IndexSet {
	return &IndexSet{keys: make(map[string]struct{})}
}

// Add registers a composite index over fields of a collection.
func (s *IndexSet) Add(collection string, fields ...string) *IndexSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[indexKey(collection, fields)] = struct{}{}
	return s
}

// Check returns a failed-precondition StoreError when q needs a composite
// index that is not registered. A nil set enforces nothing.
func (s *IndexSet) Check(collection string, q Query) error {
	if s == nil {
		return nil
	}
	fields, composite := queryFields(q)
	if !composite {
		return nil
	}
	s.mu.RLock()
	_, ok := s.keys[indexKey(collection, fields)]
	s.mu.RUnlock()
	if ok {
		return nil
	}
	return NewError(CodeFailedPrecondition, "query",
		fmt.Errorf("the query requires an index on %s(%s)", collection, strings.Join(fields, ", ")))
}

func queryFields(q Query) ([]string, bool) {
	seen := make(map[string]struct{})
	hasRange := false
	for _, f := range q.Filters {
		seen[f.Field] = struct{}{}
		if f.Op != OpEqual {
			hasRange = true
		}
	}
	if q.OrderBy != nil {
		seen[q.OrderBy.Field] = struct{}{}
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	composite := len(fields) > 1 && (q.OrderBy != nil || hasRange)
	return fields, composite
}

func indexKey(collection string, fields []string) string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return collection + "|" + strings.Join(sorted, ",")
}

// Option configures the local backends (memory and SQLite).
type Option func(*storeOptions)

type storeOptions struct {
	indexes *IndexSet
	now     func() time.Time
}

// WithIndexes turns on composite-index enforcement.
func WithIndexes(set *IndexSet) Option {
	return func(o *storeOptions) { o.indexes = set }
}

// WithClock replaces time.Now as the server clock.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// serverClock hands out strictly increasing UTC timestamps so that
// server-assigned times never go backwards between writes.
type serverClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newServerClock(now func() time.Time) *serverClock {
	return &serverClock{now: now}
}

func (c *serverClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
