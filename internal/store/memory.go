package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps every collection in process memory. It is safe for
// concurrent use and keeps insertion order, which is what an unordered
// query returns.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	clock       *serverClock
	indexes     *IndexSet
}

type memCollection struct {
	order []string
	docs  map[string]Document
}

var _ DocumentStore = (*MemoryStore)(nil)

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		collections: make(map[string]*memCollection),
		clock:       newServerClock(o.now),
		indexes:     o.indexes,
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]Document)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapContext("insert", err)
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	c.docs[id] = resolveWrite(nil, doc, s.clock.Now())
	c.order = append(c.order, id)
	return id, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return wrapContext("create", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collection(collection)
	if _, exists := c.docs[id]; exists {
		return NewError(CodeAlreadyExists, "create", fmt.Errorf("%s/%s", collection, id))
	}
	c.docs[id] = resolveWrite(nil, doc, s.clock.Now())
	c.order = append(c.order, id)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, wrapContext("get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return Snapshot{}, NewError(CodeNotFound, "get", fmt.Errorf("%s/%s", collection, id))
	}
	doc, ok := c.docs[id]
	if !ok {
		return Snapshot{}, NewError(CodeNotFound, "get", fmt.Errorf("%s/%s", collection, id))
	}
	return Snapshot{ID: id, Data: doc.Copy()}, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	if err := ctx.Err(); err != nil {
		return wrapContext("update", err)
	}
	for field := range fields {
		if err := validField(field); err != nil {
			return NewError(CodeInvalidArgument, "update", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return NewError(CodeNotFound, "update", fmt.Errorf("%s/%s", collection, id))
	}
	current, ok := c.docs[id]
	if !ok {
		return NewError(CodeNotFound, "update", fmt.Errorf("%s/%s", collection, id))
	}
	c.docs[id] = resolveWrite(current, fields, s.clock.Now())
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Update(ctx, collection, id, Document{field: Inc(delta)})
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContext("query", err)
	}
	if err := q.Validate(); err != nil {
		return nil, NewError(CodeInvalidArgument, "query", err)
	}
	if err := s.indexes.Check(collection, q); err != nil {
		return nil, err
	}

	s.mu.RLock()
	c, ok := s.collections[collection]
	var out []Snapshot
	if ok {
		for _, id := range c.order {
			doc := c.docs[id]
			if matches(doc, q) {
				out = append(out, Snapshot{ID: id, Data: doc.Copy()})
			}
		}
	}
	s.mu.RUnlock()

	if q.OrderBy != nil {
		SortSnapshots(out, *q.OrderBy)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(doc Document, q Query) bool {
	for _, f := range q.Filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		cmp, ok := compareValues(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpGreaterOrEqual:
			if cmp < 0 {
				return false
			}
		case OpLess:
			if cmp >= 0 {
				return false
			}
		}
	}
	if q.OrderBy != nil && !doc.Has(q.OrderBy.Field) {
		return false
	}
	return true
}

// SortSnapshots orders snapshots in place by one field, keeping the
// relative order of equal or incomparable values.
func SortSnapshots(snaps []Snapshot, order OrderBy) {
	sort.SliceStable(snaps, func(i, j int) bool {
		cmp, ok := compareValues(snaps[i].Data[order.Field], snaps[j].Data[order.Field])
		if !ok {
			return false
		}
		if order.Direction == Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// resolveWrite merges fields into base, replacing sentinels with concrete
// values.
func resolveWrite(base, fields Document, now time.Time) Document {
	var out Document
	if base == nil {
		out = make(Document, len(fields))
	} else {
		out = base.Copy()
	}
	for k, v := range fields {
		switch sv := v.(type) {
		case serverTimestamp:
			out[k] = now
		case Incr:
			out[k] = base.Int(k) + sv.Delta
		default:
			out[k] = v
		}
	}
	return out
}
