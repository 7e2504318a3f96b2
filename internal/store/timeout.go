package store

import (
	"context"
	"time"
)

// timeoutStore bounds every call with a client-side deadline, the way hosted
// SDKs do. Expired calls surface as CodeDeadlineExceeded.
type timeoutStore struct {
	next    DocumentStore
	timeout time.Duration
}

// WithTimeout wraps next so every call gets at most d. A non-positive d
// returns next unchanged.
func WithTimeout(next DocumentStore, d time.Duration) DocumentStore {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

func (s *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// deadline reports a timeout even when the backend returned a driver error
// instead of the context error.
func deadline(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && CodeOf(err) != CodeDeadlineExceeded {
		if ce := wrapContext(op, ctx.Err()); ce != nil {
			return ce
		}
	}
	return err
}

func (s *timeoutStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	id, err := s.next.Insert(ctx, collection, doc)
	return id, deadline(ctx, "insert", err)
}

func (s *timeoutStore) Create(ctx context.Context, collection, id string, doc Document) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return deadline(ctx, "create", s.next.Create(ctx, collection, id, doc))
}

func (s *timeoutStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	snap, err := s.next.Get(ctx, collection, id)
	return snap, deadline(ctx, "get", err)
}

func (s *timeoutStore) Update(ctx context.Context, collection, id string, fields Document) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return deadline(ctx, "update", s.next.Update(ctx, collection, id, fields))
}

func (s *timeoutStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	snaps, err := s.next.Query(ctx, collection, q)
	return snaps, deadline(ctx, "query", err)
}

func (s *timeoutStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return deadline(ctx, "increment", s.next.Increment(ctx, collection, id, field, delta))
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}
