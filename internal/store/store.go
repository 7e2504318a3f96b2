// Package store defines the document-store contract consumed by the story
// manager and its backends (memory, SQLite, MongoDB, Firestore).
//
// A store holds named collections of schemaless documents. Writes may carry
// two sentinels that the backend resolves at write time: ServerTimestamp and
// Inc. Reads always come back as Snapshots whose Data is read through the
// normalising accessors in document.go, so callers never depend on how a
// particular driver decodes numbers or timestamps.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// DocumentStore is the interface that all backing stores implement.
type DocumentStore interface {
	// Insert writes a new document under a store-assigned id and returns it.
	Insert(ctx context.Context, collection string, doc Document) (string, error)

	// Create writes a document under a caller-chosen id. It fails with
	// CodeAlreadyExists when the id is taken, atomically.
	Create(ctx context.Context, collection, id string, doc Document) error

	// Get returns a single document, or a CodeNotFound error.
	Get(ctx context.Context, collection, id string) (Snapshot, error)

	// Update merges fields into an existing document. Inc values are applied
	// atomically. Missing documents yield CodeNotFound.
	Update(ctx context.Context, collection, id string, fields Document) error

	// Query returns the documents matching every filter, ordered and limited.
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)

	// Increment atomically adds delta to a numeric field.
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	Close() error
}

// Snapshot is a document read back from a store.
type Snapshot struct {
	ID   string
	Data Document
}

type Operator string

const (
	OpEqual          Operator = "=="
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

type Filter struct {
	Field string
	Op    Operator
	Value any
}

type OrderBy struct {
	Field     string
	Direction Direction
}

// Query describes a single-collection read. A zero Limit means no limit.
type Query struct {
	Filters []Filter
	OrderBy *OrderBy
	Limit   int
}

// Where is shorthand for building a Filter.
func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Order is shorthand for building an OrderBy.
func Order(field string, dir Direction) *OrderBy {
	return &OrderBy{Field: field, Direction: dir}
}

// ErrInvalidQuery is wrapped by every backend when a query uses an unknown
// operator or an unusable field name.
var ErrInvalidQuery = errors.New("invalid query")

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks operators and field names. Backends that splice field
// names into their own query language (SQLite json paths) rely on it.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return fmt.Errorf("%w: field %q", ErrInvalidQuery, f.Field)
		}
		switch f.Op {
		case OpEqual, OpGreaterOrEqual, OpLess:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
	}
	if q.OrderBy != nil && !fieldNamePattern.MatchString(q.OrderBy.Field) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.OrderBy.Field)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

func validField(field string) error {
	if !fieldNamePattern.MatchString(field) {
		return fmt.Errorf("%w: field %q", ErrInvalidQuery, field)
	}
	return nil
}
