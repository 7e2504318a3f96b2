package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps documents as JSON text in a single table and evaluates
// filters with SQLite's JSON functions.
type SQLiteStore struct {
	db      *sql.DB
	clock   *serverClock
	indexes *IndexSet
}

var _ DocumentStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" databases whole.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	o := buildOptions(opts)
	store := &SQLiteStore{db: db, clock: newServerClock(o.now), indexes: o.indexes}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        collection TEXT NOT NULL,
        id TEXT NOT NULL,
        data TEXT NOT NULL CHECK (json_valid(data)),
        UNIQUE (collection, id)
    );

    CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, seq);
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	if err := s.insert(ctx, "insert", collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) Create(ctx context.Context, collection, id string, doc Document) error {
	return s.insert(ctx, "create", collection, id, doc)
}

func (s *SQLiteStore) insert(ctx context.Context, op, collection, id string, doc Document) error {
	data, err := json.Marshal(s.encodeDocument(doc))
	if err != nil {
		return NewError(CodeInvalidArgument, op, fmt.Errorf("failed to marshal document: %w", err))
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)", collection, id, string(data))
	if err != nil {
		return sqliteError(op, err)
	}
	return nil
}

// encodeDocument resolves sentinels and turns timestamps into fixed-width
// text so they sort correctly inside JSON.
func (s *SQLiteStore) encodeDocument(doc Document) map[string]any {
	now := s.clock.Now()
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch tv := v.(type) {
		case serverTimestamp:
			out[k] = formatTime(now)
		case Incr:
			out[k] = tv.Delta
		case time.Time:
			out[k] = formatTime(tv)
		default:
			out[k] = v
		}
	}
	return out
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, NewError(CodeNotFound, "get", fmt.Errorf("%s/%s", collection, id))
		}
		return Snapshot{}, sqliteError("get", err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return Snapshot{}, NewError(CodeDataLoss, "get", err)
	}
	return Snapshot{ID: id, Data: doc}, nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Document) error {
	if len(fields) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if err := validField(k); err != nil {
			return NewError(CodeInvalidArgument, "update", err)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := s.clock.Now()
	var setArgs []string
	var args []any
	for _, k := range keys {
		path := "'$." + k + "'"
		switch v := fields[k].(type) {
		case serverTimestamp:
			setArgs = append(setArgs, path, "?")
			args = append(args, formatTime(now))
		case Incr:
			setArgs = append(setArgs, path, "COALESCE(json_extract(data, "+path+"), 0) + ?")
			args = append(args, v.Delta)
		default:
			if t, ok := v.(time.Time); ok {
				v = formatTime(t)
			}
			encoded, err := json.Marshal(v)
			if err != nil {
				return NewError(CodeInvalidArgument, "update", fmt.Errorf("failed to marshal field %s: %w", k, err))
			}
			setArgs = append(setArgs, path, "json(?)")
			args = append(args, string(encoded))
		}
	}
	args = append(args, collection, id)

	query := "UPDATE documents SET data = json_set(data, " + strings.Join(setArgs, ", ") + ") WHERE collection = ? AND id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return sqliteError("update", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return NewError(CodeNotFound, "update", fmt.Errorf("%s/%s", collection, id))
	}
	return nil
}

func (s *SQLiteStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Update(ctx, collection, id, Document{field: Inc(delta)})
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, NewError(CodeInvalidArgument, "query", err)
	}
	if err := s.indexes.Check(collection, q); err != nil {
		return nil, err
	}

	query, args := buildSQLiteQuery(collection, q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteError("query", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, sqliteError("query", fmt.Errorf("failed to scan document row: %w", err))
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, NewError(CodeDataLoss, "query", err)
		}
		snaps = append(snaps, Snapshot{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("query", err)
	}
	return snaps, nil
}

func buildSQLiteQuery(collection string, q Query) (string, []any) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString("SELECT id, data FROM documents WHERE collection = ?")

	for _, f := range q.Filters {
		sb.WriteString(" AND json_extract(data, '$." + f.Field + "') " + sqliteOperator(f.Op) + " ?")
		args = append(args, sqliteValue(f.Value))
	}
	if q.OrderBy != nil {
		path := "'$." + q.OrderBy.Field + "'"
		sb.WriteString(" AND json_type(data, " + path + ") IS NOT NULL")
		sb.WriteString(" ORDER BY json_extract(data, " + path + ") ")
		if q.OrderBy.Direction == Desc {
			sb.WriteString("DESC")
		} else {
			sb.WriteString("ASC")
		}
		sb.WriteString(", seq ASC")
	} else {
		sb.WriteString(" ORDER BY seq ASC")
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args
}

func sqliteOperator(op Operator) string {
	if op == OpEqual {
		return "="
	}
	return string(op)
}

func sqliteValue(v any) any {
	switch tv := v.(type) {
	case time.Time:
		return formatTime(tv)
	case bool:
		if tv {
			return 1
		}
		return 0
	}
	return v
}

func decodeDocument(data string) (Document, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

func sqliteError(op string, err error) error {
	if ce := wrapContext(op, err); ce != nil {
		return ce
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code {
		case sqlite3.ErrConstraint:
			return NewError(CodeAlreadyExists, op, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return NewError(CodeUnavailable, op, err)
		case sqlite3.ErrFull, sqlite3.ErrNomem:
			return NewError(CodeResourceExhausted, op, err)
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return NewError(CodeDataLoss, op, err)
		case sqlite3.ErrReadonly, sqlite3.ErrPerm, sqlite3.ErrAuth:
			return NewError(CodePermissionDenied, op, err)
		case sqlite3.ErrTooBig, sqlite3.ErrRange:
			return NewError(CodeOutOfRange, op, err)
		case sqlite3.ErrInterrupt, sqlite3.ErrAbort:
			return NewError(CodeAborted, op, err)
		}
	}
	return NewError(CodeInternal, op, err)
}
