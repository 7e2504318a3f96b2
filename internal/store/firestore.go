package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore talks to Cloud Firestore through the Firebase Admin SDK.
// Timestamps and increments use Firestore's own transforms, and queries the
// project has no composite index for fail with failed-precondition.
type FirestoreStore struct {
	client *firestore.Client
}

var _ DocumentStore = (*FirestoreStore)(nil)

// NewFirestoreStore connects with a service-account key file when
// credentialsPath is set, otherwise with application default credentials.
func NewFirestoreStore(ctx context.Context, projectID, credentialsPath string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(doc))
	if err != nil {
		return "", firestoreError("insert", err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Create(ctx context.Context, collection, id string, doc Document) error {
	if _, err := s.client.Collection(collection).Doc(id).Create(ctx, toFirestore(doc)); err != nil {
		return firestoreError("create", err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return Snapshot{}, firestoreError("get", err)
	}
	return Snapshot{ID: snap.Ref.ID, Data: Document(snap.Data())}, nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields Document) error {
	if len(fields) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, firestoreUpdates(fields)); err != nil {
		return firestoreError("update", err)
	}
	return nil
}

func (s *FirestoreStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Update(ctx, collection, id, Document{field: Inc(delta)})
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, NewError(CodeInvalidArgument, "query", err)
	}

	query := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != nil {
		dir := firestore.Asc
		if q.OrderBy.Direction == Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy.Field, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, firestoreError("query", err)
	}
	snaps := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		snaps = append(snaps, Snapshot{ID: d.Ref.ID, Data: Document(d.Data())})
	}
	return snaps, nil
}

func toFirestoreValue(v any) any {
	switch tv := v.(type) {
	case serverTimestamp:
		return firestore.ServerTimestamp
	case Incr:
		return firestore.Increment(tv.Delta)
	}
	return v
}

func toFirestore(doc Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func firestoreUpdates(fields Document) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		updates = append(updates, firestore.Update{Path: k, Value: toFirestoreValue(fields[k])})
	}
	return updates
}

var grpcCodes = map[codes.Code]Code{
	codes.PermissionDenied:   CodePermissionDenied,
	codes.Unavailable:        CodeUnavailable,
	codes.DeadlineExceeded:   CodeDeadlineExceeded,
	codes.ResourceExhausted:  CodeResourceExhausted,
	codes.InvalidArgument:    CodeInvalidArgument,
	codes.NotFound:           CodeNotFound,
	codes.AlreadyExists:      CodeAlreadyExists,
	codes.FailedPrecondition: CodeFailedPrecondition,
	codes.Aborted:            CodeAborted,
	codes.OutOfRange:         CodeOutOfRange,
	codes.Unimplemented:      CodeUnimplemented,
	codes.Internal:           CodeInternal,
	codes.DataLoss:           CodeDataLoss,
	codes.Unauthenticated:    CodeUnauthenticated,
}

func firestoreError(op string, err error) error {
	if ce := wrapContext(op, err); ce != nil {
		return ce
	}
	if code, ok := grpcCodes[status.Code(err)]; ok {
		return NewError(code, op, err)
	}
	return NewError(CodeUnknown, op, err)
}
