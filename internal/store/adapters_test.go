package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMongoFilter(t *testing.T) {
	q := Query{
		Filters: []Filter{
			Where("status", OpEqual, "active"),
			Where("titleLower", OpGreaterOrEqual, "ab"),
			Where("titleLower", OpLess, "ab\uf8ff"),
		},
		OrderBy: Order("titleLower", Asc),
	}
	want := bson.D{
		{Key: "status", Value: bson.D{{Key: "$eq", Value: "active"}}},
		{Key: "titleLower", Value: bson.D{
			{Key: "$gte", Value: "ab"},
			{Key: "$lt", Value: "ab\uf8ff"},
			{Key: "$exists", Value: true},
		}},
	}
	assert.Equal(t, want, mongoFilter(q))
	assert.Equal(t, bson.D{}, mongoFilter(Query{}))
}

func TestSplitMongoFields(t *testing.T) {
	set, inc, dates := splitMongoFields(Document{
		"chapterCount": Inc(1),
		"prompt":       "next",
		"updatedAt":    ServerTimestamp,
	})
	assert.Equal(t, bson.D{{Key: "prompt", Value: "next"}}, set)
	assert.Equal(t, bson.D{{Key: "chapterCount", Value: int64(1)}}, inc)
	assert.Equal(t, bson.D{{Key: "updatedAt", Value: true}}, dates)
}

func TestFromMongo(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	oid := primitive.NewObjectID()

	snap := fromMongo(bson.M{
		"_id":       oid,
		"title":     "Ashes",
		"views":     int32(4),
		"createdAt": primitive.NewDateTimeFromTime(created),
	})
	assert.Equal(t, oid.Hex(), snap.ID)
	assert.Equal(t, "Ashes", snap.Data.String("title"))
	assert.Equal(t, int64(4), snap.Data.Int("views"))
	assert.True(t, created.Equal(snap.Data.Time("createdAt")))
	assert.False(t, snap.Data.Has("_id"))

	assert.Equal(t, "custom", fromMongo(bson.M{"_id": "custom"}).ID)
}

func TestMongoError(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(mongoError("get", mongo.ErrNoDocuments)))
	assert.Equal(t, CodeDeadlineExceeded, CodeOf(mongoError("get", context.DeadlineExceeded)))
	assert.Equal(t, CodePermissionDenied, CodeOf(mongoError("get", mongo.CommandError{Code: 13, Message: "unauthorized"})))
	assert.Equal(t, CodeUnauthenticated, CodeOf(mongoError("get", mongo.CommandError{Code: 18, Message: "auth failed"})))
	assert.Equal(t, CodeAlreadyExists, CodeOf(mongoError("create", mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}},
	})))
	assert.Equal(t, CodeInternal, CodeOf(mongoError("get", errors.New("weird"))))
}

func TestFirestoreError(t *testing.T) {
	tests := []struct {
		in   codes.Code
		want Code
	}{
		{codes.FailedPrecondition, CodeFailedPrecondition},
		{codes.NotFound, CodeNotFound},
		{codes.AlreadyExists, CodeAlreadyExists},
		{codes.PermissionDenied, CodePermissionDenied},
		{codes.Unauthenticated, CodeUnauthenticated},
		{codes.DataLoss, CodeDataLoss},
		{codes.Canceled, CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			err := firestoreError("query", status.Error(tt.in, "rpc failed"))
			assert.Equal(t, tt.want, CodeOf(err))
		})
	}
	assert.Equal(t, CodeDeadlineExceeded, CodeOf(firestoreError("get", context.DeadlineExceeded)))
}

func TestFirestoreUpdates(t *testing.T) {
	updates := firestoreUpdates(Document{
		"updatedAt":    ServerTimestamp,
		"chapterCount": Inc(1),
		"prompt":       "",
	})
	require.Len(t, updates, 3)
	assert.Equal(t, "chapterCount", updates[0].Path)
	assert.Equal(t, "prompt", updates[1].Path)
	assert.Equal(t, "", updates[1].Value)
	assert.Equal(t, "updatedAt", updates[2].Path)
	assert.Equal(t, firestore.ServerTimestamp, updates[2].Value)

	data := toFirestore(Document{"createdAt": ServerTimestamp, "title": "x"})
	assert.Equal(t, firestore.ServerTimestamp, data["createdAt"])
	assert.Equal(t, "x", data["title"])
}

type blockingStore struct {
	MemoryStore
}

func (b *blockingStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	<-ctx.Done()
	return Snapshot{}, NewError(CodeUnavailable, "get", errors.New("transport closed"))
}

func TestWithTimeout(t *testing.T) {
	inner := NewMemoryStore()
	assert.Same(t, DocumentStore(inner), WithTimeout(inner, 0))

	s := WithTimeout(&blockingStore{}, 10*time.Millisecond)
	_, err := s.Get(context.Background(), "stories", "x")
	require.Error(t, err)
	assert.Equal(t, CodeDeadlineExceeded, CodeOf(err))

	fast := WithTimeout(NewMemoryStore(), time.Second)
	id, err := fast.Insert(context.Background(), "stories", Document{"title": "ok"})
	require.NoError(t, err)
	snap, err := fast.Get(context.Background(), "stories", id)
	require.NoError(t, err)
	assert.Equal(t, "ok", snap.Data.String("title"))
}

func TestBuildOptions(t *testing.T) {
	o := buildOptions(nil)
	require.NotNil(t, o.now)
	assert.Nil(t, o.indexes)

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	set := NewIndexSet().Add("stories", "status", "createdAt")
	o = buildOptions([]Option{WithClock(func() time.Time { return fixed }), WithIndexes(set)})
	assert.Equal(t, fixed, o.now())
	assert.Same(t, set, o.indexes)

	s := NewMemoryStore(WithClock(func() time.Time { return fixed }))
	id, err := s.Insert(context.Background(), "stories", Document{"createdAt": ServerTimestamp})
	require.NoError(t, err)
	snap, err := s.Get(context.Background(), "stories", id)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(snap.Data.Time("createdAt")))

	// Driver options live alongside the store options in this package.
	assert.NotNil(t, options.Find().SetLimit(50))
}
