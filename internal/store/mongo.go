package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore maps collections one-to-one onto MongoDB collections. Ids are
// ObjectID hex strings kept in _id as plain strings so caller-chosen ids can
// share the collection.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ DocumentStore = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Insert upserts a fresh id so that $currentDate assigns timestamps from the
// server clock.
func (s *MongoStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id := primitive.NewObjectID().Hex()
	coll := s.db.Collection(collection)

	set, inc, dates := splitMongoFields(doc)
	set = append(set, inc...)
	if len(set) == 0 && len(dates) == 0 {
		if _, err := coll.InsertOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
			return "", mongoError("insert", err)
		}
		return id, nil
	}

	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$setOnInsert", Value: set})
	}
	if len(dates) > 0 {
		update = append(update, bson.E{Key: "$currentDate", Value: dates})
	}
	_, err := coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update, options.Update().SetUpsert(true))
	if err != nil {
		return "", mongoError("insert", err)
	}
	return id, nil
}

// Create relies on the unique _id index for atomic create-if-absent. Mongo
// has no server clock on plain inserts, so timestamps come from this host.
func (s *MongoStore) Create(ctx context.Context, collection, id string, doc Document) error {
	now := time.Now().UTC()
	record := bson.D{{Key: "_id", Value: id}}
	for _, k := range sortedKeys(doc) {
		switch v := doc[k].(type) {
		case serverTimestamp:
			record = append(record, bson.E{Key: k, Value: now})
		case Incr:
			record = append(record, bson.E{Key: k, Value: v.Delta})
		default:
			record = append(record, bson.E{Key: k, Value: v})
		}
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, record); err != nil {
		return mongoError("create", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&raw)
	if err != nil {
		return Snapshot{}, mongoError("get", err)
	}
	return fromMongo(raw), nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields Document) error {
	set, inc, dates := splitMongoFields(fields)
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(inc) > 0 {
		update = append(update, bson.E{Key: "$inc", Value: inc})
	}
	if len(dates) > 0 {
		update = append(update, bson.E{Key: "$currentDate", Value: dates})
	}
	if len(update) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return mongoError("update", err)
	}
	if res.MatchedCount == 0 {
		return NewError(CodeNotFound, "update", fmt.Errorf("%s/%s", collection, id))
	}
	return nil
}

func (s *MongoStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Update(ctx, collection, id, Document{field: Inc(delta)})
}

func (s *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, NewError(CodeInvalidArgument, "query", err)
	}

	opts := options.Find()
	if q.OrderBy != nil {
		dir := 1
		if q.OrderBy.Direction == Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy.Field, Value: dir}, {Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, mongoError("query", err)
	}
	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, mongoError("query", err)
	}

	snaps := make([]Snapshot, 0, len(raws))
	for _, raw := range raws {
		snaps = append(snaps, fromMongo(raw))
	}
	return snaps, nil
}

// splitMongoFields sorts a write into $set, $inc and $currentDate parts.
func splitMongoFields(doc Document) (set, inc, dates bson.D) {
	for _, k := range sortedKeys(doc) {
		switch v := doc[k].(type) {
		case serverTimestamp:
			dates = append(dates, bson.E{Key: k, Value: true})
		case Incr:
			inc = append(inc, bson.E{Key: k, Value: v.Delta})
		default:
			set = append(set, bson.E{Key: k, Value: v})
		}
	}
	return set, inc, dates
}

// mongoFilter groups the operators of each field into one sub-document.
// Ordered fields must exist, matching how Firestore drops documents that
// lack the order field.
func mongoFilter(q Query) bson.D {
	filter := bson.D{}
	pos := make(map[string]int)
	add := func(field, op string, value any) {
		i, ok := pos[field]
		if !ok {
			i = len(filter)
			pos[field] = i
			filter = append(filter, bson.E{Key: field, Value: bson.D{}})
		}
		filter[i].Value = append(filter[i].Value.(bson.D), bson.E{Key: op, Value: value})
	}
	for _, f := range q.Filters {
		add(f.Field, mongoOperator(f.Op), f.Value)
	}
	if q.OrderBy != nil {
		add(q.OrderBy.Field, "$exists", true)
	}
	return filter
}

func mongoOperator(op Operator) string {
	switch op {
	case OpGreaterOrEqual:
		return "$gte"
	case OpLess:
		return "$lt"
	}
	return "$eq"
}

func fromMongo(raw bson.M) Snapshot {
	snap := Snapshot{Data: make(Document, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			switch id := v.(type) {
			case string:
				snap.ID = id
			case primitive.ObjectID:
				snap.ID = id.Hex()
			default:
				snap.ID = fmt.Sprint(id)
			}
			continue
		}
		switch tv := v.(type) {
		case primitive.DateTime:
			snap.Data[k] = tv.Time().UTC()
		case primitive.Timestamp:
			snap.Data[k] = time.Unix(int64(tv.T), 0).UTC()
		case int32:
			snap.Data[k] = int64(tv)
		default:
			snap.Data[k] = v
		}
	}
	return snap
}

// Server error codes from the MongoDB error_codes list.
const (
	mongoBadValue              = 2
	mongoUnauthorized          = 13
	mongoAuthFailed            = 18
	mongoMaxTimeMSExpired      = 50
	mongoWriteConflict         = 112
	mongoInterruptedAtShutdown = 11600
	mongoNotWritablePrimary    = 10107
)

func mongoError(op string, err error) error {
	if ce := wrapContext(op, err); ce != nil {
		return ce
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return NewError(CodeNotFound, op, err)
	case mongo.IsDuplicateKeyError(err):
		return NewError(CodeAlreadyExists, op, err)
	case mongo.IsTimeout(err):
		return NewError(CodeDeadlineExceeded, op, err)
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return NewError(CodeUnavailable, op, err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case mongoBadValue:
			return NewError(CodeInvalidArgument, op, err)
		case mongoUnauthorized:
			return NewError(CodePermissionDenied, op, err)
		case mongoAuthFailed:
			return NewError(CodeUnauthenticated, op, err)
		case mongoMaxTimeMSExpired:
			return NewError(CodeDeadlineExceeded, op, err)
		case mongoWriteConflict:
			return NewError(CodeAborted, op, err)
		case mongoInterruptedAtShutdown, mongoNotWritablePrimary:
			return NewError(CodeUnavailable, op, err)
		}
	}
	return NewError(CodeInternal, op, err)
}

func sortedKeys(doc Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
