package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Syntia28/nikos/pkg/config"
)

const mongoIDField = "_id"

// MongoStore maps each collection onto a MongoDB collection keyed by string _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	// txCtx carries the session when the store is handed to a transaction callback.
	txCtx context.Context
}

func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(cfg.Database)}, nil
}

func (m *MongoStore) ctx(ctx context.Context) context.Context {
	if m.txCtx != nil {
		return m.txCtx
	}
	return ctx
}

func (m *MongoStore) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	id := uuid.NewString()
	body := bson.M{}
	for k, v := range stripID(doc) {
		body[k] = v
	}
	body[mongoIDField] = id
	if _, err := m.db.Collection(collection).InsertOne(m.ctx(ctx), body); err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	return m.GetByID(ctx, collection, id)
}

func (m *MongoStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return m.find(ctx, collection, bson.M{})
}

func (m *MongoStore) GetByID(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(m.ctx(ctx), bson.M{mongoIDField: id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

func (m *MongoStore) Update(ctx context.Context, collection, id string, fields Document) error {
	set := bson.M{}
	for k, v := range stripID(fields) {
		set[k] = v
	}
	if len(set) == 0 {
		_, err := m.GetByID(ctx, collection, id)
		return err
	}
	res, err := m.db.Collection(collection).UpdateOne(m.ctx(ctx), bson.M{mongoIDField: id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := m.db.Collection(collection).DeleteOne(m.ctx(ctx), bson.M{mongoIDField: id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *MongoStore) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	if field == IDField {
		field = mongoIDField
	}
	return m.find(ctx, collection, bson.M{field: value})
}

// Watch tails the collection change stream and re-runs the query on every event.
func (m *MongoStore) Watch(ctx context.Context, collection, field string, value any, fn WatchFunc) (func(), error) {
	if fn == nil {
		return nil, errNilWatchFunc
	}
	ctx, cancel := context.WithCancel(ctx)
	stream, err := m.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	fn(m.QueryByField(ctx, collection, field, value))

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			docs, err := m.QueryByField(ctx, collection, field, value)
			if ctx.Err() != nil {
				return
			}
			fn(docs, err)
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			fn(nil, fmt.Errorf("watch %s: %w", collection, err))
		}
	}()

	return cancel, nil
}

// RunInTx requires a replica set; the driver retries fn on transient errors.
func (m *MongoStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(&MongoStore{client: m.client, db: m.db, txCtx: sc})
	})
	return err
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) find(ctx context.Context, collection string, filter bson.M) ([]Document, error) {
	cur, err := m.db.Collection(collection).Find(m.ctx(ctx), filter)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	var raws []bson.M
	if err := cur.All(m.ctx(ctx), &raws); err != nil {
		return nil, fmt.Errorf("read %s cursor: %w", collection, err)
	}
	out := make([]Document, 0, len(raws))
	for _, raw := range raws {
		out = append(out, fromBSON(raw))
	}
	return out, nil
}

func fromBSON(raw bson.M) Document {
	doc := Document{}
	for k, v := range raw {
		if k == mongoIDField {
			doc[IDField] = fmt.Sprint(fromBSONValue(v))
			continue
		}
		doc[k] = fromBSONValue(v)
	}
	return doc
}

func fromBSONValue(v any) any {
	switch val := v.(type) {
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = fromBSONValue(inner)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = fromBSONValue(inner)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = fromBSONValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = fromBSONValue(inner)
		}
		return out
	case bson.DateTime:
		return val.Time().UTC()
	case bson.ObjectID:
		return val.Hex()
	}
	return v
}
