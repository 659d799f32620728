package archive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowscope/flowscope/pkg/errors"
)

const collectionName = "published_views"

// MongoStore archives published views in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and pings it, so a misconfigured
// archive fails at startup rather than on first publish.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "connecting to archive")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeStore, err, "pinging archive")
	}
	return &MongoStore{
		client: client,
		col:    client.Database(database).Collection(collectionName),
	}, nil
}

// Put implements Store.
func (s *MongoStore) Put(ctx context.Context, pub Published) (string, error) {
	if pub.ID == "" {
		pub.ID = uuid.New().String()
	}
	if pub.CreatedAt.IsZero() {
		pub.CreatedAt = time.Now().UTC()
	}

	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": pub.ID}, pub, options.Replace().SetUpsert(true))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStore, err, "archiving view %s", pub.ID)
	}
	return pub.ID, nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, id string) (*Published, error) {
	var pub Published
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&pub)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeViewNotFound, "published view %q not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "reading published view %s", id)
	}
	return &pub, nil
}

// List implements Store.
func (s *MongoStore) List(ctx context.Context, limit int) ([]Published, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"snapshot": 0, "state": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "listing published views")
	}
	var list []Published
	if err := cursor.All(ctx, &list); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "listing published views")
	}
	return list, nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "deleting published view %s", id)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeViewNotFound, "published view %q not found", id)
	}
	return nil
}

// Close implements Store.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
