package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDatabase adapts *mongo.Database to the Database interface
type mongoDatabase struct {
	db *mongo.Database
}

// OpenMongo constructs a client for uri and wraps the named database.
// The returned close function disconnects the underlying client.
// Connection failures propagate to the caller; there is no retry here.
func OpenMongo(ctx context.Context, uri, dbName string) (Database, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return &mongoDatabase{db: client.Database(dbName)}, client.Disconnect, nil
}

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M, opts FindOptions, out interface{}) error {
	fo := options.FindOne()
	if opts.Projection != nil {
		fo.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}

	res := c.coll.FindOne(ctx, filter, fo)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return res.Decode(out)
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M, opts FindOptions, out interface{}) error {
	fo := options.Find()
	if opts.Projection != nil {
		fo.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}

	cur, err := c.coll.Find(ctx, filter, fo)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (c *mongoCollection) Distinct(ctx context.Context, field string, filter bson.M) ([]string, error) {
	vals, err := c.coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
