// Package store is the read-only document store boundary. It exposes the
// small query surface the data access layer needs and hides whether the
// backing implementation is a real MongoDB database or the in-memory
// substitute used in mock mode and tests.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotFound is returned by FindOne when no document matches the filter
var ErrNotFound = errors.New("store: document not found")

// ErrUnsupported is returned when the backing store cannot perform a
// requested server-side operation
var ErrUnsupported = errors.New("store: operation not supported")

// FindOptions shapes a Find or FindOne query
type FindOptions struct {
	Projection bson.M
	Sort       bson.D
	Limit      int64
}

// Collection is the read surface of one document collection. Find decodes
// all matching documents into out, which must be a pointer to a slice;
// FindOne decodes a single document into out and returns ErrNotFound when
// nothing matches.
type Collection interface {
	FindOne(ctx context.Context, filter bson.M, opts FindOptions, out interface{}) error
	Find(ctx context.Context, filter bson.M, opts FindOptions, out interface{}) error
	Distinct(ctx context.Context, field string, filter bson.M) ([]string, error)
}

// Database hands out collections by name
type Database interface {
	Collection(name string) Collection
}
