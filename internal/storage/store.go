// Package storage defines the document store the client and server share.
//
// A store holds schemaless documents in named collections. Values are
// JSON-shaped (maps, slices, strings, float64 numbers, bools and nil) and are
// normalized through protobuf's structpb on the way in, so every backend
// compares and serializes them the same way.
package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Create when the ID is taken.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrInvalidArgument is returned for malformed collections, queries or values.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Fields is a document's top-level field map.
type Fields map[string]any

// Document is one record in a collection.
type Document struct {
	// ID is unique within the collection. Create assigns a UUID when empty.
	ID string

	// Fields holds the document content.
	Fields Fields

	// CreatedAt is the Unix millisecond timestamp the store assigned on create.
	// Query results are ordered by it, then by ID.
	CreatedAt int64
}

// Clone returns a copy whose field map can be modified without touching d.
func (d Document) Clone() Document {
	if d.Fields != nil {
		// Values are already normalized, so this cannot fail.
		if f, err := NormalizeFields(d.Fields); err == nil {
			d.Fields = f
		} else {
			d.Fields = maps.Clone(d.Fields)
		}
	}
	return d
}

// Store defines the document store operations.
// This abstraction allows swapping backends (in-memory, SQLite, remote RPC)
// without changing the group store or the services.
type Store interface {
	// Create persists a new document. An empty doc.ID is replaced with a UUID
	// and doc.CreatedAt is set. Returns ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, collection string, doc *Document) error

	// Get retrieves a document by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Update merges fields into the document's top-level fields.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// ArrayUnion adds each of values to the array in field unless an equal
	// element is already there. The read and the write are atomic, so
	// concurrent unions on the same field never lose an element. A missing
	// or non-array field becomes an array. Returns ErrNotFound if the
	// document does not exist.
	ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error

	// Delete removes a document. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, collection, id string) error

	// Query returns every document in q.Collection matching all of q's filters.
	Query(ctx context.Context, q Query) ([]Document, error)

	// Watch subscribes to q. The subscription delivers the current result set
	// immediately and again after every change to the collection. It ends when
	// ctx is done or Cancel is called.
	Watch(ctx context.Context, q Query) (*Subscription, error)

	// Close releases any resources held by the store.
	Close() error
}

// NormalizeFields converts fields to their canonical JSON-shaped form.
func NormalizeFields(fields Fields) (Fields, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return s.AsMap(), nil
}

// NormalizeValue converts a single value to its canonical JSON-shaped form.
func NormalizeValue(v any) (any, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return pv.AsInterface(), nil
}

// ValidateCollection rejects empty collection names and names containing '/'.
func ValidateCollection(collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidArgument)
	}
	for _, r := range collection {
		if r == '/' {
			return fmt.Errorf("%w: collection %q contains '/'", ErrInvalidArgument, collection)
		}
	}
	return nil
}

// NormalizeUnion validates the arguments of an ArrayUnion and returns the
// values in canonical form.
func NormalizeUnion(collection, field string, values []any) ([]any, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if field == "" {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidArgument)
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, nv)
	}
	return out, nil
}

// UnionValues returns current with each of values appended unless already
// present. A current value that is not an array starts over empty. Both
// sides are expected to be normalized.
func UnionValues(current any, values []any) []any {
	list, _ := current.([]any)
	out := slices.Clone(list)
	if out == nil {
		out = []any{}
	}
	for _, v := range values {
		if !slices.ContainsFunc(out, func(e any) bool { return valuesEqual(e, v) }) {
			out = append(out, v)
		}
	}
	return out
}
