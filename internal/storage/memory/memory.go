// Package memory provides an in-process implementation of storage.Store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/workaholic/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps documents in maps guarded by a mutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]storage.Document
	closed      bool
	lastCreated int64

	hub *storage.Hub
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	s := &Store{
		collections: make(map[string]map[string]storage.Document),
		now:         time.Now,
	}
	s.hub = storage.NewHub(s.Query)
	return s
}

var errClosed = errors.New("memory store is closed")

// Create persists a new document.
func (s *Store) Create(ctx context.Context, collection string, doc *storage.Document) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	fields, err := storage.NormalizeFields(doc.Fields)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]storage.Document)
		s.collections[collection] = coll
	}
	if _, exists := coll[doc.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", storage.ErrAlreadyExists, collection, doc.ID)
	}
	doc.CreatedAt = s.nextCreatedAt()
	doc.Fields = fields
	coll[doc.ID] = doc.Clone()
	s.mu.Unlock()

	s.hub.Notify(ctx, collection)
	return nil
}

// nextCreatedAt returns a strictly increasing millisecond timestamp so
// creation order survives documents created within the same millisecond.
// Callers hold s.mu.
func (s *Store) nextCreatedAt() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastCreated {
		ts = s.lastCreated + 1
	}
	s.lastCreated = ts
	return ts
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, collection, id string) (*storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, collection, id)
	}
	out := doc.Clone()
	return &out, nil
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	update, err := storage.NormalizeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, collection, id)
	}
	doc = doc.Clone()
	if doc.Fields == nil {
		doc.Fields = storage.Fields{}
	}
	for k, v := range update {
		doc.Fields[k] = v
	}
	s.collections[collection][id] = doc
	s.mu.Unlock()

	s.hub.Notify(ctx, collection)
	return nil
}

// ArrayUnion adds values to the array in field under the store lock.
func (s *Store) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	values, err := storage.NormalizeUnion(collection, field, values)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, collection, id)
	}
	doc = doc.Clone()
	if doc.Fields == nil {
		doc.Fields = storage.Fields{}
	}
	doc.Fields[field] = storage.UnionValues(doc.Fields[field], values)
	s.collections[collection][id] = doc
	s.mu.Unlock()

	s.hub.Notify(ctx, collection)
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed
	}
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, collection, id)
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.hub.Notify(ctx, collection)
	return nil
}

// Query returns the matching documents ordered by creation.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	docs := []storage.Document{}
	for _, doc := range s.collections[q.Collection] {
		if q.Matches(&doc) {
			docs = append(docs, doc.Clone())
		}
	}
	storage.SortDocuments(docs)
	return docs, nil
}

// Watch subscribes to q.
func (s *Store) Watch(ctx context.Context, q storage.Query) (*storage.Subscription, error) {
	return s.hub.Watch(ctx, q)
}

// Close ends every subscription and rejects further calls.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}
