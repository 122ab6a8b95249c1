// Package remote implements storage.Store on top of the DocumentService RPC
// API, so client components can run against a server they do not share a
// process with.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/internal/middleware"
	"github.com/mmynk/workaholic/internal/storage"
	"github.com/mmynk/workaholic/pkg/api"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

var errClosed = errors.New("remote store is closed")

// Store forwards every operation to a DocumentService.
type Store struct {
	client api.DocumentServiceClient
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*storage.Subscription]struct{}
	closed bool
}

// New creates a store over client.
func New(client api.DocumentServiceClient, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		logger: logger,
		subs:   make(map[*storage.Subscription]struct{}),
	}
}

// Dial creates a store talking to the server at baseURL. token is called
// for every request and its result, when non-empty, sent as a bearer token.
func Dial(httpClient connect.HTTPClient, baseURL string, token func() string, logger *slog.Logger) *Store {
	client := api.NewDocumentServiceClient(httpClient, baseURL,
		api.WithCodec(),
		connect.WithInterceptors(middleware.BearerToken(token)),
	)
	return New(client, logger)
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Create persists a new document on the server.
func (s *Store) Create(ctx context.Context, collection string, doc *storage.Document) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	fields, err := storage.NormalizeFields(doc.Fields)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return errClosed
	}

	resp, err := s.client.Create(ctx, connect.NewRequest(&api.CreateDocumentRequest{
		Collection: collection,
		Document:   api.Document{ID: doc.ID, Fields: fields},
	}))
	if err != nil {
		return fromConnect("create", err)
	}
	doc.ID = resp.Msg.Document.ID
	doc.CreatedAt = resp.Msg.Document.CreatedAt
	doc.Fields = fields
	return nil
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, collection, id string) (*storage.Document, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, errClosed
	}

	resp, err := s.client.Get(ctx, connect.NewRequest(&api.GetDocumentRequest{Collection: collection, ID: id}))
	if err != nil {
		return nil, fromConnect("get", err)
	}
	doc, err := FromAPIDocument(resp.Msg.Document)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update merges fields into a document.
func (s *Store) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	fields, err := storage.NormalizeFields(fields)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return errClosed
	}

	_, err = s.client.Update(ctx, connect.NewRequest(&api.UpdateDocumentRequest{
		Collection: collection,
		ID:         id,
		Fields:     fields,
	}))
	if err != nil {
		return fromConnect("update", err)
	}
	return nil
}

// ArrayUnion asks the server to add values to the array in field.
func (s *Store) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	values, err := storage.NormalizeUnion(collection, field, values)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return errClosed
	}

	_, err = s.client.ArrayUnion(ctx, connect.NewRequest(&api.ArrayUnionRequest{
		Collection: collection,
		ID:         id,
		Field:      field,
		Values:     values,
	}))
	if err != nil {
		return fromConnect("array union", err)
	}
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	if s.isClosed() {
		return errClosed
	}

	_, err := s.client.Delete(ctx, connect.NewRequest(&api.DeleteDocumentRequest{Collection: collection, ID: id}))
	if err != nil {
		return fromConnect("delete", err)
	}
	return nil
}

// Query runs q on the server.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, errClosed
	}

	resp, err := s.client.Query(ctx, connect.NewRequest(&api.QueryDocumentsRequest{Query: ToAPIQuery(q)}))
	if err != nil {
		return nil, fromConnect("query", err)
	}
	return FromAPIDocuments(resp.Msg.Documents)
}

// Watch opens a server stream for q. It returns once the initial snapshot
// has arrived, so authentication and query errors surface here rather than
// on the subscription.
func (s *Store) Watch(ctx context.Context, q storage.Query) (*storage.Subscription, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, errClosed
	}

	wctx, cancel := context.WithCancel(ctx)
	stream, err := s.client.Watch(wctx, connect.NewRequest(&api.WatchRequest{Query: ToAPIQuery(q)}))
	if err != nil {
		cancel()
		return nil, fromConnect("watch", err)
	}
	if !stream.Receive() {
		err := stream.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		stream.Close()
		cancel()
		return nil, fromConnect("watch", err)
	}
	initial, err := FromAPIDocuments(stream.Msg().Documents)
	if err != nil {
		stream.Close()
		cancel()
		return nil, err
	}

	var sub *storage.Subscription
	sub = storage.NewSubscription(q, func() {
		cancel()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	})
	sub.Deliver(initial)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stream.Close()
		sub.Cancel()
		return nil, errClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go s.follow(wctx, stream, sub)
	return sub, nil
}

// follow forwards snapshots until the stream ends. A stream ended by the
// subscriber cancels the subscription; anything else fails it.
func (s *Store) follow(ctx context.Context, stream *connect.ServerStreamForClient[api.WatchResponse], sub *storage.Subscription) {
	defer stream.Close()
	for stream.Receive() {
		docs, err := FromAPIDocuments(stream.Msg().Documents)
		if err != nil {
			sub.Fail(err)
			return
		}
		sub.Deliver(docs)
	}

	err := stream.Err()
	if ctx.Err() != nil {
		sub.Cancel()
		return
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	s.logger.Warn("Watch stream ended", "collection", sub.Query().Collection, "error", err)
	sub.Fail(fromConnect("watch", err))
}

// Close cancels every open watch. The server connection is owned by the
// HTTP client and left alone.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*storage.Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	return nil
}

// fromConnect maps Connect codes back onto the storage sentinel errors.
func fromConnect(op string, err error) error {
	var sentinel error
	switch connect.CodeOf(err) {
	case connect.CodeNotFound:
		sentinel = storage.ErrNotFound
	case connect.CodeAlreadyExists:
		sentinel = storage.ErrAlreadyExists
	case connect.CodeInvalidArgument:
		sentinel = storage.ErrInvalidArgument
	default:
		return fmt.Errorf("remote %s: %w", op, err)
	}
	return fmt.Errorf("remote %s: %w: %w", op, sentinel, err)
}
