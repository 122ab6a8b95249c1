// Package service implements the Connect RPC handlers the server exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/internal/metrics"
	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/internal/storage"
	"github.com/mmynk/workaholic/internal/storage/remote"
	"github.com/mmynk/workaholic/pkg/api"
)

// ReservedPrefix marks server-private collections (credentials, email
// index). They cannot be reached through DocumentService.
const ReservedPrefix = "_"

var (
	errReserved   = errors.New("collection is reserved")
	errWatchEnded = errors.New("watch ended by server")
)

// Ensure DocumentService implements api.DocumentServiceHandler
var _ api.DocumentServiceHandler = (*DocumentService)(nil)

// DocumentService exposes a storage.Store to authenticated clients.
type DocumentService struct {
	store  storage.Store
	stop   <-chan struct{}
	logger *slog.Logger
}

// NewDocumentService creates a DocumentService over store. Open Watch
// streams end with CodeUnavailable once stop is closed; a nil stop never
// closes.
func NewDocumentService(store storage.Store, stop <-chan struct{}, logger *slog.Logger) *DocumentService {
	return &DocumentService{store: store, stop: stop, logger: logger}
}

// Create persists a new document.
func (s *DocumentService) Create(ctx context.Context, req *connect.Request[api.CreateDocumentRequest]) (*connect.Response[api.CreateDocumentResponse], error) {
	userID, err := s.authorize(ctx, req.Msg.Collection)
	if err != nil {
		return nil, err
	}

	if req.Msg.Collection == models.GroupsCollection {
		if err := checkGroupCreate(userID, req.Msg.Document.Fields); err != nil {
			return nil, err
		}
	}

	doc := &storage.Document{ID: req.Msg.Document.ID, Fields: req.Msg.Document.Fields}
	if err := s.store.Create(ctx, req.Msg.Collection, doc); err != nil {
		s.logger.Warn("Create failed", "collection", req.Msg.Collection, "user_id", userID, "error", err)
		return nil, storageError(err)
	}
	metrics.StorageWrites.WithLabelValues(req.Msg.Collection, "create").Inc()

	s.logger.Info("Document created", "collection", req.Msg.Collection, "id", doc.ID, "user_id", userID)
	return connect.NewResponse(&api.CreateDocumentResponse{Document: remote.ToAPIDocument(*doc)}), nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, req *connect.Request[api.GetDocumentRequest]) (*connect.Response[api.GetDocumentResponse], error) {
	userID, err := s.authorize(ctx, req.Msg.Collection)
	if err != nil {
		return nil, err
	}
	if req.Msg.Collection == models.GroupsCollection {
		if err := s.checkGroupRead(ctx, userID, req.Msg.ID); err != nil {
			return nil, err
		}
	}

	doc, err := s.store.Get(ctx, req.Msg.Collection, req.Msg.ID)
	if err != nil {
		return nil, storageError(err)
	}
	return connect.NewResponse(&api.GetDocumentResponse{Document: remote.ToAPIDocument(*doc)}), nil
}

// Update merges fields into a document.
func (s *DocumentService) Update(ctx context.Context, req *connect.Request[api.UpdateDocumentRequest]) (*connect.Response[api.UpdateDocumentResponse], error) {
	userID, err := s.authorize(ctx, req.Msg.Collection)
	if err != nil {
		return nil, err
	}

	if req.Msg.Collection == models.GroupsCollection {
		if err := s.checkGroupUpdate(ctx, userID, req.Msg.ID, req.Msg.Fields); err != nil {
			return nil, err
		}
	}

	if err := s.store.Update(ctx, req.Msg.Collection, req.Msg.ID, req.Msg.Fields); err != nil {
		s.logger.Warn("Update failed", "collection", req.Msg.Collection, "id", req.Msg.ID, "user_id", userID, "error", err)
		return nil, storageError(err)
	}
	metrics.StorageWrites.WithLabelValues(req.Msg.Collection, "update").Inc()

	s.logger.Info("Document updated", "collection", req.Msg.Collection, "id", req.Msg.ID, "user_id", userID)
	return connect.NewResponse(&api.UpdateDocumentResponse{}), nil
}

// ArrayUnion adds values to an array field.
func (s *DocumentService) ArrayUnion(ctx context.Context, req *connect.Request[api.ArrayUnionRequest]) (*connect.Response[api.ArrayUnionResponse], error) {
	userID, err := s.authorize(ctx, req.Msg.Collection)
	if err != nil {
		return nil, err
	}
	if req.Msg.Collection == models.GroupsCollection {
		if err := s.checkGroupUnion(ctx, userID, req.Msg.ID, req.Msg.Field, req.Msg.Values); err != nil {
			return nil, err
		}
	}

	if err := s.store.ArrayUnion(ctx, req.Msg.Collection, req.Msg.ID, req.Msg.Field, req.Msg.Values...); err != nil {
		s.logger.Warn("ArrayUnion failed", "collection", req.Msg.Collection, "id", req.Msg.ID, "field", req.Msg.Field, "user_id", userID, "error", err)
		return nil, storageError(err)
	}
	metrics.StorageWrites.WithLabelValues(req.Msg.Collection, "array_union").Inc()

	s.logger.Info("Array field extended", "collection", req.Msg.Collection, "id", req.Msg.ID, "field", req.Msg.Field, "user_id", userID)
	return connect.NewResponse(&api.ArrayUnionResponse{}), nil
}

// Delete removes a document.
func (s *DocumentService) Delete(ctx context.Context, req *connect.Request[api.DeleteDocumentRequest]) (*connect.Response[api.DeleteDocumentResponse], error) {
	userID, err := s.authorize(ctx, req.Msg.Collection)
	if err != nil {
		return nil, err
	}
	if req.Msg.Collection == models.GroupsCollection {
		if err := s.checkGroupDelete(ctx, userID, req.Msg.ID); err != nil {
			return nil, err
		}
	}

	if err := s.store.Delete(ctx, req.Msg.Collection, req.Msg.ID); err != nil {
		s.logger.Warn("Delete failed", "collection", req.Msg.Collection, "id", req.Msg.ID, "user_id", userID, "error", err)
		return nil, storageError(err)
	}
	metrics.StorageWrites.WithLabelValues(req.Msg.Collection, "delete").Inc()

	s.logger.Info("Document deleted", "collection", req.Msg.Collection, "id", req.Msg.ID, "user_id", userID)
	return connect.NewResponse(&api.DeleteDocumentResponse{}), nil
}

// Query returns every matching document.
func (s *DocumentService) Query(ctx context.Context, req *connect.Request[api.QueryDocumentsRequest]) (*connect.Response[api.QueryDocumentsResponse], error) {
	userID, err := s.authorize(ctx, req.Msg.Query.Collection)
	if err != nil {
		return nil, err
	}
	q, err := remote.FromAPIQuery(req.Msg.Query)
	if err != nil {
		return nil, storageError(err)
	}
	if q.Collection == models.GroupsCollection {
		if err := checkGroupQuery(userID, q); err != nil {
			return nil, err
		}
	}

	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, storageError(err)
	}
	return connect.NewResponse(&api.QueryDocumentsResponse{Documents: remote.ToAPIDocuments(docs)}), nil
}

// Watch streams the full result set of a query, first immediately and then
// after every change, until the client goes away.
func (s *DocumentService) Watch(ctx context.Context, req *connect.Request[api.WatchRequest], stream *connect.ServerStream[api.WatchResponse]) error {
	userID, err := s.authorize(ctx, req.Msg.Query.Collection)
	if err != nil {
		return err
	}
	q, err := remote.FromAPIQuery(req.Msg.Query)
	if err != nil {
		return storageError(err)
	}
	if q.Collection == models.GroupsCollection {
		if err := checkGroupQuery(userID, q); err != nil {
			return err
		}
	}

	sub, err := s.store.Watch(ctx, q)
	if err != nil {
		return storageError(err)
	}
	defer sub.Cancel()

	metrics.ActiveWatches.Inc()
	defer metrics.ActiveWatches.Dec()
	s.logger.Debug("Watch started", "collection", q.Collection, "filters", len(q.Filters), "user_id", userID)

	for {
		select {
		case docs, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					return storageError(err)
				}
				if ctx.Err() != nil {
					return nil
				}
				// The store shut down under us; let the client reconnect.
				return connect.NewError(connect.CodeUnavailable, errWatchEnded)
			}
			if err := stream.Send(&api.WatchResponse{Documents: remote.ToAPIDocuments(docs)}); err != nil {
				return err
			}
		case <-s.stop:
			return connect.NewError(connect.CodeUnavailable, errWatchEnded)
		}
	}
}

// authorize requires an authenticated caller and a public collection.
func (s *DocumentService) authorize(ctx context.Context, collection string) (string, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(collection, ReservedPrefix) {
		return "", connect.NewError(connect.CodePermissionDenied, fmt.Errorf("%w: %s", errReserved, collection))
	}
	return userID, nil
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, storage.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
