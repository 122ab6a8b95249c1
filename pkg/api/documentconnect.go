package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// DocumentServiceName is the fully-qualified name of the DocumentService service.
	DocumentServiceName = "workaholic.v1.DocumentService"
)

const (
	DocumentServiceCreateProcedure     = "/workaholic.v1.DocumentService/Create"
	DocumentServiceGetProcedure        = "/workaholic.v1.DocumentService/Get"
	DocumentServiceUpdateProcedure     = "/workaholic.v1.DocumentService/Update"
	DocumentServiceArrayUnionProcedure = "/workaholic.v1.DocumentService/ArrayUnion"
	DocumentServiceDeleteProcedure     = "/workaholic.v1.DocumentService/Delete"
	DocumentServiceQueryProcedure      = "/workaholic.v1.DocumentService/Query"
	DocumentServiceWatchProcedure      = "/workaholic.v1.DocumentService/Watch"
)

// DocumentServiceClient is a client for the workaholic.v1.DocumentService service.
type DocumentServiceClient interface {
	Create(context.Context, *connect.Request[CreateDocumentRequest]) (*connect.Response[CreateDocumentResponse], error)
	Get(context.Context, *connect.Request[GetDocumentRequest]) (*connect.Response[GetDocumentResponse], error)
	Update(context.Context, *connect.Request[UpdateDocumentRequest]) (*connect.Response[UpdateDocumentResponse], error)
	ArrayUnion(context.Context, *connect.Request[ArrayUnionRequest]) (*connect.Response[ArrayUnionResponse], error)
	Delete(context.Context, *connect.Request[DeleteDocumentRequest]) (*connect.Response[DeleteDocumentResponse], error)
	Query(context.Context, *connect.Request[QueryDocumentsRequest]) (*connect.Response[QueryDocumentsResponse], error)
	Watch(context.Context, *connect.Request[WatchRequest]) (*connect.ServerStreamForClient[WatchResponse], error)
}

// NewDocumentServiceClient constructs a client for the workaholic.v1.DocumentService
// service. baseURL is the server root, e.g. http://localhost:8080.
func NewDocumentServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) DocumentServiceClient {
	opts = append([]connect.ClientOption{WithCodec()}, opts...)
	return &documentServiceClient{
		create:     connect.NewClient[CreateDocumentRequest, CreateDocumentResponse](httpClient, baseURL+DocumentServiceCreateProcedure, opts...),
		get:        connect.NewClient[GetDocumentRequest, GetDocumentResponse](httpClient, baseURL+DocumentServiceGetProcedure, opts...),
		update:     connect.NewClient[UpdateDocumentRequest, UpdateDocumentResponse](httpClient, baseURL+DocumentServiceUpdateProcedure, opts...),
		arrayUnion: connect.NewClient[ArrayUnionRequest, ArrayUnionResponse](httpClient, baseURL+DocumentServiceArrayUnionProcedure, opts...),
		delete:     connect.NewClient[DeleteDocumentRequest, DeleteDocumentResponse](httpClient, baseURL+DocumentServiceDeleteProcedure, opts...),
		query:      connect.NewClient[QueryDocumentsRequest, QueryDocumentsResponse](httpClient, baseURL+DocumentServiceQueryProcedure, opts...),
		watch:      connect.NewClient[WatchRequest, WatchResponse](httpClient, baseURL+DocumentServiceWatchProcedure, opts...),
	}
}

type documentServiceClient struct {
	create     *connect.Client[CreateDocumentRequest, CreateDocumentResponse]
	get        *connect.Client[GetDocumentRequest, GetDocumentResponse]
	update     *connect.Client[UpdateDocumentRequest, UpdateDocumentResponse]
	arrayUnion *connect.Client[ArrayUnionRequest, ArrayUnionResponse]
	delete     *connect.Client[DeleteDocumentRequest, DeleteDocumentResponse]
	query      *connect.Client[QueryDocumentsRequest, QueryDocumentsResponse]
	watch      *connect.Client[WatchRequest, WatchResponse]
}

func (c *documentServiceClient) Create(ctx context.Context, req *connect.Request[CreateDocumentRequest]) (*connect.Response[CreateDocumentResponse], error) {
	return c.create.CallUnary(ctx, req)
}

func (c *documentServiceClient) Get(ctx context.Context, req *connect.Request[GetDocumentRequest]) (*connect.Response[GetDocumentResponse], error) {
	return c.get.CallUnary(ctx, req)
}

func (c *documentServiceClient) Update(ctx context.Context, req *connect.Request[UpdateDocumentRequest]) (*connect.Response[UpdateDocumentResponse], error) {
	return c.update.CallUnary(ctx, req)
}

func (c *documentServiceClient) ArrayUnion(ctx context.Context, req *connect.Request[ArrayUnionRequest]) (*connect.Response[ArrayUnionResponse], error) {
	return c.arrayUnion.CallUnary(ctx, req)
}

func (c *documentServiceClient) Delete(ctx context.Context, req *connect.Request[DeleteDocumentRequest]) (*connect.Response[DeleteDocumentResponse], error) {
	return c.delete.CallUnary(ctx, req)
}

func (c *documentServiceClient) Query(ctx context.Context, req *connect.Request[QueryDocumentsRequest]) (*connect.Response[QueryDocumentsResponse], error) {
	return c.query.CallUnary(ctx, req)
}

func (c *documentServiceClient) Watch(ctx context.Context, req *connect.Request[WatchRequest]) (*connect.ServerStreamForClient[WatchResponse], error) {
	return c.watch.CallServerStream(ctx, req)
}

// DocumentServiceHandler is implemented by the server side of
// workaholic.v1.DocumentService.
type DocumentServiceHandler interface {
	Create(context.Context, *connect.Request[CreateDocumentRequest]) (*connect.Response[CreateDocumentResponse], error)
	Get(context.Context, *connect.Request[GetDocumentRequest]) (*connect.Response[GetDocumentResponse], error)
	Update(context.Context, *connect.Request[UpdateDocumentRequest]) (*connect.Response[UpdateDocumentResponse], error)
	ArrayUnion(context.Context, *connect.Request[ArrayUnionRequest]) (*connect.Response[ArrayUnionResponse], error)
	Delete(context.Context, *connect.Request[DeleteDocumentRequest]) (*connect.Response[DeleteDocumentResponse], error)
	Query(context.Context, *connect.Request[QueryDocumentsRequest]) (*connect.Response[QueryDocumentsResponse], error)
	Watch(context.Context, *connect.Request[WatchRequest], *connect.ServerStream[WatchResponse]) error
}

// NewDocumentServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewDocumentServiceHandler(svc DocumentServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithCodec()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(DocumentServiceCreateProcedure, connect.NewUnaryHandler(DocumentServiceCreateProcedure, svc.Create, opts...))
	mux.Handle(DocumentServiceGetProcedure, connect.NewUnaryHandler(DocumentServiceGetProcedure, svc.Get, opts...))
	mux.Handle(DocumentServiceUpdateProcedure, connect.NewUnaryHandler(DocumentServiceUpdateProcedure, svc.Update, opts...))
	mux.Handle(DocumentServiceArrayUnionProcedure, connect.NewUnaryHandler(DocumentServiceArrayUnionProcedure, svc.ArrayUnion, opts...))
	mux.Handle(DocumentServiceDeleteProcedure, connect.NewUnaryHandler(DocumentServiceDeleteProcedure, svc.Delete, opts...))
	mux.Handle(DocumentServiceQueryProcedure, connect.NewUnaryHandler(DocumentServiceQueryProcedure, svc.Query, opts...))
	mux.Handle(DocumentServiceWatchProcedure, connect.NewServerStreamHandler(DocumentServiceWatchProcedure, svc.Watch, opts...))
	return "/" + DocumentServiceName + "/", mux
}
