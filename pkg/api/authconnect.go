package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// AuthServiceName is the fully-qualified name of the AuthService service.
	AuthServiceName = "workaholic.v1.AuthService"
)

const (
	AuthServiceRegisterProcedure       = "/workaholic.v1.AuthService/Register"
	AuthServiceLoginProcedure          = "/workaholic.v1.AuthService/Login"
	AuthServiceGetCurrentUserProcedure = "/workaholic.v1.AuthService/GetCurrentUser"
	AuthServiceUpdateProfileProcedure  = "/workaholic.v1.AuthService/UpdateProfile"
	AuthServiceChangePasswordProcedure = "/workaholic.v1.AuthService/ChangePassword"
)

// PublicProcedures may be called without a bearer token.
var PublicProcedures = map[string]bool{
	AuthServiceRegisterProcedure: true,
	AuthServiceLoginProcedure:    true,
}

// AuthServiceClient is a client for the workaholic.v1.AuthService service.
type AuthServiceClient interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
	UpdateProfile(context.Context, *connect.Request[UpdateProfileRequest]) (*connect.Response[UpdateProfileResponse], error)
	ChangePassword(context.Context, *connect.Request[ChangePasswordRequest]) (*connect.Response[ChangePasswordResponse], error)
}

// NewAuthServiceClient constructs a client for the workaholic.v1.AuthService service.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	opts = append([]connect.ClientOption{WithCodec()}, opts...)
	return &authServiceClient{
		register:       connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:          connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		getCurrentUser: connect.NewClient[GetCurrentUserRequest, GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
		updateProfile:  connect.NewClient[UpdateProfileRequest, UpdateProfileResponse](httpClient, baseURL+AuthServiceUpdateProfileProcedure, opts...),
		changePassword: connect.NewClient[ChangePasswordRequest, ChangePasswordResponse](httpClient, baseURL+AuthServiceChangePasswordProcedure, opts...),
	}
}

type authServiceClient struct {
	register       *connect.Client[RegisterRequest, RegisterResponse]
	login          *connect.Client[LoginRequest, LoginResponse]
	getCurrentUser *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
	updateProfile  *connect.Client[UpdateProfileRequest, UpdateProfileResponse]
	changePassword *connect.Client[ChangePasswordRequest, ChangePasswordResponse]
}

func (c *authServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *authServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *authServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}

func (c *authServiceClient) UpdateProfile(ctx context.Context, req *connect.Request[UpdateProfileRequest]) (*connect.Response[UpdateProfileResponse], error) {
	return c.updateProfile.CallUnary(ctx, req)
}

func (c *authServiceClient) ChangePassword(ctx context.Context, req *connect.Request[ChangePasswordRequest]) (*connect.Response[ChangePasswordResponse], error) {
	return c.changePassword.CallUnary(ctx, req)
}

// AuthServiceHandler is implemented by the server side of workaholic.v1.AuthService.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
	UpdateProfile(context.Context, *connect.Request[UpdateProfileRequest]) (*connect.Response[UpdateProfileResponse], error)
	ChangePassword(context.Context, *connect.Request[ChangePasswordRequest]) (*connect.Response[ChangePasswordResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler from the service implementation.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithCodec()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(AuthServiceRegisterProcedure, connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...))
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...))
	mux.Handle(AuthServiceGetCurrentUserProcedure, connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...))
	mux.Handle(AuthServiceUpdateProfileProcedure, connect.NewUnaryHandler(AuthServiceUpdateProfileProcedure, svc.UpdateProfile, opts...))
	mux.Handle(AuthServiceChangePasswordProcedure, connect.NewUnaryHandler(AuthServiceChangePasswordProcedure, svc.ChangePassword, opts...))
	return "/" + AuthServiceName + "/", mux
}
