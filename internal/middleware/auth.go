package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for storing the authenticated user's email.
	EmailKey contextKey = "email"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// WithUser returns ctx carrying the given identity.
func WithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, EmailKey, email)
}

// AuthInterceptor validates bearer tokens on incoming RPCs and adds the user
// ID and email to the handler context. Procedures listed as public are let
// through without a token; a valid token is still attached if one is sent.
type AuthInterceptor struct {
	jwtManager *auth.JWTManager
	public     map[string]bool
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

// NewAuthInterceptor creates an interceptor requiring a token for every
// procedure not in public.
func NewAuthInterceptor(jwtManager *auth.JWTManager, public map[string]bool) *AuthInterceptor {
	return &AuthInterceptor{jwtManager: jwtManager, public: public}
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx, err := i.authenticate(ctx, req.Spec().Procedure, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := i.authenticate(ctx, conn.Spec().Procedure, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *AuthInterceptor) authenticate(ctx context.Context, procedure string, header http.Header) (context.Context, error) {
	claims, err := i.claims(header)
	if err != nil {
		if i.public[procedure] {
			return ctx, nil
		}
		slog.Warn("Rejected unauthenticated request", "procedure", procedure, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}
	return WithUser(ctx, claims.UserID(), claims.Email), nil
}

func (i *AuthInterceptor) claims(header http.Header) (*auth.Claims, error) {
	authHeader := header.Get("Authorization")
	if authHeader == "" {
		return nil, auth.ErrMissingToken
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrInvalidToken
	}
	return i.jwtManager.Validate(token)
}

// BearerToken returns a client interceptor that sends token() as a bearer
// token on every outgoing request that does not already carry one.
func BearerToken(token func() string) connect.Interceptor {
	return &bearerInterceptor{token: token}
}

type bearerInterceptor struct {
	token func() string
}

func (b *bearerInterceptor) set(header http.Header) {
	if header.Get("Authorization") != "" {
		return
	}
	if t := b.token(); t != "" {
		header.Set("Authorization", "Bearer "+t)
	}
}

func (b *bearerInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			b.set(req.Header())
		}
		return next(ctx, req)
	}
}

func (b *bearerInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		b.set(conn.RequestHeader())
		return conn
	}
}

func (b *bearerInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
