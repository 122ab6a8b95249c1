package auth

import (
	"context"
	"fmt"
	"sync"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/pkg/api"
)

// Actor is the signed-in user as the client sees it. The zero Actor means
// signed out.
type Actor struct {
	UID         string
	Email       string
	DisplayName string
	Token       string
}

// SignedIn reports whether a is a real user.
func (a Actor) SignedIn() bool {
	return a.UID != ""
}

// State is the observable sign-in state components follow.
type State interface {
	// Current returns the actor right now.
	Current() Actor

	// Subscribe returns a channel that receives the actor after every change,
	// latest value winning, and a func that cancels the subscription.
	Subscribe() (<-chan Actor, func())
}

// Ensure Session implements State
var _ State = (*Session)(nil)

// Session holds the client's sign-in state and talks to the AuthService.
type Session struct {
	client api.AuthServiceClient

	mu    sync.Mutex
	actor Actor
	subs  map[chan Actor]struct{}
}

// NewSession creates a signed-out session. client may be nil when the actor
// is only ever set with Set.
func NewSession(client api.AuthServiceClient) *Session {
	return &Session{
		client: client,
		subs:   make(map[chan Actor]struct{}),
	}
}

// Register creates an account and signs it in.
func (s *Session) Register(ctx context.Context, email, password, displayName string) (Actor, error) {
	resp, err := s.client.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}))
	if err != nil {
		return Actor{}, fmt.Errorf("register: %w", err)
	}
	actor := actorFrom(resp.Msg.User, resp.Msg.Token)
	s.Set(actor)
	return actor, nil
}

// SignIn logs in with email and password.
func (s *Session) SignIn(ctx context.Context, email, password string) (Actor, error) {
	resp, err := s.client.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    email,
		Password: password,
	}))
	if err != nil {
		return Actor{}, fmt.Errorf("sign in: %w", err)
	}
	actor := actorFrom(resp.Msg.User, resp.Msg.Token)
	s.Set(actor)
	return actor, nil
}

// Resume signs in with a token saved from an earlier session.
func (s *Session) Resume(ctx context.Context, token string) (Actor, error) {
	req := connect.NewRequest(&api.GetCurrentUserRequest{})
	req.Header().Set("Authorization", "Bearer "+token)
	resp, err := s.client.GetCurrentUser(ctx, req)
	if err != nil {
		return Actor{}, fmt.Errorf("resume session: %w", err)
	}
	actor := actorFrom(resp.Msg.User, token)
	s.Set(actor)
	return actor, nil
}

// SignOut clears the actor.
func (s *Session) SignOut() {
	s.Set(Actor{})
}

// Set replaces the actor and notifies subscribers if it changed.
func (s *Session) Set(actor Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actor == actor {
		return
	}
	s.actor = actor
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- actor
	}
}

// Current returns the signed-in actor, or the zero Actor.
func (s *Session) Current() Actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor
}

// Token returns the current bearer token, empty when signed out.
func (s *Session) Token() string {
	return s.Current().Token
}

// Subscribe implements State.
func (s *Session) Subscribe() (<-chan Actor, func()) {
	ch := make(chan Actor, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
}

func actorFrom(u api.User, token string) Actor {
	return Actor{UID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Token: token}
}
