package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/internal/analytics"
	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/badge"
	"github.com/mmynk/workaholic/internal/config"
	"github.com/mmynk/workaholic/internal/groupstore"
	"github.com/mmynk/workaholic/internal/middleware"
	"github.com/mmynk/workaholic/internal/storage/remote"
	"github.com/mmynk/workaholic/pkg/api"
)

// syncTimeout bounds how long a command waits for the first group snapshot.
const syncTimeout = 15 * time.Second

// app wires the client components for one invocation.
type app struct {
	cfg       *config.ClientConfig
	logger    *slog.Logger
	in        io.Reader
	out       io.Writer
	tokenFile string
	lines     *bufio.Scanner

	authClient api.AuthServiceClient
	session    *auth.Session
	docs       *remote.Store
	groups     *groupstore.Store
	badges     *badge.Counters

	closers []io.Closer
}

func newApp(cfg *config.ClientConfig, httpClient connect.HTTPClient, logger *slog.Logger, out io.Writer) (*app, error) {
	tokenFile, err := tokenPath(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, in: os.Stdin, out: out, tokenFile: tokenFile}

	var session *auth.Session
	a.authClient = api.NewAuthServiceClient(httpClient, cfg.ServerURL,
		api.WithCodec(),
		connect.WithInterceptors(middleware.BearerToken(func() string { return session.Token() })),
	)
	session = auth.NewSession(a.authClient)
	a.session = session

	a.docs = remote.Dial(httpClient, cfg.ServerURL, session.Token, logger)
	a.closers = append(a.closers, a.docs)

	a.groups = groupstore.New(a.docs, session,
		groupstore.WithAnalytics(a.analyticsSink()),
		groupstore.WithLogger(logger),
	)
	a.badges = badge.New(a.docs, session, logger)
	return a, nil
}

// analyticsSink logs every event and also publishes it when an AMQP broker
// is configured. An unreachable broker only loses the published copy.
func (a *app) analyticsSink() analytics.Sink {
	sinks := analytics.Multi{analytics.NewLogger(a.logger)}
	if !a.cfg.AnalyticsEnabled() {
		return sinks
	}
	pub, err := analytics.DialAMQP(a.cfg.Analytics.AMQPURL, a.cfg.Analytics.Exchange, a.cfg.Analytics.RoutingKey, a.logger)
	if err != nil {
		a.logger.Warn("Analytics broker unavailable", "error", err)
		return sinks
	}
	a.closers = append(a.closers, pub)
	return append(sinks, pub)
}

// Close releases the remote store and the analytics connection.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// resume signs in with the saved token, if any. A token the server rejects
// is forgotten.
func (a *app) resume(ctx context.Context) error {
	raw, err := os.ReadFile(a.tokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return nil
	}

	if _, err := a.session.Resume(ctx, token); err != nil {
		if connect.CodeOf(err) == connect.CodeUnauthenticated {
			a.logger.Debug("Saved session expired", "error", err)
			return a.forgetToken()
		}
		return err
	}
	return nil
}

func (a *app) saveToken() error {
	if err := os.MkdirAll(filepath.Dir(a.tokenFile), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(a.tokenFile, []byte(a.session.Token()+"\n"), 0o600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

func (a *app) forgetToken() error {
	if err := os.Remove(a.tokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// requireSignedIn fails unless resume found a session.
func (a *app) requireSignedIn() (auth.Actor, error) {
	actor := a.session.Current()
	if !actor.SignedIn() {
		return auth.Actor{}, errors.New("not signed in; run 'workaholic login' first")
	}
	return actor, nil
}

// startSync runs the group store in the background and waits for its first
// snapshot. The returned func stops it.
func (a *app) startSync(ctx context.Context) (func(), error) {
	if _, err := a.requireSignedIn(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.groups.Run(runCtx)
	}()
	stop := func() {
		cancel()
		<-done
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, syncTimeout)
	defer waitCancel()
	if err := a.groups.WaitSynced(waitCtx); err != nil {
		stop()
		return nil, fmt.Errorf("loading groups: %w", err)
	}
	return stop, nil
}

func tokenPath(cfg *config.ClientConfig) (string, error) {
	if cfg.TokenFile != "" {
		return cfg.TokenFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "workaholic", "token"), nil
}
