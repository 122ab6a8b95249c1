// Package badge maintains the live counts shown on navigation badges:
// pending cost entries, newly flagged products and unread notifications.
package badge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/storage"
)

// Collections the counters watch.
const (
	PendingCostsCollection  = "Kostnads"
	NewProductsCollection   = "products"
	NotificationsCollection = "notifications"
)

// Counts is a snapshot of every badge.
type Counts struct {
	PendingCosts  int
	NewProducts   int
	Notifications int
}

// Counters keeps Counts current. The three counts are independent; a failing
// query only stops its own count.
type Counters struct {
	docs   storage.Store
	auth   auth.State
	logger *slog.Logger

	mu      sync.Mutex
	counts  Counts
	changes chan struct{}
}

// New creates counters over docs. Unread notifications are counted for the
// actor signed in to state.
func New(docs storage.Store, state auth.State, logger *slog.Logger) *Counters {
	if logger == nil {
		logger = slog.Default()
	}
	return &Counters{
		docs:    docs,
		auth:    state,
		logger:  logger,
		changes: make(chan struct{}, 1),
	}
}

// Counts returns the latest counts.
func (c *Counters) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// Changes signals after any count changes.
func (c *Counters) Changes() <-chan struct{} {
	return c.changes
}

// Run watches the three collections until ctx is done. The notification
// count follows the signed-in user and is zero while signed out.
func (c *Counters) Run(ctx context.Context) error {
	// A plain group: one failing count must not cancel the others.
	var g errgroup.Group

	g.Go(func() error {
		return c.logFailure(ctx, "pending_costs", c.count(ctx, pendingCostsQuery(), setPendingCosts))
	})
	g.Go(func() error {
		return c.logFailure(ctx, "new_products", c.count(ctx, newProductsQuery(), setNewProducts))
	})
	g.Go(func() error {
		return c.logFailure(ctx, "notifications", c.countNotifications(ctx))
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Counters) logFailure(ctx context.Context, badge string, err error) error {
	if err != nil && ctx.Err() == nil {
		c.logger.ErrorContext(ctx, "Badge count stopped", "badge", badge, "error", err)
	}
	return err
}

// count folds every snapshot of q into the counts until ctx is done.
func (c *Counters) count(ctx context.Context, q storage.Query, set func(int, *Counts)) error {
	sub, err := c.docs.Watch(ctx, q)
	if err != nil {
		return fmt.Errorf("watch %s: %w", q.Collection, err)
	}
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case docs, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					return fmt.Errorf("watch %s: %w", q.Collection, err)
				}
				return ctx.Err()
			}
			c.set(len(docs), set)
		}
	}
}

func (c *Counters) countNotifications(ctx context.Context) error {
	authCh, unsubscribe := c.auth.Subscribe()
	defer unsubscribe()

	actor := c.auth.Current()
	for {
		if !actor.SignedIn() {
			c.set(0, setNotifications)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case next, ok := <-authCh:
				if !ok {
					<-ctx.Done()
					return ctx.Err()
				}
				actor = next
				continue
			}
		}

		wctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- c.count(wctx, unreadQuery(actor.UID), setNotifications)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return ctx.Err()
		case err := <-done:
			cancel()
			return err
		case next, ok := <-authCh:
			if !ok {
				err := <-done
				cancel()
				return err
			}
			cancel()
			<-done
			c.logger.DebugContext(ctx, "Notification badge follows new user", "uid", next.UID)
			actor = next
		}
	}
}

// Snapshot queries the three counts once, without watching. It does not
// touch the live Counts.
func (c *Counters) Snapshot(ctx context.Context) (Counts, error) {
	var (
		counts Counts
		mu     sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	query := func(q storage.Query, set func(int, *Counts)) {
		g.Go(func() error {
			docs, err := c.docs.Query(gctx, q)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.Collection, err)
			}
			mu.Lock()
			set(len(docs), &counts)
			mu.Unlock()
			return nil
		})
	}

	query(pendingCostsQuery(), setPendingCosts)
	query(newProductsQuery(), setNewProducts)
	if actor := c.auth.Current(); actor.SignedIn() {
		query(unreadQuery(actor.UID), setNotifications)
	}

	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return counts, nil
}

// MarkNotificationsRead marks every unread notification of the signed-in
// user as read.
func (c *Counters) MarkNotificationsRead(ctx context.Context) error {
	actor := c.auth.Current()
	if !actor.SignedIn() {
		return nil
	}
	docs, err := c.docs.Query(ctx, unreadQuery(actor.UID))
	if err != nil {
		return fmt.Errorf("query unread notifications: %w", err)
	}
	for _, doc := range docs {
		if err := c.docs.Update(ctx, NotificationsCollection, doc.ID, storage.Fields{"read": true}); err != nil {
			return fmt.Errorf("mark notification %s read: %w", doc.ID, err)
		}
	}
	c.logger.InfoContext(ctx, "Marked notifications read", "uid", actor.UID, "count", len(docs))
	return nil
}

func (c *Counters) set(n int, set func(int, *Counts)) {
	c.mu.Lock()
	before := c.counts
	set(n, &c.counts)
	changed := before != c.counts
	c.mu.Unlock()
	if changed {
		select {
		case c.changes <- struct{}{}:
		default:
		}
	}
}

func setPendingCosts(n int, cs *Counts)  { cs.PendingCosts = n }
func setNewProducts(n int, cs *Counts)   { cs.NewProducts = n }
func setNotifications(n int, cs *Counts) { cs.Notifications = n }

func pendingCostsQuery() storage.Query {
	return storage.NewQuery(PendingCostsCollection).Where("status", storage.OpEqual, "pending")
}

func newProductsQuery() storage.Query {
	return storage.NewQuery(NewProductsCollection).Where("isNew", storage.OpEqual, true)
}

func unreadQuery(uid string) storage.Query {
	return storage.NewQuery(NotificationsCollection).
		Where("recipientUid", storage.OpEqual, uid).
		Where("read", storage.OpEqual, false)
}
