package storage

import (
	"context"
	"sync"
)

// QueryFunc runs a query against a backend.
type QueryFunc func(ctx context.Context, q Query) ([]Document, error)

// Hub fans collection changes out to live subscriptions. Backends call
// Notify after every successful write.
type Hub struct {
	query QueryFunc

	mu   sync.Mutex
	subs map[*Subscription]struct{}

	// notifyMu serializes snapshot delivery so subscribers see changes in
	// the order they were committed.
	notifyMu sync.Mutex
}

// NewHub creates a hub that builds snapshots with query.
func NewHub(query QueryFunc) *Hub {
	return &Hub{
		query: query,
		subs:  make(map[*Subscription]struct{}),
	}
}

// Watch registers a subscription for q and delivers the initial snapshot.
// The subscription is cancelled when ctx is done.
func (h *Hub) Watch(ctx context.Context, q Query) (*Subscription, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	var sub *Subscription
	sub = NewSubscription(q, func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	})

	h.notifyMu.Lock()
	docs, err := h.query(ctx, q)
	if err != nil {
		h.notifyMu.Unlock()
		return nil, err
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	sub.Deliver(docs)
	h.notifyMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		}
	}()
	return sub, nil
}

// Notify re-runs every subscription on collection and delivers the results.
// A subscription whose query fails is ended with that error.
func (h *Hub) Notify(ctx context.Context, collection string) {
	ctx = context.WithoutCancel(ctx)

	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		if sub.query.Collection == collection {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		docs, err := h.query(ctx, sub.query)
		if err != nil {
			sub.Fail(err)
			continue
		}
		sub.Deliver(docs)
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
}
