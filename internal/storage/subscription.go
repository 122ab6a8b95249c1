package storage

import "sync"

// Subscription is a live query handle. C delivers full result sets; when the
// consumer lags, an undelivered snapshot is replaced by the newer one, so the
// latest state always wins and snapshots never arrive out of order.
type Subscription struct {
	query Query
	ch    chan []Document
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	err      error
	onCancel func()
	once     sync.Once
}

// NewSubscription creates a subscription for q. onCancel, if set, runs once
// when the subscription ends.
func NewSubscription(q Query, onCancel func()) *Subscription {
	return &Subscription{
		query:    q,
		ch:       make(chan []Document, 1),
		done:     make(chan struct{}),
		onCancel: onCancel,
	}
}

// Query returns the query this subscription follows.
func (s *Subscription) Query() Query {
	return s.query
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan []Document {
	return s.ch
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Deliver publishes a snapshot, replacing any snapshot not yet received.
// It never blocks and is a no-op after the subscription ended.
func (s *Subscription) Deliver(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- docs
}

// Cancel ends the subscription and closes C. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.end(nil)
}

// Fail ends the subscription with err, reported by Err.
func (s *Subscription) Fail(err error) {
	s.end(err)
}

// Err returns the error that ended the subscription, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = err
		close(s.ch)
		close(s.done)
		s.mu.Unlock()
		if s.onCancel != nil {
			s.onCancel()
		}
	})
}
