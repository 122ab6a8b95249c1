// Package groupstore is the client's cache of the groups visible to the
// signed-in user and the only place groups are mutated.
//
// Mutations are applied to the local cache first and then written to the
// document store. If the write fails the local change is rolled back, unless
// a live query snapshot or another mutation has changed the cache since.
package groupstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/workaholic/internal/analytics"
	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/calculator"
	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/internal/storage"
)

// Collections the group store reads and writes.
const (
	GroupsCollection        = models.GroupsCollection
	NotificationsCollection = "notifications"
)

// GroupStore is the mutation and read surface front-ends use.
type GroupStore interface {
	CreateGroup(ctx context.Context, name, code string) (models.Group, error)
	ImportGroup(ctx context.Context, code string) (models.Group, error)
	RenameGroup(ctx context.Context, id, newName string) error
	DeleteGroup(ctx context.Context, id string) error
	ReplaceProducts(ctx context.Context, id string, products []models.Product) error
	ReplaceCostEntries(ctx context.Context, id string, entries []models.CostEntry) error

	Groups() []models.Group
	Group(id string) (models.Group, bool)
	Select(id string) error
	Selected() (models.Group, bool)
	ClearSelection()
	Settlement(id string) (calculator.Settlement, error)

	// Changes signals after every change to the cached state.
	Changes() <-chan struct{}

	// Run follows the auth state and the live queries until ctx is done.
	Run(ctx context.Context) error
}

// Ensure Store implements GroupStore
var _ GroupStore = (*Store)(nil)

// Store implements GroupStore on a storage.Store.
type Store struct {
	docs       storage.Store
	auth       auth.State
	sink       analytics.Sink
	logger     *slog.Logger
	now        func() time.Time
	retryDelay time.Duration

	mu       sync.Mutex
	groups   []models.Group
	selected string
	synced   bool
	// version increases on every change to the cached state. A rollback
	// only applies while it is unchanged since the failed mutation.
	version uint64

	changes chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithAnalytics sets the event sink. Default: analytics.Nop.
func WithAnalytics(sink analytics.Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRetryDelay sets how long Run waits before re-opening a failed live query.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) { s.retryDelay = d }
}

// New creates a Store reading and writing docs on behalf of the actor in state.
func New(docs storage.Store, state auth.State, opts ...Option) *Store {
	s := &Store{
		docs:       docs,
		auth:       state,
		sink:       analytics.Nop{},
		logger:     slog.Default(),
		now:        time.Now,
		retryDelay: 2 * time.Second,
		groups:     []models.Group{},
		changes:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGroup creates a group owned by the signed-in user, who becomes its
// only member. The ID is assigned here so the group can be cached before the
// write completes.
func (s *Store) CreateGroup(ctx context.Context, name, code string) (models.Group, error) {
	actor, err := s.actor()
	if err != nil {
		return models.Group{}, err
	}
	name, err = models.RequireText("name", name)
	if err != nil {
		return models.Group{}, err
	}
	code = NormalizeCode(code)
	if code == "" {
		return models.Group{}, models.NewValidationError("code", "required")
	}

	g := models.Group{
		ID:          uuid.New().String(),
		Name:        models.CapitalizeFirst(name),
		Code:        code,
		OwnerUID:    actor.UID,
		Members:     []string{actor.UID},
		Products:    []models.Product{},
		CostEntries: []models.CostEntry{},
		CreatedAt:   s.now().Unix(),
	}
	fields, err := models.GroupFields(g)
	if err != nil {
		return models.Group{}, err
	}

	version := s.apply(func() {
		s.groups = append(s.groups, g.Clone())
	})

	if err := s.docs.Create(ctx, GroupsCollection, &storage.Document{ID: g.ID, Fields: fields}); err != nil {
		s.rollback(version, func() {
			s.removeLocked(g.ID)
		})
		s.logger.ErrorContext(ctx, "Failed to create group", "group_id", g.ID, "error", err)
		return models.Group{}, remoteError("create", g.ID, err)
	}

	s.logger.InfoContext(ctx, "Group created", "group_id", g.ID, "owner", actor.UID)
	s.sink.Log(ctx, analytics.EventGroupCreated, analytics.Params{"group_id": g.ID})
	return g.Clone(), nil
}

// ImportGroup joins the group with the given code. Codes are matched after
// trimming and upper-casing. An unknown code returns ErrNotFound and creates
// nothing. Joining a group the user is already in changes nothing.
func (s *Store) ImportGroup(ctx context.Context, code string) (models.Group, error) {
	actor, err := s.actor()
	if err != nil {
		return models.Group{}, err
	}
	code = NormalizeCode(code)
	if code == "" {
		return models.Group{}, models.NewValidationError("code", "required")
	}

	docs, err := s.docs.Query(ctx, storage.NewQuery(GroupsCollection).Where(models.FieldCode, storage.OpEqual, code))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to look up group code", "code", code, "error", err)
		return models.Group{}, remoteError("import", "", err)
	}
	if len(docs) == 0 {
		return models.Group{}, fmt.Errorf("%w: no group with code %s", ErrNotFound, code)
	}
	// Codes are not guaranteed unique; the oldest group wins.
	g, err := models.GroupFromFields(docs[0].ID, docs[0].Fields)
	if err != nil {
		return models.Group{}, err
	}

	joined := g.AddMember(actor.UID)
	version := s.apply(func() {
		s.upsertLocked(g)
	})

	if !joined {
		return g.Clone(), nil
	}

	// A union, not a rewrite of the list, so concurrent joiners all stay in.
	if err := s.docs.ArrayUnion(ctx, GroupsCollection, g.ID, models.FieldMembers, actor.UID); err != nil {
		s.rollback(version, func() {
			s.removeLocked(g.ID)
		})
		s.logger.ErrorContext(ctx, "Failed to join group", "group_id", g.ID, "error", err)
		return models.Group{}, remoteError("import", g.ID, err)
	}

	s.notifyOwner(ctx, g, actor)
	s.logger.InfoContext(ctx, "Group imported", "group_id", g.ID, "member", actor.UID)
	s.sink.Log(ctx, analytics.EventGroupImported, analytics.Params{"group_id": g.ID})
	return g.Clone(), nil
}

// RenameGroup sets a group's name, capitalized.
func (s *Store) RenameGroup(ctx context.Context, id, newName string) error {
	name, err := models.RequireText("name", newName)
	if err != nil {
		return err
	}
	name = models.CapitalizeFirst(name)

	return s.mutate(ctx, "rename", id, storage.Fields{models.FieldName: name}, func(g *models.Group) {
		g.Name = name
	}, func() {
		s.sink.Log(ctx, analytics.EventGroupRenamed, analytics.Params{"group_id": id})
	})
}

// DeleteGroup removes a group. Only the owner may delete. Deleting the
// selected group clears the selection.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	actor, err := s.actor()
	if err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev := s.groups[idx].Clone()
	if prev.OwnerUID != actor.UID {
		s.mu.Unlock()
		return ErrNotOwner
	}
	wasSelected := s.selected == id
	s.mu.Unlock()

	version := s.apply(func() {
		s.removeLocked(id)
	})

	if err := s.docs.Delete(ctx, GroupsCollection, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.rollback(version, func() {
			s.groups = slices.Insert(s.groups, min(idx, len(s.groups)), prev)
			if wasSelected {
				s.selected = id
			}
		})
		s.logger.ErrorContext(ctx, "Failed to delete group", "group_id", id, "error", err)
		return remoteError("delete", id, err)
	}

	s.logger.InfoContext(ctx, "Group deleted", "group_id", id)
	s.sink.Log(ctx, analytics.EventGroupDeleted, analytics.Params{"group_id": id})
	return nil
}

// ReplaceProducts replaces a group's whole product list. Derived totals are
// recomputed before writing.
func (s *Store) ReplaceProducts(ctx context.Context, id string, products []models.Product) error {
	products = slices.Clone(products)
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return err
		}
		products[i].Recompute()
	}
	encoded, err := models.EncodeValue(products)
	if err != nil {
		return err
	}
	if products == nil {
		encoded = []any{}
	}

	return s.mutate(ctx, "replace products", id, storage.Fields{models.FieldProducts: encoded}, func(g *models.Group) {
		g.Products = slices.Clone(products)
	}, func() {
		s.sink.Log(ctx, analytics.EventProductsReplaced, analytics.Params{"group_id": id, "count": len(products)})
	})
}

// ReplaceCostEntries replaces a group's whole cost entry list. Any legacy
// transactions are dropped, since reads fold them into cost entries.
func (s *Store) ReplaceCostEntries(ctx context.Context, id string, entries []models.CostEntry) error {
	entries = slices.Clone(entries)
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return err
		}
	}
	encoded, err := models.EncodeValue(entries)
	if err != nil {
		return err
	}
	if entries == nil {
		encoded = []any{}
	}

	var before int
	fields := storage.Fields{
		models.FieldCostEntries:  encoded,
		models.FieldTransactions: []any{},
	}
	return s.mutate(ctx, "replace cost entries", id, fields, func(g *models.Group) {
		before = len(g.CostEntries)
		g.CostEntries = slices.Clone(entries)
		if g.CostEntries == nil {
			g.CostEntries = []models.CostEntry{}
		}
	}, func() {
		params := analytics.Params{"group_id": id, "count": len(entries)}
		s.sink.Log(ctx, analytics.EventCostEntriesReplaced, params)
		if len(entries) > before {
			s.sink.Log(ctx, analytics.EventTransactionCreated, params)
		}
	})
}

// mutate applies change to the cached group id, writes fields remotely and
// rolls the cache back on failure. done runs after a successful write.
func (s *Store) mutate(ctx context.Context, op, id string, fields storage.Fields, change func(*models.Group), done func()) error {
	actor, err := s.actor()
	if err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !s.groups[idx].HasMember(actor.UID) {
		s.mu.Unlock()
		return ErrNotMember
	}
	prev := s.groups[idx].Clone()
	next := prev.Clone()
	change(&next)
	s.groups[idx] = next
	s.version++
	version := s.version
	s.mu.Unlock()
	s.signal()

	if err := s.docs.Update(ctx, GroupsCollection, id, fields); err != nil {
		s.rollback(version, func() {
			if i := s.indexLocked(id); i >= 0 {
				s.groups[i] = prev
			}
		})
		s.logger.ErrorContext(ctx, "Failed to update group", "op", op, "group_id", id, "error", err)
		return remoteError(op, id, err)
	}

	s.logger.DebugContext(ctx, "Group updated", "op", op, "group_id", id)
	done()
	return nil
}

// apply runs change under the lock and returns the version a later
// rollback must match.
func (s *Store) apply(change func()) uint64 {
	s.mu.Lock()
	change()
	s.version++
	version := s.version
	s.mu.Unlock()
	s.signal()
	return version
}

// rollback runs undo if nothing has changed the cache since the mutation.
func (s *Store) rollback(version uint64, undo func()) {
	s.mu.Lock()
	if s.version != version {
		s.mu.Unlock()
		return
	}
	undo()
	s.mu.Unlock()
	s.signal()
}

func (s *Store) notifyOwner(ctx context.Context, g models.Group, joiner auth.Actor) {
	if g.OwnerUID == "" || g.OwnerUID == joiner.UID {
		return
	}
	who := joiner.DisplayName
	if who == "" {
		who = joiner.Email
	}
	if who == "" {
		who = joiner.UID
	}
	fields, err := models.EncodeValue(models.Notification{
		RecipientUID: g.OwnerUID,
		Message:      fmt.Sprintf("%s gick med i %s", who, g.Name),
		GroupID:      g.ID,
		CreatedAt:    s.now().Unix(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to encode notification", "group_id", g.ID, "error", err)
		return
	}
	if err := s.docs.Create(ctx, NotificationsCollection, &storage.Document{Fields: fields.(map[string]any)}); err != nil {
		s.logger.WarnContext(ctx, "Failed to notify group owner", "group_id", g.ID, "error", err)
	}
}

func (s *Store) actor() (auth.Actor, error) {
	a := s.auth.Current()
	if !a.SignedIn() {
		return auth.Actor{}, ErrNotSignedIn
	}
	return a, nil
}

// Groups returns a copy of the cached groups in creation order.
func (s *Store) Groups() []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = g.Clone()
	}
	return out
}

// Group returns a copy of the cached group id.
func (s *Store) Group(id string) (models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.groups[i].Clone(), true
	}
	return models.Group{}, false
}

// Select makes id the selected group.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	changed := s.selected != id
	s.selected = id
	s.mu.Unlock()
	if changed {
		s.signal()
	}
	return nil
}

// Selected returns the selected group, if any.
func (s *Store) Selected() (models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return models.Group{}, false
	}
	if i := s.indexLocked(s.selected); i >= 0 {
		return s.groups[i].Clone(), true
	}
	return models.Group{}, false
}

// ClearSelection deselects the selected group.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	changed := s.selected != ""
	s.selected = ""
	s.mu.Unlock()
	if changed {
		s.signal()
	}
}

// Settlement computes the settlement of the cached group id.
func (s *Store) Settlement(id string) (calculator.Settlement, error) {
	g, ok := s.Group(id)
	if !ok {
		return calculator.Settlement{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return calculator.SettleGroup(g), nil
}

// Synced reports whether the cache holds a snapshot for the signed-in user.
func (s *Store) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// WaitSynced blocks until Synced is true or ctx is done. It consumes
// Changes signals, so it should not race another reader of Changes.
func (s *Store) WaitSynced(ctx context.Context) error {
	for !s.Synced() {
		select {
		case <-s.changes:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Changes implements GroupStore. Signals coalesce; read the state after
// receiving.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.groups, func(g models.Group) bool { return g.ID == id })
}

func (s *Store) removeLocked(id string) {
	s.groups = slices.DeleteFunc(s.groups, func(g models.Group) bool { return g.ID == id })
	if s.selected == id {
		s.selected = ""
	}
}

func (s *Store) upsertLocked(g models.Group) {
	if i := s.indexLocked(g.ID); i >= 0 {
		s.groups[i] = g.Clone()
		return
	}
	s.groups = append(s.groups, g.Clone())
}
