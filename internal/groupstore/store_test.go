package groupstore

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/workaholic/internal/analytics"
	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/internal/storage"
	"github.com/mmynk/workaholic/internal/storage/memory"
)

// flakyStore fails writes while fail is set.
type flakyStore struct {
	storage.Store

	mu   sync.Mutex
	fail error
}

func (f *flakyStore) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *flakyStore) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *flakyStore) Create(ctx context.Context, collection string, doc *storage.Document) error {
	if err := f.failure(); err != nil {
		return err
	}
	return f.Store.Create(ctx, collection, doc)
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	if err := f.failure(); err != nil {
		return err
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func (f *flakyStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	if err := f.failure(); err != nil {
		return err
	}
	return f.Store.ArrayUnion(ctx, collection, id, field, values...)
}

func (f *flakyStore) Delete(ctx context.Context, collection, id string) error {
	if err := f.failure(); err != nil {
		return err
	}
	return f.Store.Delete(ctx, collection, id)
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Log(_ context.Context, event string, _ analytics.Params) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingSink) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	docs    *flakyStore
	session *auth.Session
	store   *Store
	sink    *recordingSink
}

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, uid string) *fixture {
	t.Helper()
	mem := memory.New()
	t.Cleanup(func() { mem.Close() })
	return newFixtureOn(t, &flakyStore{Store: mem}, uid)
}

func newFixtureOn(t *testing.T, docs *flakyStore, uid string) *fixture {
	t.Helper()
	session := auth.NewSession(nil)
	if uid != "" {
		session.Set(auth.Actor{UID: uid, Email: uid + "@example.com", DisplayName: "User " + uid})
	}
	sink := &recordingSink{}
	store := New(docs, session,
		WithAnalytics(sink),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(func() time.Time { return fixedNow }),
		WithRetryDelay(10*time.Millisecond),
	)
	return &fixture{docs: docs, session: session, store: store, sink: sink}
}

// run starts Run and stops it when the test ends.
func (f *fixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.store.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run returned %v", err)
		}
	})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateGroup_RoundTrip(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	created, err := f.store.CreateGroup(ctx, "villa ek", " ab12cd34 ")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	doc, err := f.docs.Get(ctx, GroupsCollection, created.ID)
	if err != nil {
		t.Fatalf("stored group not found: %v", err)
	}
	got, err := models.GroupFromFields(doc.ID, doc.Fields)
	if err != nil {
		t.Fatalf("GroupFromFields failed: %v", err)
	}

	if got.Name != "Villa ek" {
		t.Errorf("Name = %q, want Villa ek", got.Name)
	}
	if got.Code != "AB12CD34" {
		t.Errorf("Code = %q, want AB12CD34", got.Code)
	}
	if got.OwnerUID != "u1" || len(got.Members) != 1 || got.Members[0] != "u1" {
		t.Errorf("owner/members = %q %v", got.OwnerUID, got.Members)
	}
	if len(got.Products) != 0 || len(got.CostEntries) != 0 {
		t.Errorf("expected empty line items, got %d products %d entries", len(got.Products), len(got.CostEntries))
	}
	if got.CreatedAt != fixedNow.Unix() {
		t.Errorf("CreatedAt = %d", got.CreatedAt)
	}

	cached, ok := f.store.Group(created.ID)
	if !ok || cached.Name != got.Name {
		t.Errorf("cached group = %+v, %v", cached, ok)
	}
	if f.sink.count(analytics.EventGroupCreated) != 1 {
		t.Error("expected group_created event")
	}
}

func TestCreateGroup_Validation(t *testing.T) {
	tests := []struct {
		name      string
		groupName string
		code      string
	}{
		{"empty name", "", "CODE1234"},
		{"whitespace name", "   ", "CODE1234"},
		{"empty code", "Villa", ""},
		{"whitespace code", "Villa", "  \t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "u1")
			_, err := f.store.CreateGroup(context.Background(), tt.groupName, tt.code)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %T is not a *ValidationError", err)
			}
			if n := len(f.store.Groups()); n != 0 {
				t.Errorf("cache has %d groups after rejected create", n)
			}
			docs, _ := f.docs.Query(context.Background(), storage.NewQuery(GroupsCollection))
			if len(docs) != 0 {
				t.Errorf("store has %d groups after rejected create", len(docs))
			}
		})
	}
}

func TestMutations_RequireSignIn(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if _, err := f.store.CreateGroup(ctx, "a", "b"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("CreateGroup error = %v, want ErrNotSignedIn", err)
	}
	if _, err := f.store.ImportGroup(ctx, "b"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("ImportGroup error = %v, want ErrNotSignedIn", err)
	}
	if err := f.store.DeleteGroup(ctx, "x"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("DeleteGroup error = %v, want ErrNotSignedIn", err)
	}
}

func TestRenameGroup(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	g, err := f.store.CreateGroup(ctx, "Villa", "CODE1234")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if err := f.store.Select(g.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	t.Run("whitespace name is rejected", func(t *testing.T) {
		err := f.store.RenameGroup(ctx, g.ID, "   ")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("error = %v, want ErrValidation", err)
		}
		doc, _ := f.docs.Get(ctx, GroupsCollection, g.ID)
		if doc.Fields[models.FieldName] != "Villa" {
			t.Errorf("stored name = %v, want Villa", doc.Fields[models.FieldName])
		}
		if cached, _ := f.store.Group(g.ID); cached.Name != "Villa" {
			t.Errorf("cached name = %q, want Villa", cached.Name)
		}
	})

	t.Run("rename updates store, cache and selection", func(t *testing.T) {
		if err := f.store.RenameGroup(ctx, g.ID, "stuga"); err != nil {
			t.Fatalf("RenameGroup failed: %v", err)
		}
		doc, _ := f.docs.Get(ctx, GroupsCollection, g.ID)
		if doc.Fields[models.FieldName] != "Stuga" {
			t.Errorf("stored name = %v, want Stuga", doc.Fields[models.FieldName])
		}
		sel, ok := f.store.Selected()
		if !ok || sel.Name != "Stuga" {
			t.Errorf("selected = %+v, %v", sel, ok)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		if err := f.store.RenameGroup(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteGroup_ClearsSelection(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	keep, _ := f.store.CreateGroup(ctx, "Keep", "KEEP0001")
	gone, _ := f.store.CreateGroup(ctx, "Gone", "GONE0001")
	if err := f.store.Select(gone.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.store.DeleteGroup(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}
	if _, ok := f.store.Selected(); ok {
		t.Error("selection not cleared after deleting the selected group")
	}
	if _, err := f.docs.Get(ctx, GroupsCollection, gone.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("group still stored: %v", err)
	}
	groups := f.store.Groups()
	if len(groups) != 1 || groups[0].ID != keep.ID {
		t.Errorf("groups = %v", groups)
	}

	// Deleting an unselected group leaves the selection alone.
	other, _ := f.store.CreateGroup(ctx, "Other", "OTHR0001")
	f.store.Select(keep.ID)
	if err := f.store.DeleteGroup(ctx, other.ID); err != nil {
		t.Fatal(err)
	}
	if sel, ok := f.store.Selected(); !ok || sel.ID != keep.ID {
		t.Error("unrelated delete changed the selection")
	}

	f.store.ClearSelection()
	if _, ok := f.store.Selected(); ok {
		t.Error("selection survived ClearSelection")
	}
}

func TestImportGroup(t *testing.T) {
	mem := memory.New()
	t.Cleanup(func() { mem.Close() })
	shared := &flakyStore{Store: mem}
	owner := newFixtureOn(t, shared, "u1")
	joiner := newFixtureOn(t, shared, "u2")
	ctx := context.Background()

	g, err := owner.store.CreateGroup(ctx, "Villa", "AB12CD34")
	if err != nil {
		t.Fatal(err)
	}

	imported, err := joiner.store.ImportGroup(ctx, "  ab12cd34 ")
	if err != nil {
		t.Fatalf("ImportGroup failed: %v", err)
	}
	if imported.ID != g.ID || !imported.HasMember("u2") {
		t.Errorf("imported = %+v", imported)
	}
	if _, ok := joiner.store.Group(g.ID); !ok {
		t.Error("imported group not cached")
	}

	doc, _ := shared.Get(ctx, GroupsCollection, g.ID)
	stored, _ := models.GroupFromFields(doc.ID, doc.Fields)
	if len(stored.Members) != 2 {
		t.Fatalf("members = %v, want [u1 u2]", stored.Members)
	}

	// Importing again is a no-op.
	if _, err := joiner.store.ImportGroup(ctx, "AB12CD34"); err != nil {
		t.Fatalf("second ImportGroup failed: %v", err)
	}
	doc, _ = shared.Get(ctx, GroupsCollection, g.ID)
	stored, _ = models.GroupFromFields(doc.ID, doc.Fields)
	if len(stored.Members) != 2 {
		t.Errorf("members after re-import = %v, want size unchanged", stored.Members)
	}

	// The owner was notified exactly once.
	notes, err := shared.Query(ctx, storage.NewQuery(NotificationsCollection).
		Where("recipientUid", storage.OpEqual, "u1").
		Where("read", storage.OpEqual, false))
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Errorf("owner has %d notifications, want 1", len(notes))
	}
	if joiner.sink.count(analytics.EventGroupImported) != 1 {
		t.Errorf("group_imported logged %d times, want 1", joiner.sink.count(analytics.EventGroupImported))
	}

	// The owner importing their own code changes nothing either.
	if _, err := owner.store.ImportGroup(ctx, "AB12CD34"); err != nil {
		t.Fatal(err)
	}
	notes, _ = shared.Query(ctx, storage.NewQuery(NotificationsCollection))
	if len(notes) != 1 {
		t.Errorf("notifications = %d after owner import, want 1", len(notes))
	}
}

// lookupBarrier holds every write until n group lookups have completed, so
// each importer acts on a snapshot taken before anyone joined.
type lookupBarrier struct {
	storage.Store

	mu      sync.Mutex
	lookups int
	n       int
	ready   chan struct{}
}

func newLookupBarrier(docs storage.Store, n int) *lookupBarrier {
	return &lookupBarrier{Store: docs, n: n, ready: make(chan struct{})}
}

func (b *lookupBarrier) Query(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	docs, err := b.Store.Query(ctx, q)
	b.mu.Lock()
	b.lookups++
	if b.lookups == b.n {
		close(b.ready)
	}
	b.mu.Unlock()
	return docs, err
}

func (b *lookupBarrier) wait(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *lookupBarrier) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	return b.Store.Update(ctx, collection, id, fields)
}

func (b *lookupBarrier) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	return b.Store.ArrayUnion(ctx, collection, id, field, values...)
}

func TestImportGroup_ConcurrentJoinersAllStay(t *testing.T) {
	mem := memory.New()
	t.Cleanup(func() { mem.Close() })
	owner := newFixtureOn(t, &flakyStore{Store: mem}, "owner")
	g, err := owner.store.CreateGroup(context.Background(), "Villa", "AB12CD34")
	if err != nil {
		t.Fatal(err)
	}

	barrier := newLookupBarrier(mem, 2)
	joiners := []*fixture{
		newFixtureOn(t, &flakyStore{Store: barrier}, "alice"),
		newFixtureOn(t, &flakyStore{Store: barrier}, "bob"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errs := make(chan error, len(joiners))
	for _, j := range joiners {
		go func() {
			_, err := j.store.ImportGroup(ctx, "AB12CD34")
			errs <- err
		}()
	}
	for range joiners {
		if err := <-errs; err != nil {
			t.Fatalf("ImportGroup failed: %v", err)
		}
	}

	doc, err := mem.Get(context.Background(), GroupsCollection, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := models.GroupFromFields(doc.ID, doc.Fields)
	for _, uid := range []string{"owner", "alice", "bob"} {
		if !stored.HasMember(uid) {
			t.Errorf("members = %v, missing %s", stored.Members, uid)
		}
	}
	if len(stored.Members) != 3 {
		t.Errorf("members = %v, want 3", stored.Members)
	}
}

func TestImportGroup_UnknownCode(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	_, err := f.store.ImportGroup(ctx, "NOPE0000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	docs, _ := f.docs.Query(ctx, storage.NewQuery(GroupsCollection))
	if len(docs) != 0 || len(f.store.Groups()) != 0 {
		t.Error("unknown code must not create a group")
	}

	if _, err := f.store.ImportGroup(ctx, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("empty code error = %v, want ErrValidation", err)
	}
}

func TestRemoteFailureRollsBack(t *testing.T) {
	boom := errors.New("network unreachable")

	t.Run("create", func(t *testing.T) {
		f := newFixture(t, "u1")
		f.docs.setFail(boom)

		_, err := f.store.CreateGroup(context.Background(), "Villa", "CODE1234")
		if !errors.Is(err, ErrRemoteWrite) || !errors.Is(err, boom) {
			t.Fatalf("error = %v, want RemoteWriteError wrapping %v", err, boom)
		}
		var rerr *RemoteWriteError
		if !errors.As(err, &rerr) || rerr.Op != "create" {
			t.Errorf("error = %#v", err)
		}
		if n := len(f.store.Groups()); n != 0 {
			t.Errorf("cache has %d groups after failed create", n)
		}
		if f.sink.count(analytics.EventGroupCreated) != 0 {
			t.Error("group_created logged for a failed create")
		}
	})

	t.Run("rename", func(t *testing.T) {
		f := newFixture(t, "u1")
		g, _ := f.store.CreateGroup(context.Background(), "Villa", "CODE1234")
		f.docs.setFail(boom)

		if err := f.store.RenameGroup(context.Background(), g.ID, "Stuga"); !errors.Is(err, ErrRemoteWrite) {
			t.Fatalf("error = %v, want ErrRemoteWrite", err)
		}
		if cached, _ := f.store.Group(g.ID); cached.Name != "Villa" {
			t.Errorf("cached name = %q, want rolled back to Villa", cached.Name)
		}
	})

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t, "u1")
		g, _ := f.store.CreateGroup(context.Background(), "Villa", "CODE1234")
		f.store.Select(g.ID)
		f.docs.setFail(boom)

		if err := f.store.DeleteGroup(context.Background(), g.ID); !errors.Is(err, ErrRemoteWrite) {
			t.Fatalf("error = %v, want ErrRemoteWrite", err)
		}
		if _, ok := f.store.Group(g.ID); !ok {
			t.Error("group not restored after failed delete")
		}
		if sel, ok := f.store.Selected(); !ok || sel.ID != g.ID {
			t.Error("selection not restored after failed delete")
		}
	})

	t.Run("import", func(t *testing.T) {
		mem := memory.New()
		t.Cleanup(func() { mem.Close() })
		owner := newFixtureOn(t, &flakyStore{Store: mem}, "u1")
		if _, err := owner.store.CreateGroup(context.Background(), "Villa", "CODE1234"); err != nil {
			t.Fatal(err)
		}
		joiner := newFixtureOn(t, &flakyStore{Store: mem}, "u2")
		joiner.docs.setFail(boom)

		if _, err := joiner.store.ImportGroup(context.Background(), "CODE1234"); !errors.Is(err, ErrRemoteWrite) {
			t.Fatalf("error = %v, want ErrRemoteWrite", err)
		}
		if n := len(joiner.store.Groups()); n != 0 {
			t.Errorf("joiner cache has %d groups after failed import", n)
		}
	})

	t.Run("replace products", func(t *testing.T) {
		f := newFixture(t, "u1")
		g, _ := f.store.CreateGroup(context.Background(), "Villa", "CODE1234")
		f.docs.setFail(boom)

		err := f.store.ReplaceProducts(context.Background(), g.ID, []models.Product{{Name: "Kabel", PurchasePrice: 10}})
		if !errors.Is(err, ErrRemoteWrite) {
			t.Fatalf("error = %v, want ErrRemoteWrite", err)
		}
		if cached, _ := f.store.Group(g.ID); len(cached.Products) != 0 {
			t.Errorf("products = %v, want rolled back to empty", cached.Products)
		}
	})
}

func TestReplaceProducts(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	g, _ := f.store.CreateGroup(ctx, "Villa", "CODE1234")

	products := []models.Product{
		{Name: "Uttag", ENumber: "1812345", PurchasePrice: 100, Markup: 25, VAT: 25, Quantity: 2, TotalPrice: 1},
	}
	if err := f.store.ReplaceProducts(ctx, g.ID, products); err != nil {
		t.Fatalf("ReplaceProducts failed: %v", err)
	}
	if products[0].TotalPrice != 1 {
		t.Error("caller's slice was modified")
	}

	doc, _ := f.docs.Get(ctx, GroupsCollection, g.ID)
	stored, _ := models.GroupFromFields(doc.ID, doc.Fields)
	if len(stored.Products) != 1 || stored.Products[0].TotalPrice != 156.25 {
		t.Errorf("stored products = %+v", stored.Products)
	}
	raw := doc.Fields[models.FieldProducts].([]any)[0].(map[string]any)
	if raw["totalPrice"] != 156.25 {
		t.Errorf("stored totalPrice = %v, want recomputed 156.25", raw["totalPrice"])
	}

	s, err := f.store.Settlement(g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.MaterialSum != 312.5 || s.PurchaseSum != 200 {
		t.Errorf("settlement = %+v", s)
	}

	if err := f.store.ReplaceProducts(ctx, g.ID, []models.Product{{Name: " "}}); !errors.Is(err, ErrValidation) {
		t.Errorf("nameless product error = %v, want ErrValidation", err)
	}
	if err := f.store.ReplaceProducts(ctx, g.ID, nil); err != nil {
		t.Fatalf("clearing products failed: %v", err)
	}
	if cached, _ := f.store.Group(g.ID); len(cached.Products) != 0 {
		t.Errorf("products after clear = %v", cached.Products)
	}
	if f.sink.count(analytics.EventProductsReplaced) != 2 {
		t.Errorf("products_replaced logged %d times, want 2", f.sink.count(analytics.EventProductsReplaced))
	}
}

func TestReplaceCostEntries(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	g, _ := f.store.CreateGroup(ctx, "Villa", "CODE1234")

	entries := []models.CostEntry{{Description: "Montering", Hours: 8, HourlyRate: 500, TravelCost: 750, Date: "2025-03-14"}}
	if err := f.store.ReplaceCostEntries(ctx, g.ID, entries); err != nil {
		t.Fatalf("ReplaceCostEntries failed: %v", err)
	}
	s, _ := f.store.Settlement(g.ID)
	if s.LaborCost != 4750 {
		t.Errorf("LaborCost = %v, want 4750", s.LaborCost)
	}
	if f.sink.count(analytics.EventTransactionCreated) != 1 {
		t.Error("expected transaction_created when entries grew")
	}

	// Shrinking the list is not a new transaction.
	if err := f.store.ReplaceCostEntries(ctx, g.ID, nil); err != nil {
		t.Fatal(err)
	}
	if f.sink.count(analytics.EventTransactionCreated) != 1 {
		t.Error("transaction_created logged for a shrinking list")
	}
	if f.sink.count(analytics.EventCostEntriesReplaced) != 2 {
		t.Error("expected cost_entries_replaced for every replace")
	}

	bad := []models.CostEntry{{Description: "x", Date: "14/3/2025"}}
	if err := f.store.ReplaceCostEntries(ctx, g.ID, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("bad date error = %v, want ErrValidation", err)
	}
}

func TestReplace_RejectsNegativeAmounts(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	g, _ := f.store.CreateGroup(ctx, "Villa", "CODE1234")

	tests := []struct {
		name    string
		replace func() error
	}{
		{"purchase price", func() error {
			return f.store.ReplaceProducts(ctx, g.ID, []models.Product{{Name: "Kabel", PurchasePrice: -100}})
		}},
		{"markup", func() error {
			return f.store.ReplaceProducts(ctx, g.ID, []models.Product{{Name: "Kabel", PurchasePrice: 100, Markup: -25}})
		}},
		{"vat", func() error {
			return f.store.ReplaceProducts(ctx, g.ID, []models.Product{{Name: "Kabel", VAT: -25}})
		}},
		{"hours", func() error {
			return f.store.ReplaceCostEntries(ctx, g.ID, []models.CostEntry{{Description: "Montering", Hours: -8}})
		}},
		{"hourly rate", func() error {
			return f.store.ReplaceCostEntries(ctx, g.ID, []models.CostEntry{{Description: "Montering", HourlyRate: -500}})
		}},
		{"travel cost", func() error {
			return f.store.ReplaceCostEntries(ctx, g.ID, []models.CostEntry{{Description: "Resa", TravelCost: -750}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.replace(); !errors.Is(err, ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			cached, _ := f.store.Group(g.ID)
			if len(cached.Products) != 0 || len(cached.CostEntries) != 0 {
				t.Errorf("rejected replace changed the cache: %+v", cached)
			}
		})
	}

	doc, _ := f.docs.Get(ctx, GroupsCollection, g.ID)
	stored, _ := models.GroupFromFields(doc.ID, doc.Fields)
	if len(stored.Products) != 0 || len(stored.CostEntries) != 0 {
		t.Errorf("rejected replace reached the store: %+v", stored)
	}
}

func TestReplaceCostEntries_DropsLegacyTransactions(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	f.run(t)

	err := f.docs.Create(ctx, GroupsCollection, &storage.Document{ID: "legacy", Fields: storage.Fields{
		"name":     "Gammal",
		"code":     "OLD00001",
		"ownerUid": "u1",
		"transactions": []any{
			map[string]any{"description": "Resa", "amount": 200.0, "carCost": 50.0, "quantity": 3.0},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, "legacy group", func() bool { _, ok := f.store.Group("legacy"); return ok })

	g, _ := f.store.Group("legacy")
	if len(g.CostEntries) != 1 {
		t.Fatalf("cost entries = %v, want folded transaction", g.CostEntries)
	}
	if err := f.store.ReplaceCostEntries(ctx, "legacy", g.CostEntries); err != nil {
		t.Fatal(err)
	}

	doc, _ := f.docs.Get(ctx, GroupsCollection, "legacy")
	again, _ := models.GroupFromFields(doc.ID, doc.Fields)
	if len(again.CostEntries) != 1 {
		t.Errorf("cost entries after rewrite = %d, want 1 (no double counting)", len(again.CostEntries))
	}
}

func TestDeleteGroup_NotOwner(t *testing.T) {
	mem := memory.New()
	t.Cleanup(func() { mem.Close() })
	shared := &flakyStore{Store: mem}
	owner := newFixtureOn(t, shared, "u1")
	member := newFixtureOn(t, shared, "u2")
	ctx := context.Background()

	g, _ := owner.store.CreateGroup(ctx, "Villa", "CODE1234")
	if _, err := member.store.ImportGroup(ctx, "CODE1234"); err != nil {
		t.Fatal(err)
	}
	if err := member.store.DeleteGroup(ctx, g.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("error = %v, want ErrNotOwner", err)
	}
	if _, err := shared.Get(ctx, GroupsCollection, g.ID); err != nil {
		t.Errorf("group deleted by a non-owner: %v", err)
	}
}

func TestRun_FollowsLiveQueries(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	f.run(t)

	// A group someone else owns but u1 is a member of.
	err := f.docs.Create(ctx, GroupsCollection, &storage.Document{ID: "shared", Fields: storage.Fields{
		"name": "Delad", "code": "SHRD0001", "ownerUid": "u9", "members": []any{"u9", "u1"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	// A group u1 has nothing to do with.
	err = f.docs.Create(ctx, GroupsCollection, &storage.Document{ID: "foreign", Fields: storage.Fields{
		"name": "Främmande", "code": "FRGN0001", "ownerUid": "u9", "members": []any{"u9"},
	}})
	if err != nil {
		t.Fatal(err)
	}

	own, err := f.store.CreateGroup(ctx, "Egen", "OWN00001")
	if err != nil {
		t.Fatal(err)
	}

	eventually(t, "both visible groups", func() bool { return len(f.store.Groups()) == 2 })
	if _, ok := f.store.Group("foreign"); ok {
		t.Error("foreign group is visible")
	}
	groups := f.store.Groups()
	if groups[0].ID != "shared" || groups[1].ID != own.ID {
		t.Errorf("order = [%s %s], want creation order", groups[0].ID, groups[1].ID)
	}

	// Another actor deletes the selected group.
	if err := f.store.Select("shared"); err != nil {
		t.Fatal(err)
	}
	if err := f.docs.Delete(ctx, GroupsCollection, "shared"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "selection cleared", func() bool {
		_, ok := f.store.Selected()
		return !ok && len(f.store.Groups()) == 1
	})

	// Another actor renames a group; the push refreshes the cache.
	if err := f.docs.Update(ctx, GroupsCollection, own.ID, storage.Fields{"name": "Omdöpt"}); err != nil {
		t.Fatal(err)
	}
	eventually(t, "remote rename", func() bool {
		g, _ := f.store.Group(own.ID)
		return g.Name == "Omdöpt"
	})

	f.session.SignOut()
	eventually(t, "empty cache after sign-out", func() bool { return len(f.store.Groups()) == 0 })

	f.session.Set(auth.Actor{UID: "u9"})
	eventually(t, "u9's groups", func() bool { return len(f.store.Groups()) == 1 })
	if _, ok := f.store.Group("foreign"); !ok {
		t.Error("u9 should see the foreign group")
	}
}

func TestSelect_Unknown(t *testing.T) {
	f := newFixture(t, "u1")
	if err := f.store.Select("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := f.store.Settlement("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Settlement error = %v, want ErrNotFound", err)
	}
}

func TestChangesSignals(t *testing.T) {
	f := newFixture(t, "u1")
	select {
	case <-f.store.Changes():
	default:
	}
	if _, err := f.store.CreateGroup(context.Background(), "Villa", "CODE1234"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-f.store.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change signalled")
	}
}

func TestWaitSynced(t *testing.T) {
	f := newFixture(t, "u1")
	if f.store.Synced() {
		t.Fatal("store must not report synced before Run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := f.store.WaitSynced(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitSynced without Run = %v, want deadline exceeded", err)
	}

	f.run(t)
	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.store.WaitSynced(ctx); err != nil {
		t.Fatalf("WaitSynced failed: %v", err)
	}

	f.session.SignOut()
	eventually(t, "sign-out to clear synced", func() bool { return !f.store.Synced() })
}

func TestNewCode(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	seen := map[string]bool{}
	for range 50 {
		code := NewCode()
		if !valid.MatchString(code) {
			t.Fatalf("NewCode() = %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes out of 50", len(seen))
	}
	if NormalizeCode(" ab1 ") != "AB1" {
		t.Error("NormalizeCode did not trim and upper-case")
	}
}
