// Package storagetest provides a behavioral test suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/workaholic/internal/storage"
)

// Timeout bounds how long Next waits for a snapshot.
const Timeout = 2 * time.Second

// Next waits for the next snapshot from sub.
func Next(t *testing.T, sub *storage.Subscription) []storage.Document {
	t.Helper()
	select {
	case docs, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed unexpectedly: %v", sub.Err())
		}
		return docs
	case <-time.After(Timeout):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

// NextMatching drains snapshots until one satisfies cond.
func NextMatching(t *testing.T, sub *storage.Subscription, cond func([]storage.Document) bool) []storage.Document {
	t.Helper()
	deadline := time.After(Timeout)
	for {
		select {
		case docs, ok := <-sub.C():
			if !ok {
				t.Fatalf("subscription closed unexpectedly: %v", sub.Err())
			}
			if cond(docs) {
				return docs
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
			return nil
		}
	}
}

// IDs returns the IDs of docs in order.
func IDs(docs []storage.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// Run exercises newStore against the storage.Store contract. newStore must
// return a fresh, empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		doc := &storage.Document{Fields: storage.Fields{
			"name":    "Villa Ek",
			"members": []any{"u1", "u2"},
			"count":   3,
			"nested":  map[string]any{"ok": true},
		}}
		if err := s.Create(ctx, "items", doc); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if doc.ID == "" {
			t.Fatal("expected Create to assign an ID")
		}
		if doc.CreatedAt == 0 {
			t.Error("expected Create to set CreatedAt")
		}

		got, err := s.Get(ctx, "items", doc.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Fields["name"] != "Villa Ek" {
			t.Errorf("name = %v, want Villa Ek", got.Fields["name"])
		}
		if got.Fields["count"] != float64(3) {
			t.Errorf("count = %#v, want float64(3)", got.Fields["count"])
		}
		members, ok := got.Fields["members"].([]any)
		if !ok || len(members) != 2 {
			t.Errorf("members = %#v, want 2 entries", got.Fields["members"])
		}
		nested, ok := got.Fields["nested"].(map[string]any)
		if !ok || nested["ok"] != true {
			t.Errorf("nested = %#v", got.Fields["nested"])
		}
		if got.CreatedAt != doc.CreatedAt {
			t.Errorf("CreatedAt = %d, want %d", got.CreatedAt, doc.CreatedAt)
		}
	})

	t.Run("CreateWithID", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		if err := s.Create(ctx, "items", &storage.Document{ID: "g1", Fields: storage.Fields{"a": "b"}}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		err := s.Create(ctx, "items", &storage.Document{ID: "g1", Fields: storage.Fields{}})
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Errorf("duplicate Create error = %v, want ErrAlreadyExists", err)
		}
		// Same ID in another collection is fine.
		if err := s.Create(ctx, "other", &storage.Document{ID: "g1", Fields: storage.Fields{}}); err != nil {
			t.Errorf("Create in other collection failed: %v", err)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, err := s.Get(context.Background(), "items", "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get error = %v, want ErrNotFound", err)
		}
	})

	t.Run("InvalidValues", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		err := s.Create(context.Background(), "items", &storage.Document{Fields: storage.Fields{"ch": make(chan int)}})
		if !errors.Is(err, storage.ErrInvalidArgument) {
			t.Errorf("Create error = %v, want ErrInvalidArgument", err)
		}
		err = s.Create(context.Background(), "", &storage.Document{Fields: storage.Fields{}})
		if !errors.Is(err, storage.ErrInvalidArgument) {
			t.Errorf("Create with empty collection error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("UpdateMerges", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		doc := &storage.Document{Fields: storage.Fields{"name": "a", "code": "X"}}
		if err := s.Create(ctx, "items", doc); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := s.Update(ctx, "items", doc.ID, storage.Fields{"name": "b", "extra": 1}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		got, err := s.Get(ctx, "items", doc.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Fields["name"] != "b" || got.Fields["code"] != "X" || got.Fields["extra"] != float64(1) {
			t.Errorf("fields after merge = %#v", got.Fields)
		}

		err = s.Update(ctx, "items", "missing", storage.Fields{"name": "c"})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Update missing error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ArrayUnion", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		doc := &storage.Document{ID: "g1", Fields: storage.Fields{"members": []any{"u1"}, "name": "a"}}
		if err := s.Create(ctx, "items", doc); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		tests := []struct {
			name   string
			field  string
			values []any
			want   []any
		}{
			{"adds a value", "members", []any{"u2"}, []any{"u1", "u2"}},
			{"keeps values present", "members", []any{"u1", "u2"}, []any{"u1", "u2"}},
			{"adds several in order", "members", []any{"u3", "u4", "u3"}, []any{"u1", "u2", "u3", "u4"}},
			{"creates a missing field", "tags", []any{"x"}, []any{"x"}},
			{"replaces a scalar", "name", []any{1}, []any{float64(1)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := s.ArrayUnion(ctx, "items", "g1", tt.field, tt.values...); err != nil {
					t.Fatalf("ArrayUnion failed: %v", err)
				}
				got, err := s.Get(ctx, "items", "g1")
				if err != nil {
					t.Fatal(err)
				}
				list, _ := got.Fields[tt.field].([]any)
				if len(list) != len(tt.want) {
					t.Fatalf("%s = %#v, want %#v", tt.field, got.Fields[tt.field], tt.want)
				}
				for i := range list {
					if list[i] != tt.want[i] {
						t.Fatalf("%s = %#v, want %#v", tt.field, list, tt.want)
					}
				}
			})
		}

		if err := s.ArrayUnion(ctx, "items", "missing", "members", "u1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("ArrayUnion on missing doc error = %v, want ErrNotFound", err)
		}
		if err := s.ArrayUnion(ctx, "items", "g1", "", "u1"); !errors.Is(err, storage.ErrInvalidArgument) {
			t.Errorf("ArrayUnion without field error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("ArrayUnionConcurrent", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		if err := s.Create(ctx, "items", &storage.Document{ID: "g1", Fields: storage.Fields{"members": []any{}}}); err != nil {
			t.Fatal(err)
		}

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.ArrayUnion(ctx, "items", "g1", "members", fmt.Sprintf("u%d", i))
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("ArrayUnion failed: %v", err)
			}
		}

		got, err := s.Get(ctx, "items", "g1")
		if err != nil {
			t.Fatal(err)
		}
		if list, _ := got.Fields["members"].([]any); len(list) != writers {
			t.Errorf("members = %v, want all %d writers", got.Fields["members"], writers)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		doc := &storage.Document{Fields: storage.Fields{"name": "a"}}
		if err := s.Create(ctx, "items", doc); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := s.Delete(ctx, "items", doc.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := s.Get(ctx, "items", doc.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "items", doc.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("QueryFilters", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		for _, d := range []storage.Document{
			{ID: "g1", Fields: storage.Fields{"ownerUid": "u1", "members": []any{"u1"}}},
			{ID: "g2", Fields: storage.Fields{"ownerUid": "u2", "members": []any{"u2", "u1"}}},
			{ID: "g3", Fields: storage.Fields{"ownerUid": "u3", "members": []any{"u3"}}},
			{ID: "g4", Fields: storage.Fields{"ownerUid": "u1", "members": "u1"}},
		} {
			if err := s.Create(ctx, "items", &d); err != nil {
				t.Fatalf("Create %s failed: %v", d.ID, err)
			}
		}

		tests := []struct {
			name string
			q    storage.Query
			want []string
		}{
			{"all", storage.NewQuery("items"), []string{"g1", "g2", "g3", "g4"}},
			{"equal", storage.NewQuery("items").Where("ownerUid", storage.OpEqual, "u1"), []string{"g1", "g4"}},
			{"array-contains", storage.NewQuery("items").Where("members", storage.OpArrayContains, "u1"), []string{"g1", "g2"}},
			{
				"anded",
				storage.NewQuery("items").
					Where("members", storage.OpArrayContains, "u1").
					Where("ownerUid", storage.OpEqual, "u2"),
				[]string{"g2"},
			},
			{"missing field", storage.NewQuery("items").Where("status", storage.OpEqual, "pending"), []string{}},
			{"empty collection", storage.NewQuery("nothing"), []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				docs, err := s.Query(ctx, tt.q)
				if err != nil {
					t.Fatalf("Query failed: %v", err)
				}
				got := IDs(docs)
				if len(got) != len(tt.want) {
					t.Fatalf("Query = %v, want %v", got, tt.want)
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Fatalf("Query = %v, want %v", got, tt.want)
					}
				}
			})
		}

		_, err := s.Query(ctx, storage.Query{Collection: "items", Filters: []storage.Filter{{Field: "a", Op: ">", Value: 1}}})
		if !errors.Is(err, storage.ErrInvalidArgument) {
			t.Errorf("unsupported operator error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("QueryNumericAndBool", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		if err := s.Create(ctx, "products", &storage.Document{ID: "p1", Fields: storage.Fields{"isNew": true, "qty": 2}}); err != nil {
			t.Fatal(err)
		}
		if err := s.Create(ctx, "products", &storage.Document{ID: "p2", Fields: storage.Fields{"isNew": false, "qty": 2.0}}); err != nil {
			t.Fatal(err)
		}

		docs, err := s.Query(ctx, storage.NewQuery("products").Where("isNew", storage.OpEqual, true))
		if err != nil {
			t.Fatal(err)
		}
		if ids := IDs(docs); len(ids) != 1 || ids[0] != "p1" {
			t.Errorf("isNew == true = %v, want [p1]", ids)
		}

		docs, err = s.Query(ctx, storage.NewQuery("products").Where("qty", storage.OpEqual, 2))
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 {
			t.Errorf("qty == 2 matched %d docs, want 2", len(docs))
		}
	})

	t.Run("ReturnedDocumentsAreCopies", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		if err := s.Create(ctx, "items", &storage.Document{ID: "g1", Fields: storage.Fields{"name": "a"}}); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, "items", "g1")
		if err != nil {
			t.Fatal(err)
		}
		got.Fields["name"] = "mutated"

		again, err := s.Get(ctx, "items", "g1")
		if err != nil {
			t.Fatal(err)
		}
		if again.Fields["name"] != "a" {
			t.Errorf("stored document was mutated through a returned copy")
		}
	})

	t.Run("WatchDeliversSnapshots", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		sub, err := s.Watch(ctx, storage.NewQuery("items").Where("members", storage.OpArrayContains, "u1"))
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
		defer sub.Cancel()

		if docs := Next(t, sub); len(docs) != 0 {
			t.Fatalf("initial snapshot = %v, want empty", IDs(docs))
		}

		if err := s.Create(ctx, "items", &storage.Document{ID: "g1", Fields: storage.Fields{"members": []any{"u1"}}}); err != nil {
			t.Fatal(err)
		}
		NextMatching(t, sub, func(docs []storage.Document) bool { return len(docs) == 1 })

		if err := s.Update(ctx, "items", "g1", storage.Fields{"members": []any{"u2"}}); err != nil {
			t.Fatal(err)
		}
		NextMatching(t, sub, func(docs []storage.Document) bool { return len(docs) == 0 })
	})

	t.Run("WatchCoalescesToLatest", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		sub, err := s.Watch(ctx, storage.NewQuery("items"))
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
		defer sub.Cancel()
		Next(t, sub)

		for i := 0; i < 5; i++ {
			if err := s.Create(ctx, "items", &storage.Document{Fields: storage.Fields{"i": i}}); err != nil {
				t.Fatal(err)
			}
		}
		// However many intermediate snapshots were dropped, the final state arrives.
		NextMatching(t, sub, func(docs []storage.Document) bool { return len(docs) == 5 })
	})

	t.Run("WatchCancel", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx, cancel := context.WithCancel(context.Background())

		sub, err := s.Watch(ctx, storage.NewQuery("items"))
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
		Next(t, sub)
		cancel()

		select {
		case _, ok := <-sub.C():
			for ok {
				_, ok = <-sub.C()
			}
		case <-time.After(Timeout):
			t.Fatal("subscription not closed after context cancel")
		}

		// Writes after cancel must not panic on the closed channel.
		if err := s.Create(context.Background(), "items", &storage.Document{Fields: storage.Fields{}}); err != nil {
			t.Fatal(err)
		}
		sub.Cancel()
	})
}
