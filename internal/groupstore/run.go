package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/internal/storage"
)

// errAuthChanged ends a watch cycle when a different user signs in or out.
var errAuthChanged = errors.New("auth state changed")

// Run keeps the cache in sync with the document store. While a user is
// signed in it watches the groups they own and the groups they are a member
// of, and every snapshot replaces the whole cache. Signing out empties the
// cache. A failed live query is re-opened after the retry delay.
// Run returns nil when ctx is done.
func (s *Store) Run(ctx context.Context) error {
	authCh, unsubscribe := s.auth.Subscribe()
	defer unsubscribe()

	actor := s.auth.Current()
	if !actor.SignedIn() {
		s.reset()
	}
	for {
		next, err := s.follow(ctx, actor, authCh)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, errAuthChanged) {
			s.logger.WarnContext(ctx, "Group query failed, retrying", "uid", actor.UID, "error", err, "retry_in", s.retryDelay)
			next, err = s.wait(ctx, actor, authCh)
			if ctx.Err() != nil {
				return nil
			}
		}
		if errors.Is(err, errAuthChanged) && next.UID != actor.UID {
			s.logger.InfoContext(ctx, "Auth state changed", "uid", next.UID)
			s.reset()
		}
		actor = next
	}
}

// follow folds snapshots for actor into the cache until the signed-in user
// changes, a live query fails or ctx is done. It returns the actor to follow
// next.
func (s *Store) follow(ctx context.Context, actor auth.Actor, authCh <-chan auth.Actor) (auth.Actor, error) {
	if !actor.SignedIn() {
		return s.waitForAuth(ctx, actor, authCh, nil)
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	owned, err := s.docs.Watch(wctx, storage.NewQuery(GroupsCollection).
		Where(models.FieldOwnerUID, storage.OpEqual, actor.UID))
	if err != nil {
		return actor, err
	}
	defer owned.Cancel()

	member, err := s.docs.Watch(wctx, storage.NewQuery(GroupsCollection).
		Where(models.FieldMembers, storage.OpArrayContains, actor.UID))
	if err != nil {
		return actor, err
	}
	defer member.Cancel()

	var ownedDocs, memberDocs []storage.Document
	var haveOwned, haveMember bool
	for {
		select {
		case <-ctx.Done():
			return actor, ctx.Err()
		case next, ok := <-authCh:
			if !ok {
				<-ctx.Done()
				return actor, ctx.Err()
			}
			if next.UID != actor.UID {
				return next, errAuthChanged
			}
			actor = next
		case docs, ok := <-owned.C():
			if !ok {
				return actor, subscriptionError(owned)
			}
			ownedDocs, haveOwned = docs, true
		case docs, ok := <-member.C():
			if !ok {
				return actor, subscriptionError(member)
			}
			memberDocs, haveMember = docs, true
		}
		// Wait for both initial snapshots so a half-loaded list never shows.
		if haveOwned && haveMember {
			s.replace(ctx, mergeByID(ownedDocs, memberDocs))
		}
	}
}

// wait sleeps for the retry delay, returning early on an auth change.
func (s *Store) wait(ctx context.Context, actor auth.Actor, authCh <-chan auth.Actor) (auth.Actor, error) {
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	return s.waitForAuth(ctx, actor, authCh, timer.C)
}

// waitForAuth blocks until a different user signs in or out, timeout fires,
// or ctx is done.
func (s *Store) waitForAuth(ctx context.Context, actor auth.Actor, authCh <-chan auth.Actor, timeout <-chan time.Time) (auth.Actor, error) {
	for {
		select {
		case <-ctx.Done():
			return actor, ctx.Err()
		case <-timeout:
			return actor, nil
		case next, ok := <-authCh:
			if !ok {
				<-ctx.Done()
				return actor, ctx.Err()
			}
			if next.UID != actor.UID {
				return next, errAuthChanged
			}
			actor = next
		}
	}
}

// replace swaps the cache for the groups in docs and clears a selection that
// is no longer among them.
func (s *Store) replace(ctx context.Context, docs []storage.Document) {
	groups := make([]models.Group, 0, len(docs))
	for _, doc := range docs {
		g, err := models.GroupFromFields(doc.ID, doc.Fields)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping malformed group", "group_id", doc.ID, "error", err)
			continue
		}
		groups = append(groups, g)
	}

	s.mu.Lock()
	s.groups = groups
	s.synced = true
	if s.selected != "" && s.indexLocked(s.selected) < 0 {
		s.logger.InfoContext(ctx, "Selected group disappeared", "group_id", s.selected)
		s.selected = ""
	}
	s.version++
	s.mu.Unlock()
	s.signal()
}

func (s *Store) reset() {
	s.mu.Lock()
	s.groups = []models.Group{}
	s.selected = ""
	s.synced = false
	s.version++
	s.mu.Unlock()
	s.signal()
}

// mergeByID returns owned followed by the member documents not already in
// owned, ordered by creation.
func mergeByID(owned, member []storage.Document) []storage.Document {
	seen := make(map[string]bool, len(owned))
	out := make([]storage.Document, 0, len(owned)+len(member))
	for _, d := range owned {
		seen[d.ID] = true
		out = append(out, d)
	}
	for _, d := range member {
		if !seen[d.ID] {
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	storage.SortDocuments(out)
	return out
}

func subscriptionError(sub *storage.Subscription) error {
	if err := sub.Err(); err != nil {
		return err
	}
	return errors.New("live query ended")
}
