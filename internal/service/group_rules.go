package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/internal/storage"
)

// Group documents are guarded per caller: members read and edit a group,
// only the owner deletes it or changes who is in it, and anyone holding the
// join code may add themselves to its members.

var errGroupAccess = errors.New("group access denied")

// ownerOnlyFields may only be written by the group owner.
var ownerOnlyFields = []string{models.FieldOwnerUID, models.FieldMembers, models.FieldCode}

func denied(reason string) error {
	return connect.NewError(connect.CodePermissionDenied, fmt.Errorf("%w: %s", errGroupAccess, reason))
}

func holdsUID(v any, uid string) bool {
	list, _ := v.([]any)
	return slices.ContainsFunc(list, func(e any) bool {
		s, ok := e.(string)
		return ok && s == uid
	})
}

func isOwner(fields storage.Fields, uid string) bool {
	owner, _ := fields[models.FieldOwnerUID].(string)
	return owner == uid
}

func isMember(fields storage.Fields, uid string) bool {
	return isOwner(fields, uid) || holdsUID(fields[models.FieldMembers], uid)
}

func (s *DocumentService) loadGroup(ctx context.Context, id string) (storage.Fields, error) {
	doc, err := s.store.Get(ctx, models.GroupsCollection, id)
	if err != nil {
		return nil, storageError(err)
	}
	return doc.Fields, nil
}

// checkGroupCreate requires the caller to own the new group and be in it.
func checkGroupCreate(userID string, fields storage.Fields) error {
	if !isOwner(fields, userID) {
		return denied("groups are created by their owner")
	}
	if !holdsUID(fields[models.FieldMembers], userID) {
		return denied("the owner must be a member")
	}
	return nil
}

func (s *DocumentService) checkGroupRead(ctx context.Context, userID, id string) error {
	fields, err := s.loadGroup(ctx, id)
	if err != nil {
		return err
	}
	if !isMember(fields, userID) {
		return denied("not a member")
	}
	return nil
}

func (s *DocumentService) checkGroupUpdate(ctx context.Context, userID, id string, update storage.Fields) error {
	fields, err := s.loadGroup(ctx, id)
	if err != nil {
		return err
	}
	if !isMember(fields, userID) {
		return denied("not a member")
	}
	for _, f := range ownerOnlyFields {
		if _, ok := update[f]; ok && !isOwner(fields, userID) {
			return denied(f + " is owner-only")
		}
	}
	return nil
}

// checkGroupUnion lets a caller add exactly themselves to members; any
// other union follows the update rules.
func (s *DocumentService) checkGroupUnion(ctx context.Context, userID, id, field string, values []any) error {
	if field == models.FieldMembers && len(values) == 1 && values[0] == any(userID) {
		_, err := s.loadGroup(ctx, id)
		return err
	}
	return s.checkGroupUpdate(ctx, userID, id, storage.Fields{field: values})
}

func (s *DocumentService) checkGroupDelete(ctx context.Context, userID, id string) error {
	fields, err := s.loadGroup(ctx, id)
	if err != nil {
		return err
	}
	if !isOwner(fields, userID) {
		return denied("only the owner deletes a group")
	}
	return nil
}

// checkGroupQuery admits queries scoped to the caller's own groups or to a
// join code.
func checkGroupQuery(userID string, q storage.Query) error {
	for _, f := range q.Filters {
		switch {
		case f.Field == models.FieldOwnerUID && f.Op == storage.OpEqual && f.Value == any(userID):
			return nil
		case f.Field == models.FieldMembers && f.Op == storage.OpArrayContains && f.Value == any(userID):
			return nil
		case f.Field == models.FieldCode && f.Op == storage.OpEqual:
			if code, ok := f.Value.(string); ok && code != "" {
				return nil
			}
		}
	}
	return denied("query must filter on the caller or a join code")
}
