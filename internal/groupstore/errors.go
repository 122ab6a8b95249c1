package groupstore

import (
	"errors"
	"fmt"

	"github.com/mmynk/workaholic/internal/models"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = models.ErrValidation

	// ErrRemoteWrite matches every RemoteWriteError.
	ErrRemoteWrite = errors.New("remote write failed")

	ErrNotFound    = errors.New("group not found")
	ErrNotSignedIn = errors.New("not signed in")
	ErrNotMember   = errors.New("not a member of this group")
	ErrNotOwner    = errors.New("only the group owner can do this")
)

// ValidationError reports an empty or malformed required input. No state
// changed.
type ValidationError = models.ValidationError

// RemoteWriteError wraps a document store failure during a mutation. The
// optimistic local change has been rolled back unless the cache changed
// again in the meantime.
type RemoteWriteError struct {
	Op      string
	GroupID string
	Err     error
}

func (e *RemoteWriteError) Error() string {
	if e.GroupID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s group %s: %v", e.Op, e.GroupID, e.Err)
}

func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRemoteWrite) match any RemoteWriteError.
func (e *RemoteWriteError) Is(target error) bool {
	return target == ErrRemoteWrite
}

func remoteError(op, groupID string, err error) error {
	return &RemoteWriteError{Op: op, GroupID: groupID, Err: err}
}
