// Package suggestions implements the suggestion workflow: creation with
// sequential ids, author edits, moderator resolutions, threads and archival.
package suggestions

import (
	"errors"
	"time"

	"github.com/stake-plus/suggestions/src/data"
)

// Guard failures. All of these are user errors, surfaced as ephemeral
// messages and never logged as operational failures.
var (
	ErrNotFound       = errors.New("suggestion does not exist")
	ErrWrongAuthor    = errors.New("suggestion belongs to another user")
	ErrArchived       = errors.New("suggestion is archived")
	ErrAlreadyReplied = errors.New("suggestion has already been replied to")
	ErrNotConfigured  = errors.New("suggestion channel is not configured")
	ErrMessageGone    = errors.New("suggestion message was deleted")
)

// CooldownError reports an active cooldown window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return "suggestion cooldown active"
}

// CanEdit checks whether author may edit the suggestion. Exactly one reason
// is reported, in fixed priority: existence, authorship, archival, replied.
// Once a suggestion has a reply its content is immutable, so the decision a
// moderator responded to cannot be rewritten after the fact.
func CanEdit(s *data.Suggestion, authorID uint64) error {
	if s == nil {
		return ErrNotFound
	}
	if s.AuthorID != authorID {
		return ErrWrongAuthor
	}
	if s.ArchivedAt != nil {
		return ErrArchived
	}
	if s.RepliedAt != nil {
		return ErrAlreadyReplied
	}
	return nil
}
