// Package customid encodes and decodes the component identifiers the bot
// attaches to buttons, select menus and modals. Discord echoes these strings
// back on interaction, possibly days later and after a redeploy, so the codec
// is pure: everything needed to route the interaction is in the string itself.
package customid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action identifies what a suggestion message component does.
type Action string

const (
	ActionArchive Action = "archive"
	ActionThread  Action = "thread"
	ActionResolve Action = "resolve"
)

// Status identifies the outcome of a resolution.
type Status string

const (
	StatusAccept   Status = "accept"
	StatusConsider Status = "consider"
	StatusDeny     Status = "deny"
)

const (
	prefixSuggestions = "suggestions"
	prefixModal       = "suggestions-modal"
	createID          = "suggestions-create"
	createModalID     = "suggestions-create-modal"

	// ModalField is the custom id of the text input inside resolution modals.
	ModalField = "suggestions-modal.field"
)

var (
	ErrUnknownKind = errors.New("customid: unknown kind")
	ErrMalformed   = errors.New("customid: malformed id")
)

// Parsed is the decoded form of a component identifier. Consumers switch over
// the concrete type and must handle every variant.
type Parsed interface {
	isParsed()
}

// SuggestionID is a button or select menu on a posted suggestion:
// "suggestions.<action>.<id>".
type SuggestionID struct {
	Action Action
	ID     uint32
}

// ModalID is a resolution modal: "suggestions-modal.<status>.<id>".
type ModalID struct {
	Status Status
	ID     uint32
}

// CreateID is the "make a suggestion" button on the guide message.
type CreateID struct{}

// CreateModalID is the modal opened by the create button.
type CreateModalID struct{}

func (SuggestionID) isParsed() {}
func (ModalID) isParsed() {}
func (CreateID) isParsed() {}
func (CreateModalID) isParsed() {}

// Suggestion encodes a component id for a posted suggestion. The numeric id is
// kept decimal so the string stays readable in logs; the longest possible
// output is well under Discord's 100 character component id limit.
func Suggestion(action Action, id uint32) string {
	return prefixSuggestions + "." + string(action) + "." + strconv.FormatUint(uint64(id), 10)
}

// Modal encodes a resolution modal id.
func Modal(status Status, id uint32) string {
	return prefixModal + "." + string(status) + "." + strconv.FormatUint(uint64(id), 10)
}

// Create returns the create button id.
func Create() string { return createID }

// CreateModal returns the create modal id.
func CreateModal() string { return createModalID }

// Decode parses a component identifier. The bot is the only producer of these
// strings, so a failure here means version skew between deployments and is
// surfaced as an error rather than ignored.
func Decode(s string) (Parsed, error) {
	switch s {
	case createID:
		return CreateID{}, nil
	case createModalID:
		return CreateModalID{}, nil
	}

	head, tail, ok := strings.Cut(s, ".")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}

	switch head {
	case prefixSuggestions:
		action, rest, ok := strings.Cut(tail, ".")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		switch Action(action) {
		case ActionArchive, ActionThread, ActionResolve:
		default:
			return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		id, err := parseID(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		return SuggestionID{Action: Action(action), ID: id}, nil

	case prefixModal:
		status, rest, ok := strings.Cut(tail, ".")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		switch Status(status) {
		case StatusAccept, StatusConsider, StatusDeny:
		default:
			return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		id, err := parseID(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		return ModalID{Status: Status(status), ID: id}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid suggestion id %q", s)
	}
	return uint32(n), nil
}
