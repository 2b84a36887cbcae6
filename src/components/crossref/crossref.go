// Package crossref rewrites inline "#N" tokens in suggestion text into jump
// links to the referenced suggestions. Tokens above the guild's highest known
// id are left untouched: they either point at a suggestion that does not
// exist yet or are plain "#number" text that was never a reference.
package crossref

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stake-plus/suggestions/src/discord"
)

// Store resolves suggestion ids to the message ids they were posted as.
type Store interface {
	FindSuggestionMessages(ctx context.Context, guildID uint64, ids []uint32) (map[uint32]uint64, error)
}

var refPattern = regexp.MustCompile(`#(\d+)`)

// Resolve replaces resolvable "#N" tokens in text with markdown links. All
// non-matched text is preserved byte for byte. Entities are fetched in a
// single batched query.
func Resolve(ctx context.Context, store Store, text string, guildID, channelID uint64, maxKnownID uint32) (string, error) {
	// A reference needs at least "#" plus a digit.
	if len(text) < 2 {
		return text, nil
	}

	matches := refPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	seen := make(map[uint32]struct{})
	var ids []uint32
	for _, m := range matches {
		id, ok := parseRef(text[m[2]:m[3]], maxKnownID)
		if !ok {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return text, nil
	}

	refs, err := store.FindSuggestionMessages(ctx, guildID, ids)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		id, ok := parseRef(text[m[2]:m[3]], maxKnownID)
		if !ok {
			continue
		}
		messageID, known := refs[id]
		if !known {
			continue
		}
		b.WriteString(text[last:m[0]])
		fmt.Fprintf(&b, "[`#%d`](%s)", id, discord.MessageURL(guildID, channelID, messageID))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func parseRef(digits string, maxKnownID uint32) (uint32, bool) {
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || n == 0 || n > uint64(maxKnownID) {
		return 0, false
	}
	return uint32(n), true
}
