// Package emoji stores guild reaction emoji in a compact serialized form:
// "t<emoji>" for unicode emoji, "s<name>.<id>" for custom static emoji and
// "a<name>.<id>" for custom animated ones. The one-letter discriminator keeps
// the database column unambiguous without a structured type.
package emoji

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Serialized is a stored reaction emoji.
type Serialized string

var customPattern = regexp.MustCompile(`^<(a)?:([a-zA-Z0-9_]{2,32}):(\d{17,19})>$`)

// Parse converts user input (a unicode emoji or a "<:name:id>" mention) into
// its serialized form. Returns false for anything that is not an emoji.
func Parse(raw string) (Serialized, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if m := customPattern.FindStringSubmatch(raw); m != nil {
		kind := "s"
		if m[1] == "a" {
			kind = "a"
		}
		return Serialized(kind + m[2] + "." + m[3]), true
	}

	// Unicode emoji sit outside ASCII; keycaps are a digit plus combining
	// marks. Anything short and non-ASCII is accepted as-is.
	if utf8.RuneCountInString(raw) <= 4 {
		for _, r := range raw {
			if r > 0x7F {
				return Serialized("t" + raw), true
			}
		}
	}
	return "", false
}

// IsCustom reports whether the emoji is a custom guild emoji.
func (e Serialized) IsCustom() bool {
	return strings.HasPrefix(string(e), "a") || strings.HasPrefix(string(e), "s")
}

// ReactionFormat returns the form the reaction endpoints expect: "name:id"
// for custom emoji, the URL-escaped emoji itself otherwise.
func (e Serialized) ReactionFormat() (string, error) {
	s := string(e)
	if s == "" {
		return "", fmt.Errorf("emoji: empty serialized value")
	}
	if !e.IsCustom() {
		return url.QueryEscape(s[1:]), nil
	}

	name, id, ok := splitCustom(s)
	if !ok {
		return "", fmt.Errorf("emoji: invalid serialized value %q", s)
	}
	return name + ":" + id, nil
}

// TextFormat returns the form used inside message content: "<a:name:id>" or
// "<:name:id>" for custom emoji, the emoji itself otherwise.
func (e Serialized) TextFormat() (string, error) {
	s := string(e)
	if s == "" {
		return "", fmt.Errorf("emoji: empty serialized value")
	}
	if !e.IsCustom() {
		return s[1:], nil
	}

	name, id, ok := splitCustom(s)
	if !ok {
		return "", fmt.Errorf("emoji: invalid serialized value %q", s)
	}
	if strings.HasPrefix(s, "a") {
		return "<a:" + name + ":" + id + ">", nil
	}
	return "<:" + name + ":" + id + ">", nil
}

func splitCustom(s string) (name, id string, ok bool) {
	body := s[1:]
	dot := strings.LastIndexByte(body, '.')
	if dot <= 0 || dot == len(body)-1 {
		return "", "", false
	}
	return body[:dot], body[dot+1:], true
}
