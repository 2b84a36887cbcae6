package discord

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Discord error codes this bot cares about. The "gone" class marks entities
// that were deleted out from under us and triggers lazy archival instead of a
// hard failure.
const (
	errCodeUnknownChannel            = 10003
	errCodeUnknownMessage            = 10008
	errCodeUnknownCommandPermissions = 10066
)

// IsNotFound reports whether err is Discord telling us the target entity no
// longer exists (deleted message, channel, or unset command permissions).
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil {
			switch rest.Message.Code {
			case errCodeUnknownChannel, errCodeUnknownMessage, errCodeUnknownCommandPermissions:
				return true
			}
		}
		return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimit reports whether err is a Discord rate limit response.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var limited *discordgo.RateLimitError
	if errors.As(err, &limited) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}
