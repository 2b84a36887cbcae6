package discord

import (
	"fmt"
	"time"
)

// MessageURL builds the canonical jump link for a guild message.
func MessageURL(guildID, channelID, messageID uint64) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", guildID, channelID, messageID)
}

// ChannelMention formats a channel id as a clickable mention.
func ChannelMention(channelID uint64) string {
	return fmt.Sprintf("<#%d>", channelID)
}

// RelativeTime formats a timestamp as Discord's relative time marker
// ("3 minutes ago", rendered client side).
func RelativeTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
