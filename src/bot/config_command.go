package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/suggestions/src/components/emoji"
	"github.com/stake-plus/suggestions/src/data"
	"github.com/stake-plus/suggestions/src/discord"
)

func (b *Bot) handleConfig(s *discordgo.Session, i *discordgo.InteractionCreate, cmd discordgo.ApplicationCommandInteractionData) {
	if !b.requireModerator(s, i, discord.CommandConfig) {
		return
	}
	guildID, err := parseSnowflake(i.GuildID)
	if err != nil {
		b.respond(s, i, "Something went wrong reading this server's id.")
		return
	}

	ctx := context.Background()
	cfg, err := data.GetOrDefaultGuildConfig(ctx, b.db, guildID)
	if err != nil {
		b.respond(s, i, "Could not load this server's settings.")
		return
	}
	cfg.GuildID = guildID

	changed := false
	for _, opt := range cmd.Options {
		changed = true
		switch opt.Name {
		case "channel":
			channelID, err := parseSnowflake(opt.ChannelValue(nil).ID)
			if err != nil {
				b.respond(s, i, "That channel could not be used.")
				return
			}
			cfg.ChannelID = channelID
		case "embed":
			cfg.Embed = opt.BoolValue()
		case "buttons":
			cfg.Buttons = opt.BoolValue()
		case "compact":
			cfg.Compact = opt.BoolValue()
		case "auto-thread":
			cfg.AutoThread = opt.BoolValue()
		case "update-history":
			cfg.UpdateHistory = opt.BoolValue()
		case "remove-reactions":
			cfg.RemoveReactions = opt.BoolValue()
		case "cooldown":
			cfg.CooldownMs = opt.IntValue() * 1000
		case "reactions":
			list, bad := parseReactions(opt.StringValue())
			if bad != "" {
				b.respond(s, i, fmt.Sprintf("%q is not an emoji I can react with.", bad))
				return
			}
			cfg.Reactions = list
		}
	}

	if changed {
		if err := data.UpsertGuildConfig(ctx, b.db, cfg); err != nil {
			b.respond(s, i, "Saving the settings failed, try again.")
			return
		}
	}

	b.respond(s, i, configSummary(cfg))
}

// parseReactions validates a space-separated emoji list. "none" clears the
// list; the first emoji that fails to parse is returned for the error reply.
func parseReactions(raw string) (data.StringList, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return data.StringList{}, ""
	}

	var list data.StringList
	for _, field := range strings.Fields(raw) {
		if _, ok := emoji.Parse(field); !ok {
			return nil, field
		}
		list = append(list, field)
	}
	return list, ""
}

func configSummary(cfg *data.GuildConfig) string {
	var sb strings.Builder
	sb.WriteString("**Suggestion settings**\n")

	if cfg.ChannelID != 0 {
		fmt.Fprintf(&sb, "Channel: %s\n", discord.ChannelMention(cfg.ChannelID))
	} else {
		sb.WriteString("Channel: not set\n")
	}
	fmt.Fprintf(&sb, "Embeds: %s, Buttons: %s, Compact: %s\n",
		onOff(cfg.Embed), onOff(cfg.Buttons), onOff(cfg.Compact))
	fmt.Fprintf(&sb, "Auto-thread: %s, Update history: %s, Remove reactions on archive: %s\n",
		onOff(cfg.AutoThread), onOff(cfg.UpdateHistory), onOff(cfg.RemoveReactions))

	if cfg.CooldownMs > 0 {
		fmt.Fprintf(&sb, "Cooldown: %s\n", (time.Duration(cfg.CooldownMs) * time.Millisecond).String())
	} else {
		sb.WriteString("Cooldown: disabled\n")
	}
	if len(cfg.Reactions) > 0 {
		fmt.Fprintf(&sb, "Reactions: %s", strings.Join(displayReactions(cfg.Reactions), " "))
	} else {
		sb.WriteString("Reactions: none")
	}
	return sb.String()
}

// displayReactions normalizes stored emoji for the summary reply. Entries
// that no longer parse are shown raw rather than hidden.
func displayReactions(raw data.StringList) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		serialized, ok := emoji.Parse(r)
		if !ok {
			out = append(out, r)
			continue
		}
		text, err := serialized.TextFormat()
		if err != nil {
			out = append(out, r)
			continue
		}
		out = append(out, text)
	}
	return out
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
