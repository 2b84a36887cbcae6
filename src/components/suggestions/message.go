package suggestions

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/suggestions/src/components/customid"
	"github.com/stake-plus/suggestions/src/data"
	"github.com/stake-plus/suggestions/src/discord"
)

// ContentSeparator splits the original suggestion from its resolution history
// in plain-text mode. The zero-width space never appears in sanitized user
// input, so the split is unambiguous.
const ContentSeparator = "\u200B\n\n"

// historyLimit bounds the resolution history kept on a message so repeated
// resolutions cannot outgrow Discord's body-size limits.
const historyLimit = 3

const (
	colorNeutral  = 0x5865F2
	colorAccept   = 0x57F287
	colorConsider = 0xFEE75C
	colorDeny     = 0xED4245
)

// StatusColor returns the embed color for a resolution status.
func StatusColor(status customid.Status) int {
	switch status {
	case customid.StatusAccept:
		return colorAccept
	case customid.StatusConsider:
		return colorConsider
	case customid.StatusDeny:
		return colorDeny
	}
	return colorNeutral
}

func statusHeader(status customid.Status) string {
	switch status {
	case customid.StatusAccept:
		return "Accepted"
	case customid.StatusConsider:
		return "Considered"
	case customid.StatusDeny:
		return "Denied"
	}
	return "Updated"
}

// PlainContent sanitizes user input for plain-text mode. Zero-width spaces
// are stripped because they double as the history separator.
func PlainContent(content string) string {
	return strings.ReplaceAll(content, "\u200B", "")
}

// contentHeader is the first line of a plain-text suggestion message.
func contentHeader(id uint32, authorTag string) string {
	return fmt.Sprintf("**Suggestion #%d from %s**", id, authorTag)
}

// NewMessage builds the outbound message for a fresh suggestion.
func NewMessage(cfg *data.GuildConfig, id uint32, authorTag, avatarURL, content string) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}

	// Compact forces the plain layout even when embeds are enabled.
	if cfg.Embed && !cfg.Compact {
		msg.Embeds = []*discordgo.MessageEmbed{{
			Author: &discordgo.MessageEmbedAuthor{
				Name:    fmt.Sprintf("%s (#%d)", authorTag, id),
				IconURL: avatarURL,
			},
			Description: content,
			Color:       colorNeutral,
		}}
	} else {
		msg.Content = contentHeader(id, authorTag) + "\n" + PlainContent(content)
	}

	if cfg.Buttons {
		msg.Components = Components(id, !cfg.AutoThread)
	}
	return msg
}

// Components builds the moderation component rows for a suggestion message.
func Components(id uint32, includeThread bool) []discordgo.MessageComponent {
	buttons := []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Archive",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Suggestion(customid.ActionArchive, id),
		},
	}
	if includeThread {
		buttons = append(buttons, discordgo.Button{
			Label:    "Create Thread",
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Suggestion(customid.ActionThread, id),
		})
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    customid.Suggestion(customid.ActionResolve, id),
				Placeholder: "Resolve this suggestion",
				Options: []discordgo.SelectMenuOption{
					{Label: "Accept", Value: string(customid.StatusAccept)},
					{Label: "Consider", Value: string(customid.StatusConsider)},
					{Label: "Deny", Value: string(customid.StatusDeny)},
				},
			},
		}},
	}
}

// OriginalContent extracts the author's suggestion text from a posted
// message, dropping any resolution history.
func OriginalContent(msg *discordgo.Message) (string, error) {
	if len(msg.Embeds) > 0 {
		return msg.Embeds[0].Description, nil
	}

	newline := strings.IndexByte(msg.Content, '\n')
	if newline == -1 {
		return "", fmt.Errorf("suggestions: message %s has no header line", msg.ID)
	}
	body := msg.Content[newline+1:]
	if idx := strings.Index(body, ContentSeparator); idx != -1 {
		body = body[:idx]
	}
	return body, nil
}

// EditedBody rebuilds a suggestion message around new content. Only
// un-replied suggestions are editable, so there is no history to preserve.
func EditedBody(msg *discordgo.Message, newContent string) (content *string, embeds []*discordgo.MessageEmbed) {
	if len(msg.Embeds) > 0 {
		embed := *msg.Embeds[0]
		embed.Description = newContent
		return nil, []*discordgo.MessageEmbed{&embed}
	}

	newline := strings.IndexByte(msg.Content, '\n')
	header := msg.Content
	if newline != -1 {
		header = msg.Content[:newline]
	}
	body := header + "\n" + PlainContent(newContent)
	return &body, nil
}

// ResolvedBody applies a resolution to a suggestion message. With the guild's
// update-history toggle on, the last three resolutions are kept; otherwise
// the newest replaces whatever was there.
func ResolvedBody(msg *discordgo.Message, cfg *data.GuildConfig, status customid.Status, response, moderatorTag string, at time.Time) (content *string, embeds []*discordgo.MessageEmbed) {
	header := fmt.Sprintf("%s by %s", statusHeader(status), moderatorTag)
	when := discord.RelativeTime(at)

	if len(msg.Embeds) > 0 {
		embed := *msg.Embeds[0]
		// Field names render no markup, so the timestamp goes in the value.
		field := &discordgo.MessageEmbedField{Name: header, Value: response + "\n" + when}
		if cfg.UpdateHistory {
			fields := append(append([]*discordgo.MessageEmbedField{}, embed.Fields...), field)
			if len(fields) > historyLimit {
				fields = fields[len(fields)-historyLimit:]
			}
			embed.Fields = fields
		} else {
			embed.Fields = []*discordgo.MessageEmbedField{field}
		}
		embed.Color = StatusColor(status)
		return nil, []*discordgo.MessageEmbed{&embed}
	}

	parts := strings.Split(msg.Content, ContentSeparator)
	entry := fmt.Sprintf("**%s %s**\n%s", header, when, PlainContent(response))
	var history []string
	if cfg.UpdateHistory {
		history = append(parts[1:], entry)
		if len(history) > historyLimit {
			history = history[len(history)-historyLimit:]
		}
	} else {
		history = []string{entry}
	}
	body := strings.Join(append([]string{parts[0]}, history...), ContentSeparator)
	return &body, nil
}

var maskedLink = regexp.MustCompile(`\[([^\]]+)\]\(https?:[^)]+\)`)

var slugRuns = regexp.MustCompile(`[^a-z0-9]+`)

// ThreadName derives a thread title from a suggestion's content. Masked links
// collapse to their label so URLs never leak into the title.
func ThreadName(id uint32, input string) string {
	text := maskedLink.ReplaceAllString(input, "$1")
	slug := slugRuns.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")

	name := fmt.Sprintf("%d-%s", id, slug)
	if len(name) > 100 {
		name = name[:100]
	}
	return strings.TrimRight(name, "-")
}
