package discord

import (
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	CommandSuggest   = "suggest"
	CommandResolve   = "resolve"
	CommandConfig    = "config"
	CommandPostGuide = "post-guide"
)

const (
	SubcommandAccept   = "accept"
	SubcommandConsider = "consider"
	SubcommandDeny     = "deny"
)

var (
	moderatorPermissions = int64(discordgo.PermissionManageMessages)
	adminPermissions     = int64(discordgo.PermissionManageServer)
	noDM                 = false
)

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandSuggest: {
		Name:         CommandSuggest,
		Description:  "Post a suggestion, or edit one of yours",
		DMPermission: &noDM,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "suggestion",
				Description: "The suggestion's content",
				Required:    true,
				MaxLength:   2048,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "id",
				Description: "The id of one of your suggestions, to edit it",
				MinValue:    float64Ptr(1),
				MaxValue:    math.MaxUint32,
			},
		},
	},
	CommandResolve: {
		Name:                     CommandResolve,
		Description:              "Resolve a suggestion",
		DMPermission:             &noDM,
		DefaultMemberPermissions: &moderatorPermissions,
		Options: []*discordgo.ApplicationCommandOption{
			resolveSubcommand(SubcommandAccept, "Accept a suggestion"),
			resolveSubcommand(SubcommandConsider, "Mark a suggestion as considered"),
			resolveSubcommand(SubcommandDeny, "Deny a suggestion"),
		},
	},
	CommandConfig: {
		Name:                     CommandConfig,
		Description:              "View or change the suggestion settings for this server",
		DMPermission:             &noDM,
		DefaultMemberPermissions: &adminPermissions,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: "The channel suggestions are posted to",
				ChannelTypes: []discordgo.ChannelType{
					discordgo.ChannelTypeGuildText,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "embed",
				Description: "Post suggestions as embeds instead of plain messages",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "buttons",
				Description: "Attach moderation buttons to new suggestions",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "compact",
				Description: "Use the compact plain-text layout",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "auto-thread",
				Description: "Open a discussion thread for every new suggestion",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "update-history",
				Description: "Keep the last three resolutions on the message",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "remove-reactions",
				Description: "Remove reactions when a suggestion is archived",
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "cooldown",
				Description: "Seconds a user must wait between suggestions (0 disables)",
				MinValue:    float64Ptr(0),
				MaxValue:    86400,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reactions",
				Description: "Space-separated emoji added to new suggestions (\"none\" clears)",
			},
		},
	},
	CommandPostGuide: {
		Name:                     CommandPostGuide,
		Description:              "Post the suggestion guide with a create button",
		DMPermission:             &noDM,
		DefaultMemberPermissions: &adminPermissions,
	},
}

var defaultCommandOrder = []string{
	CommandSuggest,
	CommandResolve,
	CommandConfig,
	CommandPostGuide,
}

func resolveSubcommand(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "id",
				Description: "The id of the suggestion to resolve",
				Required:    true,
				MinValue:    float64Ptr(1),
				MaxValue:    math.MaxUint32,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "response",
				Description: "An optional response to attach",
				MaxLength:   1024,
			},
		},
	}
}

func float64Ptr(v float64) *float64 { return &v }

// RegisterSlashCommands registers the bot's commands globally (or for one
// guild when guildID is set) and returns the registered ids by command name.
func RegisterSlashCommands(s *discordgo.Session, guildID string) (map[string]string, error) {
	ids := make(map[string]string, len(defaultCommandOrder))

	var failures []string
	for _, name := range defaultCommandOrder {
		created, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, commandDefinitions[name])
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		ids[name] = created.ID
	}

	if len(failures) > 0 {
		return ids, fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}
	return ids, nil
}

// DeleteSlashCommands removes all registered slash commands.
func DeleteSlashCommands(s *discordgo.Session, guildID string) error {
	commands, err := s.ApplicationCommands(s.State.User.ID, guildID)
	if err != nil {
		return err
	}

	for _, cmd := range commands {
		if err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID); err != nil {
			return err
		}
	}
	return nil
}
