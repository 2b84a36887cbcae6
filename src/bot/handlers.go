package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/suggestions/src/components/customid"
	"github.com/stake-plus/suggestions/src/components/suggestions"
	"github.com/stake-plus/suggestions/src/discord"
)

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		b.respond(s, i, "Suggestions only work inside a server.")
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	case discordgo.InteractionModalSubmit:
		b.handleModal(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case discord.CommandSuggest:
		b.handleSuggest(s, i, data)
	case discord.CommandResolve:
		b.handleResolve(s, i, data)
	case discord.CommandConfig:
		b.handleConfig(s, i, data)
	case discord.CommandPostGuide:
		b.handlePostGuide(s, i)
	default:
		log.Printf("bot: unhandled command %q", data.Name)
	}
}

func (b *Bot) handleSuggest(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	guildID, err := parseSnowflake(i.GuildID)
	if err != nil {
		b.respond(s, i, "Something went wrong reading this server's id.")
		return
	}

	var content string
	var editID uint32
	for _, opt := range data.Options {
		switch opt.Name {
		case "suggestion":
			content = opt.StringValue()
		case "id":
			id, ok := suggestionID(opt.IntValue())
			if !ok {
				b.respond(s, i, userMessage(suggestions.ErrNotFound))
				return
			}
			editID = id
		}
	}

	ctx := context.Background()
	author := interactionAuthor(i)

	if editID != 0 {
		if err := b.service.Edit(ctx, guildID, author, editID, content); err != nil {
			b.respond(s, i, userMessage(err))
			return
		}
		b.respond(s, i, fmt.Sprintf("Suggestion #%d updated.", editID))
		return
	}

	created, warnings, err := b.service.Create(ctx, guildID, author, content)
	if err != nil {
		b.respond(s, i, userMessage(err))
		return
	}
	b.respond(s, i, createdReply(created.ID, warnings))
}

// createdReply builds the success message, appending any non-fatal warnings
// from the decoration steps.
func createdReply(id uint32, warnings []string) string {
	reply := fmt.Sprintf("Thank you! Your suggestion was posted as #%d.", id)
	if len(warnings) > 0 {
		reply += "\n" + strings.Join(warnings, "\n")
	}
	return reply
}

func (b *Bot) handleResolve(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.requireModerator(s, i, discord.CommandResolve) {
		return
	}
	guildID, err := parseSnowflake(i.GuildID)
	if err != nil {
		b.respond(s, i, "Something went wrong reading this server's id.")
		return
	}

	sub := data.Options[0]
	status, ok := statusForSubcommand(sub.Name)
	if !ok {
		log.Printf("bot: unknown resolve subcommand %q", sub.Name)
		return
	}

	var id uint32
	response := "No reason given."
	for _, opt := range sub.Options {
		switch opt.Name {
		case "id":
			var ok bool
			if id, ok = suggestionID(opt.IntValue()); !ok {
				b.respond(s, i, userMessage(suggestions.ErrNotFound))
				return
			}
		case "response":
			response = opt.StringValue()
		}
	}

	if err := b.service.Resolve(context.Background(), guildID, memberTag(i), id, status, response); err != nil {
		b.respond(s, i, userMessage(err))
		return
	}
	b.respond(s, i, fmt.Sprintf("Suggestion #%d resolved.", id))
}

func (b *Bot) handlePostGuide(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.requireModerator(s, i, discord.CommandConfig) {
		return
	}

	guide := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "Suggestions",
			Description: "Use `/suggest` or the button below to share an idea with the server. " +
				"Reference earlier suggestions by number, like `#12`, and they become links. " +
				"Moderators resolve suggestions with `/resolve` or the controls on each post.",
			Color: 0x5865F2,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Submit a suggestion",
					Style:    discordgo.PrimaryButton,
					CustomID: customid.Create(),
				},
			}},
		},
	}
	if _, err := s.ChannelMessageSendComplex(i.ChannelID, guide); err != nil {
		b.respond(s, i, "Could not post the guide here. Check my channel permissions.")
		return
	}
	b.respond(s, i, "Guide posted.")
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	parsed, err := customid.Decode(data.CustomID)
	if err != nil {
		log.Printf("bot: undecodable component id %q from guild %s: %v", data.CustomID, i.GuildID, err)
		b.respond(s, i, "That control is no longer recognized.")
		return
	}

	switch p := parsed.(type) {
	case customid.CreateID:
		b.openCreateModal(s, i)
	case customid.SuggestionID:
		switch p.Action {
		case customid.ActionArchive:
			b.componentArchive(s, i, p.ID)
		case customid.ActionThread:
			b.componentThread(s, i, p.ID)
		case customid.ActionResolve:
			b.openResolveModal(s, i, p.ID, data.Values)
		}
	default:
		log.Printf("bot: component id %q decoded to unexpected %T", data.CustomID, parsed)
	}
}

func (b *Bot) componentArchive(s *discordgo.Session, i *discordgo.InteractionCreate, id uint32) {
	if !b.requireModerator(s, i, discord.CommandResolve) {
		return
	}
	guildID, err := parseSnowflake(i.GuildID)
	if err != nil {
		return
	}
	if err := b.service.Archive(context.Background(), guildID, id); err != nil {
		b.respond(s, i, userMessage(err))
		return
	}
	b.respond(s, i, fmt.Sprintf("Suggestion #%d archived.", id))
}

func (b *Bot) componentThread(s *discordgo.Session, i *discordgo.InteractionCreate, id uint32) {
	if !b.requireModerator(s, i, discord.CommandResolve) {
		return
	}
	guildID, err := parseSnowflake(i.GuildID)
	if err != nil {
		return
	}
	thread, err := b.service.Thread(context.Background(), guildID, id)
	if err != nil {
		b.respond(s, i, userMessage(err))
		return
	}
	b.respond(s, i, fmt.Sprintf("Thread opened: <#%s>", thread.ID))
}

func (b *Bot) openResolveModal(s *discordgo.Session, i *discordgo.InteractionCreate, id uint32, values []string) {
	if !b.requireModerator(s, i, discord.CommandResolve) {
		return
	}
	if len(values) != 1 {
		return
	}
	status := customid.Status(values[0])
	switch status {
	case customid.StatusAccept, customid.StatusConsider, customid.StatusDeny:
	default:
		log.Printf("bot: resolve menu sent unknown status %q", values[0])
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customid.Modal(status, id),
			Title:    fmt.Sprintf("Resolve suggestion #%d", id),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  customid.ModalField,
						Label:     "Response",
						Style:     discordgo.TextInputParagraph,
						MaxLength: 1024,
					},
				}},
			},
		},
	})
	if err != nil {
		log.Printf("bot: open resolve modal: %v", err)
	}
}

func (b *Bot) openCreateModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customid.CreateModal(),
			Title:    "Submit a suggestion",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  customid.ModalField,
						Label:     "Suggestion",
						Style:     discordgo.TextInputParagraph,
						Required:  true,
						MaxLength: 2048,
					},
				}},
			},
		},
	})
	if err != nil {
		log.Printf("bot: open create modal: %v", err)
	}
}

func (b *Bot) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	parsed, err := customid.Decode(data.CustomID)
	if err != nil {
		log.Printf("bot: undecodable modal id %q from guild %s: %v", data.CustomID, i.GuildID, err)
		b.respond(s, i, "That form is no longer recognized.")
		return
	}
	guildID, err := parseSnowflake(i.GuildID)
	if err != nil {
		return
	}

	field := modalField(data)

	switch p := parsed.(type) {
	case customid.CreateModalID:
		created, warnings, err := b.service.Create(context.Background(), guildID, interactionAuthor(i), field)
		if err != nil {
			b.respond(s, i, userMessage(err))
			return
		}
		b.respond(s, i, createdReply(created.ID, warnings))
	case customid.ModalID:
		if field == "" {
			field = "No reason given."
		}
		if err := b.service.Resolve(context.Background(), guildID, memberTag(i), p.ID, p.Status, field); err != nil {
			b.respond(s, i, userMessage(err))
			return
		}
		b.respond(s, i, fmt.Sprintf("Suggestion #%d resolved.", p.ID))
	default:
		log.Printf("bot: modal id %q decoded to unexpected %T", data.CustomID, parsed)
	}
}

// modalField digs the single text input's value out of a modal submission.
func modalField(data discordgo.ModalSubmitInteractionData) string {
	for _, row := range data.Components {
		actions, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range actions.Components {
			if input, ok := c.(*discordgo.TextInput); ok && input.CustomID == customid.ModalField {
				return strings.TrimSpace(input.Value)
			}
		}
	}
	return ""
}

// requireModerator gates an action behind the permission resolver, answering
// the interaction itself when the member is not allowed.
func (b *Bot) requireModerator(s *discordgo.Session, i *discordgo.InteractionCreate, command string) bool {
	resolver := b.permissions.Load()
	if resolver == nil {
		b.respond(s, i, "Still starting up, try again in a moment.")
		return false
	}
	allowed, err := resolver.CanPerform(i.Member, i.GuildID, command)
	if err != nil {
		log.Printf("bot: permission check for %s in guild %s: %v", command, i.GuildID, err)
		b.respond(s, i, "Could not verify your permissions, try again.")
		return false
	}
	if !allowed {
		b.respond(s, i, "You are not allowed to do that here.")
		return false
	}
	return true
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("bot: respond to interaction: %v", err)
	}
}

// userMessage maps service errors to texts fit for an ephemeral reply.
func userMessage(err error) string {
	var cooldownErr *suggestions.CooldownError
	if errors.As(err, &cooldownErr) {
		return fmt.Sprintf("You are posting suggestions too fast. Try again in %s.", cooldownErr.Remaining.Round(time.Second))
	}

	switch {
	case errors.Is(err, suggestions.ErrNotConfigured):
		return "This server has no suggestions channel configured. An admin can set one with `/config channel`."
	case errors.Is(err, suggestions.ErrNotFound):
		return "No suggestion with that id exists here."
	case errors.Is(err, suggestions.ErrWrongAuthor):
		return "You can only edit your own suggestions."
	case errors.Is(err, suggestions.ErrArchived):
		return "That suggestion has been archived and can no longer change."
	case errors.Is(err, suggestions.ErrAlreadyReplied):
		return "That suggestion already received a reply and can no longer be edited."
	case errors.Is(err, suggestions.ErrMessageGone):
		return "That suggestion's message was deleted, so it has been archived."
	}

	log.Printf("bot: unexpected service error: %v", err)
	return "Something went wrong, try again later."
}

func statusForSubcommand(name string) (customid.Status, bool) {
	switch name {
	case discord.SubcommandAccept:
		return customid.StatusAccept, true
	case discord.SubcommandConsider:
		return customid.StatusConsider, true
	case discord.SubcommandDeny:
		return customid.StatusDeny, true
	}
	return "", false
}

func parseSnowflake(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// suggestionID narrows an integer option to a suggestion id. The command
// definitions bound the option, but a stale or hostile client can still send
// any 53-bit integer.
func suggestionID(v int64) (uint32, bool) {
	if v < 1 || v > math.MaxUint32 {
		return 0, false
	}
	return uint32(v), true
}

func interactionAuthor(i *discordgo.InteractionCreate) suggestions.Author {
	user := i.Member.User
	id, _ := parseSnowflake(user.ID)
	return suggestions.Author{
		ID:        id,
		Tag:       user.String(),
		AvatarURL: user.AvatarURL(""),
	}
}

func memberTag(i *discordgo.InteractionCreate) string {
	return i.Member.User.String()
}
