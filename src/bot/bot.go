// Package bot wires the Discord gateway to the suggestion services: slash
// command registration, interaction dispatch, and permission checks.
package bot

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/stake-plus/suggestions/src/components/cooldown"
	"github.com/stake-plus/suggestions/src/components/permissions"
	"github.com/stake-plus/suggestions/src/components/suggestions"
	"github.com/stake-plus/suggestions/src/config"
	"github.com/stake-plus/suggestions/src/discord"
)

type Bot struct {
	session *discordgo.Session
	db      *gorm.DB
	config  config.Config
	service *suggestions.Service

	// Written once by the Ready handler, read from interaction handler
	// goroutines.
	permissions atomic.Pointer[permissions.Resolver]
}

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	bot := &Bot{
		session: dg,
		db:      db,
		config:  cfg,
		service: suggestions.NewService(db, dg, cooldown.NewRedisStore(rdb)),
	}

	dg.AddHandler(bot.handleReady)
	dg.AddHandler(bot.handleInteraction)

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return bot, nil
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Stop() {
	b.session.Close()
}

// ClearCommands removes every registered slash command. Used by the
// -clear-commands maintenance flag when decommissioning a deployment.
func (b *Bot) ClearCommands() error {
	return discord.DeleteSlashCommands(b.session, b.config.GuildID)
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("bot: logged in as %s", event.User.Username)

	ids, err := discord.RegisterSlashCommands(s, b.config.GuildID)
	if err != nil {
		log.Printf("bot: register commands: %v", err)
		return
	}

	resolver := permissions.New(s, event.Application.ID)
	resolver.RegisterCommand(discord.CommandResolve, ids[discord.CommandResolve], int64(discordgo.PermissionManageMessages))
	resolver.RegisterCommand(discord.CommandConfig, ids[discord.CommandConfig], int64(discordgo.PermissionManageServer))
	b.permissions.Store(resolver)

	log.Printf("bot: registered %d commands", len(ids))
}
