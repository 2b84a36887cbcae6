package suggestions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"

	"github.com/stake-plus/suggestions/src/components/cooldown"
	"github.com/stake-plus/suggestions/src/components/counter"
	"github.com/stake-plus/suggestions/src/components/crossref"
	"github.com/stake-plus/suggestions/src/components/customid"
	"github.com/stake-plus/suggestions/src/components/emoji"
	"github.com/stake-plus/suggestions/src/components/guildlock"
	"github.com/stake-plus/suggestions/src/data"
	"github.com/stake-plus/suggestions/src/discord"
)

// Platform is the slice of the Discord REST API the service touches.
// *discordgo.Session satisfies it; tests substitute a fake.
type Platform interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageThreadStartComplex(channelID, messageID string, data *discordgo.ThreadStart, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ThreadMemberAdd(threadID, memberID string, options ...discordgo.RequestOption) error
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

var _ Platform = (*discordgo.Session)(nil)

// Author identifies the user submitting or editing a suggestion.
type Author struct {
	ID        uint64
	Tag       string
	AvatarURL string
}

// Service runs the suggestion lifecycle against the database and Discord.
type Service struct {
	DB        *gorm.DB
	Platform  Platform
	Counter   *counter.Counter
	Locks     *guildlock.Locker
	Cooldowns *cooldown.Limiter
	Now       func() time.Time
}

func NewService(db *gorm.DB, platform Platform, rdb cooldown.Store) *Service {
	return &Service{
		DB:        db,
		Platform:  platform,
		Counter:   counter.New(dbStore{db}),
		Locks:     guildlock.New(),
		Cooldowns: cooldown.New(rdb),
		Now:       time.Now,
	}
}

func (svc *Service) now() time.Time {
	if svc.Now != nil {
		return svc.Now()
	}
	return time.Now()
}

// dbStore adapts the database package to the component store interfaces.
type dbStore struct {
	db *gorm.DB
}

func (s dbStore) CountSuggestions(ctx context.Context, guildID uint64) (int64, error) {
	return data.CountSuggestions(ctx, s.db, guildID)
}

func (s dbStore) FindSuggestionMessages(ctx context.Context, guildID uint64, ids []uint32) (map[uint32]uint64, error) {
	return data.FindSuggestionMessages(ctx, s.db, guildID, ids)
}

var _ counter.Store = dbStore{}
var _ crossref.Store = dbStore{}

func snowflake(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (svc *Service) config(ctx context.Context, guildID uint64) (*data.GuildConfig, error) {
	cfg, err := data.GetGuildConfig(ctx, svc.DB, guildID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, err
	}
	if cfg.ChannelID == 0 {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

// Create posts a new suggestion to the guild's configured channel and
// persists it. Id allocation and message posting happen under the guild
// lock so concurrent submissions cannot race the counter. The returned
// warnings describe decoration steps (reactions, auto-thread) that failed
// after the suggestion itself was live; they never roll it back.
func (svc *Service) Create(ctx context.Context, guildID uint64, author Author, content string) (*data.Suggestion, []string, error) {
	cfg, err := svc.config(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}

	var created *data.Suggestion
	err = svc.Locks.Do(ctx, guildID, func() error {
		remaining, err := svc.Cooldowns.Check(ctx, guildID, author.ID, cfg.Cooldown())
		if err != nil {
			return fmt.Errorf("cooldown check: %w", err)
		}
		if remaining > 0 {
			return &CooldownError{Remaining: remaining}
		}

		id, err := svc.Counter.NextID(ctx, guildID)
		if err != nil {
			return fmt.Errorf("allocate id: %w", err)
		}

		// Markdown links only render inside embeds, so the plain layout
		// keeps "#N" references literal.
		body := content
		if cfg.Embed && !cfg.Compact {
			body, err = crossref.Resolve(ctx, dbStore{svc.DB}, content, guildID, cfg.ChannelID, id-1)
			if err != nil {
				return fmt.Errorf("resolve references: %w", err)
			}
		}

		posted, err := svc.Platform.ChannelMessageSendComplex(snowflake(cfg.ChannelID), NewMessage(cfg, id, author.Tag, author.AvatarURL, body))
		if err != nil {
			return fmt.Errorf("post suggestion: %w", err)
		}

		messageID, err := strconv.ParseUint(posted.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("parse message id %q: %w", posted.ID, err)
		}

		s := &data.Suggestion{
			ID:        id,
			GuildID:   guildID,
			AuthorID:  author.ID,
			MessageID: messageID,
			CreatedAt: svc.now(),
		}
		if err := data.CreateSuggestion(ctx, svc.DB, s); err != nil {
			// The posted message and the store disagree now; drop the cached
			// count so the next attempt re-reads the durable truth.
			svc.Counter.Forget(guildID)
			return fmt.Errorf("persist suggestion %d: %w", id, err)
		}
		svc.Counter.Bump(guildID)
		created = s
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	warnings := svc.decorate(ctx, cfg, created, content)
	return created, warnings, nil
}

// decorate adds the configured reactions and auto-thread to a freshly posted
// suggestion. Failures are logged for operators and reported as warnings for
// the success reply: the suggestion itself is already live.
func (svc *Service) decorate(ctx context.Context, cfg *data.GuildConfig, s *data.Suggestion, content string) []string {
	channel := snowflake(cfg.ChannelID)
	message := snowflake(s.MessageID)

	var warnings []string
	for _, raw := range cfg.Reactions {
		serialized, ok := emoji.Parse(raw)
		if !ok {
			log.Printf("suggestions: guild %d has unusable reaction %q", s.GuildID, raw)
			warnings = append(warnings, fmt.Sprintf("The configured reaction %q is not usable.", raw))
			continue
		}
		name, err := serialized.ReactionFormat()
		if err != nil {
			log.Printf("suggestions: guild %d reaction %q: %v", s.GuildID, raw, err)
			warnings = append(warnings, fmt.Sprintf("The configured reaction %q is not usable.", raw))
			continue
		}
		if err := svc.Platform.MessageReactionAdd(channel, message, name); err != nil {
			log.Printf("suggestions: guild %d react %q on #%d: %v", s.GuildID, raw, s.ID, err)
			warnings = append(warnings, fmt.Sprintf("Could not add the %s reaction.", raw))
			// No point hammering the rest of the list once we are limited.
			if discord.IsRateLimit(err) {
				break
			}
		}
	}

	if cfg.AutoThread {
		if _, err := svc.thread(ctx, cfg, s, content, 0); err != nil {
			log.Printf("suggestions: guild %d auto-thread for #%d: %v", s.GuildID, s.ID, err)
			warnings = append(warnings, "Could not open a discussion thread automatically.")
		}
	}
	return warnings
}

// Edit replaces the content of an open suggestion owned by the caller. A
// suggestion whose message was deleted out from under us is archived and
// reported as gone.
func (svc *Service) Edit(ctx context.Context, guildID uint64, author Author, id uint32, content string) error {
	cfg, err := svc.config(ctx, guildID)
	if err != nil {
		return err
	}

	s, err := svc.find(ctx, guildID, id)
	if err != nil {
		return err
	}
	if err := CanEdit(s, author.ID); err != nil {
		return err
	}

	msg, err := svc.message(ctx, cfg, s)
	if err != nil {
		return err
	}

	body := content
	if len(msg.Embeds) > 0 {
		maxID, err := svc.Counter.Current(ctx, guildID)
		if err != nil {
			return fmt.Errorf("load id counter: %w", err)
		}
		body, err = crossref.Resolve(ctx, dbStore{svc.DB}, content, guildID, cfg.ChannelID, maxID)
		if err != nil {
			return fmt.Errorf("resolve references: %w", err)
		}
	}

	newContent, embeds := EditedBody(msg, body)
	edit := &discordgo.MessageEdit{
		Channel: msg.ChannelID,
		ID:      msg.ID,
		Content: newContent,
	}
	if embeds != nil {
		edit.Embeds = &embeds
	}
	if _, err := svc.Platform.ChannelMessageEditComplex(edit); err != nil {
		return fmt.Errorf("edit suggestion #%d: %w", id, err)
	}
	return nil
}

// Resolve records a moderator's decision on a suggestion and updates the
// posted message. Resolving marks the suggestion replied; only the first
// resolution flips the flag, later ones just extend the message history.
func (svc *Service) Resolve(ctx context.Context, guildID uint64, moderatorTag string, id uint32, status customid.Status, response string) error {
	cfg, err := svc.config(ctx, guildID)
	if err != nil {
		return err
	}

	s, err := svc.find(ctx, guildID, id)
	if err != nil {
		return err
	}
	if s.ArchivedAt != nil {
		return ErrArchived
	}

	msg, err := svc.message(ctx, cfg, s)
	if err != nil {
		return err
	}

	now := svc.now()
	if err := data.MarkReplied(ctx, svc.DB, guildID, id, now); err != nil {
		return fmt.Errorf("mark replied: %w", err)
	}

	content, embeds := ResolvedBody(msg, cfg, status, response, moderatorTag, now)
	edit := &discordgo.MessageEdit{
		Channel: msg.ChannelID,
		ID:      msg.ID,
		Content: content,
	}
	if embeds != nil {
		edit.Embeds = &embeds
	}
	if _, err := svc.Platform.ChannelMessageEditComplex(edit); err != nil {
		return fmt.Errorf("apply resolution to #%d: %w", id, err)
	}
	return nil
}

// Archive closes a suggestion: its components are stripped, its thread (if
// any) is archived, and the archive timestamp is recorded. Archiving is
// one-way.
func (svc *Service) Archive(ctx context.Context, guildID uint64, id uint32) error {
	cfg, err := svc.config(ctx, guildID)
	if err != nil {
		return err
	}

	s, err := svc.find(ctx, guildID, id)
	if err != nil {
		return err
	}
	if s.ArchivedAt != nil {
		return ErrArchived
	}

	msg, err := svc.message(ctx, cfg, s)
	if err != nil && !errors.Is(err, ErrMessageGone) {
		return err
	}

	if msg != nil {
		if msg.Thread != nil {
			archived := true
			locked := true
			if _, err := svc.Platform.ChannelEditComplex(msg.Thread.ID, &discordgo.ChannelEdit{Archived: &archived, Locked: &locked}); err != nil {
				log.Printf("suggestions: guild %d archive thread for #%d: %v", guildID, id, err)
			}
		}
		if cfg.RemoveReactions {
			if err := svc.Platform.MessageReactionsRemoveAll(msg.ChannelID, msg.ID); err != nil {
				log.Printf("suggestions: guild %d clear reactions on #%d: %v", guildID, id, err)
			}
		}
		empty := []discordgo.MessageComponent{}
		if _, err := svc.Platform.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    msg.ChannelID,
			ID:         msg.ID,
			Components: &empty,
		}); err != nil {
			return fmt.Errorf("strip components from #%d: %w", id, err)
		}
	}

	if err := data.ArchiveSuggestion(ctx, svc.DB, guildID, id, svc.now()); err != nil {
		return fmt.Errorf("archive suggestion #%d: %w", id, err)
	}
	return nil
}

// Thread opens a discussion thread on a suggestion's message and drops the
// thread button from its components.
func (svc *Service) Thread(ctx context.Context, guildID uint64, id uint32) (*discordgo.Channel, error) {
	cfg, err := svc.config(ctx, guildID)
	if err != nil {
		return nil, err
	}

	s, err := svc.find(ctx, guildID, id)
	if err != nil {
		return nil, err
	}
	if s.ArchivedAt != nil {
		return nil, ErrArchived
	}

	msg, err := svc.message(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	content, err := OriginalContent(msg)
	if err != nil {
		return nil, err
	}

	thread, err := svc.thread(ctx, cfg, s, content, s.AuthorID)
	if err != nil {
		return nil, err
	}

	if cfg.Buttons {
		components := Components(id, false)
		if _, err := svc.Platform.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    msg.ChannelID,
			ID:         msg.ID,
			Components: &components,
		}); err != nil {
			log.Printf("suggestions: guild %d drop thread button on #%d: %v", guildID, id, err)
		}
	}
	return thread, nil
}

// thread starts the thread itself and, when inviteID is set, invites that
// user into it. Invitation failures are non-fatal.
func (svc *Service) thread(ctx context.Context, cfg *data.GuildConfig, s *data.Suggestion, content string, inviteID uint64) (*discordgo.Channel, error) {
	thread, err := svc.Platform.MessageThreadStartComplex(snowflake(cfg.ChannelID), snowflake(s.MessageID), &discordgo.ThreadStart{
		Name:                ThreadName(s.ID, content),
		AutoArchiveDuration: 1440,
	})
	if err != nil {
		return nil, fmt.Errorf("start thread for #%d: %w", s.ID, err)
	}
	if inviteID != 0 {
		if err := svc.Platform.ThreadMemberAdd(thread.ID, snowflake(inviteID)); err != nil {
			log.Printf("suggestions: guild %d invite %d to thread of #%d: %v", s.GuildID, inviteID, s.ID, err)
		}
	}
	return thread, nil
}

func (svc *Service) find(ctx context.Context, guildID uint64, id uint32) (*data.Suggestion, error) {
	s, err := data.FindSuggestion(ctx, svc.DB, guildID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// message fetches the Discord message behind a suggestion. A message that
// was deleted out-of-band archives the suggestion and reports ErrMessageGone.
func (svc *Service) message(ctx context.Context, cfg *data.GuildConfig, s *data.Suggestion) (*discordgo.Message, error) {
	msg, err := svc.Platform.ChannelMessage(snowflake(cfg.ChannelID), snowflake(s.MessageID))
	if discord.IsNotFound(err) {
		if aerr := data.ArchiveSuggestion(ctx, svc.DB, s.GuildID, s.ID, svc.now()); aerr != nil {
			log.Printf("suggestions: guild %d archive vanished #%d: %v", s.GuildID, s.ID, aerr)
		}
		return nil, ErrMessageGone
	}
	if err != nil {
		return nil, fmt.Errorf("fetch message for #%d: %w", s.ID, err)
	}
	return msg, nil
}
