package suggestions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stake-plus/suggestions/src/components/cooldown"
	"github.com/stake-plus/suggestions/src/components/counter"
	"github.com/stake-plus/suggestions/src/components/customid"
	"github.com/stake-plus/suggestions/src/components/guildlock"
	"github.com/stake-plus/suggestions/src/data"
)

const (
	testGuild   uint64 = 500
	testChannel uint64 = 900
)

// fakePlatform records Discord calls and serves messages back from memory.
type fakePlatform struct {
	mu       sync.Mutex
	lastID   uint64
	stored   map[string]*discordgo.Message
	edits    []*discordgo.MessageEdit
	reacts   []string
	cleared  int
	threads  []*discordgo.ThreadStart
	invites  []string
	sendErr  error
	reactErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{stored: map[string]*discordgo.Message{}}
}

func (p *fakePlatform) ChannelMessageSendComplex(channelID string, m *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	p.lastID++
	msg := &discordgo.Message{
		ID:         strconv.FormatUint(p.lastID, 10),
		ChannelID:  channelID,
		Content:    m.Content,
		Embeds:     m.Embeds,
		Components: m.Components,
	}
	p.stored[msg.ID] = msg
	return msg, nil
}

func notFound() error {
	return &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: 10008}}
}

func (p *fakePlatform) ChannelMessage(_, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.stored[messageID]
	if !ok {
		return nil, notFound()
	}
	clone := *msg
	return &clone, nil
}

func (p *fakePlatform) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.stored[m.ID]
	if !ok {
		return nil, notFound()
	}
	p.edits = append(p.edits, m)
	if m.Content != nil {
		msg.Content = *m.Content
	}
	if m.Embeds != nil {
		msg.Embeds = *m.Embeds
	}
	if m.Components != nil {
		msg.Components = *m.Components
	}
	return msg, nil
}

func (p *fakePlatform) MessageReactionAdd(_, _, emojiID string, _ ...discordgo.RequestOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reactErr != nil {
		return p.reactErr
	}
	p.reacts = append(p.reacts, emojiID)
	return nil
}

func (p *fakePlatform) MessageReactionsRemoveAll(_, _ string, _ ...discordgo.RequestOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
	return nil
}

func (p *fakePlatform) MessageThreadStartComplex(_, messageID string, ts *discordgo.ThreadStart, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threads = append(p.threads, ts)
	return &discordgo.Channel{ID: "thread-" + messageID, Name: ts.Name}, nil
}

func (p *fakePlatform) ThreadMemberAdd(threadID, memberID string, _ ...discordgo.RequestOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invites = append(p.invites, threadID+":"+memberID)
	return nil
}

func (p *fakePlatform) ChannelEditComplex(channelID string, _ *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: channelID}, nil
}

// memoryCooldowns is an in-process stand-in for the Redis store.
type memoryCooldowns struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

func newMemoryCooldowns() *memoryCooldowns {
	return &memoryCooldowns{keys: map[string]time.Time{}}
}

func (s *memoryCooldowns) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.keys[key]
	if !ok || time.Now().After(deadline) {
		return -2 * time.Nanosecond, nil
	}
	return time.Until(deadline), nil
}

func (s *memoryCooldowns) ExpireIfExists(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		return false, nil
	}
	s.keys[key] = time.Now().Add(ttl)
	return true, nil
}

func (s *memoryCooldowns) Arm(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = time.Now().Add(ttl)
	return nil
}

func newTestService(t *testing.T, cfg *data.GuildConfig) (*Service, *fakePlatform) {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := data.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if cfg != nil {
		if err := data.UpsertGuildConfig(context.Background(), db, cfg); err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}

	platform := newFakePlatform()
	svc := &Service{
		DB:        db,
		Platform:  platform,
		Counter:   counter.New(dbStore{db}),
		Locks:     guildlock.New(),
		Cooldowns: cooldown.New(newMemoryCooldowns()),
		Now:       time.Now,
	}
	return svc, platform
}

func baseConfig() *data.GuildConfig {
	return &data.GuildConfig{
		GuildID:   testGuild,
		ChannelID: testChannel,
		Embed:     true,
		Buttons:   true,
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	svc, platform := newTestService(t, baseConfig())
	ctx := context.Background()

	const n = 20
	ids := make(chan uint32, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := svc.Create(ctx, testGuild, Author{ID: uint64(i + 1), Tag: "user"}, "idea")
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			ids <- s.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[uint32]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = true
	}
	for id := uint32(1); id <= n; id++ {
		if !seen[id] {
			t.Fatalf("id %d never allocated", id)
		}
	}
	if len(platform.stored) != n {
		t.Fatalf("posted %d messages, want %d", len(platform.stored), n)
	}
}

func TestCreateUnconfiguredGuild(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, _, err := svc.Create(context.Background(), testGuild, Author{ID: 1, Tag: "x"}, "idea")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestCreateCooldown(t *testing.T) {
	cfg := baseConfig()
	cfg.CooldownMs = int64(time.Hour / time.Millisecond)
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "first"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "second")
	var ce *CooldownError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CooldownError", err)
	}
	if ce.Remaining <= 0 || ce.Remaining > time.Hour {
		t.Fatalf("remaining = %v", ce.Remaining)
	}

	// A different user in the same guild is not affected.
	if _, _, err := svc.Create(ctx, testGuild, Author{ID: 2, Tag: "y"}, "third"); err != nil {
		t.Fatalf("other user: %v", err)
	}
}

func TestCreateAppliesReactionsAndAutoThread(t *testing.T) {
	cfg := baseConfig()
	cfg.Reactions = data.StringList{"👍", "<:custom:123456789012345678>"}
	cfg.AutoThread = true
	svc, platform := newTestService(t, cfg)

	s, _, err := svc.Create(context.Background(), testGuild, Author{ID: 1, Tag: "x"}, "Add ducks")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(platform.reacts) != 2 {
		t.Fatalf("reactions = %d, want 2", len(platform.reacts))
	}
	if len(platform.threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(platform.threads))
	}
	if want := fmt.Sprintf("%d-add-ducks", s.ID); platform.threads[0].Name != want {
		t.Fatalf("thread name = %q, want %q", platform.threads[0].Name, want)
	}
}

func TestCreateRewritesReferencesInEmbedMode(t *testing.T) {
	svc, platform := newTestService(t, baseConfig())
	ctx := context.Background()

	first, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "original idea")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "builds on #1, see also #9")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	msg := platform.stored[strconv.FormatUint(second.MessageID, 10)]
	desc := msg.Embeds[0].Description
	wantLink := fmt.Sprintf("https://discord.com/channels/%d/%d/%d", testGuild, testChannel, first.MessageID)
	if !strings.Contains(desc, wantLink) {
		t.Fatalf("description %q missing link to #1", desc)
	}
	// A reference past the highest known id stays literal.
	if !strings.Contains(desc, "see also #9") {
		t.Fatalf("description %q mishandled #9", desc)
	}
}

func TestCreateReportsDecorationWarnings(t *testing.T) {
	cfg := baseConfig()
	cfg.Reactions = data.StringList{"👍"}
	svc, platform := newTestService(t, cfg)
	platform.reactErr = errors.New("missing permissions")

	created, warnings, err := svc.Create(context.Background(), testGuild, Author{ID: 1, Tag: "x"}, "idea")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created == nil || created.ID != 1 {
		t.Fatalf("suggestion not created despite reaction failure: %+v", created)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one", warnings)
	}
}

func TestEditGuards(t *testing.T) {
	svc, _ := newTestService(t, baseConfig())
	ctx := context.Background()

	s, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "idea")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Edit(ctx, testGuild, Author{ID: 2, Tag: "y"}, s.ID, "hijack"); !errors.Is(err, ErrWrongAuthor) {
		t.Fatalf("foreign edit: %v, want ErrWrongAuthor", err)
	}
	if err := svc.Edit(ctx, testGuild, Author{ID: 1, Tag: "x"}, 99, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing edit: %v, want ErrNotFound", err)
	}

	if err := svc.Resolve(ctx, testGuild, "mod", s.ID, customid.StatusDeny, "no"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := svc.Edit(ctx, testGuild, Author{ID: 1, Tag: "x"}, s.ID, "too late"); !errors.Is(err, ErrAlreadyReplied) {
		t.Fatalf("post-reply edit: %v, want ErrAlreadyReplied", err)
	}
}

func TestEditRewritesMessage(t *testing.T) {
	svc, platform := newTestService(t, baseConfig())
	ctx := context.Background()

	s, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "old text")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Edit(ctx, testGuild, Author{ID: 1, Tag: "x"}, s.ID, "new text"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	msg := platform.stored[strconv.FormatUint(s.MessageID, 10)]
	if msg.Embeds[0].Description != "new text" {
		t.Fatalf("description = %q", msg.Embeds[0].Description)
	}
}

func TestEditVanishedMessageArchives(t *testing.T) {
	svc, platform := newTestService(t, baseConfig())
	ctx := context.Background()

	s, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "idea")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	delete(platform.stored, strconv.FormatUint(s.MessageID, 10))

	if err := svc.Edit(ctx, testGuild, Author{ID: 1, Tag: "x"}, s.ID, "update"); !errors.Is(err, ErrMessageGone) {
		t.Fatalf("err = %v, want ErrMessageGone", err)
	}

	fresh, err := data.FindSuggestion(ctx, svc.DB, testGuild, s.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.ArchivedAt == nil {
		t.Fatal("vanished suggestion was not archived")
	}
}

func TestResolveMarksReplied(t *testing.T) {
	svc, platform := newTestService(t, baseConfig())
	ctx := context.Background()

	s, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "idea")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Resolve(ctx, testGuild, "mod", s.ID, customid.StatusAccept, "shipping it"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	fresh, err := data.FindSuggestion(ctx, svc.DB, testGuild, s.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.RepliedAt == nil {
		t.Fatal("RepliedAt not set")
	}

	msg := platform.stored[strconv.FormatUint(s.MessageID, 10)]
	if msg.Embeds[0].Color != StatusColor(customid.StatusAccept) {
		t.Fatalf("color = %#x", msg.Embeds[0].Color)
	}
	if len(msg.Embeds[0].Fields) != 1 || !strings.HasPrefix(msg.Embeds[0].Fields[0].Value, "shipping it") {
		t.Fatalf("fields = %+v", msg.Embeds[0].Fields)
	}
}

func TestArchiveIsOneWay(t *testing.T) {
	cfg := baseConfig()
	cfg.RemoveReactions = true
	svc, platform := newTestService(t, cfg)
	ctx := context.Background()

	s, _, err := svc.Create(ctx, testGuild, Author{ID: 1, Tag: "x"}, "idea")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Archive(ctx, testGuild, s.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	msg := platform.stored[strconv.FormatUint(s.MessageID, 10)]
	if len(msg.Components) != 0 {
		t.Fatalf("components not stripped: %d rows", len(msg.Components))
	}
	if platform.cleared != 1 {
		t.Fatalf("reactions cleared %d times, want 1", platform.cleared)
	}

	if err := svc.Archive(ctx, testGuild, s.ID); !errors.Is(err, ErrArchived) {
		t.Fatalf("second archive: %v, want ErrArchived", err)
	}
	if err := svc.Resolve(ctx, testGuild, "mod", s.ID, customid.StatusAccept, "late"); !errors.Is(err, ErrArchived) {
		t.Fatalf("resolve archived: %v, want ErrArchived", err)
	}
}

func TestThreadInvitesAuthor(t *testing.T) {
	svc, platform := newTestService(t, baseConfig())
	ctx := context.Background()

	s, _, err := svc.Create(ctx, testGuild, Author{ID: 42, Tag: "x"}, "Big Plans")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	thread, err := svc.Thread(ctx, testGuild, s.ID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if want := fmt.Sprintf("%d-big-plans", s.ID); thread.Name != want {
		t.Fatalf("thread name = %q, want %q", thread.Name, want)
	}
	if len(platform.invites) != 1 || platform.invites[0] != thread.ID+":42" {
		t.Fatalf("invites = %v", platform.invites)
	}

	// The thread button disappears once a thread exists.
	msg := platform.stored[strconv.FormatUint(s.MessageID, 10)]
	row := msg.Components[0].(discordgo.ActionsRow)
	if len(row.Components) != 1 {
		t.Fatalf("buttons after thread = %d, want 1", len(row.Components))
	}
}
