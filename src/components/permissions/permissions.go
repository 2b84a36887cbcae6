// Package permissions decides whether a guild member may run a moderation
// action. Discord lets admins attach per-command role/user overrides; when
// none exist the command's default permission bitmask applies, and when they
// conflict the highest-positioned role wins. The resolution mirrors Discord's
// own overwrite semantics so the bot's fallback decisions match what the
// permission UI shows moderators.
package permissions

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/suggestions/src/components/tempcache"
	"github.com/stake-plus/suggestions/src/discord"
)

// API is the slice of the Discord client the resolver needs.
type API interface {
	ApplicationCommandPermissions(appID, guildID, cmdID string, options ...discordgo.RequestOption) (*discordgo.GuildApplicationCommandPermissions, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
}

const (
	overrideTTL = 30 * time.Second
	roleTTL     = 30 * time.Second
	sweepEvery  = 15 * time.Second
)

// Resolver answers "can this member perform this command here". Override and
// role lists are cached for a short TTL: permission changes are rare relative
// to the window and a stale read only delays a change by seconds.
type Resolver struct {
	api   API
	appID string

	commandIDs map[string]string // command name -> registered id
	defaults   map[string]int64  // command name -> default bitmask

	overrides *tempcache.Cache[string, []*discordgo.ApplicationCommandPermissions]
	roles     *tempcache.Cache[string, []*discordgo.Role]
}

func New(api API, appID string) *Resolver {
	return &Resolver{
		api:        api,
		appID:      appID,
		commandIDs: make(map[string]string),
		defaults:   make(map[string]int64),
		overrides:  tempcache.New[string, []*discordgo.ApplicationCommandPermissions](overrideTTL, sweepEvery),
		roles:      tempcache.New[string, []*discordgo.Role](roleTTL, sweepEvery),
	}
}

// RegisterCommand records a command's registered id and its default member
// permission bitmask. Called once after slash-command registration.
func (r *Resolver) RegisterCommand(name, id string, defaultMask int64) {
	r.commandIDs[name] = id
	r.defaults[name] = defaultMask
}

// CanPerform reports whether member may run the named command in the guild.
func (r *Resolver) CanPerform(member *discordgo.Member, guildID, command string) (bool, error) {
	if member == nil || member.User == nil {
		return false, fmt.Errorf("permissions: interaction carried no member")
	}

	// Administrators bypass everything, overrides included.
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}

	overrides, err := r.commandOverrides(guildID, command)
	if err != nil {
		return false, err
	}

	// No overrides configured: the command's default bitmask decides.
	if len(overrides) == 0 {
		mask, ok := r.defaults[command]
		if !ok {
			return false, fmt.Errorf("permissions: unknown command %q", command)
		}
		return member.Permissions&mask == mask, nil
	}

	// An explicit per-user entry wins outright.
	for _, o := range overrides {
		if o.Type == discordgo.ApplicationCommandPermissionTypeUser && o.ID == member.User.ID {
			return o.Permission, nil
		}
	}

	memberRoles := make(map[string]struct{}, len(member.Roles)+1)
	for _, id := range member.Roles {
		memberRoles[id] = struct{}{}
	}
	// Everyone's implicit role shares the guild's id.
	memberRoles[guildID] = struct{}{}

	var grants, denies []string
	for _, o := range overrides {
		if o.Type != discordgo.ApplicationCommandPermissionTypeRole {
			continue
		}
		if _, ok := memberRoles[o.ID]; !ok {
			continue
		}
		if o.Permission {
			grants = append(grants, o.ID)
		} else {
			denies = append(denies, o.ID)
		}
	}

	if len(grants) == 0 {
		return false, nil
	}
	if len(denies) == 0 {
		return true, nil
	}

	// An explicit role grant outranks a deny on the base @everyone role.
	onlyEveryoneDenied := true
	for _, id := range denies {
		if id != guildID {
			onlyEveryoneDenied = false
			break
		}
	}
	if onlyEveryoneDenied {
		return true, nil
	}

	return r.highestIsGranted(guildID, grants, denies)
}

// highestIsGranted resolves a grant/deny conflict the way Discord resolves
// overlapping permission overwrites: the highest-positioned contested role
// decides.
func (r *Resolver) highestIsGranted(guildID string, grants, denies []string) (bool, error) {
	roles, err := r.guildRoles(guildID)
	if err != nil {
		return false, err
	}

	positions := make(map[string]int, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
	}

	granted := false
	best := -1
	for _, id := range grants {
		if pos, ok := positions[id]; ok && pos > best {
			best = pos
			granted = true
		}
	}
	for _, id := range denies {
		if pos, ok := positions[id]; ok && pos > best {
			best = pos
			granted = false
		}
	}
	return granted, nil
}

func (r *Resolver) commandOverrides(guildID, command string) ([]*discordgo.ApplicationCommandPermissions, error) {
	cmdID, ok := r.commandIDs[command]
	if !ok {
		return nil, fmt.Errorf("permissions: command %q was never registered", command)
	}

	return r.overrides.Ensure(guildID+"/"+cmdID, func(string) ([]*discordgo.ApplicationCommandPermissions, error) {
		perms, err := r.api.ApplicationCommandPermissions(r.appID, guildID, cmdID)
		if err != nil {
			// No overrides configured is a normal state, not a failure.
			if discord.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return perms.Permissions, nil
	})
}

func (r *Resolver) guildRoles(guildID string) ([]*discordgo.Role, error) {
	return r.roles.Ensure(guildID, func(string) ([]*discordgo.Role, error) {
		return r.api.GuildRoles(guildID)
	})
}
