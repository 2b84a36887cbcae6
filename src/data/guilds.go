package data

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetGuildConfig loads a guild's settings row. Returns gorm.ErrRecordNotFound
// when the guild was never configured.
func GetGuildConfig(ctx context.Context, db *gorm.DB, guildID uint64) (*GuildConfig, error) {
	var cfg GuildConfig
	err := db.WithContext(ctx).Where("guild_id = ?", guildID).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetOrDefaultGuildConfig loads a guild's settings, falling back to defaults
// for guilds that were never configured.
func GetOrDefaultGuildConfig(ctx context.Context, db *gorm.DB, guildID uint64) (*GuildConfig, error) {
	cfg, err := GetGuildConfig(ctx, db, guildID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &GuildConfig{GuildID: guildID, Embed: true, Buttons: true}, nil
	}
	return cfg, err
}

// UpsertGuildConfig creates the guild's settings row on first write and
// updates it afterwards.
func UpsertGuildConfig(ctx context.Context, db *gorm.DB, cfg *GuildConfig) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		UpdateAll: true,
	}).Create(cfg).Error
}
