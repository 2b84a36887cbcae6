package data

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CountSuggestions returns the number of suggestions a guild has. This is the
// durable source of truth for sequential id allocation.
func CountSuggestions(ctx context.Context, db *gorm.DB, guildID uint64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&Suggestion{}).Where("guild_id = ?", guildID).Count(&count).Error
	return count, err
}

// FindSuggestion loads one suggestion by its per-guild id. Returns
// gorm.ErrRecordNotFound when it does not exist.
func FindSuggestion(ctx context.Context, db *gorm.DB, guildID uint64, id uint32) (*Suggestion, error) {
	var s Suggestion
	err := db.WithContext(ctx).Where("guild_id = ? AND id = ?", guildID, id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSuggestion persists a new suggestion row.
func CreateSuggestion(ctx context.Context, db *gorm.DB, s *Suggestion) error {
	return db.WithContext(ctx).Create(s).Error
}

// FindSuggestionMessages resolves suggestion ids to their posted message ids
// in one query. Ids with no row are absent from the result.
func FindSuggestionMessages(ctx context.Context, db *gorm.DB, guildID uint64, ids []uint32) (map[uint32]uint64, error) {
	if len(ids) == 0 {
		return map[uint32]uint64{}, nil
	}

	var rows []Suggestion
	err := db.WithContext(ctx).
		Select("id", "message_id").
		Where("guild_id = ? AND id IN ?", guildID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	refs := make(map[uint32]uint64, len(rows))
	for _, row := range rows {
		refs[row.ID] = row.MessageID
	}
	return refs, nil
}

// MarkReplied records the first resolution time. Later resolutions keep the
// original timestamp: the transition is one-way.
func MarkReplied(ctx context.Context, db *gorm.DB, guildID uint64, id uint32, at time.Time) error {
	return db.WithContext(ctx).Model(&Suggestion{}).
		Where("guild_id = ? AND id = ? AND replied_at IS NULL", guildID, id).
		Update("replied_at", at).Error
}

// ArchiveSuggestion records the archival time. Archiving twice is legal (the
// moderator button and message-deletion detection can both fire); the first
// timestamp wins and the second call is a no-op.
func ArchiveSuggestion(ctx context.Context, db *gorm.DB, guildID uint64, id uint32, at time.Time) error {
	return db.WithContext(ctx).Model(&Suggestion{}).
		Where("guild_id = ? AND id = ? AND archived_at IS NULL", guildID, id).
		Update("archived_at", at).Error
}

// ListSuggestions returns one page of a guild's suggestions, newest first.
func ListSuggestions(ctx context.Context, db *gorm.DB, guildID uint64, page, perPage int) ([]Suggestion, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	var rows []Suggestion
	err := db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("id DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&rows).Error
	return rows, err
}
