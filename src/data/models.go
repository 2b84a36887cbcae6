package data

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Suggestion is a numbered guild submission. IDs are 1-based and contiguous
// per guild; the composite key is (guild_id, id). RepliedAt and ArchivedAt are
// the only fields mutated after creation and each moves from NULL to a
// timestamp exactly once.
type Suggestion struct {
	ID         uint32 `gorm:"primaryKey;autoIncrement:false"`
	GuildID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	AuthorID   uint64 `gorm:"not null"`
	MessageID  uint64 `gorm:"not null"`
	CreatedAt  time.Time
	RepliedAt  *time.Time
	ArchivedAt *time.Time
}

// GuildConfig holds the per-guild settings, one row per guild with upsert
// semantics. CooldownMs is stored in milliseconds. Embed and Buttons default
// on, but the defaults live in GetOrDefaultGuildConfig rather than in column
// tags: gorm drops zero-valued fields carrying a default tag from INSERTs,
// which would make false impossible to store.
type GuildConfig struct {
	GuildID         uint64     `gorm:"primaryKey;autoIncrement:false"`
	ChannelID       uint64
	Embed           bool
	Buttons         bool
	Compact         bool
	AutoThread      bool
	UpdateHistory   bool
	RemoveReactions bool
	CooldownMs      int64
	Reactions       StringList `gorm:"type:text"`
	UpdatedAt       time.Time
}

// Cooldown returns the configured cooldown as a duration.
func (c *GuildConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

// Setting is a name/value row of the settings table.
type Setting struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text"`
}

// StringList stores a []string as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("data: cannot scan %T into StringList", src)
	}
}

// Migrate creates or updates the schema for all entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Suggestion{}, &GuildConfig{}, &Setting{})
}
