package config

import (
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/stake-plus/suggestions/src/data"
)

// Config holds everything the process needs to start. Values come from the
// settings table with environment fallbacks, so deployments can pick either.
type Config struct {
	Token    string
	RedisURL string
	WebAddr  string
	GuildID  string
}

// Load reads configuration from the settings table and the environment.
func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("config: settings table unavailable, using env only: %v", err)
	}

	return Config{
		Token:    setting("discord_token", "DISCORD_TOKEN", ""),
		RedisURL: setting("redis_url", "REDIS_URL", "redis://127.0.0.1:6379/0"),
		WebAddr:  setting("web_addr", "WEB_ADDR", ":8080"),
		GuildID:  setting("guild_id", "GUILD_ID", ""),
	}
}

// setting retrieves a value with env fallback and default.
func setting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}
