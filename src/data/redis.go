package data

import (
	"log"

	"github.com/redis/go-redis/v9"
)

// MustRedis connects to redis or exits. The TTL store backs user cooldowns,
// so the bot refuses to run without it.
func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}
