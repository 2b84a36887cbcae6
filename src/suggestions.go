package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/stake-plus/suggestions/src/bot"
	"github.com/stake-plus/suggestions/src/config"
	"github.com/stake-plus/suggestions/src/data"
	"github.com/stake-plus/suggestions/src/web"
)

func main() {
	clearCommands := flag.Bool("clear-commands", false, "remove registered slash commands and exit")
	flag.Parse()

	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Fatalf("mysql dsn: %v", err)
	}
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	cfg := config.Load(db)
	if cfg.Token == "" {
		log.Fatal("no discord token configured (settings table or DISCORD_TOKEN)")
	}

	rdb := data.MustRedis(cfg.RedisURL)

	b, err := bot.New(cfg, db, rdb)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}
	if err := b.Start(); err != nil {
		log.Fatalf("bot start: %v", err)
	}

	if *clearCommands {
		if err := b.ClearCommands(); err != nil {
			log.Fatalf("clear commands: %v", err)
		}
		b.Stop()
		return
	}

	go func() {
		log.Printf("web: listening on %s", cfg.WebAddr)
		if err := http.ListenAndServe(cfg.WebAddr, web.New(db)); err != nil {
			log.Fatalf("web: %v", err)
		}
	}()

	// Wait for termination
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	b.Stop()
}
