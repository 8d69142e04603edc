// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/mbeaudry/quarte/internal/auth"
	"github.com/mbeaudry/quarte/internal/bot"
	"github.com/mbeaudry/quarte/internal/cache"
	"github.com/mbeaudry/quarte/internal/config"
	"github.com/mbeaudry/quarte/internal/database"
	"github.com/mbeaudry/quarte/internal/game"
	"github.com/mbeaudry/quarte/internal/handlers"
	"github.com/mbeaudry/quarte/internal/reconnect"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.FromEnv()

	// Redis backs the durable resume-token store and the action audit queue.
	// Without it tokens live in memory and the audit queue is off.
	var tokenStore reconnect.TokenStore
	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("Redis unavailable, resume tokens will not survive restarts: %v", err)
	} else {
		tokenStore = cache.NewRedisTokenStore(nil)
	}

	// Postgres backs snapshots and finished-match records; optional too.
	var persist game.Persistence
	if os.Getenv("DATABASE_URL") != "" || os.Getenv("PG_HOST") != "" {
		database.ConnectDB()
		persist = database.NewStore(nil)
	} else {
		logger.Warn("No database configured, session snapshots disabled")
	}

	srv := handlers.NewServer(cfg, logger, tokenStore, persist, bot.Standin{})
	srv.Admission = handlers.NewTokenBucketAdmission(5, 10)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handlers.NewAPIServer(logger, srv)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
