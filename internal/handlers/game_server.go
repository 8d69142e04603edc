// internal/handlers/game_server.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mbeaudry/quarte/internal/cache"
	"github.com/mbeaudry/quarte/internal/config"
	"github.com/mbeaudry/quarte/internal/game"
	"github.com/mbeaudry/quarte/internal/models"
	"github.com/mbeaudry/quarte/internal/reconnect"
)

// Server owns the live session registry and everything the websocket
// handlers need: resume tokens, persistence, the stand-in strategy, and
// per-session connection hubs.
type Server struct {
	Cfg       config.Config
	Registry  *game.Registry
	Reconnect *reconnect.Manager
	Persist   game.Persistence
	Strategy  game.Strategy
	Admission Admission
	Logger    *logrus.Logger

	mu   sync.Mutex
	hubs map[uuid.UUID]*sessionHub
}

// NewServer wires a Server. Persist may be nil (no database); Admission nil
// means no admission control.
func NewServer(cfg config.Config, logger *logrus.Logger, store reconnect.TokenStore, persist game.Persistence, strategy game.Strategy) *Server {
	registry := game.NewRegistry()
	srv := &Server{
		Cfg:       cfg,
		Registry:  registry,
		Reconnect: reconnect.NewManager(registry, store, cfg.TokenTTL),
		Persist:   persist,
		Strategy:  strategy,
		Logger:    logger,
		hubs:      make(map[uuid.UUID]*sessionHub),
	}
	registry.OnRemove = srv.dropHub
	return srv
}

// CreateSession builds a new table, registers it, and wires its hooks.
func (srv *Server) CreateSession() *game.Session {
	s := game.NewSession(srv.Cfg)
	s.Strategy = srv.Strategy
	s.Persist = srv.Persist
	s.BroadcastFn = srv.createBroadcastFunc(s)
	s.BroadcastToPlayerFn = srv.createBroadcastToPlayerFunc(s)
	s.OnSeatConverted = func(name string) {
		srv.Reconnect.Revoke(context.Background(), s.ID, name)
	}
	if cache.Rdb != nil {
		s.LogFn = publishActionLog
	}
	srv.Registry.Add(s)

	srv.mu.Lock()
	srv.hubs[s.ID] = newSessionHub()
	srv.mu.Unlock()

	srv.Logger.Infof("Created session %s", s.ID)
	return s
}

// hub returns the connection hub for a session, or nil if the session is
// unknown.
func (srv *Server) hub(id uuid.UUID) *sessionHub {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.hubs[id]
}

// dropHub removes a torn-down session's hub.
func (srv *Server) dropHub(id uuid.UUID) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.hubs, id)
}

// publishActionLog pushes one applied action onto the Redis audit queue,
// fire and forget.
func publishActionLog(sessionID uuid.UUID, index int, actor string, kind models.ActionKind, payload interface{}) {
	rec := cache.ActionRecord{
		SessionID:   sessionID,
		ActionIndex: index,
		ActorName:   actor,
		ActionType:  string(kind),
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := cache.PublishAction(ctx, rec); err != nil {
			logrus.Warnf("Failed to publish action log for session %s: %v", sessionID, err)
		}
	}()
}
