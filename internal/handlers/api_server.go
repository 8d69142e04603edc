// internal/handlers/api_server.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mbeaudry/quarte/internal/middleware"
)

// NewAPIServer builds the HTTP surface: session creation, a public state
// probe for late-arriving spectator UIs, and the websocket endpoint.
func NewAPIServer(logger *logrus.Logger, srv *Server) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/session/create", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if srv.Admission != nil && !srv.Admission.Allow(r) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		s := srv.CreateSession()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"sessionId": s.ID.String(),
		})
	})

	mux.HandleFunc("/session/state/", func(w http.ResponseWriter, r *http.Request) {
		idStr := r.URL.Path[len("/session/state/"):]
		sessionID, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "Invalid session_id format", http.StatusBadRequest)
			return
		}
		s, ok := srv.Registry.Get(sessionID)
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.ViewStateFor(uuid.Nil))
	})

	mux.Handle("/session/ws/", SessionWSHandler(logger, srv))

	return middleware.LogMiddleware(logger)(mux)
}
