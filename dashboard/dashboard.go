// Package dashboard serves the Prometheus scrape endpoint and a small JSON
// status page for operators.
package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"whatsapp-gateway/types"
	"whatsapp-gateway/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Sessions reports the currently active sessions.
type Sessions interface {
	Active() types.ActiveSessions
}

type Server struct {
	sessions Sessions
	log      zerolog.Logger
	started  time.Time
}

func NewServer(sessions Sessions, log zerolog.Logger) *Server {
	return &Server{
		sessions: sessions,
		log:      log.With().Str("component", "dashboard").Logger(),
		started:  time.Now(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")

	active := s.sessions.Active()
	response := map[string]interface{}{
		"sessions":  active,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"memory":    utils.GetMemoryStats(),
		"timestamp": time.Now(),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error().Err(err).Msg("failed to encode status response")
	}
}
