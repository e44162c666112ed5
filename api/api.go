// Package api exposes the session lifecycle over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"whatsapp-gateway/types"
	"whatsapp-gateway/whatsapp"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Service is the session lifecycle surface the handlers call into.
type Service interface {
	Pair(ctx context.Context, number string) (types.PairResult, error)
	Delete(ctx context.Context, number string) error
	Active() types.ActiveSessions
	ConnectAll(ctx context.Context) ([]types.ConnectionStatus, error)
	ReconnectAll(ctx context.Context) ([]types.ConnectionStatus, error)
}

type Server struct {
	svc Service
	log zerolog.Logger
}

func NewServer(svc Service, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log.With().Str("component", "api").Logger()}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handlePair).Methods(http.MethodGet)
	r.HandleFunc("/active", s.handleActive).Methods(http.MethodGet)
	r.HandleFunc("/connect-all", s.handleConnectAll).Methods(http.MethodGet)
	r.HandleFunc("/reconnect-all", s.handleReconnectAll).Methods(http.MethodGet)
	r.HandleFunc("/session/{number}", s.handleDelete).Methods(http.MethodDelete)
	return r
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number query parameter is required"})
		return
	}

	res, err := s.svc.Pair(r.Context(), number)
	switch {
	case errors.Is(err, whatsapp.ErrInvalidNumber):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid number"})
	case errors.Is(err, whatsapp.ErrPairingCodeFailed):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Service Unavailable"})
	case err != nil:
		s.log.Error().Err(err).Str("number", number).Msg("pairing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Active())
}

func (s *Server) handleConnectAll(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.svc.ConnectAll(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("connect-all failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": statuses})
}

func (s *Server) handleReconnectAll(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.svc.ReconnectAll(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("reconnect-all failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": statuses})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["number"]
	if err := s.svc.Delete(r.Context(), number); err != nil {
		if errors.Is(err, whatsapp.ErrInvalidNumber) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid number"})
			return
		}
		s.log.Error().Err(err).Str("number", number).Msg("session delete failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "number": number})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
