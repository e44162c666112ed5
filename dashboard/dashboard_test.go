package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"whatsapp-gateway/types"

	"github.com/rs/zerolog"
)

type staticSessions struct {
	active types.ActiveSessions
}

func (s staticSessions) Active() types.ActiveSessions { return s.active }

func TestStatusEndpoint(t *testing.T) {
	srv := NewServer(staticSessions{active: types.ActiveSessions{Count: 1, Numbers: []string{"111"}}}, zerolog.Nop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Sessions types.ActiveSessions `json:"sessions"`
		Uptime   string               `json:"uptime"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Sessions.Count != 1 || body.Sessions.Numbers[0] != "111" {
		t.Fatalf("sessions = %+v", body.Sessions)
	}
	if body.Uptime == "" {
		t.Fatal("uptime missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(staticSessions{}, zerolog.Nop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty metrics exposition")
	}
}
